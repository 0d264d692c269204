package grpc

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// Gateway - HTTP фасад над gRPC health сервисом
type Gateway struct {
	mux  *runtime.ServeMux
	conn *grpc.ClientConn
}

// NewGatewayHandler создает HTTP Gateway для gRPC, отвечающий на GET /healthz
func NewGatewayHandler(grpcAddr string) (*Gateway, error) {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial gRPC server %s: %w", grpcAddr, err)
	}

	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions: protojson.MarshalOptions{EmitUnpopulated: true},
		}),
	)

	client := healthpb.NewHealthClient(conn)
	err = mux.HandlePath(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		_, outbound := runtime.MarshalerForRequest(mux, r)

		resp, err := client.Check(r.Context(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			runtime.HTTPError(r.Context(), mux, outbound, w, r, err)
			return
		}

		body, err := outbound.Marshal(resp)
		if err != nil {
			runtime.HTTPError(r.Context(), mux, outbound, w, r, err)
			return
		}

		status := http.StatusOK
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", outbound.ContentType(resp))
		w.WriteHeader(status)
		if _, err := w.Write(body); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to register gateway: %w", err)
	}

	return &Gateway{mux: mux, conn: conn}, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

func (g *Gateway) Close() error {
	return g.conn.Close()
}
