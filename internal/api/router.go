package api

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"runtime/debug"

	"github.com/St1cky1/tarefa-service/internal/api/handlers"
	"github.com/St1cky1/tarefa-service/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gorillahandlers "github.com/gorilla/handlers"
)

const jsonMediaType = "application/json"

var routeMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

type RouterConfig struct {
	CORSOrigins []string
	// Health is mounted at /healthz when set.
	Health http.Handler
}

func NewRouter(taskService *usecase.TaskService, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(recoverer)
	r.Use(gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.CORSOrigins),
		gorillahandlers.AllowedMethods(append([]string{http.MethodOptions}, routeMethods...)),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "X-Request-Id"}),
	))

	taskHandler := handlers.NewTaskHandler(taskService)

	r.Get("/tasks", taskHandler.ListTasks)
	r.With(requireJSON).Post("/tasks", taskHandler.CreateTask)
	r.Get("/tasks/status/{status}", taskHandler.ListByStatus)
	r.Get("/tasks/search", taskHandler.SearchByTitle)
	r.Get("/tasks/{id}", taskHandler.GetTask)
	r.With(requireJSON).Put("/tasks/{id}", taskHandler.UpdateTask)
	r.Delete("/tasks/{id}", taskHandler.DeleteTask)
	r.Patch("/tasks/{id}/complete", taskHandler.CompleteTask)
	r.Patch("/tasks/{id}/cancel", taskHandler.CancelTask)
	r.Get("/tasks/{id}/history", taskHandler.GetHistory)
	r.Get("/statistics/summary", taskHandler.GetStatistics)

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/healthz", cfg.Health)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handlers.WriteError(w, req, &handlers.EndpointNotFoundError{
			Method: req.Method,
			URL:    req.URL.Path,
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		handlers.WriteError(w, req, &handlers.MethodNotAllowedError{
			Method:    req.Method,
			Supported: allowedMethods(r, req.URL.Path),
			URL:       req.URL.Path,
		})
	})

	return r
}

// allowedMethods lists the methods registered for path.
func allowedMethods(routes chi.Routes, path string) []string {
	var methods []string
	for _, m := range routeMethods {
		if routes.Match(chi.NewRouteContext(), m, path) {
			methods = append(methods, m)
		}
	}
	return methods
}

// requireJSON rejects request bodies that are not JSON. Mounted only on
// routes that read a body.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != jsonMediaType {
			handlers.WriteError(w, r, &handlers.UnsupportedMediaTypeError{
				Received:  contentType,
				Supported: []string{jsonMediaType},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer answers a panicking request with the internal error envelope.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			slog.Error("panic recovered",
				"request_id", middleware.GetReqID(r.Context()),
				"panic", rvr,
				"stack", string(debug.Stack()),
			)
			handlers.WriteError(w, r, fmt.Errorf("panic: %v", rvr))
		}()

		next.ServeHTTP(w, r)
	})
}
