package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/St1cky1/tarefa-service/internal/api"
	grpcapi "github.com/St1cky1/tarefa-service/internal/api/grpc"
	"github.com/St1cky1/tarefa-service/internal/config"
	"github.com/St1cky1/tarefa-service/internal/infrastructure/cache"
	"github.com/St1cky1/tarefa-service/internal/infrastructure/client"
	"github.com/St1cky1/tarefa-service/internal/repository"
	"github.com/St1cky1/tarefa-service/internal/usecase"
	"github.com/St1cky1/tarefa-service/internal/worker"
	"github.com/St1cky1/tarefa-service/migrations"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// store - выбранное хранилище и его репозитории
type store struct {
	tasks  repository.ITaskRepository
	audits repository.ITaskAuditRepository
	pinger grpcapi.Pinger
	close  func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("store ready", "driver", cfg.StoreDriver)

	bgCtx, bgCancel := context.WithCancel(ctx)
	workerDone := make(chan struct{})

	// Аудит: без RABBITMQ_URL сообщения отбрасываются
	var publisher usecase.AuditPublisher = client.NoopPublisher{}
	var rabbitMQ *client.RabbitMQClient
	if cfg.RabbitMQURL != "" {
		rabbitMQ, err = client.NewRabbitMQClient(cfg.RabbitMQURL, cfg.AuditQueue)
		if err != nil {
			slog.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		publisher = rabbitMQ
		slog.Info("RabbitMQ connected", "queue", rabbitMQ.GetQueueName())

		auditWorker := worker.NewAuditWorker(cfg.RabbitMQURL, cfg.AuditQueue, db.audits)
		go func() {
			defer close(workerDone)
			auditWorker.Start(bgCtx)
		}()
	} else {
		slog.Warn("RABBITMQ_URL not set, audit publishing disabled")
		close(workerDone)
	}

	health := map[string]grpcapi.Pinger{"store": db.pinger}

	var statsCache usecase.StatsCache = cache.Noop{}
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err = cache.Connect(ctx, cfg.RedisAddr, "tarefas:", cfg.StatsCacheTTL)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		statsCache = redisCache
		health["redis"] = redisCache
		slog.Info("Redis connected", "addr", cfg.RedisAddr, "ttl", cfg.StatsCacheTTL)
	}

	taskService := usecase.NewTaskService(db.tasks, db.audits, publisher, statsCache)

	// gRPC: health + reflection
	grpcServer := grpcapi.NewGRPCServer()
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()
	go grpcServer.Watch(bgCtx, cfg.HealthInterval, health)

	gateway, err := grpcapi.NewGatewayHandler(net.JoinHostPort("localhost", cfg.GRPCPort))
	if err != nil {
		slog.Error("failed to create gateway", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(taskService, api.RouterConfig{
			CORSOrigins: cfg.CORSOrigins,
			Health:      gateway,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"tarefa-service": func(ctx context.Context) error {
			slog.Info("graceful shutdown initiated")

			var errs []error
			if err := httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http: %w", err))
			}
			grpcServer.Stop()
			if err := gateway.Close(); err != nil {
				errs = append(errs, fmt.Errorf("gateway: %w", err))
			}

			// дожидаемся отправки аудита до закрытия канала
			taskService.Wait()
			bgCancel()
			<-workerDone

			if rabbitMQ != nil {
				if err := rabbitMQ.Close(); err != nil {
					errs = append(errs, fmt.Errorf("rabbitmq: %w", err))
				}
			}
			if redisCache != nil {
				slog.Info("statistics cache counters", "stats", redisCache.GetStats())
				if err := redisCache.Close(); err != nil {
					errs = append(errs, fmt.Errorf("redis: %w", err))
				}
			}
			if err := db.close(); err != nil {
				errs = append(errs, fmt.Errorf("store: %w", err))
			}
			return errors.Join(errs...)
		},
	})

	exitCode := <-wait
	slog.Info("application exited", "code", exitCode)
	os.Exit(exitCode)
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		sqlite, err := client.NewSQLiteClient(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		tasks := repository.NewGormTaskRepository(sqlite.DB)
		if err := tasks.Migrate(); err != nil {
			sqlite.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
		return &store{
			tasks:  tasks,
			audits: repository.NewGormTaskAuditRepository(sqlite.DB),
			pinger: sqlite,
			close:  sqlite.Close,
		}, nil

	default:
		if err := runMigrations(cfg.Postgres.URL()); err != nil {
			return nil, err
		}
		pg, err := client.NewPostgresClient(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &store{
			tasks:  repository.NewTaskRepository(pg.Pool),
			audits: repository.NewTaskAuditRepository(pg.Pool),
			pinger: pg,
			close:  pg.Close,
		}, nil
	}
}

func runMigrations(dbURL string) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("migrations applied")
	return nil
}
