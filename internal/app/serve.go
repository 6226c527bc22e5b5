package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/socialhub/backend/internal/config"
	"github.com/socialhub/backend/internal/db"
	"github.com/socialhub/backend/internal/events"
	"github.com/socialhub/backend/internal/handlers"
	"github.com/socialhub/backend/internal/httpserver"
	"github.com/socialhub/backend/internal/middleware"
	"github.com/socialhub/backend/internal/telemetry"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var infra infrastructure
	checks := make(map[string]handlers.Pinger)

	if cfg.Store == config.StorePostgres || cfg.SessionBackend == config.StorePostgres {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		infra.pool = pool
		checks["postgres"] = pool
		logger.Info("connected to postgres")
	}

	if cfg.SessionBackend == config.StoreRedis {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		infra.redis = client
		checks["redis"] = pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		logger.Info("connected to redis")
	}

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("socialhub"))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()

		publisher, err := events.NewPublisher(ctx, nc)
		if err != nil {
			return err
		}
		infra.publisher = publisher
		checks["nats"] = pingFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New(nc.Status().String())
			}
			return nil
		})
		logger.Info("connected to nats")
	}

	comps, err := buildDependencies(cfg, infra)
	if err != nil {
		return err
	}
	comps.handlers.Health = checks

	if nc != nil {
		dispatcher := events.NewDispatcher(comps.content, events.DispatcherConfig{
			QueueSize: cfg.EventQueue,
			Workers:   cfg.EventWorkers,
		}, logger)
		sub, err := dispatcher.Subscribe(nc)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", events.ContentSubjects, err)
		}
		defer func() {
			_ = sub.Unsubscribe()
			drainCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
			defer cancel()
			if err := dispatcher.Shutdown(drainCtx); err != nil {
				logger.Warn("event dispatcher did not drain", "error", err)
			}
		}()
	}

	if purger, ok := comps.sessions.(expiredSessionPurger); ok {
		sweepCtx, stopSweep := context.WithCancel(ctx)
		defer stopSweep()
		go sweepSessions(sweepCtx, purger, cfg.SessionSweep, logger)
	}

	var handler http.Handler = handlers.NewRouter(comps.handlers)
	handler = middleware.RequestLogger(logger)(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "traceparent", "baggage", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(handler)
	handler = otelhttp.NewHandler(handler, "socialhub", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting http server", "port", cfg.AppPort, "store", cfg.Store, "sessions", cfg.SessionBackend)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped", "open_channels", comps.presence.Len())
	return nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
