package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/warranty-portal/internal/api/http"
	"github.com/spec-kit/warranty-portal/internal/api/http/handlers"
	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/config"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/observability"
	"github.com/spec-kit/warranty-portal/internal/persistence"
	"github.com/spec-kit/warranty-portal/internal/readmodel"
	"github.com/spec-kit/warranty-portal/internal/repository"
	"github.com/spec-kit/warranty-portal/internal/service"
	"github.com/spec-kit/warranty-portal/internal/storage"
	"github.com/spec-kit/warranty-portal/internal/validation"
	"github.com/spec-kit/warranty-portal/internal/worker"
	"github.com/spec-kit/warranty-portal/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	blobs, err := storage.NewFSStore(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	brands, err := cfg.Workflow.BrandPolicy()
	if err != nil {
		return err
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	relay, closeSinks := newRelay(cfg, redis, logger)
	relay.Register(dispatcher)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	go relay.Run(relayCtx)

	services := service.New(service.Config{
		Store:          repository.NewPostgresStore(pg.PoolHandle()),
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Clock:          clock.Real(),
		Logger:         logger,
		Engine:         workflow.NewEngine(workflow.Policy{ReopenOnMessage: cfg.Workflow.ReopenOnMessage}),
		Validator:      validation.NewTicketValidator(brands, cfg.Workflow.MinIssueLength),
		Tokens:         auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		BcryptCost:     cfg.Auth.BcryptCost,
		BootstrapStaff: cfg.Auth.BootstrapStaffEmails,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		Exporter:       readmodel.CSVExporter{PublicBaseURL: cfg.Storage.PublicBaseURL},
	})

	deps := []handlers.Dependency{{Name: "postgres", Check: pg}}
	if redis.Enabled() {
		deps = append(deps, handlers.Dependency{Name: "redis", Check: redis})
	}

	app := httptransport.NewApp(httptransport.Options{
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        observability.NewMetrics(),
		Dependencies:   deps,
		Profiles:       services.Profiles,
		Tickets:        services.Tickets,
		Messages:       services.Messages,
		Attachments:    services.Attachments,
		Notifications:  services.Notifications,
		Reports:        services.Reports,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err = <-listenErr:
		logger.Error("fiber listen", zap.Error(err))
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	stopRelay()
	relay.Wait()
	closeSinks()
	if dropped := relay.Dropped(); dropped > 0 {
		logger.Warn("events dropped by relay", zap.Int64("count", dropped))
	}
	return err
}

// newRelay builds the event relay over whichever sinks are configured.
func newRelay(cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) (*worker.EventRelay, func()) {
	var sinks []events.EventHandler
	closeSinks := func() {}

	if r := events.NewRedisRelay(redis.Client, cfg.Events.RedisChannel); r != nil {
		sinks = append(sinks, r.Handle)
		logger.Info("relaying events to redis", zap.String("channel", cfg.Events.RedisChannel))
	}
	if k := events.NewKafkaRelay(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic); k != nil {
		sinks = append(sinks, k.Handle)
		closeSinks = func() {
			if err := k.Close(); err != nil {
				logger.Warn("kafka relay close", zap.Error(err))
			}
		}
		logger.Info("relaying events to kafka", zap.String("topic", cfg.Events.KafkaTopic))
	}
	return worker.NewEventRelay(logger, cfg.Events.Buffer, sinks...), closeSinks
}
