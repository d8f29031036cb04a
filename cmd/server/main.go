// Command server runs the lifecycle / admission workflow engine.
//
// Backends are optional and chosen by configuration: without DATABASE_URL the
// engine runs on in-memory stores, without REDIS_URL notifications go to the
// log, and without KAFKA_BROKERS the audit trail stays in the database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	admissionhandler "civicflow/internal/admission/handler"
	admissionmetrics "civicflow/internal/admission/metrics"
	admissionservice "civicflow/internal/admission/service"
	admissionstore "civicflow/internal/admission/store"
	audithandler "civicflow/internal/audit/handler"
	checklisthandler "civicflow/internal/checklist/handler"
	httpapi "civicflow/internal/http"
	lifecyclehandler "civicflow/internal/lifecycle/handler"
	lifecyclemetrics "civicflow/internal/lifecycle/metrics"
	"civicflow/internal/lifecycle/models"
	lifecycleservice "civicflow/internal/lifecycle/service"
	lifecyclestore "civicflow/internal/lifecycle/store"
	"civicflow/internal/notify"
	"civicflow/internal/platform/config"
	"civicflow/internal/platform/httpserver"
	"civicflow/internal/platform/logger"
	platformmetrics "civicflow/internal/platform/metrics"
	platformpostgres "civicflow/internal/platform/postgres"
	platformredis "civicflow/internal/platform/redis"
	"civicflow/internal/rolestore"
	"civicflow/internal/token"
	audit "civicflow/pkg/platform/audit"
	"civicflow/pkg/platform/audit/relay"
	auditmemory "civicflow/pkg/platform/audit/store/memory"
	auditpostgres "civicflow/pkg/platform/audit/store/postgres"
)

const notificationStream = "civicflow.notifications"

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Postgres is optional; without it every store is in-memory.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if err := platformpostgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit trail: database-backed with a Kafka outbox relay when configured.
	var (
		auditStore audit.Store
		outbox     *auditpostgres.Store
	)
	if db != nil {
		pg := auditpostgres.New(db)
		auditStore = pg
		outbox = pg
	} else {
		auditStore = auditmemory.New()
	}
	publisher := audit.NewPublisher(auditStore)

	// Notifications: Redis Stream when configured, structured log otherwise,
	// always behind the async bounded-inbox decorator.
	var base notify.Dispatcher
	if redisClient != nil {
		base = notify.NewRedisDispatcher(redisClient.Client, notificationStream)
	} else {
		base = notify.NewLogDispatcher(log)
	}
	dispatcher := notify.NewAsync(base, 1024, log)

	var instances lifecyclestore.InstanceStore
	var requests admissionstore.RequestStore
	var allowLists admissionstore.AllowListStore
	if db != nil {
		instances = lifecyclestore.NewPostgres(db)
		requests = admissionstore.NewPostgresRequests(db)
		allowLists = admissionstore.NewPostgresAllowLists(db)
	} else {
		instances = lifecyclestore.NewInMemory()
		requests = admissionstore.NewInMemoryRequests()
		allowLists = admissionstore.NewInMemoryAllowLists()
	}
	roles := rolestore.NewInMemory()

	lifecycleSvc := lifecycleservice.New(instances, models.DefaultRegistry(),
		lifecycleservice.WithLogger(log),
		lifecycleservice.WithAuditPublisher(publisher),
		lifecycleservice.WithNotifier(dispatcher),
		lifecycleservice.WithMetrics(lifecyclemetrics.New()),
		lifecycleservice.WithStrictAudit(cfg.StrictAudit),
	)
	admissionSvc := admissionservice.New(requests, allowLists, roles,
		admissionservice.WithLogger(log),
		admissionservice.WithAuditPublisher(publisher),
		admissionservice.WithNotifier(dispatcher),
		admissionservice.WithMetrics(admissionmetrics.New()),
		admissionservice.WithStrictAudit(cfg.StrictAudit),
	)

	checks := map[string]httpapi.HealthChecker{}
	if db != nil {
		checks["postgres"] = dbHealth{db}
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Metrics:   platformmetrics.New(),
		Validator: token.NewService(cfg.JWTSigningKey),
		Handlers: []httpapi.Registerer{
			checklisthandler.New(log),
			lifecyclehandler.New(lifecycleSvc, log),
			admissionhandler.New(admissionSvc, log),
			audithandler.New(publisher, log),
		},
		Checks: checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting civicflow engine", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return dispatcher.Run(ctx)
	})

	if outbox != nil && len(cfg.KafkaBrokers) > 0 {
		producer, err := relay.NewKafkaProducer(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()
		auditRelay := relay.New(outbox, producer, log)
		group.Go(func() error {
			return auditRelay.Run(ctx)
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
