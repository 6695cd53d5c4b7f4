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
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"custodia/internal/ledger"
	"custodia/internal/ledger/enforcement"
	"custodia/internal/ledger/handler"
	"custodia/internal/ledger/issuance"
	"custodia/internal/ledger/lifecycle"
	ledgermetrics "custodia/internal/ledger/metrics"
	"custodia/internal/ledger/ports"
	"custodia/internal/ledger/roles"
	"custodia/internal/ledger/token"
	"custodia/internal/ledger/validation"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	platformredis "custodia/internal/platform/redis"
	"custodia/internal/storage"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publisher"
	auditmem "custodia/pkg/platform/audit/store/memory"
	auditpg "custodia/pkg/platform/audit/store/postgres"
	"custodia/pkg/platform/audit/worker"
	"custodia/pkg/platform/middleware/auth"
	"custodia/pkg/platform/middleware/request"
	"custodia/pkg/platform/middleware/requesttime"
	"custodia/pkg/platform/tx"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the ledger services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. An empty Postgres DSN selects the in-memory stack.
	var (
		roleStore      ports.RoleStore
		lifecycleStore ports.LifecycleStore
		accountStore   ports.AccountStore
		freezeStore    ports.FreezeStore
		auditStore     audit.Store
		txRunner       tx.Runner = tx.NopRunner{}
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if err := storage.ApplySchema(ctx, db); err != nil {
			return err
		}
		roleStore = roles.NewPostgresStore(db)
		lifecycleStore = lifecycle.NewPostgresStore(db)
		accountStore = token.NewPostgresStore(db)
		auditStore = auditpg.New(db)
		txRunner = tx.NewSQLRunner(db)
		log.Info("using postgres stores")
	} else {
		roleStore = roles.NewInMemoryStore()
		lifecycleStore = lifecycle.NewInMemoryStore()
		accountStore = token.NewInMemoryStore()
		auditStore = auditmem.NewInMemoryStore()
		log.Warn("postgres not configured, ledger state is in-memory only")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		freezeStore = enforcement.NewRedisStore(redisClient.Client)
		log.Info("using redis freeze store")
	} else {
		freezeStore = enforcement.NewInMemoryStore()
	}

	// Audit events are buffered and drained into the queryable store by a
	// background worker; Kafka fans them out to downstream consumers when
	// configured.
	auditInbox := publisher.NewChannel(1024)
	var auditSink ports.AuditPublisher = auditInbox
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			publisher.WithLogger(log))
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaSink.Close(closeCtx)
		}()
		auditSink = publisher.NewMulti(auditInbox, kafkaSink)
		log.Info("audit events published to kafka", "topic", cfg.Kafka.Topic)
	}

	m := ledgermetrics.New()

	roleSvc, err := roles.New(roleStore,
		roles.WithLogger(log), roles.WithAuditPublisher(auditSink), roles.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build roles service: %w", err)
	}
	lifecycleSvc, err := lifecycle.New(lifecycleStore, roleSvc,
		lifecycle.WithLogger(log), lifecycle.WithAuditPublisher(auditSink))
	if err != nil {
		return fmt.Errorf("build lifecycle service: %w", err)
	}
	enforcementSvc, err := enforcement.New(freezeStore, roleSvc,
		token.NewStoreBalanceReader(accountStore),
		enforcement.WithLogger(log), enforcement.WithAuditPublisher(auditSink), enforcement.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build enforcement service: %w", err)
	}
	tokenSvc, err := token.New(accountStore, roleSvc, lifecycleSvc, enforcementSvc,
		token.WithLogger(log), token.WithAuditPublisher(auditSink), token.WithMetrics(m),
		token.WithDecimals(cfg.Token.Decimals))
	if err != nil {
		return fmt.Errorf("build token service: %w", err)
	}
	validationEng, err := validation.New(roleSvc, lifecycleSvc, enforcementSvc, tokenSvc,
		validation.WithLogger(log), validation.WithAuditPublisher(auditSink), validation.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build validation engine: %w", err)
	}
	tokenSvc.SetValidator(validationEng)
	issuanceSvc, err := issuance.New(tokenSvc, tokenSvc, roleSvc, lifecycleSvc, enforcementSvc, tokenSvc,
		issuance.WithLogger(log), issuance.WithAuditPublisher(auditSink), issuance.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build issuance service: %w", err)
	}

	facade, err := ledger.New(roleSvc, lifecycleSvc, enforcementSvc, tokenSvc, issuanceSvc, validationEng,
		ledger.WithTxRunner(txRunner))
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}

	if err := bootstrap(ctx, cfg.Token, roleStore, accountStore, log); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	validator := auth.NewValidator(cfg.JWTSigningKey)
	ledgerHandler := handler.New(facade, log, handler.WithAuditStore(auditStore))

	router := chi.NewRouter()
	router.Use(request.Middleware)
	router.Use(requesttime.Middleware)
	router.Get("/healthz", healthz(redisClient))
	router.Handle("/metrics", promhttp.Handler())
	if cfg.OpsSecretHash != "" {
		router.Post("/auth/token", auth.OpsTokenHandler(validator, []byte(cfg.OpsSecretHash), time.Hour, log))
	}
	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireCaller(validator, log))
		ledgerHandler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewWorker(auditStore, auditInbox.Events()).Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting custodia ledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// bootstrap seeds the admin role and token metadata on first boot. Both
// writes are idempotent, so restarting against a seeded store is a no-op.
func bootstrap(ctx context.Context, cfg config.Token, roleStore ports.RoleStore, accountStore ports.AccountStore, log *slog.Logger) error {
	if cfg.AdminAddress != "" {
		admin, err := id.ParseAddress(cfg.AdminAddress)
		if err != nil {
			return fmt.Errorf("admin address: %w", err)
		}
		changed, err := roleStore.SetGrant(ctx, id.RoleDefaultAdmin, admin, true)
		if err != nil {
			return fmt.Errorf("grant default admin: %w", err)
		}
		if changed {
			log.Info("granted default admin role", "account", admin.String())
		}
	}

	name, _, err := accountStore.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("read token metadata: %w", err)
	}
	if name == "" {
		if err := accountStore.SetMetadata(ctx, cfg.Name, cfg.Symbol); err != nil {
			return fmt.Errorf("seed token metadata: %w", err)
		}
		log.Info("seeded token metadata", "name", cfg.Name, "symbol", cfg.Symbol)
	}
	return nil
}

func healthz(redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
