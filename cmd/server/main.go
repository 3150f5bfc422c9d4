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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"clearinghouse/internal/daps"
	documentmetrics "clearinghouse/internal/document/metrics"
	documentservice "clearinghouse/internal/document/service"
	documentstore "clearinghouse/internal/document/store"
	gatewayhandler "clearinghouse/internal/gateway/handler"
	gatewaymetrics "clearinghouse/internal/gateway/metrics"
	gatewayservice "clearinghouse/internal/gateway/service"
	"clearinghouse/internal/ids"
	keyringmetrics "clearinghouse/internal/keyring/metrics"
	keyringservice "clearinghouse/internal/keyring/service"
	keyringstore "clearinghouse/internal/keyring/store"
	"clearinghouse/internal/platform/config"
	"clearinghouse/internal/platform/httpserver"
	"clearinghouse/internal/platform/kafka"
	"clearinghouse/internal/platform/logger"
	"clearinghouse/internal/platform/metrics"
	"clearinghouse/internal/platform/postgres"
	"clearinghouse/internal/platform/redis"
	processservice "clearinghouse/internal/process/service"
	processstore "clearinghouse/internal/process/store"
	"clearinghouse/internal/receipts"
	"clearinghouse/pkg/platform/httputil"
)

const receiptPartitions = 3

// main wires the clearing house components, serves HTTP until SIGTERM or
// SIGINT and drains in-flight requests before exiting. Startup failures exit 1.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("clearing house stopped", "error", err)
		os.Exit(1)
	}
	log.Info("clearing house stopped")
}

// backends holds the handles main opens and must release.
type backends struct {
	db        *sql.DB
	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher *receipts.Publisher
	checks    map[string]func(context.Context) error
}

func (b *backends) close(ctx context.Context, log *slog.Logger) {
	if b.publisher != nil {
		if err := b.publisher.Close(ctx); err != nil {
			log.Warn("failed to flush receipts", "error", err)
		}
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer
	b := &backends{checks: map[string]func(context.Context) error{}}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		b.close(closeCtx, log)
	}()

	var (
		processes processservice.Store = processstore.NewInMemory()
		keyring   keyringservice.Store = keyringstore.NewInMemory()
		documents documentservice.Store
		tx        documentservice.StoreTx
	)

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := postgres.OpenDB(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		b.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		pool, err := postgres.OpenPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		b.pool = pool
		b.checks["postgres"] = pool.Ping
		processes = processstore.NewPostgres(db)
		keyring = keyringstore.NewPostgres(db)
		documents = documentstore.NewPostgres(pool)
		tx = newDocumentPostgresTx(pool, cfg.Server.BackendTimeout)
	default:
		mem := documentstore.NewInMemory()
		documents = mem
		tx = documentservice.NewShardedTx(mem, 0)
	}

	if cfg.Redis.URL != "" {
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		b.redis = rc
		b.checks["redis"] = rc.Health
		keyring = keyringstore.NewRedis(rc.Client)
	}

	docMetrics := documentmetrics.New(reg)
	docOpts := []documentservice.Option{
		documentservice.WithLogger(log),
		documentservice.WithMetrics(docMetrics),
		documentservice.WithAppendTimeout(cfg.Server.BackendTimeout),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, receiptPartitions); err != nil {
			client.Close()
			return err
		}
		b.publisher = receipts.New(client, cfg.Kafka.Topic,
			receipts.WithLogger(log),
			receipts.WithMetrics(docMetrics),
		)
		docOpts = append(docOpts, documentservice.WithReceiptPublisher(b.publisher))
	}

	keyringSvc := keyringservice.New(keyring, []byte(cfg.Keyring.MasterSecret),
		keyringservice.WithLogger(log),
		keyringservice.WithMetrics(keyringmetrics.New(reg)),
	)
	if err := keyringSvc.SeedGlobal(ctx, cfg.Keyring.GlobalDocTypes); err != nil {
		return err
	}

	validator, err := daps.NewValidator(daps.Config{
		Secret:        cfg.DAPS.Secret,
		PublicKeyFile: cfg.DAPS.PublicKeyFile,
		Issuer:        cfg.DAPS.Issuer,
		Audience:      cfg.DAPS.Audience,
	})
	if err != nil {
		return err
	}

	gateway := gatewayservice.New(
		processservice.New(processes, processservice.WithLogger(log)),
		documentservice.New(documents, tx, docOpts...),
		keyringSvc,
		validator,
		ids.NewBuilder(ids.Identity{
			SenderAgent:     cfg.Identity.SenderAgent,
			IssuerConnector: cfg.Identity.IssuerConnector,
			ModelVersion:    cfg.Identity.ModelVersion,
		}),
		gatewayservice.WithLogger(log),
		gatewayservice.WithMetrics(gatewaymetrics.New(reg)),
		gatewayservice.WithBackendTimeout(cfg.Server.BackendTimeout),
		gatewayservice.WithDefaultDocType(cfg.Keyring.DefaultDocType),
	)

	r := chi.NewRouter()
	r.Get("/health", b.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	gatewayhandler.New(gateway, validator, log, metrics.New(reg), cfg.AdminToken, cfg.Server.RequestTimeout).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting clearing house", "addr", cfg.Server.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("draining in-flight requests", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (b *backends) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, check := range b.checks {
		if err := check(ctx); err != nil {
			status[name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	httputil.WriteJSON(w, code, status)
}
