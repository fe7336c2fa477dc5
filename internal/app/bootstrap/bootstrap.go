package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ekubengine "ekub/contexts/savings-core/ekub-engine"
	"ekub/contexts/savings-core/ekub-engine/adapters/memory"
	"ekub/contexts/savings-core/ekub-engine/adapters/notify"
	postgresadapter "ekub/contexts/savings-core/ekub-engine/adapters/postgres"
	"ekub/contexts/savings-core/ekub-engine/adapters/sqlite"
	"ekub/contexts/savings-core/ekub-engine/adapters/wallethttp"
	"ekub/contexts/savings-core/ekub-engine/application/workers"
	"ekub/contexts/savings-core/ekub-engine/ports"
	"ekub/internal/platform/config"
	"ekub/internal/platform/db"
	"ekub/internal/platform/httpserver"
	"ekub/internal/platform/logging"
	"ekub/internal/platform/messaging"
	"ekub/internal/platform/metrics"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server *httpserver.Server
	closer func() error
	logger *slog.Logger
}

type WorkerApp struct {
	engine       ekubengine.Module
	consumer     workers.NotificationConsumer
	cfg          config.Config
	closer       func() error
	pollInterval time.Duration
	logger       *slog.Logger
}

// storageSet is every persistence-backed port bound to one adapter.
type storageSet struct {
	groups      ports.GroupRepository
	cycles      ports.CycleRepository
	ledger      ports.LedgerRepository
	idempotency ports.IdempotencyStore
	outbox      ports.OutboxWriter
	outboxRepo  ports.OutboxRepository
	clock       ports.Clock
	idGenerator ports.IDGenerator
	closer      func() error
}

func buildStorage(cfg config.Config, logger *slog.Logger) (storageSet, error) {
	switch cfg.DBDriver {
	case "memory":
		store := memory.NewStore()
		return storageSet{
			groups:      store,
			cycles:      store,
			ledger:      store,
			idempotency: store,
			outbox:      store,
			outboxRepo:  store,
			clock:       store,
			idGenerator: store,
			closer:      func() error { return nil },
		}, nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return storageSet{}, err
		}
		return storageSet{
			groups:      store,
			cycles:      store,
			ledger:      store,
			idempotency: store,
			outbox:      store,
			outboxRepo:  store,
			clock:       postgresadapter.SystemClock{},
			idGenerator: postgresadapter.UUIDGenerator{},
			closer:      store.Close,
		}, nil
	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return storageSet{}, errors.New("POSTGRES_DSN is required when EKUB_DB=postgres")
		}
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return storageSet{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		return storageSet{
			groups:      repo,
			cycles:      repo,
			ledger:      repo,
			idempotency: repo,
			outbox:      repo,
			outboxRepo:  repo,
			clock:       postgresadapter.SystemClock{},
			idGenerator: postgresadapter.UUIDGenerator{},
			closer:      pg.Close,
		}, nil
	default:
		return storageSet{}, fmt.Errorf("unsupported EKUB_DB driver %q", cfg.DBDriver)
	}
}

func buildEngine(cfg config.Config, storage storageSet, publisher ports.EventPublisher, logger *slog.Logger) ekubengine.Module {
	var wallet ports.WalletService
	if strings.TrimSpace(cfg.WalletBaseURL) != "" {
		wallet = wallethttp.NewClient(cfg.WalletBaseURL, cfg.WalletTimeout)
	} else {
		// No wallet endpoint configured: local in-memory wallet, dev only.
		wallet = memory.NewWallet()
	}

	return ekubengine.NewModule(ekubengine.Dependencies{
		Groups:          storage.groups,
		Cycles:          storage.cycles,
		Ledger:          storage.ledger,
		Wallet:          wallet,
		Idempotency:     storage.idempotency,
		Outbox:          storage.outbox,
		OutboxRepo:      storage.outboxRepo,
		Publisher:       publisher,
		Clock:           storage.clock,
		IDGenerator:     storage.idGenerator,
		IdempotencyTTL:  cfg.IdempotencyTTL,
		ReminderWindow:  cfg.ReminderWindow,
		WorkerBatchSize: cfg.WorkerBatchSize,
		Logger:          logger,
	})
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.Setup().With("service", cfg.ServiceName, "process", "api")

	storage, err := buildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = storage.closer()
		return nil, err
	}

	engine := buildEngine(cfg, storage, kafka, logger)
	server := httpserver.New(engine, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server: server,
		closer: storage.closer,
		logger: logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.Setup().With("service", cfg.ServiceName, "process", "worker")

	storage, err := buildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = storage.closer()
		return nil, err
	}

	engine := buildEngine(cfg, storage, kafka, logger)
	consumer := ekubengine.NewNotificationConsumer(kafka, notify.NewLogNotifier(logger), logger)

	return &WorkerApp{
		engine:       engine,
		consumer:     consumer,
		cfg:          cfg,
		closer:       storage.closer,
		pollInterval: cfg.WorkerInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.closer != nil {
		return a.closer()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.cfg.EnableNotificationConsumer {
		if err := w.consumer.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		w.sweep(ctx, "payout_retrier", w.cfg.EnablePayoutRetrier, w.engine.PayoutRetrier.RunOnce)
		w.sweep(ctx, "overdue_flagger", w.cfg.EnableOverdueFlagger, w.engine.OverdueFlagger.RunOnce)
		w.sweep(ctx, "due_reminder", w.cfg.EnableDueReminder, w.engine.DueReminder.RunOnce)
		w.sweep(ctx, "outbox_relay", w.cfg.EnableOutboxRelay, w.engine.OutboxRelay.RunOnce)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// sweep runs one worker iteration. Sweep errors are logged and counted but
// never stop the loop: the next tick retries.
func (w *WorkerApp) sweep(ctx context.Context, name string, enabled bool, run func(context.Context) error) {
	if !enabled {
		return
	}
	metrics.WorkerSweeps.WithLabelValues(name).Inc()
	if err := run(ctx); err != nil {
		metrics.WorkerSweepFailures.WithLabelValues(name).Inc()
		w.logger.Error("worker sweep failed",
			"event", "bootstrap_worker_sweep_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"worker", name,
			"error", err.Error(),
		)
	}
}

func (w *WorkerApp) Close() error {
	if w.closer != nil {
		return w.closer()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
