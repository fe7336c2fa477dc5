package ekubengine

import (
	"log/slog"
	"time"

	httpadapter "ekub/contexts/savings-core/ekub-engine/adapters/http"
	"ekub/contexts/savings-core/ekub-engine/adapters/memory"
	"ekub/contexts/savings-core/ekub-engine/adapters/notify"
	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/application/commands"
	"ekub/contexts/savings-core/ekub-engine/application/queries"
	"ekub/contexts/savings-core/ekub-engine/application/workers"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler

	PayoutRetrier  workers.PayoutRetrier
	OverdueFlagger workers.OverdueFlagger
	DueReminder    workers.DueReminder
	OutboxRelay    workers.OutboxRelay

	Locks *application.GroupLocks

	// Store and Wallet are only set by NewInMemoryModule, for tests and
	// local runs.
	Store  *memory.Store
	Wallet *memory.Wallet
}

type Dependencies struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Ledger      ports.LedgerRepository
	Wallet      ports.WalletService
	Idempotency ports.IdempotencyStore
	Outbox      ports.OutboxWriter
	OutboxRepo  ports.OutboxRepository
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGenerator ports.IDGenerator

	IdempotencyTTL  time.Duration
	ReminderWindow  time.Duration
	WorkerBatchSize int
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	locks := application.NewGroupLocks()

	issuePayout := commands.IssuePayoutUseCase{
		Groups:      deps.Groups,
		Cycles:      deps.Cycles,
		Ledger:      deps.Ledger,
		Wallet:      deps.Wallet,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}

	createGroup := commands.CreateGroupUseCase{
		Groups:         deps.Groups,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	joinGroup := commands.JoinGroupUseCase{
		Groups:      deps.Groups,
		Locks:       locks,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	leaveGroup := commands.LeaveGroupUseCase{
		Groups:      deps.Groups,
		Locks:       locks,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	activateGroup := commands.ActivateGroupUseCase{
		Groups:      deps.Groups,
		Cycles:      deps.Cycles,
		Locks:       locks,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	contribute := commands.ContributeUseCase{
		Groups:      deps.Groups,
		Cycles:      deps.Cycles,
		Ledger:      deps.Ledger,
		Wallet:      deps.Wallet,
		Locks:       locks,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		IssuePayout: issuePayout,
		Logger:      deps.Logger,
	}

	getGroupStatus := queries.GetGroupStatusUseCase{
		Groups: deps.Groups,
		Cycles: deps.Cycles,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	getLedger := queries.GetLedgerUseCase{
		Groups: deps.Groups,
		Ledger: deps.Ledger,
		Logger: deps.Logger,
	}
	listGroups := queries.ListGroupsUseCase{
		Groups: deps.Groups,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreateGroup:    createGroup,
			JoinGroup:      joinGroup,
			LeaveGroup:     leaveGroup,
			ActivateGroup:  activateGroup,
			Contribute:     contribute,
			GetGroupStatus: getGroupStatus,
			GetLedger:      getLedger,
			ListGroups:     listGroups,
			Logger:         deps.Logger,
		},
		PayoutRetrier: workers.PayoutRetrier{
			Groups:      deps.Groups,
			Cycles:      deps.Cycles,
			Locks:       locks,
			IssuePayout: issuePayout,
			BatchSize:   deps.WorkerBatchSize,
			Logger:      deps.Logger,
		},
		OverdueFlagger: workers.OverdueFlagger{
			Groups:      deps.Groups,
			Cycles:      deps.Cycles,
			Locks:       locks,
			Outbox:      deps.Outbox,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			BatchSize:   deps.WorkerBatchSize,
			Logger:      deps.Logger,
		},
		DueReminder: workers.DueReminder{
			Groups:      deps.Groups,
			Cycles:      deps.Cycles,
			Locks:       locks,
			Outbox:      deps.Outbox,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Window:      deps.ReminderWindow,
			BatchSize:   deps.WorkerBatchSize,
			Logger:      deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.WorkerBatchSize,
			Logger:    deps.Logger,
		},
		Locks: locks,
	}
}

// NewInMemoryModule wires the engine against in-memory adapters. The returned
// module exposes the store and wallet so tests can seed balances and move time.
func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	wallet := memory.NewWallet()
	module := NewModule(Dependencies{
		Groups:         store,
		Cycles:         store,
		Ledger:         store,
		Wallet:         wallet,
		Idempotency:    store,
		Outbox:         store,
		OutboxRepo:     store,
		Publisher:      publisher,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		ReminderWindow: 48 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	module.Wallet = wallet
	return module
}

// NewNotificationConsumer builds the consumer that turns bus events into
// member notifications. It is separate from NewModule because the subscriber
// only exists in worker deployments.
func NewNotificationConsumer(
	subscriber ports.EventSubscriber,
	notifier ports.Notifier,
	logger *slog.Logger,
) workers.NotificationConsumer {
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return workers.NotificationConsumer{
		Subscriber:    subscriber,
		Notifier:      notifier,
		ConsumerGroup: "ekub-engine-notifications",
		Logger:        logger,
	}
}
