package ports

import (
	"context"
	"time"

	contractsv1 "ekub/contracts/gen/events/v1"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
)

type GroupFilter struct {
	MemberID string
	Status   entities.GroupStatus
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group entities.Group) error
	UpdateGroup(ctx context.Context, group entities.Group) error
	GetGroup(ctx context.Context, groupID string) (entities.Group, error)
	ListGroups(ctx context.Context, filter GroupFilter) ([]entities.Group, error)
}

type CycleRepository interface {
	CreateCycle(ctx context.Context, cycle entities.Cycle) error
	UpdateCycle(ctx context.Context, cycle entities.Cycle) error
	GetCycle(ctx context.Context, groupID string, cycleIndex int) (entities.Cycle, error)
	// ListOpenCyclesPastDue returns open cycles whose due date precedes now
	// and which have not been flagged overdue yet.
	ListOpenCyclesPastDue(ctx context.Context, now time.Time, limit int) ([]entities.Cycle, error)
	// ListOpenCyclesDueWithin returns open cycles due between now and
	// now+window that have not had reminders sent, for reminder fan-out.
	ListOpenCyclesDueWithin(ctx context.Context, now time.Time, window time.Duration, limit int) ([]entities.Cycle, error)
	// ListCompletedWithoutPayout returns cycles stuck in completed state,
	// i.e. collected in full but with no payout record yet.
	ListCompletedWithoutPayout(ctx context.Context, limit int) ([]entities.Cycle, error)
}

type LedgerRepository interface {
	// AppendContribution records a posted contribution and the updated cycle
	// contribution set in one durable write.
	AppendContribution(ctx context.Context, record entities.ContributionRecord, cycle entities.Cycle) error
	// AppendPayout records the cycle payout. Implementations must refuse a
	// second non-reversed payout for the same (group, cycle).
	AppendPayout(ctx context.Context, record entities.PayoutRecord, cycle entities.Cycle) error
	GetPayout(ctx context.Context, groupID string, cycleIndex int) (entities.PayoutRecord, bool, error)
	ListLedger(ctx context.Context, groupID string) ([]entities.LedgerEntry, error)
}

// WalletService is the external money-movement collaborator. Both operations
// must be idempotent per reference so that coordinator retries never
// double-move funds. Debit failures surface as ErrInsufficientFunds or
// ErrWalletUnavailable.
type WalletService interface {
	Debit(ctx context.Context, memberID string, amount float64, reference string) error
	Credit(ctx context.Context, memberID string, amount float64, reference string) error
}

type NotificationEvent string

const (
	NotificationDuePaymentReminder NotificationEvent = "due_payment_reminder"
	NotificationPayoutIssued       NotificationEvent = "payout_issued"
	NotificationCycleOverdue       NotificationEvent = "cycle_overdue"
)

// Notifier is fire-and-forget: failures are logged by callers and never roll
// back ledger state.
type Notifier interface {
	Notify(ctx context.Context, memberID string, event NotificationEvent, detail map[string]string) error
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
