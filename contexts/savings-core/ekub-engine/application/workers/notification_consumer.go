package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/application/commands"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

// NotificationConsumer turns engine events into member notifications. It is
// strictly fire-and-forget: notifier failures are logged and acknowledged so
// they never hold up the bus or touch ledger state.
type NotificationConsumer struct {
	Subscriber    ports.EventSubscriber
	Notifier      ports.Notifier
	ConsumerGroup string
	Logger        *slog.Logger
}

func (c NotificationConsumer) Start(ctx context.Context) error {
	topics := []string{
		commands.EventPaymentDue,
		commands.EventPayoutIssued,
		commands.EventCycleOverdue,
	}
	for _, topic := range topics {
		if err := c.Subscriber.Subscribe(ctx, topic, c.ConsumerGroup, c.handle); err != nil {
			return err
		}
	}
	return nil
}

func (c NotificationConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	var data struct {
		GroupID       string   `json:"group_id"`
		CycleIndex    int      `json:"cycle_index"`
		MemberID      string   `json:"member_id"`
		RecipientID   string   `json:"recipient_id"`
		UnpaidMembers []string `json:"unpaid_members"`
		Amount        float64  `json:"amount"`
		DueDate       string   `json:"due_date"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Error("notification event decode failed",
			"event", "ekub_notification_decode_failed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return nil
	}

	detail := map[string]string{
		"group_id": data.GroupID,
		"due_date": data.DueDate,
	}

	switch event.EventType {
	case commands.EventPaymentDue:
		c.notify(ctx, data.MemberID, ports.NotificationDuePaymentReminder, detail)
	case commands.EventPayoutIssued:
		c.notify(ctx, data.RecipientID, ports.NotificationPayoutIssued, detail)
	case commands.EventCycleOverdue:
		for _, memberID := range data.UnpaidMembers {
			c.notify(ctx, memberID, ports.NotificationCycleOverdue, detail)
		}
	}
	return nil
}

func (c NotificationConsumer) notify(
	ctx context.Context,
	memberID string,
	kind ports.NotificationEvent,
	detail map[string]string,
) {
	if memberID == "" {
		return
	}
	if err := c.Notifier.Notify(ctx, memberID, kind, detail); err != nil {
		application.ResolveLogger(c.Logger).Warn("notification delivery failed",
			"event", "ekub_notification_failed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"member_id", memberID,
			"kind", string(kind),
			"error", err.Error(),
		)
	}
}
