package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ekub/contexts/savings-core/ekub-engine/application/workers"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

// fakeBus hands the subscription handlers back to the test so events can be
// delivered synchronously.
type fakeBus struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func (b *fakeBus) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if b.handlers == nil {
		b.handlers = make(map[string]func(context.Context, ports.EventEnvelope) error)
	}
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) deliver(t *testing.T, eventType string, data map[string]any) {
	t.Helper()
	handler, ok := b.handlers[eventType]
	if !ok {
		t.Fatalf("no subscription for %s", eventType)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	if err := handler(context.Background(), ports.EventEnvelope{
		EventID:   "event-1",
		EventType: eventType,
		Data:      payload,
	}); err != nil {
		t.Fatalf("handler returned %v", err)
	}
}

type notification struct {
	memberID string
	kind     ports.NotificationEvent
}

type recordingNotifier struct {
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, memberID string, kind ports.NotificationEvent, _ map[string]string) error {
	n.sent = append(n.sent, notification{memberID: memberID, kind: kind})
	return n.err
}

func TestNotificationConsumerRoutesEvents(t *testing.T) {
	bus := &fakeBus{}
	notifier := &recordingNotifier{}
	consumer := workers.NotificationConsumer{
		Subscriber:    bus,
		Notifier:      notifier,
		ConsumerGroup: "test",
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	bus.deliver(t, "ekub.payment_due", map[string]any{
		"group_id": "group-1", "cycle_index": 0, "member_id": "member-2",
		"amount": 100, "due_date": "2026-03-09",
	})
	bus.deliver(t, "ekub.payout_issued", map[string]any{
		"group_id": "group-1", "cycle_index": 0, "recipient_id": "member-1", "amount": 300,
	})
	bus.deliver(t, "ekub.cycle_overdue", map[string]any{
		"group_id": "group-1", "cycle_index": 0,
		"unpaid_members": []string{"member-2", "member-3"}, "due_date": "2026-03-09",
	})

	want := []notification{
		{"member-2", ports.NotificationDuePaymentReminder},
		{"member-1", ports.NotificationPayoutIssued},
		{"member-2", ports.NotificationCycleOverdue},
		{"member-3", ports.NotificationCycleOverdue},
	}
	if len(notifier.sent) != len(want) {
		t.Fatalf("expected %d notifications, got %d: %+v", len(want), len(notifier.sent), notifier.sent)
	}
	for i, expected := range want {
		if notifier.sent[i] != expected {
			t.Fatalf("notification %d: expected %+v, got %+v", i, expected, notifier.sent[i])
		}
	}
}

func TestNotificationFailuresAreAcknowledged(t *testing.T) {
	bus := &fakeBus{}
	consumer := workers.NotificationConsumer{
		Subscriber:    bus,
		Notifier:      &recordingNotifier{err: errors.New("smtp down")},
		ConsumerGroup: "test",
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// deliver fails the test itself if the handler surfaces the error.
	bus.deliver(t, "ekub.payment_due", map[string]any{
		"group_id": "group-1", "member_id": "member-2",
	})
}
