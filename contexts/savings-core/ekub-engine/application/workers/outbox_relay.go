package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

// OutboxRelay publishes pending engine outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("ekub outbox list failed",
			"event", "ekub_outbox_list_failed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("ekub outbox decode failed",
				"event", "ekub_outbox_decode_failed",
				"module", "savings-core/ekub-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("ekub outbox publish failed",
				"event", "ekub_outbox_publish_failed",
				"module", "savings-core/ekub-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("ekub outbox mark published failed",
				"event", "ekub_outbox_mark_published_failed",
				"module", "savings-core/ekub-engine",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("ekub outbox relay cycle completed",
			"event", "ekub_outbox_relay_completed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}
