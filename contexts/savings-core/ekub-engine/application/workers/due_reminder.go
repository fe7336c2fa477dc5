package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/application/commands"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

// DueReminder emits one payment reminder per unpaid member for cycles whose
// due date falls inside the reminder window. ReminderSentAt keeps the sweep
// from reminding the same cycle twice.
type DueReminder struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Locks       *application.GroupLocks
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Window      time.Duration
	BatchSize   int
	Logger      *slog.Logger
}

func (j DueReminder) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}

	window := j.Window
	if window <= 0 {
		window = 48 * time.Hour
	}
	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	due, err := j.Cycles.ListOpenCyclesDueWithin(ctx, now, window, limit)
	if err != nil {
		logger.Error("due reminder sweep failed",
			"event", "ekub_due_reminder_sweep_failed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	reminded := 0
	for _, cycle := range due {
		sent, err := j.remindOne(ctx, cycle, now)
		if err != nil {
			return err
		}
		reminded += sent
	}

	if reminded > 0 {
		logger.Info("due reminder sweep completed",
			"event", "ekub_due_reminder_sweep_completed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"reminder_count", reminded,
		)
	}
	return nil
}

func (j DueReminder) remindOne(ctx context.Context, stale entities.Cycle, now time.Time) (int, error) {
	unlock := j.Locks.Lock(stale.GroupID)
	defer unlock()

	cycle, err := j.Cycles.GetCycle(ctx, stale.GroupID, stale.CycleIndex)
	if err != nil {
		return 0, err
	}
	if cycle.State != entities.CycleStateOpen || cycle.ReminderSentAt != nil {
		return 0, nil
	}
	group, err := j.Groups.GetGroup(ctx, cycle.GroupID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, memberID := range group.Members {
		if cycle.HasContribution(memberID) {
			continue
		}
		if err := j.appendReminder(ctx, group, cycle, memberID, now); err != nil {
			return sent, err
		}
		sent++
	}

	cycle.ReminderSentAt = &now
	if err := j.Cycles.UpdateCycle(ctx, cycle); err != nil {
		return sent, err
	}
	return sent, nil
}

func (j DueReminder) appendReminder(
	ctx context.Context,
	group entities.Group,
	cycle entities.Cycle,
	memberID string,
	now time.Time,
) error {
	if j.Outbox == nil {
		return nil
	}
	eventID, err := j.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"group_id":    group.GroupID,
		"cycle_index": cycle.CycleIndex,
		"member_id":   memberID,
		"amount":      group.ContributionAmount,
		"due_date":    cycle.DueDate.Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	return j.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        commands.EventPaymentDue,
		OccurredAt:       now,
		SourceService:    "ekub-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "group_id",
		PartitionKey:     group.GroupID,
		Data:             payload,
	})
}
