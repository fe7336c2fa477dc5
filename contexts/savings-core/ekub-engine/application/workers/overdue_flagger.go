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

// OverdueFlagger marks open cycles whose due date has passed without the
// cycle completing. Flagging is report-only; penalty policy is an external
// business rule.
type OverdueFlagger struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Locks       *application.GroupLocks
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	BatchSize   int
	Logger      *slog.Logger
}

func (j OverdueFlagger) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}

	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	overdue, err := j.Cycles.ListOpenCyclesPastDue(ctx, now, limit)
	if err != nil {
		logger.Error("overdue sweep failed",
			"event", "ekub_overdue_sweep_failed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	flagged := 0
	for _, cycle := range overdue {
		if err := j.flagOne(ctx, cycle, now); err != nil {
			return err
		}
		flagged++
	}

	if flagged > 0 {
		logger.Info("overdue sweep completed",
			"event", "ekub_overdue_sweep_completed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"flagged_count", flagged,
		)
	}
	return nil
}

func (j OverdueFlagger) flagOne(ctx context.Context, stale entities.Cycle, now time.Time) error {
	unlock := j.Locks.Lock(stale.GroupID)
	defer unlock()

	cycle, err := j.Cycles.GetCycle(ctx, stale.GroupID, stale.CycleIndex)
	if err != nil {
		return err
	}
	if cycle.State != entities.CycleStateOpen || cycle.OverdueFlaggedAt != nil {
		return nil
	}

	cycle.OverdueFlaggedAt = &now
	if err := j.Cycles.UpdateCycle(ctx, cycle); err != nil {
		return err
	}

	if j.Outbox == nil {
		return nil
	}
	group, err := j.Groups.GetGroup(ctx, cycle.GroupID)
	if err != nil {
		return err
	}
	unpaid := make([]string, 0, len(group.Members))
	for _, memberID := range group.Members {
		if !cycle.HasContribution(memberID) {
			unpaid = append(unpaid, memberID)
		}
	}

	eventID, err := j.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"group_id":       cycle.GroupID,
		"cycle_index":    cycle.CycleIndex,
		"due_date":       cycle.DueDate.Format("2006-01-02"),
		"unpaid_members": unpaid,
	})
	if err != nil {
		return err
	}
	return j.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        commands.EventCycleOverdue,
		OccurredAt:       now,
		SourceService:    "ekub-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "group_id",
		PartitionKey:     cycle.GroupID,
		Data:             payload,
	})
}
