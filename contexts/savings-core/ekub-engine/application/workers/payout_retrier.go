package workers

import (
	"context"
	"log/slog"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/application/commands"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

// PayoutRetrier sweeps cycles that collected in full but whose payout credit
// failed. The member money is already pooled, so these retry until the wallet
// accepts the credit; issuance is idempotent per (group, cycle).
type PayoutRetrier struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Locks       *application.GroupLocks
	IssuePayout commands.IssuePayoutUseCase
	BatchSize   int
	Logger      *slog.Logger
}

func (j PayoutRetrier) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}

	stuck, err := j.Cycles.ListCompletedWithoutPayout(ctx, limit)
	if err != nil {
		logger.Error("payout retry sweep failed",
			"event", "ekub_payout_retry_sweep_failed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	retried := 0
	for _, cycle := range stuck {
		if err := j.retryOne(ctx, cycle); err != nil {
			// Wallet still down for this group; keep sweeping the rest.
			logger.Warn("payout retry failed",
				"event", "ekub_payout_retry_failed",
				"module", "savings-core/ekub-engine",
				"layer", "worker",
				"group_id", cycle.GroupID,
				"cycle_index", cycle.CycleIndex,
				"error", err.Error(),
			)
			continue
		}
		retried++
	}

	if retried > 0 {
		logger.Info("payout retry sweep completed",
			"event", "ekub_payout_retry_completed",
			"module", "savings-core/ekub-engine",
			"layer", "worker",
			"retried_count", retried,
		)
	}
	return nil
}

func (j PayoutRetrier) retryOne(ctx context.Context, stale entities.Cycle) error {
	unlock := j.Locks.Lock(stale.GroupID)
	defer unlock()

	group, err := j.Groups.GetGroup(ctx, stale.GroupID)
	if err != nil {
		return err
	}
	cycle, err := j.Cycles.GetCycle(ctx, stale.GroupID, stale.CycleIndex)
	if err != nil {
		return err
	}
	if cycle.State != entities.CycleStateCompleted {
		// A concurrent Contribute already finished the payout.
		return nil
	}
	_, err = j.IssuePayout.Execute(ctx, group, cycle)
	return err
}
