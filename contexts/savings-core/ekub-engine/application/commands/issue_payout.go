package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

// IssuePayoutUseCase credits the recipient of a completed cycle, appends the
// payout record, and advances the rotation. It is invoked by Contribute when
// a cycle fills up and by the PayoutRetrier worker for cycles whose credit
// failed earlier. The caller must hold the group lock.
//
// Issuance is idempotent per (group, cycle): the wallet credit carries that
// reference and the ledger refuses a second payout record, so retries never
// double-credit.
type IssuePayoutUseCase struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Ledger      ports.LedgerRepository
	Wallet      ports.WalletService
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

type IssuePayoutResult struct {
	Payout      entities.PayoutRecord
	GroupClosed bool
	NextCycle   *entities.Cycle
}

func (uc IssuePayoutUseCase) Execute(ctx context.Context, group entities.Group, cycle entities.Cycle) (IssuePayoutResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if cycle.State == entities.CycleStateOpen {
		return IssuePayoutResult{}, domainerrors.ErrCycleNotOpen
	}

	now := uc.Clock.Now().UTC()

	// A payout record may already exist if an earlier attempt crashed between
	// the ledger write and the rotation advance. Reuse it instead of crediting
	// again.
	payout, exists, err := uc.Ledger.GetPayout(ctx, group.GroupID, cycle.CycleIndex)
	if err != nil {
		return IssuePayoutResult{}, err
	}
	if !exists {
		amount := group.PayoutAmount()
		reference := payoutReference(group.GroupID, cycle.CycleIndex)
		if err := uc.Wallet.Credit(ctx, cycle.RecipientID, amount, reference); err != nil {
			return IssuePayoutResult{}, fmt.Errorf("%w: payout credit for %s: %v",
				domainerrors.ErrWalletUnavailable, reference, err)
		}

		entryID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return IssuePayoutResult{}, err
		}
		payout = entities.PayoutRecord{
			EntryID:     entryID,
			GroupID:     group.GroupID,
			CycleIndex:  cycle.CycleIndex,
			RecipientID: cycle.RecipientID,
			Amount:      amount,
			IssuedAt:    now,
		}
		cycle.State = entities.CycleStatePayoutIssued
		cycle.PayoutAt = &now
		if err := uc.Ledger.AppendPayout(ctx, payout, cycle); err != nil {
			return IssuePayoutResult{}, err
		}
	} else if cycle.State != entities.CycleStatePayoutIssued {
		cycle.State = entities.CycleStatePayoutIssued
		cycle.PayoutAt = &payout.IssuedAt
		if err := uc.Cycles.UpdateCycle(ctx, cycle); err != nil {
			return IssuePayoutResult{}, err
		}
	}

	result := IssuePayoutResult{Payout: payout}

	// Advance the rotation pointer; every member receiving exactly once ends
	// the rotation and closes the group.
	if group.CurrentCycleIndex == cycle.CycleIndex {
		nextIndex := cycle.CycleIndex + 1
		group.CurrentCycleIndex = nextIndex
		group.UpdatedAt = now
		if nextIndex >= len(group.RotationOrder) {
			group.Status = entities.GroupStatusClosed
			group.ClosedAt = &now
			result.GroupClosed = true
		}
		if err := uc.Groups.UpdateGroup(ctx, group); err != nil {
			return IssuePayoutResult{}, err
		}
		if !result.GroupClosed {
			next := entities.Cycle{
				GroupID:     group.GroupID,
				CycleIndex:  nextIndex,
				RecipientID: group.RotationOrder[nextIndex],
				DueDate:     entities.NextDueDate(group.Frequency, cycle.DueDate),
				State:       entities.CycleStateOpen,
				OpenedAt:    now,
			}
			if err := uc.Cycles.CreateCycle(ctx, next); err != nil {
				return IssuePayoutResult{}, err
			}
			result.NextCycle = &next
		}
	}

	if err := uc.appendPayoutEvents(ctx, group, cycle, payout, result, now); err != nil {
		return IssuePayoutResult{}, err
	}

	logger.Info("payout issued",
		"event", "ekub_payout_issued",
		"module", "savings-core/ekub-engine",
		"layer", "application",
		"group_id", group.GroupID,
		"cycle_index", cycle.CycleIndex,
		"recipient_id", payout.RecipientID,
		"amount", payout.Amount,
		"group_closed", result.GroupClosed,
	)
	return result, nil
}

func (uc IssuePayoutUseCase) appendPayoutEvents(
	ctx context.Context,
	group entities.Group,
	cycle entities.Cycle,
	payout entities.PayoutRecord,
	result IssuePayoutResult,
	now time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}

	eventID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newGroupEnvelope(eventID, EventPayoutIssued, group.GroupID, now, map[string]any{
		"group_id":     group.GroupID,
		"cycle_index":  cycle.CycleIndex,
		"recipient_id": payout.RecipientID,
		"amount":       payout.Amount,
	})
	if err != nil {
		return err
	}
	if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
		return err
	}

	if result.GroupClosed {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newGroupEnvelope(eventID, EventGroupClosed, group.GroupID, now, map[string]any{
			"group_id":     group.GroupID,
			"cycle_count":  len(group.RotationOrder),
			"member_count": len(group.Members),
		})
		if err != nil {
			return err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}

func payoutReference(groupID string, cycleIndex int) string {
	return fmt.Sprintf("payout:%s:%d", groupID, cycleIndex)
}

func contributionReference(groupID string, cycleIndex int, memberID string) string {
	return fmt.Sprintf("contribution:%s:%d:%s", groupID, cycleIndex, memberID)
}
