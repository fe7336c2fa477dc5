package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type ContributeCommand struct {
	GroupID  string
	MemberID string
}

type ContributeUseCase struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Ledger      ports.LedgerRepository
	Wallet      ports.WalletService
	Locks       *application.GroupLocks
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	IssuePayout IssuePayoutUseCase
	Logger      *slog.Logger
}

type ContributeResult struct {
	Record         entities.ContributionRecord
	CycleCompleted bool
	PayoutIssued   bool
	GroupClosed    bool
}

// Execute runs one contribution end to end: validate, debit the wallet,
// record the ledger entry, and trigger the payout when the cycle fills up.
//
// The group lock is released around the wallet debit (external I/O may be
// slow) and the cycle is re-validated after re-acquisition, so completion
// detection and payout issuance stay atomic with respect to other Contribute
// calls on the same group. The ledger write happens strictly after a
// confirmed debit: a failed or timed-out debit leaves no partial state.
func (uc ContributeUseCase) Execute(ctx context.Context, cmd ContributeCommand) (ContributeResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	memberID := strings.TrimSpace(cmd.MemberID)
	if memberID == "" {
		return ContributeResult{}, domainerrors.ErrNotAMember
	}

	unlock := uc.Locks.Lock(cmd.GroupID)
	group, cycle, err := uc.loadAndValidate(ctx, cmd.GroupID, memberID)
	if err != nil {
		unlock()
		return ContributeResult{}, err
	}
	amount := group.ContributionAmount
	debitedCycleIndex := cycle.CycleIndex
	reference := contributionReference(group.GroupID, debitedCycleIndex, memberID)
	unlock()

	if err := uc.Wallet.Debit(ctx, memberID, amount, reference); err != nil {
		if errors.Is(err, domainerrors.ErrInsufficientFunds) {
			return ContributeResult{}, domainerrors.ErrInsufficientFunds
		}
		logger.Warn("wallet debit failed",
			"event", "ekub_wallet_debit_failed",
			"module", "savings-core/ekub-engine",
			"layer", "application",
			"group_id", cmd.GroupID,
			"member_id", memberID,
			"reference", reference,
			"error", err.Error(),
		)
		return ContributeResult{}, domainerrors.ErrWalletUnavailable
	}

	unlock = uc.Locks.Lock(cmd.GroupID)
	defer unlock()

	// Re-validate: another call by the same member may have landed while the
	// lock was released. The debit reference makes the duplicate debit a
	// replay, so rejecting here loses no funds.
	group, cycle, err = uc.loadAndValidate(ctx, cmd.GroupID, memberID)
	if err != nil {
		return ContributeResult{}, err
	}
	// The rotation may have advanced while the lock was released. The debit
	// reference names the old cycle, so it was a replay of a contribution
	// already posted there; crediting it to the new cycle would record money
	// that never moved.
	if cycle.CycleIndex != debitedCycleIndex {
		return ContributeResult{}, domainerrors.ErrAlreadyContributedThisCycle
	}

	now := uc.Clock.Now().UTC()
	entryID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return ContributeResult{}, err
	}
	record := entities.ContributionRecord{
		EntryID:    entryID,
		GroupID:    group.GroupID,
		CycleIndex: cycle.CycleIndex,
		MemberID:   memberID,
		Amount:     amount,
		Status:     entities.EntryStatusPosted,
		PostedAt:   now,
	}
	cycle.Contributions = append(cycle.Contributions, memberID)

	completed := cycle.AllContributed(group.Members)
	if completed {
		cycle.State = entities.CycleStateCompleted
		cycle.CompletedAt = &now
	}
	if err := uc.Ledger.AppendContribution(ctx, record, cycle); err != nil {
		return ContributeResult{}, err
	}

	if err := uc.appendContributionEvents(ctx, group, cycle, record, completed); err != nil {
		return ContributeResult{}, err
	}

	logger.Info("contribution posted",
		"event", "ekub_contribution_posted",
		"module", "savings-core/ekub-engine",
		"layer", "application",
		"group_id", group.GroupID,
		"cycle_index", cycle.CycleIndex,
		"member_id", memberID,
		"amount", amount,
		"cycle_completed", completed,
	)

	result := ContributeResult{Record: record, CycleCompleted: completed}
	if !completed {
		return result, nil
	}

	// The member has paid; a payout-credit failure must not fail their
	// contribution. The cycle stays completed and the retry worker re-issues.
	payout, err := uc.IssuePayout.Execute(ctx, group, cycle)
	if err != nil {
		logger.Error("payout issuance deferred to retry",
			"event", "ekub_payout_deferred",
			"module", "savings-core/ekub-engine",
			"layer", "application",
			"group_id", group.GroupID,
			"cycle_index", cycle.CycleIndex,
			"error", err.Error(),
		)
		return result, nil
	}
	result.PayoutIssued = true
	result.GroupClosed = payout.GroupClosed
	return result, nil
}

func (uc ContributeUseCase) loadAndValidate(
	ctx context.Context,
	groupID string,
	memberID string,
) (entities.Group, entities.Cycle, error) {
	group, err := uc.Groups.GetGroup(ctx, groupID)
	if err != nil {
		return entities.Group{}, entities.Cycle{}, err
	}
	switch group.Status {
	case entities.GroupStatusActive:
	case entities.GroupStatusClosed:
		return entities.Group{}, entities.Cycle{}, domainerrors.ErrGroupClosed
	default:
		return entities.Group{}, entities.Cycle{}, domainerrors.ErrGroupNotActive
	}
	if !group.IsMember(memberID) {
		return entities.Group{}, entities.Cycle{}, domainerrors.ErrNotAMember
	}

	cycle, err := uc.Cycles.GetCycle(ctx, group.GroupID, group.CurrentCycleIndex)
	if err != nil {
		return entities.Group{}, entities.Cycle{}, err
	}
	if cycle.State != entities.CycleStateOpen {
		return entities.Group{}, entities.Cycle{}, domainerrors.ErrCycleNotOpen
	}
	if cycle.HasContribution(memberID) {
		return entities.Group{}, entities.Cycle{}, domainerrors.ErrAlreadyContributedThisCycle
	}
	return group, cycle, nil
}

func (uc ContributeUseCase) appendContributionEvents(
	ctx context.Context,
	group entities.Group,
	cycle entities.Cycle,
	record entities.ContributionRecord,
	completed bool,
) error {
	if uc.Outbox == nil {
		return nil
	}

	eventID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newGroupEnvelope(eventID, EventContributionPosted, group.GroupID, record.PostedAt, map[string]any{
		"group_id":    group.GroupID,
		"cycle_index": cycle.CycleIndex,
		"member_id":   record.MemberID,
		"amount":      record.Amount,
	})
	if err != nil {
		return err
	}
	if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
		return err
	}

	if completed {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newGroupEnvelope(eventID, EventCycleCompleted, group.GroupID, record.PostedAt, map[string]any{
			"group_id":     group.GroupID,
			"cycle_index":  cycle.CycleIndex,
			"recipient_id": cycle.RecipientID,
			"pooled":       group.PayoutAmount(),
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
