package commands

import (
	"context"
	"log/slog"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type ActivateGroupCommand struct {
	GroupID string
	// RotationOrder optionally overrides the default join-order rotation.
	// When set it must be an exact permutation of the group's members.
	RotationOrder []string
}

type ActivateGroupUseCase struct {
	Groups      ports.GroupRepository
	Cycles      ports.CycleRepository
	Locks       *application.GroupLocks
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

type ActivateGroupResult struct {
	Group entities.Group
	Cycle entities.Cycle
}

// Execute freezes the rotation order and opens cycle 0. A group may start
// below MaxMembers (manual late start) but never with fewer than two members.
func (uc ActivateGroupUseCase) Execute(ctx context.Context, cmd ActivateGroupCommand) (ActivateGroupResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	unlock := uc.Locks.Lock(cmd.GroupID)
	defer unlock()

	group, err := uc.Groups.GetGroup(ctx, cmd.GroupID)
	if err != nil {
		return ActivateGroupResult{}, err
	}
	switch group.Status {
	case entities.GroupStatusForming:
	case entities.GroupStatusActive:
		return ActivateGroupResult{}, domainerrors.ErrGroupNotForming
	default:
		return ActivateGroupResult{}, domainerrors.ErrGroupClosed
	}
	if len(group.Members) < 2 {
		return ActivateGroupResult{}, domainerrors.ErrTooFewMembers
	}

	order := entities.ComputeRotationOrder(group.Members)
	if len(cmd.RotationOrder) > 0 {
		if !entities.IsPermutationOf(cmd.RotationOrder, group.Members) {
			return ActivateGroupResult{}, domainerrors.ErrInvalidRotationOrder
		}
		order = append([]string(nil), cmd.RotationOrder...)
	}

	now := uc.Clock.Now().UTC()
	group.RotationOrder = order
	group.CurrentCycleIndex = 0
	group.Status = entities.GroupStatusActive
	group.ActivatedAt = &now
	group.UpdatedAt = now

	cycle := entities.Cycle{
		GroupID:     group.GroupID,
		CycleIndex:  0,
		RecipientID: order[0],
		DueDate:     entities.NextDueDate(group.Frequency, now),
		State:       entities.CycleStateOpen,
		OpenedAt:    now,
	}

	if err := uc.Groups.UpdateGroup(ctx, group); err != nil {
		return ActivateGroupResult{}, err
	}
	if err := uc.Cycles.CreateCycle(ctx, cycle); err != nil {
		return ActivateGroupResult{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return ActivateGroupResult{}, err
		}
		envelope, err := newGroupEnvelope(eventID, EventGroupActivated, group.GroupID, now, map[string]any{
			"group_id":       group.GroupID,
			"member_count":   len(group.Members),
			"rotation_order": order,
			"first_due_date": cycle.DueDate.Format("2006-01-02"),
			"recipient_id":   cycle.RecipientID,
		})
		if err != nil {
			return ActivateGroupResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return ActivateGroupResult{}, err
		}
	}

	logger.Info("group activated",
		"event", "ekub_group_activated",
		"module", "savings-core/ekub-engine",
		"layer", "application",
		"group_id", group.GroupID,
		"member_count", len(group.Members),
		"first_recipient", cycle.RecipientID,
		"due_date", cycle.DueDate,
	)
	return ActivateGroupResult{Group: group, Cycle: cycle}, nil
}
