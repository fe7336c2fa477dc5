package commands

import (
	"context"
	"log/slog"
	"strings"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type LeaveGroupCommand struct {
	GroupID  string
	MemberID string
}

type LeaveGroupUseCase struct {
	Groups      ports.GroupRepository
	Locks       *application.GroupLocks
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

// Execute removes a member from a forming group. Once a group is active the
// ROSCA contract obligates continued participation, so leaving is rejected.
func (uc LeaveGroupUseCase) Execute(ctx context.Context, cmd LeaveGroupCommand) (entities.Group, error) {
	logger := application.ResolveLogger(uc.Logger)
	memberID := strings.TrimSpace(cmd.MemberID)
	if memberID == "" {
		return entities.Group{}, domainerrors.ErrNotAMember
	}

	unlock := uc.Locks.Lock(cmd.GroupID)
	defer unlock()

	group, err := uc.Groups.GetGroup(ctx, cmd.GroupID)
	if err != nil {
		return entities.Group{}, err
	}
	switch group.Status {
	case entities.GroupStatusForming:
	case entities.GroupStatusActive:
		return entities.Group{}, domainerrors.ErrCannotLeaveActiveGroup
	default:
		return entities.Group{}, domainerrors.ErrGroupClosed
	}
	if !group.IsMember(memberID) {
		return entities.Group{}, domainerrors.ErrNotAMember
	}

	// Removal keeps the join order of the remaining members.
	remaining := make([]string, 0, len(group.Members)-1)
	for _, id := range group.Members {
		if id != memberID {
			remaining = append(remaining, id)
		}
	}
	now := uc.Clock.Now().UTC()
	group.Members = remaining
	group.UpdatedAt = now
	if err := uc.Groups.UpdateGroup(ctx, group); err != nil {
		return entities.Group{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.Group{}, err
		}
		envelope, err := newGroupEnvelope(eventID, EventMemberLeft, group.GroupID, now, map[string]any{
			"group_id":     group.GroupID,
			"member_id":    memberID,
			"member_count": len(group.Members),
		})
		if err != nil {
			return entities.Group{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.Group{}, err
		}
	}

	logger.Info("member left group",
		"event", "ekub_member_left",
		"module", "savings-core/ekub-engine",
		"layer", "application",
		"group_id", group.GroupID,
		"member_id", memberID,
		"member_count", len(group.Members),
	)
	return group, nil
}
