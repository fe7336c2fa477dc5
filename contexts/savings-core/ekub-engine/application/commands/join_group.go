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

type JoinGroupCommand struct {
	GroupID  string
	MemberID string
}

type JoinGroupUseCase struct {
	Groups      ports.GroupRepository
	Locks       *application.GroupLocks
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

type JoinGroupResult struct {
	Group entities.Group
	// ActivationEligible reports that the group just reached capacity.
	// Activation stays a separate explicit call.
	ActivationEligible bool
}

func (uc JoinGroupUseCase) Execute(ctx context.Context, cmd JoinGroupCommand) (JoinGroupResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	memberID := strings.TrimSpace(cmd.MemberID)
	if memberID == "" {
		return JoinGroupResult{}, domainerrors.ErrNotAMember
	}

	unlock := uc.Locks.Lock(cmd.GroupID)
	defer unlock()

	group, err := uc.Groups.GetGroup(ctx, cmd.GroupID)
	if err != nil {
		return JoinGroupResult{}, err
	}
	if group.Status != entities.GroupStatusForming {
		return JoinGroupResult{}, domainerrors.ErrGroupNotForming
	}
	if group.IsMember(memberID) {
		return JoinGroupResult{}, domainerrors.ErrAlreadyMember
	}
	if group.IsFull() {
		return JoinGroupResult{}, domainerrors.ErrGroupFull
	}

	now := uc.Clock.Now().UTC()
	group.Members = append(group.Members, memberID)
	group.UpdatedAt = now
	if err := uc.Groups.UpdateGroup(ctx, group); err != nil {
		return JoinGroupResult{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return JoinGroupResult{}, err
		}
		envelope, err := newGroupEnvelope(eventID, EventMemberJoined, group.GroupID, now, map[string]any{
			"group_id":     group.GroupID,
			"member_id":    memberID,
			"member_count": len(group.Members),
			"max_members":  group.MaxMembers,
		})
		if err != nil {
			return JoinGroupResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return JoinGroupResult{}, err
		}
	}

	logger.Info("member joined group",
		"event", "ekub_member_joined",
		"module", "savings-core/ekub-engine",
		"layer", "application",
		"group_id", group.GroupID,
		"member_id", memberID,
		"member_count", len(group.Members),
	)
	return JoinGroupResult{
		Group:              group,
		ActivationEligible: group.IsFull(),
	}, nil
}
