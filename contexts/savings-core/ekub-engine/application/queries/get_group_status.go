package queries

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

// GroupStatusProjection is a derived, read-only view of a group and its
// current cycle. It is computed from the authoritative state on every call
// and never stored.
type GroupStatusProjection struct {
	Group              entities.Group
	CurrentCycle       *entities.Cycle
	Overdue            bool
	ActivationEligible bool
}

type GetGroupStatusUseCase struct {
	Groups ports.GroupRepository
	Cycles ports.CycleRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc GetGroupStatusUseCase) Execute(ctx context.Context, groupID string) (GroupStatusProjection, error) {
	group, err := uc.Groups.GetGroup(ctx, strings.TrimSpace(groupID))
	if err != nil {
		return GroupStatusProjection{}, err
	}

	projection := GroupStatusProjection{
		Group:              group,
		ActivationEligible: group.ActivationEligible(),
	}
	if group.Status != entities.GroupStatusActive {
		return projection, nil
	}

	cycle, err := uc.Cycles.GetCycle(ctx, group.GroupID, group.CurrentCycleIndex)
	if err != nil {
		// An active group always has its current cycle. A missing one is a
		// broken store invariant, not an empty projection.
		if errors.Is(err, domainerrors.ErrCycleNotFound) {
			application.ResolveLogger(uc.Logger).Error("active group missing current cycle",
				"event", "ekub_cycle_missing",
				"module", "savings-core/ekub-engine",
				"layer", "application",
				"group_id", group.GroupID,
				"cycle_index", group.CurrentCycleIndex,
			)
		}
		return GroupStatusProjection{}, err
	}
	projection.CurrentCycle = &cycle
	projection.Overdue = cycle.Overdue(uc.Clock.Now().UTC())
	return projection, nil
}
