package queries

import (
	"context"
	"log/slog"
	"strings"

	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type ListGroupsQuery struct {
	MemberID string
	Status   string
}

type ListGroupsUseCase struct {
	Groups ports.GroupRepository
	Logger *slog.Logger
}

func (uc ListGroupsUseCase) Execute(ctx context.Context, query ListGroupsQuery) ([]entities.Group, error) {
	return uc.Groups.ListGroups(ctx, ports.GroupFilter{
		MemberID: strings.TrimSpace(query.MemberID),
		Status:   entities.GroupStatus(strings.ToLower(strings.TrimSpace(query.Status))),
	})
}
