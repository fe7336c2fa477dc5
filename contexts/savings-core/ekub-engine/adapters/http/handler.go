package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"ekub/contexts/savings-core/ekub-engine/application/commands"
	"ekub/contexts/savings-core/ekub-engine/application/queries"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	httptransport "ekub/contexts/savings-core/ekub-engine/transport/http"
)

type Handler struct {
	CreateGroup    commands.CreateGroupUseCase
	JoinGroup      commands.JoinGroupUseCase
	LeaveGroup     commands.LeaveGroupUseCase
	ActivateGroup  commands.ActivateGroupUseCase
	Contribute     commands.ContributeUseCase
	GetGroupStatus queries.GetGroupStatusUseCase
	GetLedger      queries.GetLedgerUseCase
	ListGroups     queries.ListGroupsUseCase
	Logger         *slog.Logger
}

func (h Handler) CreateGroupHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreateGroupRequest,
) (httptransport.CreateGroupResponse, error) {
	result, err := h.CreateGroup.Execute(ctx, commands.CreateGroupCommand{
		CreatorID:          userID,
		IdempotencyKey:     idempotencyKey,
		Name:               req.Name,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		MaxMembers:         req.MaxMembers,
	})
	if err != nil {
		return httptransport.CreateGroupResponse{}, err
	}
	return httptransport.CreateGroupResponse{
		Group:    mapGroup(result.Group),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) JoinGroupHandler(ctx context.Context, userID string, groupID string) (httptransport.JoinGroupResponse, error) {
	result, err := h.JoinGroup.Execute(ctx, commands.JoinGroupCommand{
		GroupID:  groupID,
		MemberID: userID,
	})
	if err != nil {
		return httptransport.JoinGroupResponse{}, err
	}
	return httptransport.JoinGroupResponse{
		Group:              mapGroup(result.Group),
		ActivationEligible: result.ActivationEligible,
	}, nil
}

func (h Handler) LeaveGroupHandler(ctx context.Context, userID string, groupID string) (httptransport.LeaveGroupResponse, error) {
	group, err := h.LeaveGroup.Execute(ctx, commands.LeaveGroupCommand{
		GroupID:  groupID,
		MemberID: userID,
	})
	if err != nil {
		return httptransport.LeaveGroupResponse{}, err
	}
	return httptransport.LeaveGroupResponse{Group: mapGroup(group)}, nil
}

func (h Handler) ActivateGroupHandler(
	ctx context.Context,
	groupID string,
	req httptransport.ActivateGroupRequest,
) (httptransport.ActivateGroupResponse, error) {
	result, err := h.ActivateGroup.Execute(ctx, commands.ActivateGroupCommand{
		GroupID:       groupID,
		RotationOrder: append([]string(nil), req.RotationOrder...),
	})
	if err != nil {
		return httptransport.ActivateGroupResponse{}, err
	}
	return httptransport.ActivateGroupResponse{
		Group: mapGroup(result.Group),
		Cycle: mapCycle(result.Cycle),
	}, nil
}

func (h Handler) ContributeHandler(ctx context.Context, userID string, groupID string) (httptransport.ContributeResponse, error) {
	result, err := h.Contribute.Execute(ctx, commands.ContributeCommand{
		GroupID:  groupID,
		MemberID: userID,
	})
	if err != nil {
		return httptransport.ContributeResponse{}, err
	}
	return httptransport.ContributeResponse{
		Contribution:   mapContribution(result.Record),
		CycleCompleted: result.CycleCompleted,
		PayoutIssued:   result.PayoutIssued,
		GroupClosed:    result.GroupClosed,
	}, nil
}

func (h Handler) GetGroupStatusHandler(ctx context.Context, groupID string) (httptransport.GroupStatusResponse, error) {
	projection, err := h.GetGroupStatus.Execute(ctx, groupID)
	if err != nil {
		return httptransport.GroupStatusResponse{}, err
	}
	response := httptransport.GroupStatusResponse{
		Group:              mapGroup(projection.Group),
		Overdue:            projection.Overdue,
		ActivationEligible: projection.ActivationEligible,
	}
	if projection.CurrentCycle != nil {
		cycle := mapCycle(*projection.CurrentCycle)
		response.CurrentCycle = &cycle
	}
	return response, nil
}

func (h Handler) GetLedgerHandler(ctx context.Context, groupID string) (httptransport.LedgerResponse, error) {
	entries, err := h.GetLedger.Execute(ctx, groupID)
	if err != nil {
		return httptransport.LedgerResponse{}, err
	}
	items := make([]httptransport.LedgerEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dto := httptransport.LedgerEntryDTO{
			EntryType:  entry.EntryType,
			RecordedAt: entry.RecordedAt.UTC().Format(time.RFC3339),
		}
		if entry.Contribution != nil {
			record := mapContribution(*entry.Contribution)
			dto.Contribution = &record
		}
		if entry.Payout != nil {
			record := mapPayout(*entry.Payout)
			dto.Payout = &record
		}
		items = append(items, dto)
	}
	return httptransport.LedgerResponse{GroupID: groupID, Entries: items}, nil
}

func (h Handler) ListGroupsHandler(ctx context.Context, memberID string, status string) (httptransport.ListGroupsResponse, error) {
	items, err := h.ListGroups.Execute(ctx, queries.ListGroupsQuery{
		MemberID: memberID,
		Status:   status,
	})
	if err != nil {
		return httptransport.ListGroupsResponse{}, err
	}
	result := make([]httptransport.GroupDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapGroup(item))
	}
	return httptransport.ListGroupsResponse{Items: result}, nil
}

func mapGroup(item entities.Group) httptransport.GroupDTO {
	result := httptransport.GroupDTO{
		GroupID:            item.GroupID,
		Name:               item.Name,
		ContributionAmount: item.ContributionAmount,
		Frequency:          string(item.Frequency),
		MaxMembers:         item.MaxMembers,
		Members:            append([]string(nil), item.Members...),
		RotationOrder:      append([]string(nil), item.RotationOrder...),
		CurrentCycleIndex:  item.CurrentCycleIndex,
		Status:             string(item.Status),
		CreatedAt:          item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.ActivatedAt != nil {
		result.ActivatedAt = item.ActivatedAt.UTC().Format(time.RFC3339)
	}
	if item.ClosedAt != nil {
		result.ClosedAt = item.ClosedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func mapCycle(item entities.Cycle) httptransport.CycleDTO {
	result := httptransport.CycleDTO{
		GroupID:       item.GroupID,
		CycleIndex:    item.CycleIndex,
		RecipientID:   item.RecipientID,
		DueDate:       item.DueDate.UTC().Format(time.RFC3339),
		Contributions: append([]string(nil), item.Contributions...),
		State:         string(item.State),
		OpenedAt:      item.OpenedAt.UTC().Format(time.RFC3339),
	}
	if item.CompletedAt != nil {
		result.CompletedAt = item.CompletedAt.UTC().Format(time.RFC3339)
	}
	if item.PayoutAt != nil {
		result.PayoutAt = item.PayoutAt.UTC().Format(time.RFC3339)
	}
	if item.OverdueFlaggedAt != nil {
		result.OverdueFlaggedAt = item.OverdueFlaggedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func mapContribution(item entities.ContributionRecord) httptransport.ContributionDTO {
	return httptransport.ContributionDTO{
		EntryID:    item.EntryID,
		GroupID:    item.GroupID,
		CycleIndex: item.CycleIndex,
		MemberID:   item.MemberID,
		Amount:     item.Amount,
		Status:     string(item.Status),
		ReversalOf: item.ReversalOf,
		PostedAt:   item.PostedAt.UTC().Format(time.RFC3339),
	}
}

func mapPayout(item entities.PayoutRecord) httptransport.PayoutDTO {
	return httptransport.PayoutDTO{
		EntryID:     item.EntryID,
		GroupID:     item.GroupID,
		CycleIndex:  item.CycleIndex,
		RecipientID: item.RecipientID,
		Amount:      item.Amount,
		IssuedAt:    item.IssuedAt.UTC().Format(time.RFC3339),
	}
}
