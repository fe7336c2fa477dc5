package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "ekub/contexts/savings-core/ekub-engine/application"
	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type CreateGroupCommand struct {
	CreatorID          string
	IdempotencyKey     string
	Name               string
	ContributionAmount float64
	Frequency          string
	MaxMembers         int
}

type CreateGroupUseCase struct {
	Groups         ports.GroupRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreateGroupResult struct {
	Group    entities.Group
	Replayed bool
}

type createGroupReplayPayload struct {
	GroupID            string   `json:"group_id"`
	Name               string   `json:"name"`
	ContributionAmount float64  `json:"contribution_amount"`
	Frequency          string   `json:"frequency"`
	MaxMembers         int      `json:"max_members"`
	Members            []string `json:"members"`
	Status             string   `json:"status"`
	CreatedAt          string   `json:"created_at"`
}

func (uc CreateGroupUseCase) Execute(ctx context.Context, cmd CreateGroupCommand) (CreateGroupResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CreateGroupResult{}, domainerrors.ErrIdempotencyKeyRequired
	}
	if strings.TrimSpace(cmd.CreatorID) == "" {
		return CreateGroupResult{}, domainerrors.ErrInvalidGroupConfig
	}

	now := uc.Clock.Now().UTC()
	requestHash := hashCreateGroupCommand(cmd)
	if record, found, err := uc.Idempotency.GetRecord(ctx, cmd.IdempotencyKey, now); err != nil {
		return CreateGroupResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CreateGroupResult{}, domainerrors.ErrIdempotencyConflict
		}
		var payload createGroupReplayPayload
		if err := json.Unmarshal(record.ResponsePayload, &payload); err != nil {
			return CreateGroupResult{}, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, payload.CreatedAt)
		if err != nil {
			return CreateGroupResult{}, err
		}
		return CreateGroupResult{
			Group: entities.Group{
				GroupID:            payload.GroupID,
				Name:               payload.Name,
				ContributionAmount: payload.ContributionAmount,
				Frequency:          entities.Frequency(payload.Frequency),
				MaxMembers:         payload.MaxMembers,
				Members:            append([]string(nil), payload.Members...),
				Status:             entities.GroupStatus(payload.Status),
				CreatedAt:          createdAt,
				UpdatedAt:          createdAt,
			},
			Replayed: true,
		}, nil
	}

	groupID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return CreateGroupResult{}, err
	}

	group := entities.Group{
		GroupID:            groupID,
		Name:               strings.TrimSpace(cmd.Name),
		ContributionAmount: cmd.ContributionAmount,
		Frequency:          entities.Frequency(strings.ToLower(strings.TrimSpace(cmd.Frequency))),
		MaxMembers:         cmd.MaxMembers,
		Members:            []string{strings.TrimSpace(cmd.CreatorID)},
		Status:             entities.GroupStatusForming,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !group.ValidateConfig() {
		return CreateGroupResult{}, domainerrors.ErrInvalidGroupConfig
	}

	if err := uc.Groups.CreateGroup(ctx, group); err != nil {
		return CreateGroupResult{}, err
	}

	payload := createGroupReplayPayload{
		GroupID:            group.GroupID,
		Name:               group.Name,
		ContributionAmount: group.ContributionAmount,
		Frequency:          string(group.Frequency),
		MaxMembers:         group.MaxMembers,
		Members:            append([]string(nil), group.Members...),
		Status:             string(group.Status),
		CreatedAt:          group.CreatedAt.Format(time.RFC3339Nano),
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return CreateGroupResult{}, err
	}
	if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             cmd.IdempotencyKey,
		RequestHash:     requestHash,
		ResponsePayload: serialized,
		ExpiresAt:       now.Add(uc.IdempotencyTTL),
	}); err != nil {
		return CreateGroupResult{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return CreateGroupResult{}, err
		}
		envelope, err := newGroupEnvelope(eventID, EventGroupCreated, group.GroupID, now, map[string]any{
			"group_id":            group.GroupID,
			"name":                group.Name,
			"contribution_amount": group.ContributionAmount,
			"frequency":           string(group.Frequency),
			"max_members":         group.MaxMembers,
			"creator_id":          cmd.CreatorID,
		})
		if err != nil {
			return CreateGroupResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return CreateGroupResult{}, err
		}
	}

	logger.Info("ekub group created",
		"event", "ekub_group_created",
		"module", "savings-core/ekub-engine",
		"layer", "application",
		"group_id", group.GroupID,
		"creator_id", cmd.CreatorID,
		"max_members", group.MaxMembers,
	)
	return CreateGroupResult{Group: group}, nil
}

func hashCreateGroupCommand(cmd CreateGroupCommand) string {
	payload := map[string]any{
		"creator_id":          strings.TrimSpace(cmd.CreatorID),
		"name":                strings.TrimSpace(cmd.Name),
		"contribution_amount": cmd.ContributionAmount,
		"frequency":           strings.ToLower(strings.TrimSpace(cmd.Frequency)),
		"max_members":         cmd.MaxMembers,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
