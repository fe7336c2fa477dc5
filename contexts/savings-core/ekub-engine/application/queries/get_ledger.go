package queries

import (
	"context"
	"log/slog"
	"strings"

	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

type GetLedgerUseCase struct {
	Groups ports.GroupRepository
	Ledger ports.LedgerRepository
	Logger *slog.Logger
}

// Execute returns the group's append-only ledger, contributions and payouts
// interleaved in posting order.
func (uc GetLedgerUseCase) Execute(ctx context.Context, groupID string) ([]entities.LedgerEntry, error) {
	groupID = strings.TrimSpace(groupID)
	if _, err := uc.Groups.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return uc.Ledger.ListLedger(ctx, groupID)
}
