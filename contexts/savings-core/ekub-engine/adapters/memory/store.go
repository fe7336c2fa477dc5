package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"

	"github.com/google/uuid"
)

type cycleKey struct {
	groupID    string
	cycleIndex int
}

type outboxRow struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory implementation of every engine port backed by
// storage. It serves tests and local development; the per-group command lock
// already serializes writers, the store mutex only guards map access.
type Store struct {
	mu sync.RWMutex

	groups        map[string]entities.Group
	cycles        map[cycleKey]entities.Cycle
	contributions []entities.ContributionRecord
	payouts       map[cycleKey]entities.PayoutRecord
	ledger        map[string][]entities.LedgerEntry
	idempotency   map[string]ports.IdempotencyRecord
	outbox        []outboxRow

	now time.Time
}

func NewStore() *Store {
	return &Store{
		groups:      make(map[string]entities.Group),
		cycles:      make(map[cycleKey]entities.Cycle),
		payouts:     make(map[cycleKey]entities.PayoutRecord),
		ledger:      make(map[string][]entities.LedgerEntry),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) CreateGroup(_ context.Context, group entities.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.GroupID]; exists {
		return domainerrors.ErrInvalidGroupConfig
	}
	s.groups[group.GroupID] = cloneGroup(group)
	return nil
}

func (s *Store) UpdateGroup(_ context.Context, group entities.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.GroupID]; !exists {
		return domainerrors.ErrGroupNotFound
	}
	s.groups[group.GroupID] = cloneGroup(group)
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupID string) (entities.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, exists := s.groups[strings.TrimSpace(groupID)]
	if !exists {
		return entities.Group{}, domainerrors.ErrGroupNotFound
	}
	return cloneGroup(group), nil
}

func (s *Store) ListGroups(_ context.Context, filter ports.GroupFilter) ([]entities.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Group, 0, len(s.groups))
	for _, group := range s.groups {
		if filter.MemberID != "" && !group.IsMember(filter.MemberID) {
			continue
		}
		if filter.Status != "" && group.Status != filter.Status {
			continue
		}
		items = append(items, cloneGroup(group))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) CreateCycle(_ context.Context, cycle entities.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cycleKey{cycle.GroupID, cycle.CycleIndex}
	if _, exists := s.cycles[key]; exists {
		return domainerrors.ErrLedgerInvariantBroken
	}
	s.cycles[key] = cloneCycle(cycle)
	return nil
}

func (s *Store) UpdateCycle(_ context.Context, cycle entities.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cycleKey{cycle.GroupID, cycle.CycleIndex}
	if _, exists := s.cycles[key]; !exists {
		return domainerrors.ErrCycleNotFound
	}
	s.cycles[key] = cloneCycle(cycle)
	return nil
}

func (s *Store) GetCycle(_ context.Context, groupID string, cycleIndex int) (entities.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cycle, exists := s.cycles[cycleKey{strings.TrimSpace(groupID), cycleIndex}]
	if !exists {
		return entities.Cycle{}, domainerrors.ErrCycleNotFound
	}
	return cloneCycle(cycle), nil
}

func (s *Store) ListOpenCyclesPastDue(_ context.Context, now time.Time, limit int) ([]entities.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Cycle, 0)
	for _, cycle := range s.cycles {
		if cycle.State == entities.CycleStateOpen && now.After(cycle.DueDate) && cycle.OverdueFlaggedAt == nil {
			items = append(items, cloneCycle(cycle))
		}
	}
	return sortAndCap(items, limit), nil
}

func (s *Store) ListOpenCyclesDueWithin(
	_ context.Context,
	now time.Time,
	window time.Duration,
	limit int,
) ([]entities.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	horizon := now.Add(window)
	items := make([]entities.Cycle, 0)
	for _, cycle := range s.cycles {
		if cycle.State != entities.CycleStateOpen || cycle.ReminderSentAt != nil {
			continue
		}
		if cycle.DueDate.Before(now) || cycle.DueDate.After(horizon) {
			continue
		}
		items = append(items, cloneCycle(cycle))
	}
	return sortAndCap(items, limit), nil
}

func (s *Store) ListCompletedWithoutPayout(_ context.Context, limit int) ([]entities.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Cycle, 0)
	for key, cycle := range s.cycles {
		if cycle.State != entities.CycleStateCompleted {
			continue
		}
		if _, paid := s.payouts[key]; paid {
			continue
		}
		items = append(items, cloneCycle(cycle))
	}
	return sortAndCap(items, limit), nil
}

func (s *Store) AppendContribution(
	_ context.Context,
	record entities.ContributionRecord,
	cycle entities.Cycle,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.contributions {
		if existing.GroupID == record.GroupID &&
			existing.CycleIndex == record.CycleIndex &&
			existing.MemberID == record.MemberID &&
			existing.Status == entities.EntryStatusPosted {
			return domainerrors.ErrAlreadyContributedThisCycle
		}
	}
	key := cycleKey{cycle.GroupID, cycle.CycleIndex}
	if _, exists := s.cycles[key]; !exists {
		return domainerrors.ErrCycleNotFound
	}

	s.contributions = append(s.contributions, record)
	s.cycles[key] = cloneCycle(cycle)
	stored := record
	s.ledger[record.GroupID] = append(s.ledger[record.GroupID], entities.LedgerEntry{
		EntryType:    entities.LedgerEntryContribution,
		Contribution: &stored,
		RecordedAt:   record.PostedAt,
	})
	return nil
}

func (s *Store) AppendPayout(
	_ context.Context,
	record entities.PayoutRecord,
	cycle entities.Cycle,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cycleKey{record.GroupID, record.CycleIndex}
	if _, exists := s.payouts[key]; exists {
		return domainerrors.ErrLedgerInvariantBroken
	}
	if _, exists := s.cycles[key]; !exists {
		return domainerrors.ErrCycleNotFound
	}

	s.payouts[key] = record
	s.cycles[key] = cloneCycle(cycle)
	stored := record
	s.ledger[record.GroupID] = append(s.ledger[record.GroupID], entities.LedgerEntry{
		EntryType:  entities.LedgerEntryPayout,
		Payout:     &stored,
		RecordedAt: record.IssuedAt,
	})
	return nil
}

func (s *Store) GetPayout(_ context.Context, groupID string, cycleIndex int) (entities.PayoutRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.payouts[cycleKey{groupID, cycleIndex}]
	return record, exists, nil
}

func (s *Store) ListLedger(_ context.Context, groupID string) ([]entities.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entities.LedgerEntry(nil), s.ledger[strings.TrimSpace(groupID)]...), nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.idempotency[record.Key]; exists {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, outboxRow{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].message.OutboxID == outboxID {
			s.outbox[i].published = true
			return nil
		}
	}
	return domainerrors.ErrLedgerInvariantBroken
}

// Now returns the frozen test time when set, the wall clock otherwise.
func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}
	s.now = s.now.Add(d)
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneGroup(group entities.Group) entities.Group {
	group.Members = append([]string(nil), group.Members...)
	group.RotationOrder = append([]string(nil), group.RotationOrder...)
	return group
}

func cloneCycle(cycle entities.Cycle) entities.Cycle {
	cycle.Contributions = append([]string(nil), cycle.Contributions...)
	return cycle
}

func sortAndCap(items []entities.Cycle, limit int) []entities.Cycle {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DueDate.Equal(items[j].DueDate) {
			return items[i].GroupID < items[j].GroupID
		}
		return items[i].DueDate.Before(items[j].DueDate)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
