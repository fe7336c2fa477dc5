package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ekub/contexts/savings-core/ekub-engine/domain/entities"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "ekub.db"))
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store *Store, groupID string) entities.Group {
	t.Helper()
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	group := entities.Group{
		GroupID:            groupID,
		Name:               "equb circle",
		ContributionAmount: 100,
		Frequency:          entities.FrequencyWeekly,
		MaxMembers:         3,
		Members:            []string{"member-1", "member-2", "member-3"},
		RotationOrder:      []string{"member-1", "member-2", "member-3"},
		Status:             entities.GroupStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
		ActivatedAt:        &now,
	}
	if err := store.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	return group
}

func seedCycle(t *testing.T, store *Store, groupID string, index int, state entities.CycleState) entities.Cycle {
	t.Helper()
	opened := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	cycle := entities.Cycle{
		GroupID:     groupID,
		CycleIndex:  index,
		RecipientID: "member-1",
		DueDate:     opened.Add(7 * 24 * time.Hour),
		State:       state,
		OpenedAt:    opened,
	}
	if err := store.CreateCycle(context.Background(), cycle); err != nil {
		t.Fatalf("create cycle failed: %v", err)
	}
	return cycle
}

func TestGroupRoundTrip(t *testing.T) {
	store := newTestStore(t)
	group := seedGroup(t, store, "group-1")

	loaded, err := store.GetGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("get group failed: %v", err)
	}
	if loaded.Name != group.Name || len(loaded.Members) != 3 || loaded.Status != entities.GroupStatusActive {
		t.Fatalf("unexpected group round trip: %+v", loaded)
	}
	if loaded.ActivatedAt == nil || !loaded.ActivatedAt.Equal(*group.ActivatedAt) {
		t.Fatalf("activated timestamp lost: %+v", loaded.ActivatedAt)
	}

	loaded.CurrentCycleIndex = 2
	loaded.Status = entities.GroupStatusClosed
	closed := loaded.UpdatedAt.Add(time.Hour)
	loaded.ClosedAt = &closed
	if err := store.UpdateGroup(context.Background(), loaded); err != nil {
		t.Fatalf("update group failed: %v", err)
	}
	updated, err := store.GetGroup(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("get updated group failed: %v", err)
	}
	if updated.CurrentCycleIndex != 2 || updated.Status != entities.GroupStatusClosed || updated.ClosedAt == nil {
		t.Fatalf("update not persisted: %+v", updated)
	}

	if _, err := store.GetGroup(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
	if err := store.UpdateGroup(context.Background(), entities.Group{GroupID: "missing"}); !errors.Is(err, domainerrors.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound on update, got %v", err)
	}

	byMember, err := store.ListGroups(context.Background(), ports.GroupFilter{MemberID: "member-2"})
	if err != nil {
		t.Fatalf("list by member failed: %v", err)
	}
	if len(byMember) != 1 {
		t.Fatalf("expected one group for member-2, got %d", len(byMember))
	}
	byStatus, err := store.ListGroups(context.Background(), ports.GroupFilter{Status: entities.GroupStatusForming})
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if len(byStatus) != 0 {
		t.Fatalf("expected no forming groups, got %d", len(byStatus))
	}
}

func TestContributionUniqueness(t *testing.T) {
	store := newTestStore(t)
	seedGroup(t, store, "group-1")
	cycle := seedCycle(t, store, "group-1", 0, entities.CycleStateOpen)

	record := entities.ContributionRecord{
		EntryID:    "entry-1",
		GroupID:    "group-1",
		CycleIndex: 0,
		MemberID:   "member-1",
		Amount:     100,
		Status:     entities.EntryStatusPosted,
		PostedAt:   cycle.OpenedAt.Add(time.Hour),
	}
	cycle.Contributions = []string{"member-1"}
	if err := store.AppendContribution(context.Background(), record, cycle); err != nil {
		t.Fatalf("append contribution failed: %v", err)
	}

	duplicate := record
	duplicate.EntryID = "entry-2"
	if err := store.AppendContribution(context.Background(), duplicate, cycle); !errors.Is(err, domainerrors.ErrAlreadyContributedThisCycle) {
		t.Fatalf("expected ErrAlreadyContributedThisCycle, got %v", err)
	}

	// The failed insert must not leak the cycle update either.
	loaded, err := store.GetCycle(context.Background(), "group-1", 0)
	if err != nil {
		t.Fatalf("get cycle failed: %v", err)
	}
	if len(loaded.Contributions) != 1 {
		t.Fatalf("expected one recorded contributor, got %v", loaded.Contributions)
	}

	ledger, err := store.ListLedger(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Contribution == nil {
		t.Fatalf("expected a single contribution entry, got %+v", ledger)
	}
}

func TestPayoutUniqueness(t *testing.T) {
	store := newTestStore(t)
	seedGroup(t, store, "group-1")
	cycle := seedCycle(t, store, "group-1", 0, entities.CycleStateCompleted)

	issued := cycle.OpenedAt.Add(2 * time.Hour)
	record := entities.PayoutRecord{
		EntryID:     "payout-1",
		GroupID:     "group-1",
		CycleIndex:  0,
		RecipientID: "member-1",
		Amount:      300,
		IssuedAt:    issued,
	}
	cycle.State = entities.CycleStatePayoutIssued
	cycle.PayoutAt = &issued
	if err := store.AppendPayout(context.Background(), record, cycle); err != nil {
		t.Fatalf("append payout failed: %v", err)
	}

	second := record
	second.EntryID = "payout-2"
	if err := store.AppendPayout(context.Background(), second, cycle); !errors.Is(err, domainerrors.ErrLedgerInvariantBroken) {
		t.Fatalf("expected ErrLedgerInvariantBroken, got %v", err)
	}

	loaded, found, err := store.GetPayout(context.Background(), "group-1", 0)
	if err != nil || !found {
		t.Fatalf("get payout failed: %v found=%v", err, found)
	}
	if loaded.EntryID != "payout-1" || loaded.Amount != 300 {
		t.Fatalf("unexpected payout: %+v", loaded)
	}
	if _, found, err := store.GetPayout(context.Background(), "group-1", 1); err != nil || found {
		t.Fatalf("expected no payout for cycle 1, got found=%v err=%v", found, err)
	}
}

func TestCycleSweepQueries(t *testing.T) {
	store := newTestStore(t)
	seedGroup(t, store, "group-1")
	open := seedCycle(t, store, "group-1", 0, entities.CycleStateOpen)
	completed := seedCycle(t, store, "group-1", 1, entities.CycleStateCompleted)

	afterDue := open.DueDate.Add(time.Hour)
	pastDue, err := store.ListOpenCyclesPastDue(context.Background(), afterDue, 10)
	if err != nil {
		t.Fatalf("past due query failed: %v", err)
	}
	if len(pastDue) != 1 || pastDue[0].CycleIndex != 0 {
		t.Fatalf("expected the open cycle past due, got %+v", pastDue)
	}

	flagged := open
	flagged.OverdueFlaggedAt = &afterDue
	if err := store.UpdateCycle(context.Background(), flagged); err != nil {
		t.Fatalf("update cycle failed: %v", err)
	}
	pastDue, err = store.ListOpenCyclesPastDue(context.Background(), afterDue, 10)
	if err != nil {
		t.Fatalf("past due query failed: %v", err)
	}
	if len(pastDue) != 0 {
		t.Fatalf("flagged cycles must not be listed again, got %+v", pastDue)
	}

	dayBefore := open.DueDate.Add(-24 * time.Hour)
	dueSoon, err := store.ListOpenCyclesDueWithin(context.Background(), dayBefore, 48*time.Hour, 10)
	if err != nil {
		t.Fatalf("due within query failed: %v", err)
	}
	if len(dueSoon) != 1 || dueSoon[0].CycleIndex != 0 {
		t.Fatalf("expected the open cycle due within the window, got %+v", dueSoon)
	}
	longBefore := open.DueDate.Add(-10 * 24 * time.Hour)
	dueSoon, err = store.ListOpenCyclesDueWithin(context.Background(), longBefore, 48*time.Hour, 10)
	if err != nil {
		t.Fatalf("due within query failed: %v", err)
	}
	if len(dueSoon) != 0 {
		t.Fatalf("cycle outside the window must not be listed, got %+v", dueSoon)
	}

	stuck, err := store.ListCompletedWithoutPayout(context.Background(), 10)
	if err != nil {
		t.Fatalf("completed without payout query failed: %v", err)
	}
	if len(stuck) != 1 || stuck[0].CycleIndex != 1 {
		t.Fatalf("expected the completed cycle without payout, got %+v", stuck)
	}

	issued := completed.DueDate
	payout := entities.PayoutRecord{
		EntryID: "payout-1", GroupID: "group-1", CycleIndex: 1,
		RecipientID: "member-1", Amount: 300, IssuedAt: issued,
	}
	completed.State = entities.CycleStatePayoutIssued
	completed.PayoutAt = &issued
	if err := store.AppendPayout(context.Background(), payout, completed); err != nil {
		t.Fatalf("append payout failed: %v", err)
	}
	stuck, err = store.ListCompletedWithoutPayout(context.Background(), 10)
	if err != nil {
		t.Fatalf("completed without payout query failed: %v", err)
	}
	if len(stuck) != 0 {
		t.Fatalf("paid cycle must drop out of the sweep, got %+v", stuck)
	}
}

func TestIdempotencyRecordLifecycle(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	record := ports.IdempotencyRecord{
		Key:             "idem-1",
		RequestHash:     "hash-a",
		ResponsePayload: []byte(`{"group_id":"group-1"}`),
		ExpiresAt:       now.Add(time.Hour),
	}

	if err := store.PutRecord(context.Background(), record); err != nil {
		t.Fatalf("put record failed: %v", err)
	}
	// Same key and hash replays silently.
	if err := store.PutRecord(context.Background(), record); err != nil {
		t.Fatalf("replay put failed: %v", err)
	}
	conflicting := record
	conflicting.RequestHash = "hash-b"
	if err := store.PutRecord(context.Background(), conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}

	loaded, found, err := store.GetRecord(context.Background(), "idem-1", now)
	if err != nil || !found {
		t.Fatalf("get record failed: %v found=%v", err, found)
	}
	if loaded.RequestHash != "hash-a" || string(loaded.ResponsePayload) != `{"group_id":"group-1"}` {
		t.Fatalf("unexpected record: %+v", loaded)
	}

	// Expired records are dropped on read.
	if _, found, err := store.GetRecord(context.Background(), "idem-1", now.Add(2*time.Hour)); err != nil || found {
		t.Fatalf("expected expired record to vanish, got found=%v err=%v", found, err)
	}
	if _, found, _ := store.GetRecord(context.Background(), "idem-1", now); found {
		t.Fatalf("expired record must be deleted, not just hidden")
	}
}

func TestOutboxLifecycle(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	for i, eventID := range []string{"event-1", "event-2"} {
		err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
			EventID:      eventID,
			EventType:    "ekub.group_created",
			OccurredAt:   now.Add(time.Duration(i) * time.Minute),
			PartitionKey: "group-1",
			Data:         []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "event-1" {
		t.Fatalf("expected two pending rows oldest first, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(context.Background(), "event-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "event-2" {
		t.Fatalf("expected only event-2 pending, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(context.Background(), "missing", now); err == nil {
		t.Fatalf("expected error for unknown outbox id")
	}
}
