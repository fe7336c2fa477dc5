package ekubengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ekubengine "ekub/contexts/savings-core/ekub-engine"
	"ekub/contexts/savings-core/ekub-engine/adapters/memory"
	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	"ekub/contexts/savings-core/ekub-engine/ports"
	httptransport "ekub/contexts/savings-core/ekub-engine/transport/http"
)

// capturePublisher records published envelopes so tests can assert what the
// outbox relay emitted.
type capturePublisher struct {
	mu     sync.Mutex
	events []ports.EventEnvelope
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(eventType string) []ports.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]ports.EventEnvelope, 0)
	for _, event := range p.events {
		if event.EventType == eventType {
			items = append(items, event)
		}
	}
	return items
}

func createGroup(t *testing.T, module ekubengine.Module, creator string, maxMembers int, frequency string) string {
	t.Helper()
	resp, err := module.Handler.CreateGroupHandler(context.Background(), creator, "idem-create-"+creator, httptransport.CreateGroupRequest{
		Name:               "equb circle",
		ContributionAmount: 100,
		Frequency:          frequency,
		MaxMembers:         maxMembers,
	})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	return resp.Group.GroupID
}

// newActiveGroup builds a three-member weekly group, funds every member with
// enough for a full rotation, and activates it in join order.
func newActiveGroup(t *testing.T, module ekubengine.Module) (string, []string) {
	t.Helper()
	members := []string{"member-1", "member-2", "member-3"}
	groupID := createGroup(t, module, members[0], 3, "weekly")
	for _, memberID := range members[1:] {
		if _, err := module.Handler.JoinGroupHandler(context.Background(), memberID, groupID); err != nil {
			t.Fatalf("join %s failed: %v", memberID, err)
		}
	}
	for _, memberID := range members {
		module.Wallet.Deposit(memberID, 300)
	}
	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	return groupID, members
}

func ledgerCounts(t *testing.T, module ekubengine.Module, groupID string) (contributions int, payouts int) {
	t.Helper()
	ledger, err := module.Handler.GetLedgerHandler(context.Background(), groupID)
	if err != nil {
		t.Fatalf("get ledger failed: %v", err)
	}
	for _, entry := range ledger.Entries {
		switch {
		case entry.Contribution != nil:
			contributions++
		case entry.Payout != nil:
			payouts++
		}
	}
	return contributions, payouts
}

func TestFullRotationPaysEveryMemberOnceAndCloses(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	groupID, members := newActiveGroup(t, module)

	for cycle := 0; cycle < len(members); cycle++ {
		var last httptransport.ContributeResponse
		for _, memberID := range members {
			resp, err := module.Handler.ContributeHandler(context.Background(), memberID, groupID)
			if err != nil {
				t.Fatalf("cycle %d contribute %s failed: %v", cycle, memberID, err)
			}
			last = resp
		}
		if !last.CycleCompleted || !last.PayoutIssued {
			t.Fatalf("cycle %d: final contribution should complete the cycle and issue the payout, got %+v", cycle, last)
		}

		status, err := module.Handler.GetGroupStatusHandler(context.Background(), groupID)
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if cycle < len(members)-1 {
			if status.Group.Status != "active" {
				t.Fatalf("cycle %d: expected active group, got %s", cycle, status.Group.Status)
			}
			if status.Group.CurrentCycleIndex != cycle+1 {
				t.Fatalf("cycle %d: expected rotation to advance to %d, got %d", cycle, cycle+1, status.Group.CurrentCycleIndex)
			}
			if status.CurrentCycle == nil || status.CurrentCycle.RecipientID != members[cycle+1] {
				t.Fatalf("cycle %d: expected next recipient %s, got %+v", cycle, members[cycle+1], status.CurrentCycle)
			}
		} else {
			if !last.GroupClosed || status.Group.Status != "closed" {
				t.Fatalf("expected group closed after the last cycle, got %+v / %s", last, status.Group.Status)
			}
		}
	}

	ledger, err := module.Handler.GetLedgerHandler(context.Background(), groupID)
	if err != nil {
		t.Fatalf("get ledger failed: %v", err)
	}
	contributions, payouts := ledgerCounts(t, module, groupID)
	if contributions != 9 || payouts != 3 {
		t.Fatalf("expected 9 contributions and 3 payouts, got %d and %d", contributions, payouts)
	}
	for _, entry := range ledger.Entries {
		if entry.Payout != nil && entry.Payout.Amount != 300 {
			t.Fatalf("expected pooled payout of 300, got %f", entry.Payout.Amount)
		}
	}

	// Every member paid 3x100 and received 300 once: balances end where they
	// started. The pool itself holds nothing between cycles.
	for _, memberID := range members {
		if balance := module.Wallet.Balance(memberID); balance != 300 {
			t.Fatalf("expected %s to end with 300, got %f", memberID, balance)
		}
	}

	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); !errors.Is(err, domainerrors.ErrGroupClosed) {
		t.Fatalf("expected ErrGroupClosed after rotation finished, got %v", err)
	}
}

func TestDuplicateContributionRejected(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	groupID, members := newActiveGroup(t, module)

	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); err != nil {
		t.Fatalf("first contribution failed: %v", err)
	}
	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); !errors.Is(err, domainerrors.ErrAlreadyContributedThisCycle) {
		t.Fatalf("expected ErrAlreadyContributedThisCycle, got %v", err)
	}

	contributions, payouts := ledgerCounts(t, module, groupID)
	if contributions != 1 || payouts != 0 {
		t.Fatalf("expected a single ledger contribution, got %d contributions and %d payouts", contributions, payouts)
	}
	if balance := module.Wallet.Balance(members[0]); balance != 200 {
		t.Fatalf("expected a single debit of 100, balance is %f", balance)
	}
}

func TestInsufficientFundsLeavesNoPartialState(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	members := []string{"member-1", "member-2"}
	groupID := createGroup(t, module, members[0], 2, "weekly")
	if _, err := module.Handler.JoinGroupHandler(context.Background(), members[1], groupID); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	contributions, payouts := ledgerCounts(t, module, groupID)
	if contributions != 0 || payouts != 0 {
		t.Fatalf("failed debit must leave the ledger untouched, got %d contributions and %d payouts", contributions, payouts)
	}
	status, err := module.Handler.GetGroupStatusHandler(context.Background(), groupID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentCycle == nil || len(status.CurrentCycle.Contributions) != 0 {
		t.Fatalf("failed debit must leave the cycle untouched, got %+v", status.CurrentCycle)
	}

	// Funding the wallet makes the identical retry succeed.
	module.Wallet.Deposit(members[0], 100)
	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); err != nil {
		t.Fatalf("retry after deposit failed: %v", err)
	}
}

func TestConcurrentFinalContributionsIssueOnePayout(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	groupID, members := newActiveGroup(t, module)

	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); err != nil {
		t.Fatalf("first contribution failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, memberID := range members[1:] {
		wg.Add(1)
		go func(slot int, id string) {
			defer wg.Done()
			_, err := module.Handler.ContributeHandler(context.Background(), id, groupID)
			errs[slot] = err
		}(i, memberID)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent contribution %d failed: %v", i, err)
		}
	}

	contributions, payouts := ledgerCounts(t, module, groupID)
	if contributions != 3 || payouts != 1 {
		t.Fatalf("expected 3 contributions and exactly 1 payout, got %d and %d", contributions, payouts)
	}
	if balance := module.Wallet.Balance(members[0]); balance != 500 {
		t.Fatalf("expected first recipient at 300-100+300=500, got %f", balance)
	}
}

// heldReplayWallet coordinates two concurrent debits for the same reference:
// both calls must be in flight before the first one lands, and the duplicate
// is parked until the cycle payout credit has been applied.
type heldReplayWallet struct {
	inner         *memory.Wallet
	holdReference string

	mu           sync.Mutex
	debits       int
	bothInFlight chan struct{}
	payoutLanded chan struct{}
}

func (w *heldReplayWallet) Debit(ctx context.Context, memberID string, amount float64, reference string) error {
	if reference != w.holdReference {
		return w.inner.Debit(ctx, memberID, amount, reference)
	}

	w.mu.Lock()
	w.debits++
	order := w.debits
	if order == 2 {
		close(w.bothInFlight)
	}
	w.mu.Unlock()

	<-w.bothInFlight
	if order == 2 {
		<-w.payoutLanded
	}
	return w.inner.Debit(ctx, memberID, amount, reference)
}

func (w *heldReplayWallet) Credit(ctx context.Context, memberID string, amount float64, reference string) error {
	err := w.inner.Credit(ctx, memberID, amount, reference)
	w.mu.Lock()
	select {
	case <-w.payoutLanded:
	default:
		close(w.payoutLanded)
	}
	w.mu.Unlock()
	return err
}

// A duplicate final contribution whose wallet debit is still in flight when
// the cycle pays out must be rejected after the lock is re-acquired: the
// debit was a replay against the finished cycle and moved no money, so
// posting it into the next cycle would break conservation.
func TestDuplicateFinalContributionAfterPayoutIsRejected(t *testing.T) {
	store := memory.NewStore()
	wallet := &heldReplayWallet{
		inner:        memory.NewWallet(),
		bothInFlight: make(chan struct{}),
		payoutLanded: make(chan struct{}),
	}
	module := ekubengine.NewModule(ekubengine.Dependencies{
		Groups:         store,
		Cycles:         store,
		Ledger:         store,
		Wallet:         wallet,
		Idempotency:    store,
		Outbox:         store,
		OutboxRepo:     store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: time.Hour,
		ReminderWindow: 48 * time.Hour,
	})

	groupID := createGroup(t, module, "member-1", 2, "weekly")
	wallet.holdReference = "contribution:" + groupID + ":0:member-2"
	if _, err := module.Handler.JoinGroupHandler(context.Background(), "member-2", groupID); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	wallet.inner.Deposit("member-1", 100)
	wallet.inner.Deposit("member-2", 100)
	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := module.Handler.ContributeHandler(context.Background(), "member-1", groupID); err != nil {
		t.Fatalf("first contribution failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := module.Handler.ContributeHandler(context.Background(), "member-2", groupID)
			errs[slot] = err
		}(i)
	}
	wg.Wait()

	rejected := 0
	for i, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, domainerrors.ErrAlreadyContributedThisCycle):
			rejected++
		default:
			t.Fatalf("call %d returned unexpected error: %v", i, err)
		}
	}
	if rejected != 1 {
		t.Fatalf("expected exactly one duplicate rejection, got %d (errors: %v)", rejected, errs)
	}

	contributions, payouts := ledgerCounts(t, module, groupID)
	if contributions != 2 || payouts != 1 {
		t.Fatalf("expected 2 contributions and 1 payout in cycle 0, got %d and %d", contributions, payouts)
	}

	status, err := module.Handler.GetGroupStatusHandler(context.Background(), groupID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Group.CurrentCycleIndex != 1 {
		t.Fatalf("expected rotation at cycle 1, got %d", status.Group.CurrentCycleIndex)
	}
	if status.CurrentCycle == nil || len(status.CurrentCycle.Contributions) != 0 {
		t.Fatalf("cycle 1 must start empty, got %+v", status.CurrentCycle)
	}

	// Every posted contribution is backed by a real debit.
	if balance := wallet.inner.Balance("member-1"); balance != 200 {
		t.Fatalf("expected recipient at 100-100+200=200, got %f", balance)
	}
	if balance := wallet.inner.Balance("member-2"); balance != 0 {
		t.Fatalf("expected member-2 at 100-100=0, got %f", balance)
	}
}

func TestMembershipRules(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	groupID := createGroup(t, module, "member-1", 3, "monthly")

	if _, err := module.Handler.JoinGroupHandler(context.Background(), "member-1", groupID); !errors.Is(err, domainerrors.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	join, err := module.Handler.JoinGroupHandler(context.Background(), "member-2", groupID)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if join.ActivationEligible {
		t.Fatalf("group below capacity should not report the capacity signal")
	}

	// Leaving while forming is free.
	if _, err := module.Handler.LeaveGroupHandler(context.Background(), "member-2", groupID); err != nil {
		t.Fatalf("leave while forming failed: %v", err)
	}
	if _, err := module.Handler.LeaveGroupHandler(context.Background(), "member-2", groupID); !errors.Is(err, domainerrors.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember after leaving, got %v", err)
	}

	var full httptransport.JoinGroupResponse
	for _, memberID := range []string{"member-2", "member-3"} {
		resp, err := module.Handler.JoinGroupHandler(context.Background(), memberID, groupID)
		if err != nil {
			t.Fatalf("join %s failed: %v", memberID, err)
		}
		full = resp
	}
	if !full.ActivationEligible {
		t.Fatalf("reaching capacity should report the group ready to start")
	}
	if _, err := module.Handler.JoinGroupHandler(context.Background(), "member-4", groupID); !errors.Is(err, domainerrors.ErrGroupFull) {
		t.Fatalf("expected ErrGroupFull, got %v", err)
	}

	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := module.Handler.JoinGroupHandler(context.Background(), "member-5", groupID); !errors.Is(err, domainerrors.ErrGroupNotForming) {
		t.Fatalf("expected ErrGroupNotForming on active group, got %v", err)
	}
	if _, err := module.Handler.LeaveGroupHandler(context.Background(), "member-2", groupID); !errors.Is(err, domainerrors.ErrCannotLeaveActiveGroup) {
		t.Fatalf("expected ErrCannotLeaveActiveGroup, got %v", err)
	}
	if _, err := module.Handler.ContributeHandler(context.Background(), "member-9", groupID); !errors.Is(err, domainerrors.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember for outsider contribution, got %v", err)
	}
}

func TestCreateGroupIdempotency(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	req := httptransport.CreateGroupRequest{
		Name:               "equb circle",
		ContributionAmount: 100,
		Frequency:          "monthly",
		MaxMembers:         5,
	}

	first, err := module.Handler.CreateGroupHandler(context.Background(), "member-1", "idem-1", req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := module.Handler.CreateGroupHandler(context.Background(), "member-1", "idem-1", req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Replayed || second.Group.GroupID != first.Group.GroupID {
		t.Fatalf("expected replayed response with same group id, got %+v", second)
	}

	list, err := module.Handler.ListGroupsHandler(context.Background(), "member-1", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("replay must not create a second group, got %d", len(list.Items))
	}

	conflicting := req
	conflicting.MaxMembers = 7
	if _, err := module.Handler.CreateGroupHandler(context.Background(), "member-1", "idem-1", conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
	if _, err := module.Handler.CreateGroupHandler(context.Background(), "member-1", "", req); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
	if _, err := module.Handler.CreateGroupHandler(context.Background(), "member-1", "idem-2", httptransport.CreateGroupRequest{
		Name:               "bad",
		ContributionAmount: -5,
		Frequency:          "monthly",
		MaxMembers:         5,
	}); !errors.Is(err, domainerrors.ErrInvalidGroupConfig) {
		t.Fatalf("expected ErrInvalidGroupConfig, got %v", err)
	}
}

func TestActivateValidation(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	groupID := createGroup(t, module, "member-1", 4, "weekly")

	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{}); !errors.Is(err, domainerrors.ErrTooFewMembers) {
		t.Fatalf("expected ErrTooFewMembers, got %v", err)
	}

	for _, memberID := range []string{"member-2", "member-3"} {
		if _, err := module.Handler.JoinGroupHandler(context.Background(), memberID, groupID); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}

	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{
		RotationOrder: []string{"member-2", "member-9", "member-1"},
	}); !errors.Is(err, domainerrors.ErrInvalidRotationOrder) {
		t.Fatalf("expected ErrInvalidRotationOrder for non-roster id, got %v", err)
	}
	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{
		RotationOrder: []string{"member-1", "member-1", "member-2"},
	}); !errors.Is(err, domainerrors.ErrInvalidRotationOrder) {
		t.Fatalf("expected ErrInvalidRotationOrder for duplicate id, got %v", err)
	}

	// A group can start below capacity with an explicit order.
	resp, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{
		RotationOrder: []string{"member-3", "member-1", "member-2"},
	})
	if err != nil {
		t.Fatalf("activate with custom order failed: %v", err)
	}
	if resp.Cycle.RecipientID != "member-3" || resp.Cycle.CycleIndex != 0 {
		t.Fatalf("expected cycle 0 for member-3, got %+v", resp.Cycle)
	}

	if _, err := module.Handler.ActivateGroupHandler(context.Background(), groupID, httptransport.ActivateGroupRequest{}); !errors.Is(err, domainerrors.ErrGroupNotForming) {
		t.Fatalf("expected ErrGroupNotForming on second activation, got %v", err)
	}
}

func TestPayoutRetriedAfterCreditFailure(t *testing.T) {
	module := ekubengine.NewInMemoryModule(nil, nil)
	groupID, members := newActiveGroup(t, module)

	module.Wallet.FailCredits = true
	var last httptransport.ContributeResponse
	for _, memberID := range members {
		resp, err := module.Handler.ContributeHandler(context.Background(), memberID, groupID)
		if err != nil {
			t.Fatalf("contribute %s failed: %v", memberID, err)
		}
		last = resp
	}
	// Contributions stand even though the payout credit failed.
	if !last.CycleCompleted || last.PayoutIssued {
		t.Fatalf("expected completed cycle with deferred payout, got %+v", last)
	}
	if _, payouts := ledgerCounts(t, module, groupID); payouts != 0 {
		t.Fatalf("deferred payout must not reach the ledger, got %d payouts", payouts)
	}

	// The wallet stays down for one sweep; nothing changes.
	if err := module.PayoutRetrier.RunOnce(context.Background()); err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	if _, payouts := ledgerCounts(t, module, groupID); payouts != 0 {
		t.Fatalf("payout must stay deferred while credits fail, got %d payouts", payouts)
	}

	module.Wallet.FailCredits = false
	if err := module.PayoutRetrier.RunOnce(context.Background()); err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	if _, payouts := ledgerCounts(t, module, groupID); payouts != 1 {
		t.Fatalf("expected exactly one payout after retry, got %d", payouts)
	}
	if balance := module.Wallet.Balance(members[0]); balance != 500 {
		t.Fatalf("expected recipient balance 500 after retried payout, got %f", balance)
	}

	status, err := module.Handler.GetGroupStatusHandler(context.Background(), groupID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Group.CurrentCycleIndex != 1 || status.CurrentCycle == nil || status.CurrentCycle.RecipientID != members[1] {
		t.Fatalf("retry must advance the rotation, got %+v", status)
	}

	// A second sweep finds nothing to redo.
	if err := module.PayoutRetrier.RunOnce(context.Background()); err != nil {
		t.Fatalf("idle retry sweep failed: %v", err)
	}
	if _, payouts := ledgerCounts(t, module, groupID); payouts != 1 {
		t.Fatalf("retry sweep must be idempotent, got %d payouts", payouts)
	}
}

func TestDueReminderAndOverdueFlagging(t *testing.T) {
	publisher := &capturePublisher{}
	module := ekubengine.NewInMemoryModule(publisher, nil)
	module.Store.SetNow(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))

	groupID, members := newActiveGroup(t, module)
	if _, err := module.Handler.ContributeHandler(context.Background(), members[0], groupID); err != nil {
		t.Fatalf("contribute failed: %v", err)
	}

	// Weekly cycle: due 2026-03-09. Three days out is beyond the 48h window.
	module.Store.Advance(4 * 24 * time.Hour)
	if err := module.DueReminder.RunOnce(context.Background()); err != nil {
		t.Fatalf("reminder sweep failed: %v", err)
	}
	if err := module.OutboxRelay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if events := publisher.byType("ekub.payment_due"); len(events) != 0 {
		t.Fatalf("expected no reminders outside the window, got %d", len(events))
	}

	// One day before the due date the two unpaid members get one reminder each.
	module.Store.Advance(2 * 24 * time.Hour)
	if err := module.DueReminder.RunOnce(context.Background()); err != nil {
		t.Fatalf("reminder sweep failed: %v", err)
	}
	if err := module.DueReminder.RunOnce(context.Background()); err != nil {
		t.Fatalf("second reminder sweep failed: %v", err)
	}
	if err := module.OutboxRelay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if events := publisher.byType("ekub.payment_due"); len(events) != 2 {
		t.Fatalf("expected one reminder per unpaid member, got %d", len(events))
	}

	// Past the due date the open cycle is flagged once and reported overdue.
	module.Store.Advance(3 * 24 * time.Hour)
	if err := module.OverdueFlagger.RunOnce(context.Background()); err != nil {
		t.Fatalf("overdue sweep failed: %v", err)
	}
	if err := module.OverdueFlagger.RunOnce(context.Background()); err != nil {
		t.Fatalf("second overdue sweep failed: %v", err)
	}
	if err := module.OutboxRelay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if events := publisher.byType("ekub.cycle_overdue"); len(events) != 1 {
		t.Fatalf("expected a single overdue event, got %d", len(events))
	}

	status, err := module.Handler.GetGroupStatusHandler(context.Background(), groupID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.Overdue {
		t.Fatalf("expected overdue status projection")
	}
	if status.CurrentCycle == nil || status.CurrentCycle.OverdueFlaggedAt == "" {
		t.Fatalf("expected flagged cycle, got %+v", status.CurrentCycle)
	}

	// An overdue cycle still accepts the missing contributions and pays out.
	for _, memberID := range members[1:] {
		if _, err := module.Handler.ContributeHandler(context.Background(), memberID, groupID); err != nil {
			t.Fatalf("late contribute %s failed: %v", memberID, err)
		}
	}
	if _, payouts := ledgerCounts(t, module, groupID); payouts != 1 {
		t.Fatalf("expected payout after late completion, got %d", payouts)
	}
}

func TestOutboxRelayPublishesLifecycleEvents(t *testing.T) {
	publisher := &capturePublisher{}
	module := ekubengine.NewInMemoryModule(publisher, nil)
	groupID, members := newActiveGroup(t, module)

	for _, memberID := range members {
		if _, err := module.Handler.ContributeHandler(context.Background(), memberID, groupID); err != nil {
			t.Fatalf("contribute failed: %v", err)
		}
	}
	if err := module.OutboxRelay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	expected := map[string]int{
		"ekub.group_created":       1,
		"ekub.member_joined":       2,
		"ekub.group_activated":     1,
		"ekub.contribution_posted": 3,
		"ekub.cycle_completed":     1,
		"ekub.payout_issued":       1,
	}
	for eventType, count := range expected {
		if got := len(publisher.byType(eventType)); got != count {
			t.Fatalf("expected %d %s events, got %d", count, eventType, got)
		}
	}

	// Relaying again republishes nothing.
	before := len(publisher.events)
	if err := module.OutboxRelay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay failed: %v", err)
	}
	if len(publisher.events) != before {
		t.Fatalf("relay must not republish, got %d extra events", len(publisher.events)-before)
	}
}
