package entities

import "time"

type CycleState string

const (
	CycleStateOpen         CycleState = "open"
	CycleStateCompleted    CycleState = "completed"
	CycleStatePayoutIssued CycleState = "payout_issued"
)

// Cycle is one contribution period ending in a single payout to RecipientID.
// Contributions holds the member IDs that have paid this cycle, in posting
// order. State only ever moves open -> completed -> payout_issued.
type Cycle struct {
	GroupID          string
	CycleIndex       int
	RecipientID      string
	DueDate          time.Time
	Contributions    []string
	State            CycleState
	OpenedAt         time.Time
	CompletedAt      *time.Time
	PayoutAt         *time.Time
	OverdueFlaggedAt *time.Time
	ReminderSentAt   *time.Time
}

func (c Cycle) HasContribution(memberID string) bool {
	for _, id := range c.Contributions {
		if id == memberID {
			return true
		}
	}
	return false
}

// AllContributed is set-equality against the group roster: every member has
// paid, order-independent. The recipient pays like everyone else.
func (c Cycle) AllContributed(members []string) bool {
	if len(c.Contributions) != len(members) {
		return false
	}
	paid := make(map[string]bool, len(c.Contributions))
	for _, id := range c.Contributions {
		paid[id] = true
	}
	for _, id := range members {
		if !paid[id] {
			return false
		}
	}
	return true
}

func (c Cycle) Overdue(now time.Time) bool {
	return c.State == CycleStateOpen && now.After(c.DueDate)
}
