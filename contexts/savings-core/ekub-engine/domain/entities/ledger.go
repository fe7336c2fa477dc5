package entities

import "time"

type EntryStatus string

const (
	EntryStatusPosted   EntryStatus = "posted"
	EntryStatusReversed EntryStatus = "reversed"
)

const (
	LedgerEntryContribution = "contribution"
	LedgerEntryPayout       = "payout"
)

// ContributionRecord is one posted contribution in the append-only ledger.
// Records are immutable once posted; a correction is a new entry carrying
// ReversalOf, never an in-place edit.
type ContributionRecord struct {
	EntryID    string
	GroupID    string
	CycleIndex int
	MemberID   string
	Amount     float64
	Status     EntryStatus
	ReversalOf string
	PostedAt   time.Time
}

// PayoutRecord is the single pooled transfer of a completed cycle.
type PayoutRecord struct {
	EntryID     string
	GroupID     string
	CycleIndex  int
	RecipientID string
	Amount      float64
	IssuedAt    time.Time
}

// LedgerEntry is the read-side union used by ledger listings, ordered by
// posting time.
type LedgerEntry struct {
	EntryType    string
	Contribution *ContributionRecord
	Payout       *PayoutRecord
	RecordedAt   time.Time
}
