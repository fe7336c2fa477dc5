package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateGroupRequest struct {
	Name               string  `json:"name"`
	ContributionAmount float64 `json:"contribution_amount"`
	Frequency          string  `json:"frequency"`
	MaxMembers         int     `json:"max_members"`
}

type ActivateGroupRequest struct {
	RotationOrder []string `json:"rotation_order,omitempty"`
}

type GroupDTO struct {
	GroupID            string   `json:"group_id"`
	Name               string   `json:"name"`
	ContributionAmount float64  `json:"contribution_amount"`
	Frequency          string   `json:"frequency"`
	MaxMembers         int      `json:"max_members"`
	Members            []string `json:"members"`
	RotationOrder      []string `json:"rotation_order,omitempty"`
	CurrentCycleIndex  int      `json:"current_cycle_index"`
	Status             string   `json:"status"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	ActivatedAt        string   `json:"activated_at,omitempty"`
	ClosedAt           string   `json:"closed_at,omitempty"`
}

type CycleDTO struct {
	GroupID          string   `json:"group_id"`
	CycleIndex       int      `json:"cycle_index"`
	RecipientID      string   `json:"recipient_id"`
	DueDate          string   `json:"due_date"`
	Contributions    []string `json:"contributions"`
	State            string   `json:"state"`
	OpenedAt         string   `json:"opened_at"`
	CompletedAt      string   `json:"completed_at,omitempty"`
	PayoutAt         string   `json:"payout_at,omitempty"`
	OverdueFlaggedAt string   `json:"overdue_flagged_at,omitempty"`
}

type CreateGroupResponse struct {
	Group    GroupDTO `json:"group"`
	Replayed bool     `json:"replayed"`
}

type JoinGroupResponse struct {
	Group              GroupDTO `json:"group"`
	ActivationEligible bool     `json:"activation_eligible"`
}

type LeaveGroupResponse struct {
	Group GroupDTO `json:"group"`
}

type ActivateGroupResponse struct {
	Group GroupDTO `json:"group"`
	Cycle CycleDTO `json:"cycle"`
}

type ContributionDTO struct {
	EntryID    string  `json:"entry_id"`
	GroupID    string  `json:"group_id"`
	CycleIndex int     `json:"cycle_index"`
	MemberID   string  `json:"member_id"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	ReversalOf string  `json:"reversal_of,omitempty"`
	PostedAt   string  `json:"posted_at"`
}

type PayoutDTO struct {
	EntryID     string  `json:"entry_id"`
	GroupID     string  `json:"group_id"`
	CycleIndex  int     `json:"cycle_index"`
	RecipientID string  `json:"recipient_id"`
	Amount      float64 `json:"amount"`
	IssuedAt    string  `json:"issued_at"`
}

type ContributeResponse struct {
	Contribution   ContributionDTO `json:"contribution"`
	CycleCompleted bool            `json:"cycle_completed"`
	PayoutIssued   bool            `json:"payout_issued"`
	GroupClosed    bool            `json:"group_closed"`
}

type GroupStatusResponse struct {
	Group              GroupDTO  `json:"group"`
	CurrentCycle       *CycleDTO `json:"current_cycle,omitempty"`
	Overdue            bool      `json:"overdue"`
	ActivationEligible bool      `json:"activation_eligible"`
}

type LedgerEntryDTO struct {
	EntryType    string           `json:"entry_type"`
	Contribution *ContributionDTO `json:"contribution,omitempty"`
	Payout       *PayoutDTO       `json:"payout,omitempty"`
	RecordedAt   string           `json:"recorded_at"`
}

type LedgerResponse struct {
	GroupID string           `json:"group_id"`
	Entries []LedgerEntryDTO `json:"entries"`
}

type ListGroupsResponse struct {
	Items []GroupDTO `json:"items"`
}
