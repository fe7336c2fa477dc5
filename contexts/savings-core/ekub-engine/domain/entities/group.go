package entities

import (
	"strings"
	"time"
)

type GroupStatus string
type Frequency string

const (
	GroupStatusForming GroupStatus = "forming"
	GroupStatusActive  GroupStatus = "active"
	GroupStatusClosed  GroupStatus = "closed"

	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Group is one ekub circle. Members is kept in join order; RotationOrder is
// frozen at activation and is always a permutation of Members while active.
type Group struct {
	GroupID            string
	Name               string
	ContributionAmount float64
	Frequency          Frequency
	MaxMembers         int
	Members            []string
	RotationOrder      []string
	CurrentCycleIndex  int
	Status             GroupStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ActivatedAt        *time.Time
	ClosedAt           *time.Time
}

func (g Group) ValidateConfig() bool {
	name := strings.TrimSpace(g.Name)
	return name != "" &&
		len(name) <= 100 &&
		g.ContributionAmount > 0 &&
		IsSupportedFrequency(g.Frequency) &&
		g.MaxMembers >= 2
}

func (g Group) IsMember(memberID string) bool {
	for _, id := range g.Members {
		if id == memberID {
			return true
		}
	}
	return false
}

func (g Group) IsFull() bool {
	return len(g.Members) >= g.MaxMembers
}

// ActivationEligible reports whether the group has enough members to start.
// Reaching MaxMembers makes a group eligible but never activates it; starting
// is always an explicit call, which also permits a late start below capacity.
func (g Group) ActivationEligible() bool {
	return g.Status == GroupStatusForming && len(g.Members) >= 2
}

// PayoutAmount is the pooled sum one recipient receives per cycle.
func (g Group) PayoutAmount() float64 {
	return g.ContributionAmount * float64(len(g.Members))
}

func (g Group) Recipient(cycleIndex int) string {
	if cycleIndex < 0 || cycleIndex >= len(g.RotationOrder) {
		return ""
	}
	return g.RotationOrder[cycleIndex]
}

func IsSupportedFrequency(value Frequency) bool {
	switch value {
	case FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// IsPermutationOf reports whether order is an exact duplicate-free
// rearrangement of members.
func IsPermutationOf(order []string, members []string) bool {
	if len(order) != len(members) {
		return false
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	for _, id := range members {
		if !seen[id] {
			return false
		}
	}
	return true
}
