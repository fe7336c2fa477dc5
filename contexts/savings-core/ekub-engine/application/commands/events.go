package commands

import (
	"encoding/json"
	"time"

	"ekub/contexts/savings-core/ekub-engine/ports"
)

const (
	EventGroupCreated       = "ekub.group_created"
	EventMemberJoined       = "ekub.member_joined"
	EventMemberLeft         = "ekub.member_left"
	EventGroupActivated     = "ekub.group_activated"
	EventContributionPosted = "ekub.contribution_posted"
	EventCycleCompleted     = "ekub.cycle_completed"
	EventPayoutIssued       = "ekub.payout_issued"
	EventGroupClosed        = "ekub.group_closed"
	EventCycleOverdue       = "ekub.cycle_overdue"
	EventPaymentDue         = "ekub.payment_due"
)

func newGroupEnvelope(
	eventID string,
	eventType string,
	groupID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "ekub-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "group_id",
		PartitionKey:     groupID,
		Data:             payload,
	}, nil
}
