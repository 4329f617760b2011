package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AggregateType identifies the aggregate an outbox event belongs to.
type AggregateType string

const (
	AggregateConversion AggregateType = "conversion"
	AggregateCommission AggregateType = "commission"
	AggregatePolicy     AggregateType = "policy"
)

// EventType identifies the kind of outbox event.
type EventType string

const (
	EventConversionCreated   EventType = "created"
	EventConversionConfirmed EventType = "confirmed"
	EventConversionCancelled EventType = "cancelled"
	EventConversionRefunded  EventType = "refunded"

	EventCommissionCreated   EventType = "commission_created"
	EventCommissionConfirmed EventType = "commission_confirmed"
	EventCommissionCancelled EventType = "commission_cancelled"
	EventCommissionAdjusted  EventType = "commission_adjusted"
	EventCommissionPaid      EventType = "commission_paid"

	EventPolicyUpserted EventType = "upserted"
)

// OutboxDraft is an event staged in the transactional outbox. It is
// inserted in the same database transaction as the state change it
// describes and published to Kafka by the outbox poller.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	PartitionKey  string          `json:"partition_key"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxRow is a persisted outbox event with its sequence id, as read
// back by the poller.
type OutboxRow struct {
	SeqID int64
	OutboxDraft
}

// NewConversionEvent creates a conversion lifecycle event. Conversions
// partition by partner when attributed, by order id otherwise.
func NewConversionEvent(conv *Conversion, eventType EventType) OutboxDraft {
	payload, _ := json.Marshal(conv)
	partition := conv.OrderID
	if conv.PartnerID != nil {
		partition = conv.PartnerID.String()
	}
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateConversion,
		AggregateID:   conv.ID.String(),
		EventType:     eventType,
		PartitionKey:  partition,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewCommissionEvent creates a commission lifecycle event, partitioned
// by partner so a partner's commission stream stays ordered.
func NewCommissionEvent(comm *Commission, eventType EventType) OutboxDraft {
	payload, _ := json.Marshal(comm)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateCommission,
		AggregateID:   comm.ID.String(),
		EventType:     eventType,
		PartitionKey:  comm.PartnerID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewPolicyUpsertedEvent creates a policy change event.
func NewPolicyUpsertedEvent(policy *CommissionPolicy) OutboxDraft {
	payload, _ := json.Marshal(policy)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregatePolicy,
		AggregateID:   policy.ID.String(),
		EventType:     EventPolicyUpserted,
		PartitionKey:  policy.ID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
