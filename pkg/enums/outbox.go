package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateItem         OutboxAggregateType = "item"
	AggregateReservation  OutboxAggregateType = "reservation"
	AggregateSettlement   OutboxAggregateType = "settlement"
	AggregateConversation OutboxAggregateType = "conversation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateItem,
	AggregateReservation,
	AggregateSettlement,
	AggregateConversation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventReservationAcquired    OutboxEventType = "reservation_acquired"
	EventReservationReleased    OutboxEventType = "reservation_released"
	EventReservationExpired     OutboxEventType = "reservation_expired"
	EventSettlementRecorded     OutboxEventType = "settlement_recorded"
	EventItemSoldOut            OutboxEventType = "item_sold_out"
	EventPaymentRequestPosted   OutboxEventType = "payment_request_posted"
	EventPaymentCompletedPosted OutboxEventType = "payment_completed_posted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationAcquired,
	EventReservationReleased,
	EventReservationExpired,
	EventSettlementRecorded,
	EventItemSoldOut,
	EventPaymentRequestPosted,
	EventPaymentCompletedPosted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
