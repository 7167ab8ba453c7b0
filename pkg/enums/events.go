package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const AggregateMedicationOrder OutboxAggregateType = "medication_order"

var aggregateTypes = enum("aggregate type", AggregateMedicationOrder)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(raw)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const EventOrderPaid OutboxEventType = "order_paid"

var eventTypes = enum("event type", EventOrderPaid)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) { return eventTypes.parse(raw) }

// OutboxDLQErrorReason explains why the relay gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = enum("dead letter reason", OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable)

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }

// NotificationType classifies doctor feed entries.
type NotificationType string

const (
	NotificationTypeOrderPaid          NotificationType = "order_paid"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
)

var notificationTypes = enum("notification type", NotificationTypeOrderPaid, NotificationTypeSystemAnnouncement)

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

func ParseNotificationType(raw string) (NotificationType, error) {
	return notificationTypes.parse(raw)
}
