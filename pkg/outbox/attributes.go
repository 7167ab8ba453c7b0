package outbox

// Pub/Sub attribute names stamped on every relayed outbox message. Consumers
// filter on these without decoding the payload.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrSchemaVersion = "schema_version"
	AttrOccurredAt    = "occurred_at"

	// order_paid
	AttrOrderID         = "order_id"
	AttrDoctorID        = "doctor_id"
	AttrStripeSessionID = "stripe_session_id"
	AttrTotalAmount     = "total_amount"
	AttrItemCount       = "item_count"
)
