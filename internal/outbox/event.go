package outbox

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the booking row it describes. The Kafka topic name
// equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics published to the notification sink.
const (
	EventBookingCreated     = "booking.created.v1"
	EventBookingRescheduled = "booking.rescheduled.v1"
	EventBookingCancelled   = "booking.cancelled.v1"
	EventHostBookingsPurged = "booking.host_bookings_cancelled.v1"
)
