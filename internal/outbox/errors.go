package outbox

import "errors"

// Sentinel errors the rest of the system matches with errors.Is, preferring
// typed sentinels over ad-hoc string checks.
var (
	// ErrDeliveryNotFound is returned when an ack/retry operation targets a
	// delivery_id that does not exist.
	ErrDeliveryNotFound = errors.New("outbox: delivery not found")

	// ErrEventNotFound is returned by read paths that look up a single event.
	ErrEventNotFound = errors.New("outbox: event not found")
)
