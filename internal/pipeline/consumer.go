package pipeline

import "context"

// Delivery is one raw payload handed over by the input transport,
// identified by the transport's own delivery ID.
type Delivery struct {
	ID      string
	Payload []byte
}

// Consumer abstracts the at-least-once input transport. Fetch blocks
// until deliveries are available or the context ends. A delivery that is
// neither acknowledged nor parked is redelivered by the transport.
type Consumer interface {
	Fetch(ctx context.Context, max int) ([]Delivery, error)
	Ack(ctx context.Context, ids ...string) error
	// Park moves the payload to the dead-letter path and acknowledges
	// the source delivery so it is not fetched again.
	Park(ctx context.Context, d Delivery, reason string) error
	Close() error
}
