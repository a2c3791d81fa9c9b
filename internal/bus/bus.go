// Package bus is the pub/sub fabric between gateways, session workers and
// the supervisor. Topics are dot-separated; a subscription pattern may use
// "*" as a single-segment wildcard, which every backend maps to its native
// wildcard.
//
// Delivery is fire-and-forget: the bus does not persist messages and a
// subscriber that falls too far behind loses frames. The protocol layers
// on top recover from loss through action results and sync snapshots.
package bus

import "context"

// Message is one frame received from the bus. Topic is the concrete topic
// the frame was published on, never the subscription pattern.
type Message struct {
	Topic string
	Data  []byte
}

// Subscription is a live subscription feeding messages into a channel. The
// channel closes after Unsubscribe or when the bus shuts down.
type Subscription interface {
	Messages() <-chan Message
	Unsubscribe() error
}

// Bus publishes frames and opens subscriptions. Implementations must be
// safe for concurrent use.
type Bus interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(ctx context.Context, pattern string) (Subscription, error)
	Close() error
}
