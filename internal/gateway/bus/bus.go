// Package bus abstracts room fan-out behind a publish/subscribe surface so
// the gateway's broadcast logic stays the same whether events reach only
// this process or every instance behind a shared redis.
package bus

import "context"

// DeliverFunc hands a published frame to the local delivery layer. exclude
// names one connection id that must not receive the frame (typically the
// sender); it is empty when everyone in the room should get it.
type DeliverFunc func(room, exclude string, data []byte)

// Broadcaster publishes frames to a room and feeds subscribed frames back
// through a DeliverFunc.
type Broadcaster interface {
	Publish(ctx context.Context, room, exclude string, data []byte) error
	Subscribe(deliver DeliverFunc)
	Close() error
}
