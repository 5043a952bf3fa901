package bus

import (
	"context"
	"sync"
)

// LocalBus delivers frames synchronously within the publishing process. It
// preserves a single publisher's call order, which is what keeps one
// sender's broadcasts ordered for its room.
type LocalBus struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func NewLocal() *LocalBus {
	return &LocalBus{}
}

var _ Broadcaster = (*LocalBus)(nil)

func (b *LocalBus) Publish(_ context.Context, room, exclude string, data []byte) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(room, exclude, data)
	}
	return nil
}

func (b *LocalBus) Subscribe(deliver DeliverFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = deliver
}

func (b *LocalBus) Close() error { return nil }
