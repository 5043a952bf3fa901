package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "collab.room."

// frame is the wire format carried through redis pub/sub.
type frame struct {
	Exclude string          `json:"exclude,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// RedisBus fans frames out through redis pub/sub so rooms span every gateway
// instance subscribed to the same redis. Connection ids are globally unique,
// so the exclude marker only suppresses delivery on the instance actually
// holding that connection.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger

	mu      sync.RWMutex
	deliver DeliverFunc

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedis(client *redis.Client, logger *slog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		client: client,
		logger: logger.With(slog.String("component", "redis_bus")),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.run(ctx)
	return b
}

var _ Broadcaster = (*RedisBus)(nil)

func (b *RedisBus) Publish(ctx context.Context, room, exclude string, data []byte) error {
	payload, err := json.Marshal(frame{Exclude: exclude, Data: data})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+room, payload).Err()
}

func (b *RedisBus) Subscribe(deliver DeliverFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver = deliver
}

func (b *RedisBus) run(ctx context.Context) {
	defer close(b.done)

	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			room := strings.TrimPrefix(msg.Channel, channelPrefix)

			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				b.logger.Warn("Dropping malformed bus frame", slog.Any("error", err))
				continue
			}

			b.mu.RLock()
			deliver := b.deliver
			b.mu.RUnlock()
			if deliver != nil {
				deliver(room, f.Exclude, f.Data)
			}
		}
	}
}

func (b *RedisBus) Close() error {
	b.cancel()
	<-b.done
	return nil
}
