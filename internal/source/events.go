package source

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

// Event announces that one provider's routine set for one patient may have
// changed. Subscribed sources re-query and re-deliver their full batch.
type Event struct {
	ProviderID uuid.UUID `json:"providerId"`
	PatientID  uuid.UUID `json:"patientId"`
}

// Matches reports whether the event concerns the given subscription query.
func (e Event) Matches(q routine.Query) bool {
	return e.ProviderID == q.ProviderID && e.PatientID == q.PatientID
}

// Bus carries change events from routine mutations to subscribed sources.
// Delivery is best-effort: sources keep a poll interval as a safety net, so
// a dropped event delays re-delivery rather than losing data.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (<-chan Event, func())
}

const eventBuffer = 64

// MemoryBus is the in-process bus used when Redis is disabled and in tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]chan Event)}
}

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber; the poll safety net catches up
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, eventBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// RedisBus fans change events out across service instances via pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBus(client *redis.Client, channel string, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	out := make(chan Event, eventBuffer)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("dropping malformed change event", zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			_ = pubsub.Close()
		})
	}
}
