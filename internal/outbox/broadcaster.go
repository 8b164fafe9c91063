package outbox

import (
	"context"

	"github.com/crickstack/auctioneer/internal/events"
)

// Broadcaster satisfies the engine's broadcast hook by writing each
// event into the outbox table. The relay worker handles actual delivery,
// so losing the NATS connection never drops a state change.
type Broadcaster struct {
	repo *Repository
}

func NewBroadcaster(repo *Repository) *Broadcaster {
	return &Broadcaster{repo: repo}
}

func (b *Broadcaster) Publish(ctx context.Context, ev *events.Event) error {
	return b.repo.Insert(ctx, ev)
}

// DirectBroadcaster skips the outbox and publishes straight to the
// event publisher. Used when running without Postgres durability, e.g.
// the in-memory store in development.
type DirectBroadcaster struct {
	publisher EventPublisher
}

func NewDirectBroadcaster(p EventPublisher) *DirectBroadcaster {
	return &DirectBroadcaster{publisher: p}
}

func (b *DirectBroadcaster) Publish(ctx context.Context, ev *events.Event) error {
	return b.publisher.PublishEvent(ctx, ev)
}
