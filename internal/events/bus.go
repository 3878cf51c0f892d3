// Package events provides the in-process event bus that connects the
// order lifecycle to the promotion engines and payout aggregation.
// Dispatch is synchronous: Publish returns after every subscriber has
// run, so callers observe promo and payout side effects immediately.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Topic identifies an event stream on the bus.
type Topic string

const (
	TopicOrderDelivered   Topic = "order.delivered"
	TopicOrderAccepted    Topic = "order.accepted"
	TopicStreakBroken     Topic = "streak.broken"
	TopicPromoAwarded     Topic = "promo.awarded"
	TopicGoldUnlocked     Topic = "gold.unlocked"
	TopicGoldExpired      Topic = "gold.expired"
	TopicPayoutPaid       Topic = "payout.paid"
	TopicRiderBlocked     Topic = "rider.blocked"
	TopicRiderStruck      Topic = "rider.struck"
	TopicRiderDeactivated Topic = "rider.deactivated"
)

// Event is anything that can be published on the bus.
type Event interface {
	EventTopic() Topic
}

// Handler consumes one event. Handlers must not block for long; they run
// inline on the publisher's goroutine.
type Handler func(ctx context.Context, evt Event)

// Bus is a synchronous in-process pub/sub fanout. Subscribers for a
// topic run in registration order; a panicking subscriber is recovered
// and logged so it cannot take down the publisher or skip later
// subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	log      zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a topic. Subscribe is intended for
// startup wiring; it is safe but not expected to race with Publish.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers the event to every subscriber of its topic, in
// order, on the calling goroutine.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := b.handlers[evt.EventTopic()]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, evt, h)
	}
}

func (b *Bus) dispatch(ctx context.Context, evt Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("topic", string(evt.EventTopic())).
				Interface("panic", r).
				Msg("event subscriber panicked")
		}
	}()
	h(ctx, evt)
}
