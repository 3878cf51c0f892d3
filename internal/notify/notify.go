// Package notify delivers best-effort webhook notifications for domain
// events: promo awards, payout settlements, enforcement actions.
// Delivery failures never fail the operation that raised the event; a
// circuit breaker keeps a dead endpoint from slowing the hot path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ninewheels/server/internal/config"
	"github.com/ninewheels/server/internal/events"
)

// Notifier posts JSON event envelopes to a configured webhook.
type Notifier struct {
	url         string
	headers     map[string]string
	client      *http.Client
	maxAttempts int
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

// New creates a notifier. An empty webhook URL disables delivery.
func New(cfg config.NotificationsConfig, log zerolog.Logger) *Notifier {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify_webhook",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval.Duration,
		Timeout:     cfg.Breaker.Timeout.Duration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
	})
	return &Notifier{
		url:         cfg.WebhookURL,
		headers:     cfg.Headers,
		client:      &http.Client{Timeout: cfg.Timeout.Duration},
		maxAttempts: cfg.MaxAttempts,
		breaker:     breaker,
		log:         log.With().Str("component", "notify").Logger(),
	}
}

// BindBus subscribes the notifier to every externally interesting topic.
func (n *Notifier) BindBus(bus *events.Bus) {
	for _, topic := range []events.Topic{
		events.TopicPromoAwarded,
		events.TopicGoldUnlocked,
		events.TopicGoldExpired,
		events.TopicPayoutPaid,
		events.TopicRiderBlocked,
		events.TopicRiderStruck,
		events.TopicRiderDeactivated,
	} {
		bus.Subscribe(topic, n.onEvent)
	}
}

// onEvent hands delivery to a goroutine; bus dispatch runs inside the
// publishing operation and must not wait on webhook retries. The
// detached context keeps a finished request from cancelling delivery.
func (n *Notifier) onEvent(ctx context.Context, evt events.Event) {
	go n.Send(context.WithoutCancel(ctx), string(evt.EventTopic()), evt)
}

type envelope struct {
	Event   string    `json:"event"`
	SentAt  time.Time `json:"sentAt"`
	Payload any       `json:"payload"`
}

// Send posts one event envelope, retrying transient failures a few
// times with jittered backoff. Errors are logged and swallowed.
func (n *Notifier) Send(ctx context.Context, event string, payload any) {
	if n.url == "" {
		return
	}

	body, err := json.Marshal(envelope{Event: event, SentAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("marshal notification")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		_, lastErr = n.breaker.Execute(func() (any, error) {
			return nil, n.post(ctx, body)
		})
		if lastErr == nil {
			return
		}
		if lastErr == gobreaker.ErrOpenState || ctx.Err() != nil {
			break
		}
		// Jittered backoff keeps retry bursts from aligning.
		backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
	n.log.Warn().Err(lastErr).Str("event", event).Msg("notification delivery failed")
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
