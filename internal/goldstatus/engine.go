// Package goldstatus implements the gold rider tier: a commission
// discount unlocked by delivering enough rides inside a rolling window,
// held for a fixed duration, and allowed to lapse silently with a
// one-shot expiry notification.
package goldstatus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/storage"
)

// Engine evaluates gold status unlocks and runs the expiry scan.
type Engine struct {
	store  storage.Store
	promos *promos.Service
	bus    *events.Bus
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a gold status engine and subscribes it to ride deliveries.
func New(store storage.Store, promoSvc *promos.Service, bus *events.Bus, log zerolog.Logger) *Engine {
	e := &Engine{
		store:  store,
		promos: promoSvc,
		bus:    bus,
		log:    log.With().Str("component", "goldstatus").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	bus.Subscribe(events.TopicOrderDelivered, e.onOrderDelivered)
	return e
}

func (e *Engine) onOrderDelivered(ctx context.Context, evt events.Event) {
	delivered, ok := evt.(events.OrderDelivered)
	if !ok {
		return
	}
	// Only passenger rides count toward gold status.
	if delivered.Order.ServiceType != storage.ServiceRide || delivered.Order.RiderID == "" {
		return
	}
	if err := e.Evaluate(ctx, delivered.Order.RiderID); err != nil {
		e.log.Error().Err(err).
			Str("rider_id", delivered.Order.RiderID).
			Str("order_id", delivered.Order.ID).
			Msg("gold status evaluation failed")
	}
}

// Evaluate unlocks gold status for the rider when the rolling-window
// ride count meets the threshold. Riders holding an active grant are
// skipped; the clock restarts only after expiry.
func (e *Engine) Evaluate(ctx context.Context, riderID string) error {
	cfg, err := e.promos.Get(ctx)
	if err != nil {
		return fmt.Errorf("load promo config: %w", err)
	}
	if !cfg.GoldStatus.Enabled {
		return nil
	}

	now := e.now()
	rider, err := e.store.GetUser(ctx, riderID)
	if err != nil {
		return err
	}
	if rider.Gold.ActiveAt(now) {
		return nil
	}

	from := now.AddDate(0, 0, -cfg.GoldStatus.WindowDays)
	rides, err := e.store.CountDeliveredRidesInRange(ctx, riderID, from, now)
	if err != nil {
		return fmt.Errorf("count rides in window: %w", err)
	}
	if rides < cfg.GoldStatus.RequiredRides {
		return nil
	}

	grant := storage.GoldGrant{
		UnlockedAt:      now,
		ExpiresAt:       now.AddDate(0, 0, cfg.GoldStatus.DurationDays),
		DiscountPercent: cfg.GoldStatus.DiscountPercent,
	}
	granted, err := e.store.GrantGold(ctx, riderID, grant)
	if err != nil {
		return fmt.Errorf("grant gold status: %w", err)
	}
	if !granted {
		return nil
	}

	e.bus.Publish(ctx, events.GoldUnlocked{RiderID: riderID, ExpiresAt: grant.ExpiresAt})
	e.log.Info().
		Str("rider_id", riderID).
		Int("rides_in_window", rides).
		Time("expires_at", grant.ExpiresAt).
		Msg("gold status unlocked")
	return nil
}

// Status is a rider's gold standing and progress toward the next unlock.
type Status struct {
	Active          bool       `json:"active"`
	DiscountPercent int64      `json:"discountPercent,omitempty"`
	UnlockedAt      *time.Time `json:"unlockedAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	RidesInWindow   int        `json:"ridesInWindow"`
	RequiredRides   int        `json:"requiredRides"`
	WindowDays      int        `json:"windowDays"`
	TotalUnlocks    int        `json:"totalUnlocks"`
}

// StatusFor reports a rider's current standing.
func (e *Engine) StatusFor(ctx context.Context, riderID string) (Status, error) {
	cfg, err := e.promos.Get(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load promo config: %w", err)
	}
	rider, err := e.store.GetUser(ctx, riderID)
	if err != nil {
		return Status{}, err
	}

	now := e.now()
	from := now.AddDate(0, 0, -cfg.GoldStatus.WindowDays)
	rides, err := e.store.CountDeliveredRidesInRange(ctx, riderID, from, now)
	if err != nil {
		return Status{}, fmt.Errorf("count rides in window: %w", err)
	}

	st := Status{
		RidesInWindow: rides,
		RequiredRides: cfg.GoldStatus.RequiredRides,
		WindowDays:    cfg.GoldStatus.WindowDays,
		TotalUnlocks:  rider.Gold.TotalUnlocks,
	}
	if rider.Gold.ActiveAt(now) {
		st.Active = true
		st.DiscountPercent = rider.Gold.DiscountPercent
		st.UnlockedAt = rider.Gold.UnlockedAt
		st.ExpiresAt = rider.Gold.ExpiresAt
	}
	return st, nil
}

// ScanExpired pages riders whose grant lapsed without a notification,
// marks each exactly once, and publishes the expiry event. Returns the
// number of riders notified.
func (e *Engine) ScanExpired(ctx context.Context, limit int) (int, error) {
	now := e.now()
	candidates, err := e.store.ListGoldExpiryCandidates(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expiry candidates: %w", err)
	}

	notified := 0
	for _, rider := range candidates {
		if err := ctx.Err(); err != nil {
			return notified, err
		}
		marked, err := e.store.MarkGoldExpiryNotified(ctx, rider.ID, now)
		if err != nil {
			e.log.Error().Err(err).Str("rider_id", rider.ID).Msg("mark gold expiry failed")
			continue
		}
		if !marked {
			continue
		}
		expiredAt := now
		if rider.Gold.ExpiresAt != nil {
			expiredAt = *rider.Gold.ExpiresAt
		}
		e.bus.Publish(ctx, events.GoldExpired{RiderID: rider.ID, ExpiredAt: expiredAt})
		notified++
	}
	if notified > 0 {
		e.log.Info().Int("notified", notified).Msg("gold expiry scan complete")
	}
	return notified, nil
}

// RunExpiryScan ticks the expiry scan until the context is cancelled.
func (e *Engine) RunExpiryScan(ctx context.Context, interval time.Duration, limit int) {
	e.log.Info().Dur("interval", interval).Msg("gold expiry scan started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("gold expiry scan stopped")
			return
		case <-ticker.C:
			if _, err := e.ScanExpired(ctx, limit); err != nil && ctx.Err() == nil {
				e.log.Error().Err(err).Msg("gold expiry scan failed")
			}
		}
	}
}
