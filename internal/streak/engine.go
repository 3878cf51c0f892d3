// Package streak implements the consecutive-acceptance bonus: riders
// who accept enough offers in a row without a rejection or going
// offline earn a wallet credit, and the counter starts over.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/internal/wallet"
)

// Engine tracks acceptance streaks and pays the bonus.
type Engine struct {
	store  storage.Store
	ledger *wallet.Ledger
	promos *promos.Service
	bus    *events.Bus
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a streak engine and subscribes it to acceptance and
// streak-break events.
func New(store storage.Store, ledger *wallet.Ledger, promoSvc *promos.Service, bus *events.Bus, log zerolog.Logger) *Engine {
	e := &Engine{
		store:  store,
		ledger: ledger,
		promos: promoSvc,
		bus:    bus,
		log:    log.With().Str("component", "streak").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	bus.Subscribe(events.TopicOrderAccepted, e.onOrderAccepted)
	bus.Subscribe(events.TopicStreakBroken, e.onStreakBroken)
	return e
}

func (e *Engine) onOrderAccepted(ctx context.Context, evt events.Event) {
	accepted, ok := evt.(events.OrderAccepted)
	if !ok {
		return
	}
	if err := e.RecordAcceptance(ctx, accepted.RiderID, accepted.OrderID); err != nil {
		e.log.Error().Err(err).
			Str("rider_id", accepted.RiderID).
			Str("order_id", accepted.OrderID).
			Msg("streak update failed")
	}
}

func (e *Engine) onStreakBroken(ctx context.Context, evt events.Event) {
	broken, ok := evt.(events.StreakBroken)
	if !ok {
		return
	}
	if err := e.store.ResetStreak(ctx, broken.RiderID); err != nil {
		e.log.Error().Err(err).
			Str("rider_id", broken.RiderID).
			Str("reason", broken.Reason).
			Msg("streak reset failed")
	}
}

// RecordAcceptance counts an accepted offer toward the rider's streak,
// once per order, and pays the bonus when the threshold is reached.
func (e *Engine) RecordAcceptance(ctx context.Context, riderID, orderID string) error {
	streak, bumped, err := e.store.BumpStreak(ctx, riderID, orderID)
	if err != nil {
		return fmt.Errorf("bump streak: %w", err)
	}
	if !bumped {
		return nil
	}

	cfg, err := e.promos.Get(ctx)
	if err != nil {
		return fmt.Errorf("load promo config: %w", err)
	}
	// A zero bonus is a valid config; skip the claim so the counter is
	// not consumed for nothing.
	if !cfg.Streak.Enabled || streak < cfg.Streak.RequiredStreak || !cfg.Streak.BonusAmount.IsPositive() {
		return nil
	}

	return e.payBonus(ctx, riderID, orderID, cfg.Streak)
}

// payBonus credits the streak bonus at most once per completed streak.
// The claim atomically resets the counter, so a rider cannot bank the
// same streak twice.
func (e *Engine) payBonus(ctx context.Context, riderID, orderID string, promo storage.StreakPromo) error {
	now := e.now()
	claimed, err := e.store.ClaimStreakBonus(ctx, riderID, promo.RequiredStreak, now)
	if err != nil {
		return fmt.Errorf("claim streak bonus: %w", err)
	}
	if !claimed {
		return nil
	}

	tx, _, err := e.ledger.Credit(ctx, riderID, wallet.Entry{
		Type:    storage.TxStreakBonus,
		Amount:  promo.BonusAmount,
		OrderID: orderID,
	})
	if err != nil {
		// The counter already reset; the credit is retried by ops, not
		// by re-running the claim.
		return fmt.Errorf("credit streak bonus: %w", err)
	}

	e.bus.Publish(ctx, events.PromoAwarded{
		RiderID:       riderID,
		Type:          storage.TxStreakBonus,
		Amount:        promo.BonusAmount,
		TransactionID: tx.ID,
		At:            now,
	})
	e.log.Info().
		Str("rider_id", riderID).
		Str("amount", promo.BonusAmount.String()).
		Int("required_streak", promo.RequiredStreak).
		Msg("streak bonus paid")
	return nil
}
