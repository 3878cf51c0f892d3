// Package enforcement escalates unpaid weekly payouts: grace, payment
// block, strikes, and finally account deactivation with credential
// blocking. All actions are idempotent.
package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/storage"
)

// Actions applies individual enforcement state changes.
type Actions struct {
	store storage.Store
	bus   *events.Bus
	log   zerolog.Logger
	now   func() time.Time
}

// NewActions creates the enforcement action set.
func NewActions(store storage.Store, bus *events.Bus, log zerolog.Logger) *Actions {
	return &Actions{
		store: store,
		bus:   bus,
		log:   log.With().Str("component", "enforcement").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Block stops the rider from going online until the payout is settled.
// Blocking an already blocked rider is a no-op.
func (a *Actions) Block(ctx context.Context, riderID, reason, payoutID string) (bool, error) {
	now := a.now()
	blocked, err := a.store.BlockRider(ctx, riderID, reason, payoutID, now)
	if err != nil {
		return false, fmt.Errorf("block rider: %w", err)
	}
	if blocked {
		a.bus.Publish(ctx, events.RiderBlocked{RiderID: riderID, PayoutID: payoutID, At: now})
		a.log.Warn().
			Str("rider_id", riderID).
			Str("payout_id", payoutID).
			Str("reason", reason).
			Msg("rider payment blocked")
	}
	return blocked, nil
}

// Unblock clears a payment block.
func (a *Actions) Unblock(ctx context.Context, riderID string) (bool, error) {
	unblocked, err := a.store.UnblockRider(ctx, riderID)
	if err != nil {
		return false, fmt.Errorf("unblock rider: %w", err)
	}
	if unblocked {
		a.log.Info().Str("rider_id", riderID).Msg("rider payment unblocked")
	}
	return unblocked, nil
}

// Strike records one strike against the rider for an overdue payout.
// The expected current count serializes concurrent sweeps; when it does
// not match, no strike is added.
func (a *Actions) Strike(ctx context.Context, riderID, payoutID, reason string, expectedCount int) (int, bool, error) {
	now := a.now()
	strike := storage.Strike{At: now, Reason: reason, PayoutID: payoutID}
	total, added, err := a.store.AddStrike(ctx, riderID, strike, expectedCount)
	if err != nil {
		return 0, false, fmt.Errorf("add strike: %w", err)
	}
	if added {
		a.bus.Publish(ctx, events.RiderStruck{RiderID: riderID, PayoutID: payoutID, Strikes: total, At: now})
		a.log.Warn().
			Str("rider_id", riderID).
			Str("payout_id", payoutID).
			Int("strikes", total).
			Msg("strike added")
	}
	return total, added, nil
}

// Deactivate permanently closes the account and tombstones the rider's
// credentials so the same NIN, email or phone cannot re-register.
func (a *Actions) Deactivate(ctx context.Context, riderID, reason string) (bool, error) {
	now := a.now()
	deactivated, err := a.store.DeactivateRider(ctx, riderID, reason, now)
	if err != nil {
		return false, fmt.Errorf("deactivate rider: %w", err)
	}
	if !deactivated {
		return false, nil
	}

	rider, err := a.store.GetUser(ctx, riderID)
	if err != nil {
		return true, fmt.Errorf("load rider for credential block: %w", err)
	}
	creds := storage.BlockedCredentials{
		ID:          uuid.NewString(),
		UserID:      rider.ID,
		NIN:         rider.NIN,
		Email:       rider.Email,
		PhoneNumber: rider.PhoneNumber,
		Reason:      reason,
		CreatedAt:   now,
	}
	if err := a.store.InsertBlockedCredentials(ctx, creds); err != nil {
		return true, fmt.Errorf("insert blocked credentials: %w", err)
	}

	a.bus.Publish(ctx, events.RiderDeactivated{RiderID: riderID, At: now})
	a.log.Warn().
		Str("rider_id", riderID).
		Str("reason", reason).
		Msg("rider deactivated, credentials blocked")
	return true, nil
}

// Reactivate reopens a deactivated account. The BlockedCredentials
// tombstone stays; purging it is a separate admin decision.
func (a *Actions) Reactivate(ctx context.Context, riderID string, unblockPayment bool) (bool, error) {
	reactivated, err := a.store.ReactivateRider(ctx, riderID, unblockPayment)
	if err != nil {
		return false, fmt.Errorf("reactivate rider: %w", err)
	}
	if reactivated {
		a.log.Info().
			Str("rider_id", riderID).
			Bool("unblock_payment", unblockPayment).
			Msg("rider reactivated")
	}
	return reactivated, nil
}
