// Package referral implements the refer-a-friend program: code
// redemption at signup and the at-most-once reward paid to the referrer
// once the referred user completes enough trips.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/internal/wallet"
)

// Engine runs the referral program.
type Engine struct {
	store  storage.Store
	ledger *wallet.Ledger
	promos *promos.Service
	bus    *events.Bus
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a referral engine and subscribes it to order deliveries.
func New(store storage.Store, ledger *wallet.Ledger, promoSvc *promos.Service, bus *events.Bus, log zerolog.Logger) *Engine {
	e := &Engine{
		store:  store,
		ledger: ledger,
		promos: promoSvc,
		bus:    bus,
		log:    log.With().Str("component", "referral").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	bus.Subscribe(events.TopicOrderDelivered, e.onOrderDelivered)
	return e
}

// Redeem applies a referral code to a user's account. A user can be
// referred at most once, cannot refer themselves, and the code must
// belong to an existing user.
func (e *Engine) Redeem(ctx context.Context, userID, code string) (storage.Referral, error) {
	if code == "" {
		return storage.Referral{}, apperr.New(apperr.CodeInvalidInput, "referral code required")
	}

	referrer, err := e.store.GetUserByReferralCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Referral{}, apperr.New(apperr.CodeNotFound, "unknown referral code")
	}
	if err != nil {
		return storage.Referral{}, fmt.Errorf("lookup referral code: %w", err)
	}
	if referrer.ID == userID {
		return storage.Referral{}, apperr.New(apperr.CodeInvalidInput, "cannot redeem your own referral code")
	}

	// The conditional back-reference write is the gate: only one redeem
	// per user can ever pass it.
	if err := e.store.SetReferredBy(ctx, userID, referrer.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return storage.Referral{}, apperr.New(apperr.CodeConflict, "user already redeemed a referral code")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Referral{}, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return storage.Referral{}, fmt.Errorf("set referred by: %w", err)
	}

	ref := storage.Referral{
		ID:             uuid.NewString(),
		ReferrerID:     referrer.ID,
		ReferredUserID: userID,
		ReferralCode:   code,
		CreatedAt:      e.now(),
	}
	if err := e.store.CreateReferral(ctx, ref); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return storage.Referral{}, apperr.New(apperr.CodeConflict, "user already redeemed a referral code")
		}
		return storage.Referral{}, fmt.Errorf("create referral: %w", err)
	}

	e.log.Info().
		Str("referrer_id", referrer.ID).
		Str("referred_user_id", userID).
		Str("code", code).
		Msg("referral code redeemed")
	return ref, nil
}

// Stats summarizes a referrer's program standing.
type Stats struct {
	ReferralCode string             `json:"referralCode"`
	TotalEarned  string             `json:"totalEarned"`
	Referrals    []storage.Referral `json:"referrals"`
}

// StatsFor returns a user's referral code, lifetime earnings and referrals.
func (e *Engine) StatsFor(ctx context.Context, userID string) (Stats, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	refs, err := e.store.ListReferralsByReferrer(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("list referrals: %w", err)
	}
	if refs == nil {
		refs = []storage.Referral{}
	}
	return Stats{
		ReferralCode: user.ReferralCode,
		TotalEarned:  user.ReferralRewardEarned.String(),
		Referrals:    refs,
	}, nil
}

// onOrderDelivered advances referral progress for both parties of the
// order. Failures are logged, never propagated; the delivery itself has
// already committed.
func (e *Engine) onOrderDelivered(ctx context.Context, evt events.Event) {
	delivered, ok := evt.(events.OrderDelivered)
	if !ok {
		return
	}
	for _, party := range []struct {
		userID string
		role   storage.Role
	}{
		{delivered.Order.CustomerID, storage.RoleCustomer},
		{delivered.Order.RiderID, storage.RoleRider},
	} {
		if party.userID == "" {
			continue
		}
		if err := e.recordTrip(ctx, party.userID, party.role); err != nil {
			e.log.Error().Err(err).
				Str("user_id", party.userID).
				Str("order_id", delivered.Order.ID).
				Msg("referral progress failed")
		}
	}
}

// recordTrip updates a referred user's trip count and pays the referrer
// once the threshold is met.
func (e *Engine) recordTrip(ctx context.Context, userID string, role storage.Role) error {
	ref, err := e.store.GetReferralByReferredUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup referral: %w", err)
	}
	if ref.RewardPaid {
		return nil
	}

	trips, err := e.store.CountDeliveredOrders(ctx, userID, role)
	if err != nil {
		return fmt.Errorf("count delivered orders: %w", err)
	}
	if err := e.store.SetReferralTrips(ctx, ref.ID, trips); err != nil {
		return fmt.Errorf("update referral trips: %w", err)
	}

	cfg, err := e.promos.Get(ctx)
	if err != nil {
		return fmt.Errorf("load promo config: %w", err)
	}
	// A zero reward is a valid config; there is nothing to pay, and the
	// reward stays unclaimed so a later raise can still pay it.
	if !cfg.Referral.Enabled || trips < cfg.Referral.RequiredTrips || !cfg.Referral.RewardAmount.IsPositive() {
		return nil
	}

	// A deactivated referrer earns nothing; the reward stays unclaimed
	// so a later trip can pay it out after reactivation.
	referrer, err := e.store.GetUser(ctx, ref.ReferrerID)
	if err != nil {
		return fmt.Errorf("load referrer: %w", err)
	}
	if referrer.AccountDeactivated {
		return nil
	}

	return e.payReward(ctx, ref, cfg.Referral.RewardAmount)
}

// payReward credits the referrer exactly once. The claim flip is the
// idempotency gate; a failed wallet credit releases the claim so a
// retry can pay.
func (e *Engine) payReward(ctx context.Context, ref storage.Referral, amount money.Amount) error {
	claimed, err := e.store.ClaimReferralReward(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("claim referral reward: %w", err)
	}
	if !claimed {
		return nil
	}

	tx, _, err := e.ledger.Credit(ctx, ref.ReferrerID, wallet.Entry{
		Type:       storage.TxReferralReward,
		Amount:     amount,
		ReferralID: ref.ID,
	})
	if err != nil {
		if revertErr := e.store.RevertReferralClaim(ctx, ref.ID); revertErr != nil {
			e.log.Error().Err(revertErr).
				Str("referral_id", ref.ID).
				Msg("revert referral claim failed, reward stuck claimed")
		}
		return fmt.Errorf("credit referral reward: %w", err)
	}

	now := e.now()
	if err := e.store.FinalizeReferralReward(ctx, ref.ID, amount, tx.ID, now); err != nil {
		// The money already moved; finalize is bookkeeping and the claim
		// flag still prevents a double pay.
		e.log.Error().Err(err).Str("referral_id", ref.ID).Msg("finalize referral reward failed")
	}
	if err := e.store.AddReferralEarnings(ctx, ref.ReferrerID, amount); err != nil {
		e.log.Error().Err(err).Str("referrer_id", ref.ReferrerID).Msg("update referrer earnings failed")
	}

	e.bus.Publish(ctx, events.PromoAwarded{
		RiderID:       ref.ReferrerID,
		Type:          storage.TxReferralReward,
		Amount:        amount,
		TransactionID: tx.ID,
		At:            now,
	})
	e.log.Info().
		Str("referral_id", ref.ID).
		Str("referrer_id", ref.ReferrerID).
		Str("amount", amount.String()).
		Msg("referral reward paid")
	return nil
}
