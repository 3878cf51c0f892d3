// Package storage defines the persistence layer for the earnings core:
// the entity types, the Store interface, and its MongoDB and in-memory
// implementations.
//
// Every Store method is an atomic persistence operation. Multi-step
// flows (promo awards, payout appends) are built from conditional
// single-document updates so re-invocation is always a no-op, never a
// double write.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ninewheels/server/internal/money"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a unique constraint or state precondition fails
// (already paid, already referred, duplicate email, and so on).
var ErrConflict = errors.New("storage: conflict")

// ErrInsufficientFunds is returned when a debit would take a wallet below zero.
var ErrInsufficientFunds = errors.New("storage: insufficient funds")

// ErrDuplicateReferenceCode is returned when a freshly generated payout
// reference code collides; callers regenerate and retry.
var ErrDuplicateReferenceCode = errors.New("storage: duplicate payment reference code")

// PayoutFilter narrows ListPayouts.
type PayoutFilter struct {
	RiderID   string
	WeekStart *time.Time
	Status    PayoutStatus
	Limit     int
}

// OrderFilter narrows ListDeliveredOrders.
type OrderFilter struct {
	RiderID    string
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
}

// Store captures the persistence requirements of the earnings core.
//
// Conditional mutators return a bool reporting whether the write
// happened; false means the precondition did not hold (already done,
// already claimed) and the caller should treat the call as a no-op.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByReferralCode(ctx context.Context, code string) (User, error)
	// SetReferredBy records the referral back-reference; fails with
	// ErrConflict when the user is already referred.
	SetReferredBy(ctx context.Context, userID, referrerID string) error
	// SetRiderOnline is the presence hook; blocked or deactivated riders
	// cannot go online.
	SetRiderOnline(ctx context.Context, riderID string, online bool) error

	// Streak state
	// BumpStreak increments the consecutive-accept counter once per
	// order; re-processing the same order returns the current streak
	// with bumped=false.
	BumpStreak(ctx context.Context, riderID, orderID string) (streak int, bumped bool, err error)
	ResetStreak(ctx context.Context, riderID string) error
	// ClaimStreakBonus atomically resets the counter and stamps the
	// bonus when the streak has reached threshold.
	ClaimStreakBonus(ctx context.Context, riderID string, threshold int, at time.Time) (bool, error)

	// Gold status
	// GrantGold installs a new grant unless an unexpired one is active at grant.UnlockedAt.
	GrantGold(ctx context.Context, riderID string, grant GoldGrant) (bool, error)
	// MarkGoldExpiryNotified flips the one-shot notification flag for an
	// expired status.
	MarkGoldExpiryNotified(ctx context.Context, riderID string, now time.Time) (bool, error)
	// ListGoldExpiryCandidates pages riders whose gold status expired but
	// were not yet notified.
	ListGoldExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]User, error)
	CountDeliveredRidesInRange(ctx context.Context, riderID string, from, to time.Time) (int, error)

	// Enforcement
	BlockRider(ctx context.Context, riderID, reason, payoutID string, at time.Time) (bool, error)
	UnblockRider(ctx context.Context, riderID string) (bool, error)
	// AddStrike appends a strike only when the rider currently has
	// ifStrikeCount strikes, serializing concurrent sweeps.
	AddStrike(ctx context.Context, riderID string, strike Strike, ifStrikeCount int) (total int, added bool, err error)
	DeactivateRider(ctx context.Context, riderID, reason string, at time.Time) (bool, error)
	ReactivateRider(ctx context.Context, riderID string, unblockPayment bool) (bool, error)
	// InsertBlockedCredentials is an idempotent upsert keyed by user id.
	InsertBlockedCredentials(ctx context.Context, creds BlockedCredentials) error
	IsCredentialBlocked(ctx context.Context, nin, email, phone string) (bool, error)

	// Orders
	CreateOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// UpdateOrderStatus performs a guarded state transition.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to OrderStatus, riderID string) error
	// SetOrderFinancial freezes the split once; a second call is a no-op.
	SetOrderFinancial(ctx context.Context, orderID string, fin Financial, deliveredAt time.Time) (bool, error)
	// CountDeliveredOrders is role-aware: customers count their customer
	// orders, riders their rider orders.
	CountDeliveredOrders(ctx context.Context, userID string, role Role) (int, error)
	ListDeliveredOrders(ctx context.Context, filter OrderFilter) ([]Order, error)

	// Wallet ledger. Credit and debit append the transaction and adjust
	// the balance in one atomic write; debit fails with
	// ErrInsufficientFunds when the balance cannot cover it.
	GetWallet(ctx context.Context, userID string) (Wallet, error)
	CreditWallet(ctx context.Context, userID string, tx Transaction) (Wallet, error)
	DebitWallet(ctx context.Context, userID string, tx Transaction) (Wallet, error)

	// Referrals
	// CreateReferral fails with ErrConflict when the referred user
	// already has a referral.
	CreateReferral(ctx context.Context, ref Referral) error
	GetReferralByReferredUser(ctx context.Context, referredUserID string) (Referral, error)
	SetReferralTrips(ctx context.Context, referralID string, trips int) error
	// ClaimReferralReward flips rewardPaid false->true; exactly one
	// caller ever observes claimed=true.
	ClaimReferralReward(ctx context.Context, referralID string) (bool, error)
	FinalizeReferralReward(ctx context.Context, referralID string, amount money.Amount, txID string, at time.Time) error
	// RevertReferralClaim releases a claim whose wallet credit failed.
	RevertReferralClaim(ctx context.Context, referralID string) error
	AddReferralEarnings(ctx context.Context, referrerID string, amount money.Amount) error
	ListReferralsByReferrer(ctx context.Context, referrerID string) ([]Referral, error)

	// Payouts
	// EnsurePayout creates the weekly document if absent; collisions on
	// the reference code surface as ErrDuplicateReferenceCode.
	EnsurePayout(ctx context.Context, riderID string, weekStart, weekEnd time.Time, refCode string) (RiderPayout, error)
	// AppendPayoutOrder adds a snapshot unless the order is already
	// present, then recomputes totals from scratch over orders[].
	AppendPayoutOrder(ctx context.Context, riderID string, weekStart time.Time, snap PayoutOrder) (RiderPayout, bool, error)
	GetPayout(ctx context.Context, id string) (RiderPayout, error)
	GetPayoutByRiderWeek(ctx context.Context, riderID string, weekStart time.Time) (RiderPayout, error)
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]RiderPayout, error)
	// ListPendingPayoutsEndedBefore pages pending payouts whose week has
	// closed, ordered by id, for the enforcement sweep.
	ListPendingPayoutsEndedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]RiderPayout, error)
	// MarkPayoutPaid transitions pending->paid exactly once; a repeat
	// call fails with ErrConflict.
	MarkPayoutPaid(ctx context.Context, payoutID string, by PaidBy, proofURL, paystackRef string, at time.Time) (RiderPayout, error)

	// Promo config singleton
	GetPromoConfig(ctx context.Context) (PromoConfig, error)
	SavePromoConfig(ctx context.Context, cfg PromoConfig) error

	Ping(ctx context.Context) error
	Close() error
}

// Config holds storage backend configuration.
type Config struct {
	Backend         string // "memory" or "mongodb"
	MongoDBURL      string
	MongoDBDatabase string
	QueryTimeout    time.Duration
}

// New creates a Store instance based on the provided configuration.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "mongodb":
		if cfg.MongoDBURL == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_url")
		}
		if cfg.MongoDBDatabase == "" {
			return nil, fmt.Errorf("mongodb backend requires mongodb_database")
		}
		return NewMongoStore(cfg.MongoDBURL, cfg.MongoDBDatabase, cfg.QueryTimeout)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
