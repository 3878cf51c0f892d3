package storage

import (
	"time"

	"github.com/ninewheels/server/internal/money"
)

// Role identifies what a user account is allowed to do.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
)

// ServiceType distinguishes courier jobs from passenger rides.
type ServiceType string

const (
	ServiceCourier ServiceType = "courier"
	ServiceRide    ServiceType = "ride"
)

// OrderStatus is the order state machine.
// pending -> assigned -> picked_up -> delivering -> delivered, or cancelled.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderAssigned   OrderStatus = "assigned"
	OrderPickedUp   OrderStatus = "picked_up"
	OrderDelivering OrderStatus = "delivering"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// TransactionType classifies wallet ledger entries.
type TransactionType string

const (
	TxReferralReward  TransactionType = "referral_reward"
	TxStreakBonus     TransactionType = "streak_bonus"
	TxCommissionDebit TransactionType = "commission_debit"
	TxAdjustment      TransactionType = "adjustment"
)

// PayoutStatus is the payout payment lifecycle. Transitions pending->paid exactly once.
type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// PaidBy records who settled a payout.
type PaidBy string

const (
	PaidByRider PaidBy = "rider"
	PaidByAdmin PaidBy = "admin"
	PaidByPSP   PaidBy = "psp"
)

// Strike is one enforcement mark on a rider.
type Strike struct {
	At       time.Time `bson:"at" json:"at"`
	Reason   string    `bson:"reason" json:"reason"`
	PayoutID string    `bson:"payout_id" json:"payoutId"`
}

// GoldGrant is one historical gold-status unlock.
type GoldGrant struct {
	UnlockedAt      time.Time `bson:"unlocked_at" json:"unlockedAt"`
	ExpiresAt       time.Time `bson:"expires_at" json:"expiresAt"`
	DiscountPercent int64     `bson:"discount_percent" json:"discountPercent"`
}

// GoldStatus is a rider's commission-discount standing. Activity is
// evaluated lazily against ExpiresAt; the stored document never needs a
// background write to expire.
type GoldStatus struct {
	UnlockedAt      *time.Time  `bson:"unlocked_at,omitempty" json:"unlockedAt,omitempty"`
	ExpiresAt       *time.Time  `bson:"expires_at,omitempty" json:"expiresAt,omitempty"`
	DiscountPercent int64       `bson:"discount_percent" json:"discountPercent"`
	TotalUnlocks    int         `bson:"total_unlocks" json:"totalUnlocks"`
	ExpiryNotified  bool        `bson:"expiry_notified" json:"-"`
	History         []GoldGrant `bson:"history,omitempty" json:"-"`
}

// ActiveAt reports whether the status grants a discount at the given instant.
func (g GoldStatus) ActiveAt(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.After(now)
}

// User is a platform account. Rider-only fields are zero for customers.
type User struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Email       string `bson:"email" json:"email"`
	PhoneNumber string `bson:"phone_number" json:"phoneNumber"`
	NIN         string `bson:"nin" json:"-"`
	Role        Role   `bson:"role" json:"role"`

	ReferralCode         string       `bson:"referral_code" json:"referralCode"`
	ReferredBy           string       `bson:"referred_by,omitempty" json:"referredBy,omitempty"`
	ReferralRewardEarned money.Amount `bson:"referral_reward_earned" json:"referralRewardEarned"`

	CompletedTrips int `bson:"completed_trips" json:"completedTrips"`

	CurrentStreak      int        `bson:"current_streak" json:"currentStreak"`
	LastStreakOrderID  string     `bson:"last_streak_order_id,omitempty" json:"-"`
	LastStreakBonusAt  *time.Time `bson:"last_streak_bonus_at,omitempty" json:"lastStreakBonusAt,omitempty"`
	TotalStreakBonuses int        `bson:"total_streak_bonuses" json:"totalStreakBonuses"`

	Gold GoldStatus `bson:"gold_status" json:"goldStatus"`

	PaymentBlocked       bool       `bson:"payment_blocked" json:"paymentBlocked"`
	PaymentBlockedAt     *time.Time `bson:"payment_blocked_at,omitempty" json:"paymentBlockedAt,omitempty"`
	PaymentBlockedReason string     `bson:"payment_blocked_reason,omitempty" json:"paymentBlockedReason,omitempty"`
	BlockedPayoutID      string     `bson:"blocked_payout_id,omitempty" json:"-"`

	Strikes []Strike `bson:"strikes,omitempty" json:"strikes,omitempty"`

	AccountDeactivated       bool       `bson:"account_deactivated" json:"accountDeactivated"`
	AccountDeactivatedAt     *time.Time `bson:"account_deactivated_at,omitempty" json:"accountDeactivatedAt,omitempty"`
	AccountDeactivatedReason string     `bson:"account_deactivated_reason,omitempty" json:"accountDeactivatedReason,omitempty"`

	Online    bool      `bson:"online" json:"online"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// StrikesForPayout counts strikes attributed to one payout.
func (u User) StrikesForPayout(payoutID string) int {
	n := 0
	for _, s := range u.Strikes {
		if s.PayoutID == payoutID {
			n++
		}
	}
	return n
}

// Financial is the money split frozen onto an order at delivery.
// Invariant: GrossAmount = CommissionAmount + RiderNetAmount.
type Financial struct {
	GrossAmount       money.Amount `bson:"gross_amount" json:"grossAmount"`
	CommissionRateBps int64        `bson:"commission_rate_bps" json:"commissionRateBps"`
	CommissionAmount  money.Amount `bson:"commission_amount" json:"commissionAmount"`
	RiderNetAmount    money.Amount `bson:"rider_net_amount" json:"riderNetAmount"`
}

// RatePercent renders the commission rate as a percentage for API payloads.
func (f Financial) RatePercent() float64 {
	return float64(f.CommissionRateBps) / 100
}

// Order is a courier or ride job. Exclusively owned by its creator.
type Order struct {
	ID          string       `bson:"_id" json:"id"`
	CustomerID  string       `bson:"customer_id" json:"customerId"`
	RiderID     string       `bson:"rider_id,omitempty" json:"riderId,omitempty"`
	ServiceType ServiceType  `bson:"service_type" json:"serviceType"`
	Price       money.Amount `bson:"price" json:"price"`
	Status      OrderStatus  `bson:"status" json:"status"`
	DeliveredAt *time.Time   `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	Financial   *Financial   `bson:"financial,omitempty" json:"financial,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
}

// Referral links a referrer to the user who redeemed their code.
// At most one Referral exists per referred user.
type Referral struct {
	ID             string       `bson:"_id" json:"id"`
	ReferrerID     string       `bson:"referrer_id" json:"referrerId"`
	ReferredUserID string       `bson:"referred_user_id" json:"referredUserId"`
	ReferralCode   string       `bson:"referral_code" json:"referralCode"`
	CompletedTrips int          `bson:"completed_trips" json:"completedTrips"`
	RewardAmount   money.Amount `bson:"reward_amount" json:"rewardAmount"`
	RewardPaid     bool         `bson:"reward_paid" json:"rewardPaid"`
	PaidAt         *time.Time   `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	TransactionID  string       `bson:"transaction_id,omitempty" json:"transactionId,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"createdAt"`
}

// Transaction is one append-only wallet ledger entry. Amount is signed:
// credits positive, debits negative.
type Transaction struct {
	ID          string            `bson:"id" json:"id"`
	Type        TransactionType   `bson:"type" json:"type"`
	Amount      money.Amount      `bson:"amount" json:"amount"`
	Status      string            `bson:"status" json:"status"`
	OrderID     string            `bson:"order_id,omitempty" json:"orderId,omitempty"`
	ReferralID  string            `bson:"referral_id,omitempty" json:"referralId,omitempty"`
	Metadata    map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	ProcessedAt time.Time         `bson:"processed_at" json:"processedAt"`
}

// TxStatusCompleted marks a settled ledger entry. Only completed entries
// count toward the balance.
const TxStatusCompleted = "completed"

// Wallet holds a user's balance plus the full ledger. Balance and ledger
// live in one document so every mutation is atomic at the storage level.
// Invariant: Balance equals the sum of completed transaction amounts.
type Wallet struct {
	UserID       string        `bson:"_id" json:"userId"`
	Balance      money.Amount  `bson:"balance" json:"balance"`
	Transactions []Transaction `bson:"transactions,omitempty" json:"transactions,omitempty"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt"`
}

// PayoutOrder is the immutable snapshot of a delivered order inside a payout.
type PayoutOrder struct {
	OrderID     string       `bson:"order_id" json:"orderId"`
	DeliveredAt time.Time    `bson:"delivered_at" json:"deliveredAt"`
	Gross       money.Amount `bson:"gross" json:"gross"`
	Commission  money.Amount `bson:"commission" json:"commission"`
	RiderNet    money.Amount `bson:"rider_net" json:"riderNet"`
	ServiceType ServiceType  `bson:"service_type" json:"serviceType"`
}

// PayoutTotals are always recomputed from the orders slice, never
// adjusted in place.
type PayoutTotals struct {
	Gross      money.Amount `bson:"gross" json:"gross"`
	Commission money.Amount `bson:"commission" json:"commission"`
	RiderNet   money.Amount `bson:"rider_net" json:"riderNet"`
	Count      int          `bson:"count" json:"count"`
}

// ComputeTotals folds payout order snapshots into totals.
func ComputeTotals(orders []PayoutOrder) PayoutTotals {
	var t PayoutTotals
	for _, o := range orders {
		t.Gross += o.Gross
		t.Commission += o.Commission
		t.RiderNet += o.RiderNet
		t.Count++
	}
	return t
}

// PaystackPayment records a PSP settlement reference for a payout.
type PaystackPayment struct {
	Reference string     `bson:"reference" json:"reference"`
	Status    string     `bson:"status" json:"status"`
	PaidAt    *time.Time `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
}

// RiderPayout is the weekly commission-remittance document, uniquely
// keyed by (RiderID, WeekStart). Never deleted.
type RiderPayout struct {
	ID                   string           `bson:"_id" json:"id"`
	RiderID              string           `bson:"rider_id" json:"riderId"`
	WeekStart            time.Time        `bson:"week_start" json:"weekStart"`
	WeekEnd              time.Time        `bson:"week_end" json:"weekEnd"`
	Orders               []PayoutOrder    `bson:"orders" json:"orders"`
	Totals               PayoutTotals     `bson:"totals" json:"totals"`
	Status               PayoutStatus     `bson:"status" json:"status"`
	PaidAt               *time.Time       `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	MarkedPaidBy         PaidBy           `bson:"marked_paid_by,omitempty" json:"markedPaidBy,omitempty"`
	PaymentProofURL      string           `bson:"payment_proof_url,omitempty" json:"paymentProofUrl,omitempty"`
	PaymentReferenceCode string           `bson:"payment_reference_code" json:"paymentReferenceCode"`
	Paystack             *PaystackPayment `bson:"paystack_payment,omitempty" json:"paystackPayment,omitempty"`
	RewardsUsed          money.Amount     `bson:"rewards_used" json:"rewardsUsed"`
	CreatedAt            time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `bson:"updated_at" json:"updatedAt"`
}

// HasOrder reports whether the payout already contains the order.
func (p RiderPayout) HasOrder(orderID string) bool {
	for _, o := range p.Orders {
		if o.OrderID == orderID {
			return true
		}
	}
	return false
}

// ReferralPromo configures the referral reward program.
type ReferralPromo struct {
	Enabled       bool         `bson:"enabled" json:"enabled" yaml:"enabled"`
	RewardAmount  money.Amount `bson:"reward_amount" json:"rewardAmount" yaml:"reward_amount"`
	RequiredTrips int          `bson:"required_trips" json:"requiredTrips" yaml:"required_trips"`
}

// StreakPromo configures the acceptance streak bonus.
type StreakPromo struct {
	Enabled        bool         `bson:"enabled" json:"enabled" yaml:"enabled"`
	BonusAmount    money.Amount `bson:"bonus_amount" json:"bonusAmount" yaml:"bonus_amount"`
	RequiredStreak int          `bson:"required_streak" json:"requiredStreak" yaml:"required_streak"`
}

// GoldPromo configures the gold status commission discount.
type GoldPromo struct {
	Enabled         bool  `bson:"enabled" json:"enabled" yaml:"enabled"`
	RequiredRides   int   `bson:"required_rides" json:"requiredRides" yaml:"required_rides"`
	WindowDays      int   `bson:"window_days" json:"windowDays" yaml:"window_days"`
	DurationDays    int   `bson:"duration_days" json:"durationDays" yaml:"duration_days"`
	DiscountPercent int64 `bson:"discount_percent" json:"discountPercent" yaml:"discount_percent"`
}

// PromoConfig is the process-wide promotion configuration singleton.
type PromoConfig struct {
	Referral   ReferralPromo `bson:"referral" json:"referral"`
	Streak     StreakPromo   `bson:"streak" json:"streak"`
	GoldStatus GoldPromo     `bson:"gold_status" json:"goldStatus"`
	UpdatedAt  time.Time     `bson:"updated_at" json:"updatedAt"`
	UpdatedBy  string        `bson:"updated_by" json:"updatedBy"`
	Version    int64         `bson:"version" json:"version"`
}

// DefaultPromoConfig is returned before any admin has written the singleton.
func DefaultPromoConfig() PromoConfig {
	return PromoConfig{
		Referral:   ReferralPromo{Enabled: true, RewardAmount: 100000, RequiredTrips: 5},
		Streak:     StreakPromo{Enabled: true, BonusAmount: 50000, RequiredStreak: 10},
		GoldStatus: GoldPromo{Enabled: true, RequiredRides: 20, WindowDays: 30, DurationDays: 30, DiscountPercent: 5},
	}
}

// BlockedCredentials is an immutable tombstone written at deactivation.
// Any of NIN/email/phone matching blocks re-registration.
type BlockedCredentials struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"userId"`
	NIN         string    `bson:"nin,omitempty" json:"-"`
	Email       string    `bson:"email,omitempty" json:"email,omitempty"`
	PhoneNumber string    `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	Reason      string    `bson:"reason" json:"reason"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}
