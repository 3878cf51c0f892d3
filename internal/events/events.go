package events

import (
	"time"

	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

// OrderDelivered fires after an order reaches the delivered state and
// its commission split has been frozen.
type OrderDelivered struct {
	Order       storage.Order
	Financial   storage.Financial
	DeliveredAt time.Time
}

func (OrderDelivered) EventTopic() Topic { return TopicOrderDelivered }

// OrderAccepted fires when a rider accepts a dispatch offer.
type OrderAccepted struct {
	RiderID string
	OrderID string
	At      time.Time
}

func (OrderAccepted) EventTopic() Topic { return TopicOrderAccepted }

// StreakBroken fires when a rider rejects an offer or goes offline.
type StreakBroken struct {
	RiderID string
	Reason  string
	At      time.Time
}

func (StreakBroken) EventTopic() Topic { return TopicStreakBroken }

// PromoAwarded fires after a promotion credit lands in a wallet.
type PromoAwarded struct {
	RiderID       string
	Type          storage.TransactionType
	Amount        money.Amount
	TransactionID string
	At            time.Time
}

func (PromoAwarded) EventTopic() Topic { return TopicPromoAwarded }

// GoldUnlocked fires when a rider earns gold status.
type GoldUnlocked struct {
	RiderID   string
	ExpiresAt time.Time
}

func (GoldUnlocked) EventTopic() Topic { return TopicGoldUnlocked }

// GoldExpired fires once per expired gold grant, from the expiry scan.
type GoldExpired struct {
	RiderID   string
	ExpiredAt time.Time
}

func (GoldExpired) EventTopic() Topic { return TopicGoldExpired }

// PayoutPaid fires when a weekly payout is settled.
type PayoutPaid struct {
	Payout storage.RiderPayout
}

func (PayoutPaid) EventTopic() Topic { return TopicPayoutPaid }

// RiderBlocked fires when enforcement blocks a rider for an overdue payout.
type RiderBlocked struct {
	RiderID  string
	PayoutID string
	At       time.Time
}

func (RiderBlocked) EventTopic() Topic { return TopicRiderBlocked }

// RiderStruck fires when enforcement adds a strike.
type RiderStruck struct {
	RiderID  string
	PayoutID string
	Strikes  int
	At       time.Time
}

func (RiderStruck) EventTopic() Topic { return TopicRiderStruck }

// RiderDeactivated fires when strikes reach the deactivation threshold.
type RiderDeactivated struct {
	RiderID  string
	PayoutID string
	At       time.Time
}

func (RiderDeactivated) EventTopic() Topic { return TopicRiderDeactivated }
