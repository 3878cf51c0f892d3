// Package commission computes the platform/rider money split frozen
// onto every delivered order.
package commission

import (
	"time"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

// Splitter derives commission splits from the configured platform rate.
// Rates are carried in basis points internally so gold discounts like
// 5% off a 10% rate stay exact (950 bps, never a float).
type Splitter struct {
	rateBps int64
}

// New creates a splitter for a platform commission rate given in whole
// percent.
func New(ratePercent int64) *Splitter {
	return &Splitter{rateBps: ratePercent * 100}
}

// RateBps returns the platform commission rate in basis points.
func (s *Splitter) RateBps() int64 {
	return s.rateBps
}

// RateBpsFor returns the effective commission rate for a rider at the
// given instant, applying the gold-status discount when one is active.
// The discount reduces the rate itself: a 5% discount on a 10% rate
// yields 9.5%.
func (s *Splitter) RateBpsFor(rider storage.User, now time.Time) int64 {
	if !rider.Gold.ActiveAt(now) {
		return s.rateBps
	}
	discount := rider.Gold.DiscountPercent
	if discount < 0 {
		discount = 0
	}
	if discount > 100 {
		discount = 100
	}
	return s.rateBps * (100 - discount) / 100
}

// Split freezes the money split for a gross fare at the given rate.
// The commission is rounded half-up; the rider net is the exact
// remainder, so the parts always sum back to the gross.
func (s *Splitter) Split(gross money.Amount, rateBps int64) (storage.Financial, error) {
	if !gross.IsPositive() {
		return storage.Financial{}, apperr.New(apperr.CodeInvalidInput, "gross amount must be positive")
	}

	commissionAmt, err := gross.MulBasisPoints(rateBps)
	if err != nil {
		return storage.Financial{}, err
	}
	riderNet, err := gross.Sub(commissionAmt)
	if err != nil {
		return storage.Financial{}, err
	}

	return storage.Financial{
		GrossAmount:       gross,
		CommissionRateBps: rateBps,
		CommissionAmount:  commissionAmt,
		RiderNetAmount:    riderNet,
	}, nil
}
