package payouts

import (
	"time"

	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

// WeekRange returns the payout week containing t: Sunday 00:00 local
// through the next Sunday 00:00 local, end exclusive. The platform
// timezone decides where the week boundary falls.
func WeekRange(t time.Time, loc *time.Location) (start, end time.Time) {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start = midnight.AddDate(0, 0, -int(midnight.Weekday()))
	end = start.AddDate(0, 0, 7)
	return start, end
}

// WindowFlags are the derived payment-window states of a payout. They
// are a pure function of the payout's week end, its commission total,
// its status and the current time, so any caller can recompute them.
type WindowFlags struct {
	PaymentDueDate  time.Time `json:"paymentDueDate"`
	GraceDeadline   time.Time `json:"graceDeadline"`
	IsPaymentDue    bool      `json:"isPaymentDue"`
	IsInGracePeriod bool      `json:"isInGracePeriod"`
	IsOverdue       bool      `json:"isOverdue"`
}

// ComputeWindow derives the window flags for a payout. The due date is
// the last second of the payout week; the grace deadline extends it by
// the grace period. Paid payouts and zero-commission weeks are never
// due.
func ComputeWindow(weekEnd time.Time, commission money.Amount, now time.Time, status storage.PayoutStatus, grace time.Duration) WindowFlags {
	f := WindowFlags{
		PaymentDueDate: weekEnd.Add(-time.Second),
		GraceDeadline:  weekEnd.Add(grace - time.Second),
	}
	if status != storage.PayoutPending || !commission.IsPositive() {
		return f
	}
	f.IsPaymentDue = !now.Before(f.PaymentDueDate)
	f.IsInGracePeriod = f.IsPaymentDue && !now.After(f.GraceDeadline)
	f.IsOverdue = f.IsPaymentDue && now.After(f.GraceDeadline)
	return f
}
