package payouts

import (
	"testing"
	"time"

	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

func lagos(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestWeekRange(t *testing.T) {
	loc := lagos(t)

	tests := []struct {
		name      string
		at        time.Time
		wantStart time.Time
	}{
		{
			name:      "midweek",
			at:        time.Date(2025, 1, 8, 15, 30, 0, 0, loc), // Wednesday
			wantStart: time.Date(2025, 1, 5, 0, 0, 0, 0, loc),
		},
		{
			name:      "sunday midnight starts new week",
			at:        time.Date(2025, 1, 5, 0, 0, 0, 0, loc),
			wantStart: time.Date(2025, 1, 5, 0, 0, 0, 0, loc),
		},
		{
			name:      "one second into sunday",
			at:        time.Date(2025, 1, 12, 0, 0, 1, 0, loc),
			wantStart: time.Date(2025, 1, 12, 0, 0, 0, 0, loc),
		},
		{
			name:      "saturday just before midnight",
			at:        time.Date(2025, 1, 11, 23, 59, 59, 0, loc),
			wantStart: time.Date(2025, 1, 5, 0, 0, 0, 0, loc),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := WeekRange(tc.at, loc)
			if !start.Equal(tc.wantStart) {
				t.Fatalf("start = %v, want %v", start, tc.wantStart)
			}
			if !end.Equal(tc.wantStart.AddDate(0, 0, 7)) {
				t.Fatalf("end = %v, want %v", end, tc.wantStart.AddDate(0, 0, 7))
			}
		})
	}
}

func TestWeekRangeTimezoneBoundary(t *testing.T) {
	loc := lagos(t)

	// 23:30 UTC Saturday is already Sunday 00:30 in Lagos (UTC+1).
	at := time.Date(2025, 1, 11, 23, 30, 0, 0, time.UTC)
	start, _ := WeekRange(at, loc)
	want := time.Date(2025, 1, 12, 0, 0, 0, 0, loc)
	if !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
}

func TestComputeWindow(t *testing.T) {
	loc := lagos(t)
	weekEnd := time.Date(2025, 1, 12, 0, 0, 0, 0, loc)
	grace := 24 * time.Hour
	commission := money.FromKobo(95000)

	dueDate := weekEnd.Add(-time.Second)
	deadline := weekEnd.Add(grace - time.Second)

	tests := []struct {
		name       string
		commission money.Amount
		now        time.Time
		status     storage.PayoutStatus
		wantDue    bool
		wantGrace  bool
		wantOver   bool
	}{
		{
			name:       "before week end",
			commission: commission,
			now:        weekEnd.Add(-2 * time.Hour),
			status:     storage.PayoutPending,
		},
		{
			name:       "at due date",
			commission: commission,
			now:        dueDate,
			status:     storage.PayoutPending,
			wantDue:    true,
			wantGrace:  true,
		},
		{
			name:       "inside grace",
			commission: commission,
			now:        weekEnd.Add(12 * time.Hour),
			status:     storage.PayoutPending,
			wantDue:    true,
			wantGrace:  true,
		},
		{
			name:       "at grace deadline",
			commission: commission,
			now:        deadline,
			status:     storage.PayoutPending,
			wantDue:    true,
			wantGrace:  true,
		},
		{
			name:       "past grace deadline",
			commission: commission,
			now:        deadline.Add(time.Second),
			status:     storage.PayoutPending,
			wantDue:    true,
			wantOver:   true,
		},
		{
			name:       "paid payout never due",
			commission: commission,
			now:        deadline.Add(48 * time.Hour),
			status:     storage.PayoutPaid,
		},
		{
			name:       "zero commission never due",
			commission: money.FromKobo(0),
			now:        deadline.Add(48 * time.Hour),
			status:     storage.PayoutPending,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := ComputeWindow(weekEnd, tc.commission, tc.now, tc.status, grace)
			if !f.PaymentDueDate.Equal(dueDate) {
				t.Fatalf("PaymentDueDate = %v, want %v", f.PaymentDueDate, dueDate)
			}
			if !f.GraceDeadline.Equal(deadline) {
				t.Fatalf("GraceDeadline = %v, want %v", f.GraceDeadline, deadline)
			}
			if f.IsPaymentDue != tc.wantDue || f.IsInGracePeriod != tc.wantGrace || f.IsOverdue != tc.wantOver {
				t.Fatalf("flags = due:%v grace:%v overdue:%v, want due:%v grace:%v overdue:%v",
					f.IsPaymentDue, f.IsInGracePeriod, f.IsOverdue, tc.wantDue, tc.wantGrace, tc.wantOver)
			}
		})
	}
}

func TestComputeWindowGraceNeverOverlapsOverdue(t *testing.T) {
	loc := lagos(t)
	weekEnd := time.Date(2025, 1, 12, 0, 0, 0, 0, loc)
	commission := money.FromKobo(1)

	for hours := -2; hours <= 50; hours++ {
		now := weekEnd.Add(time.Duration(hours) * time.Hour)
		f := ComputeWindow(weekEnd, commission, now, storage.PayoutPending, 24*time.Hour)
		if f.IsInGracePeriod && f.IsOverdue {
			t.Fatalf("grace and overdue both set at %v", now)
		}
		if (f.IsInGracePeriod || f.IsOverdue) && !f.IsPaymentDue {
			t.Fatalf("grace/overdue without due at %v", now)
		}
	}
}
