package commission

import (
	"testing"
	"time"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

func goldRider(discount int64, now time.Time) storage.User {
	unlocked := now.Add(-time.Hour)
	expires := now.Add(24 * time.Hour)
	return storage.User{
		ID:   "r1",
		Role: storage.RoleRider,
		Gold: storage.GoldStatus{
			UnlockedAt:      &unlocked,
			ExpiresAt:       &expires,
			DiscountPercent: discount,
		},
	}
}

func TestRateBpsFor(t *testing.T) {
	s := New(10)
	now := time.Now()

	tests := []struct {
		name  string
		rider storage.User
		want  int64
	}{
		{name: "no gold", rider: storage.User{ID: "r1"}, want: 1000},
		{name: "gold discount", rider: goldRider(5, now), want: 950},
		{name: "full discount clamped", rider: goldRider(150, now), want: 0},
		{name: "negative discount clamped", rider: goldRider(-5, now), want: 1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.RateBpsFor(tc.rider, now); got != tc.want {
				t.Fatalf("RateBpsFor = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRateBpsForExpiredGold(t *testing.T) {
	s := New(10)
	now := time.Now()
	rider := goldRider(5, now.Add(-48*time.Hour)) // expired yesterday
	if got := s.RateBpsFor(rider, now); got != 1000 {
		t.Fatalf("expired gold rate = %d, want 1000", got)
	}
}

func TestSplitPartsSumToGross(t *testing.T) {
	s := New(10)

	tests := []struct {
		name           string
		gross          int64
		rateBps        int64
		wantCommission int64
	}{
		{name: "even split", gross: 1000000, rateBps: 1000, wantCommission: 100000},
		{name: "gold discounted", gross: 1000000, rateBps: 950, wantCommission: 95000},
		{name: "rounds half up", gross: 105, rateBps: 950, wantCommission: 10},
		{name: "tiny fare", gross: 1, rateBps: 1000, wantCommission: 0},
		{name: "zero rate", gross: 1000, rateBps: 0, wantCommission: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fin, err := s.Split(money.FromKobo(tc.gross), tc.rateBps)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if fin.CommissionAmount.Kobo() != tc.wantCommission {
				t.Fatalf("commission = %d, want %d", fin.CommissionAmount.Kobo(), tc.wantCommission)
			}
			if fin.CommissionAmount.Kobo()+fin.RiderNetAmount.Kobo() != tc.gross {
				t.Fatalf("parts %d + %d != gross %d",
					fin.CommissionAmount.Kobo(), fin.RiderNetAmount.Kobo(), tc.gross)
			}
			if fin.CommissionRateBps != tc.rateBps {
				t.Fatalf("rate = %d, want %d", fin.CommissionRateBps, tc.rateBps)
			}
		})
	}
}

func TestSplitRejectsNonPositiveGross(t *testing.T) {
	s := New(10)
	for _, gross := range []int64{0, -100} {
		if _, err := s.Split(money.FromKobo(gross), 1000); apperr.CodeOf(err) != apperr.CodeInvalidInput {
			t.Fatalf("Split(%d) err = %v, want invalid_input", gross, err)
		}
	}
}
