package promos

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

func TestGetServesDefaultsAndCaches(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := New(store, time.Minute, zerolog.Nop())
	ctx := context.Background()

	cfg, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	def := storage.DefaultPromoConfig()
	if cfg.Referral != def.Referral {
		t.Fatalf("config = %+v, want defaults", cfg.Referral)
	}

	// A store write behind the cache's back stays invisible until the
	// TTL lapses or an Update invalidates.
	def.Referral.RewardAmount = money.FromKobo(999)
	if err := store.SavePromoConfig(ctx, def); err != nil {
		t.Fatalf("save: %v", err)
	}
	cfg, err = svc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Referral.RewardAmount.Kobo() == 999 {
		t.Fatal("cache bypassed within TTL")
	}
}

func TestUpdatePersistsAndInvalidates(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := New(store, time.Hour, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Get(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	cfg := storage.DefaultPromoConfig()
	cfg.Streak.BonusAmount = money.FromKobo(75000)
	updated, err := svc.Update(ctx, cfg, "admin-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Streak.BonusAmount.Kobo() != 75000 || updated.UpdatedBy != "admin-1" {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.Version != 1 {
		t.Fatalf("version = %d, want 1", updated.Version)
	}

	// The long TTL must not hide the write.
	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Streak.BonusAmount.Kobo() != 75000 {
		t.Fatalf("read after update = %d, want 75000", got.Streak.BonusAmount.Kobo())
	}
}

func TestUpdateRejectsInvalidConfig(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := New(store, time.Minute, zerolog.Nop())
	ctx := context.Background()

	cfg := storage.DefaultPromoConfig()
	cfg.Referral.RequiredTrips = 0
	if _, err := svc.Update(ctx, cfg, "admin-1"); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}

	// Nothing was persisted.
	stored, _ := store.GetPromoConfig(ctx)
	if stored.Version != 0 {
		t.Fatalf("invalid config persisted: version %d", stored.Version)
	}
}

func TestValidate(t *testing.T) {
	valid := storage.DefaultPromoConfig()

	tests := []struct {
		name   string
		mutate func(*storage.PromoConfig)
		ok     bool
	}{
		{name: "defaults", mutate: func(*storage.PromoConfig) {}, ok: true},
		{name: "all disabled with values in range", mutate: func(c *storage.PromoConfig) {
			c.Referral.Enabled = false
			c.Streak.Enabled = false
			c.GoldStatus.Enabled = false
		}, ok: true},
		{name: "disabled section still range checked", mutate: func(c *storage.PromoConfig) {
			c.Referral.Enabled = false
			c.Referral.RequiredTrips = 0
		}},
		{name: "zero referral reward", mutate: func(c *storage.PromoConfig) {
			c.Referral.RewardAmount = 0
		}, ok: true},
		{name: "negative referral reward", mutate: func(c *storage.PromoConfig) {
			c.Referral.RewardAmount = money.FromKobo(-1)
		}},
		{name: "referral reward above cap", mutate: func(c *storage.PromoConfig) {
			c.Referral.RewardAmount = money.FromKobo(100_000*100 + 1)
		}},
		{name: "zero referral trips", mutate: func(c *storage.PromoConfig) {
			c.Referral.RequiredTrips = 0
		}},
		{name: "referral trips above cap", mutate: func(c *storage.PromoConfig) {
			c.Referral.RequiredTrips = 101
		}},
		{name: "negative streak bonus", mutate: func(c *storage.PromoConfig) {
			c.Streak.BonusAmount = money.FromKobo(-1)
		}},
		{name: "streak bonus above cap", mutate: func(c *storage.PromoConfig) {
			c.Streak.BonusAmount = money.FromKobo(100_000*100 + 1)
		}},
		{name: "zero streak threshold", mutate: func(c *storage.PromoConfig) {
			c.Streak.RequiredStreak = 0
		}},
		{name: "streak threshold above cap", mutate: func(c *storage.PromoConfig) {
			c.Streak.RequiredStreak = 101
		}},
		{name: "zero gold rides", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.RequiredRides = 0
		}},
		{name: "gold rides above cap", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.RequiredRides = 101
		}},
		{name: "zero gold window", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.WindowDays = 0
		}},
		{name: "gold window above a year", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.WindowDays = 366
		}},
		{name: "zero gold duration", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.DurationDays = 0
		}},
		{name: "gold duration above a year", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.DurationDays = 366
		}},
		{name: "discount above 100", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.DiscountPercent = 101
		}},
		{name: "negative discount", mutate: func(c *storage.PromoConfig) {
			c.GoldStatus.DiscountPercent = -1
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := Validate(cfg)
			if tc.ok && err != nil {
				t.Fatalf("Validate = %v, want nil", err)
			}
			if !tc.ok && apperr.CodeOf(err) != apperr.CodeInvalidInput {
				t.Fatalf("Validate = %v, want invalid_input", err)
			}
		})
	}
}
