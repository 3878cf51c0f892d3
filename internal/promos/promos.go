// Package promos manages the promotion configuration singleton: the
// referral, streak and gold-status knobs the engines read on every hot
// path. Reads go through a short-TTL in-memory cache; writes validate,
// persist and invalidate.
package promos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/cacheutil"
	"github.com/ninewheels/server/internal/storage"
)

// Service serves and updates the promotion configuration.
type Service struct {
	store storage.Store
	ttl   time.Duration
	log   zerolog.Logger

	mu     sync.RWMutex
	cached *cacheutil.CachedValue[storage.PromoConfig]
}

// New creates a promo config service with the given cache TTL.
func New(store storage.Store, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "promos").Logger(),
	}
}

// Get returns the current promotion configuration, serving from cache
// when fresh. Engines call this on every order event, so staleness is
// bounded by the TTL rather than by a per-call database read.
func (s *Service) Get(ctx context.Context) (storage.PromoConfig, error) {
	return cacheutil.ReadThrough(
		&s.mu,
		func(now time.Time) (storage.PromoConfig, bool) {
			if s.cached != nil && now.Sub(s.cached.FetchedAt) < s.ttl {
				return s.cached.Value, true
			}
			return storage.PromoConfig{}, false
		},
		func(now time.Time) (storage.PromoConfig, error) {
			cfg, err := s.store.GetPromoConfig(ctx)
			if err != nil {
				return storage.PromoConfig{}, fmt.Errorf("load promo config: %w", err)
			}
			s.cached = &cacheutil.CachedValue[storage.PromoConfig]{Value: cfg, FetchedAt: now}
			return cfg, nil
		},
	)
}

// Update validates and persists a new configuration, then invalidates
// the cache so the next read sees it.
func (s *Service) Update(ctx context.Context, cfg storage.PromoConfig, updatedBy string) (storage.PromoConfig, error) {
	if err := Validate(cfg); err != nil {
		return storage.PromoConfig{}, err
	}

	cfg.UpdatedAt = time.Now().UTC()
	cfg.UpdatedBy = updatedBy

	err := cacheutil.WriteThrough(s.invalidate, func() error {
		return s.store.SavePromoConfig(ctx, cfg)
	})
	if err != nil {
		return storage.PromoConfig{}, fmt.Errorf("save promo config: %w", err)
	}

	s.log.Info().
		Str("updated_by", updatedBy).
		Bool("referral_enabled", cfg.Referral.Enabled).
		Bool("streak_enabled", cfg.Streak.Enabled).
		Bool("gold_enabled", cfg.GoldStatus.Enabled).
		Msg("promo config updated")

	return s.store.GetPromoConfig(ctx)
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Configuration value bounds. Amounts cap at NGN 100,000, counters at
// 100 and day spans at a year. Every field is range-checked even when
// its section is disabled, so toggling a section on can never activate
// values that were stored out of range.
const (
	maxAwardKobo = 100_000 * 100
	maxCount     = 100
	maxDays      = 365
)

// Validate rejects configurations the engines cannot safely run with.
func Validate(cfg storage.PromoConfig) error {
	if cfg.Referral.RewardAmount.IsNegative() || cfg.Referral.RewardAmount.Kobo() > maxAwardKobo {
		return apperr.New(apperr.CodeInvalidInput, "referral reward amount must be within NGN [0,100000]").
			WithDetail("field", "referral.rewardAmount")
	}
	if cfg.Referral.RequiredTrips < 1 || cfg.Referral.RequiredTrips > maxCount {
		return apperr.New(apperr.CodeInvalidInput, "referral required trips must be within [1,100]").
			WithDetail("field", "referral.requiredTrips")
	}
	if cfg.Streak.BonusAmount.IsNegative() || cfg.Streak.BonusAmount.Kobo() > maxAwardKobo {
		return apperr.New(apperr.CodeInvalidInput, "streak bonus amount must be within NGN [0,100000]").
			WithDetail("field", "streak.bonusAmount")
	}
	if cfg.Streak.RequiredStreak < 1 || cfg.Streak.RequiredStreak > maxCount {
		return apperr.New(apperr.CodeInvalidInput, "streak required count must be within [1,100]").
			WithDetail("field", "streak.requiredStreak")
	}
	if cfg.GoldStatus.RequiredRides < 1 || cfg.GoldStatus.RequiredRides > maxCount {
		return apperr.New(apperr.CodeInvalidInput, "gold required rides must be within [1,100]").
			WithDetail("field", "goldStatus.requiredRides")
	}
	if cfg.GoldStatus.WindowDays < 1 || cfg.GoldStatus.WindowDays > maxDays {
		return apperr.New(apperr.CodeInvalidInput, "gold window days must be within [1,365]").
			WithDetail("field", "goldStatus.windowDays")
	}
	if cfg.GoldStatus.DurationDays < 1 || cfg.GoldStatus.DurationDays > maxDays {
		return apperr.New(apperr.CodeInvalidInput, "gold duration days must be within [1,365]").
			WithDetail("field", "goldStatus.durationDays")
	}
	if cfg.GoldStatus.DiscountPercent < 0 || cfg.GoldStatus.DiscountPercent > 100 {
		return apperr.New(apperr.CodeInvalidInput, "gold discount percent must be within [0,100]").
			WithDetail("field", "goldStatus.discountPercent")
	}
	return nil
}
