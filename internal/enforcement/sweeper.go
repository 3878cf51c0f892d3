package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/payouts"
	"github.com/ninewheels/server/internal/storage"
)

const (
	blockReason      = "weekly commission payout overdue"
	strikeReason     = "payment block unresolved past strike window"
	deactivateReason = "maximum strikes reached for unpaid commission"
)

// SweeperConfig are the escalation knobs.
type SweeperConfig struct {
	Grace        time.Duration // overdue once past weekEnd + grace
	StrikeWindow time.Duration // one strike per window of continuous block
	MaxStrikes   int           // deactivate at this many strikes
	Tick         time.Duration
	PageSize     int
}

// Sweeper periodically scans overdue pending payouts and escalates:
// block first, then a strike per elapsed strike window, then
// deactivation at the strike limit. Every step is conditional, so
// overlapping or restarted sweeps never double-apply.
type Sweeper struct {
	store   storage.Store
	actions *Actions
	cfg     SweeperConfig
	log     zerolog.Logger
	now     func() time.Time
}

// NewSweeper creates the enforcement sweep loop.
func NewSweeper(store storage.Store, actions *Actions, cfg SweeperConfig, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:   store,
		actions: actions,
		cfg:     cfg,
		log:     log.With().Str("component", "enforcement_sweep").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks until the context is cancelled. An initial sweep runs
// immediately so a restart does not wait a full tick to catch up.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().
		Dur("tick", s.cfg.Tick).
		Dur("grace", s.cfg.Grace).
		Int("max_strikes", s.cfg.MaxStrikes).
		Msg("enforcement sweep started")

	if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("enforcement sweep failed")
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("enforcement sweep stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("enforcement sweep failed")
			}
		}
	}
}

// Sweep runs one full pass over overdue pending payouts, paginating by
// payout id so each tick's work stays bounded per page.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	afterID := ""
	for {
		page, err := s.store.ListPendingPayoutsEndedBefore(ctx, now, afterID, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("list pending payouts: %w", err)
		}
		for _, payout := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.enforce(ctx, payout, now); err != nil {
				s.log.Error().Err(err).
					Str("payout_id", payout.ID).
					Str("rider_id", payout.RiderID).
					Msg("enforcement step failed")
			}
		}
		if len(page) < s.cfg.PageSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}

// enforce applies the next escalation step for one overdue payout.
func (s *Sweeper) enforce(ctx context.Context, payout storage.RiderPayout, now time.Time) error {
	flags := payouts.ComputeWindow(payout.WeekEnd, payout.Totals.Commission, now, payout.Status, s.cfg.Grace)
	if !flags.IsOverdue {
		return nil
	}

	rider, err := s.store.GetUser(ctx, payout.RiderID)
	if err != nil {
		return err
	}
	if rider.AccountDeactivated {
		return nil
	}

	if !rider.PaymentBlocked {
		_, err := s.actions.Block(ctx, rider.ID, blockReason, payout.ID)
		return err
	}
	// Strikes only accrue against the payout the block was issued for.
	if rider.BlockedPayoutID != payout.ID || rider.PaymentBlockedAt == nil {
		return nil
	}

	// The nth strike (1-based) lands once the rider has been blocked for
	// n full strike windows. Deterministic in (blockedAt, now), so a
	// missed tick catches up and a repeated tick is a no-op.
	forPayout := rider.StrikesForPayout(payout.ID)
	due := rider.PaymentBlockedAt.Add(time.Duration(forPayout+1) * s.cfg.StrikeWindow)
	if now.Before(due) {
		return nil
	}

	total, added, err := s.actions.Strike(ctx, rider.ID, payout.ID, strikeReason, len(rider.Strikes))
	if err != nil || !added {
		return err
	}
	if total >= s.cfg.MaxStrikes {
		_, err := s.actions.Deactivate(ctx, rider.ID, deactivateReason)
		return err
	}
	return nil
}
