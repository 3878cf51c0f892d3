// Package payouts groups each rider's delivered orders into weekly
// commission-remittance documents and derives their payment-window
// states.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/storage"
)

// refCodeRetries bounds regeneration attempts on reference code collisions.
const refCodeRetries = 5

// Aggregator maintains the weekly payout documents.
type Aggregator struct {
	store storage.Store
	bus   *events.Bus
	loc   *time.Location
	grace time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a payout aggregator for the platform timezone and grace
// period, subscribed to order deliveries.
func New(store storage.Store, bus *events.Bus, loc *time.Location, grace time.Duration, log zerolog.Logger) *Aggregator {
	a := &Aggregator{
		store: store,
		bus:   bus,
		loc:   loc,
		grace: grace,
		log:   log.With().Str("component", "payouts").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	bus.Subscribe(events.TopicOrderDelivered, a.onOrderDelivered)
	return a
}

// Grace returns the configured grace period.
func (a *Aggregator) Grace() time.Duration { return a.grace }

// View is a payout with its derived window flags attached.
type View struct {
	storage.RiderPayout
	Window WindowFlags `json:"window"`
}

func (a *Aggregator) view(p storage.RiderPayout, now time.Time) View {
	return View{
		RiderPayout: p,
		Window:      ComputeWindow(p.WeekEnd, p.Totals.Commission, now, p.Status, a.grace),
	}
}

func (a *Aggregator) onOrderDelivered(ctx context.Context, evt events.Event) {
	delivered, ok := evt.(events.OrderDelivered)
	if !ok {
		return
	}
	if err := a.UpsertForDelivery(ctx, delivered.Order, delivered.Financial, delivered.DeliveredAt); err != nil {
		a.log.Error().Err(err).
			Str("order_id", delivered.Order.ID).
			Str("rider_id", delivered.Order.RiderID).
			Msg("payout upsert failed")
	}
}

// UpsertForDelivery folds one delivered order into its rider's weekly
// payout. Re-processing the same order is a no-op; totals are always
// recomputed over the full snapshot list.
func (a *Aggregator) UpsertForDelivery(ctx context.Context, order storage.Order, fin storage.Financial, deliveredAt time.Time) error {
	if order.RiderID == "" {
		return fmt.Errorf("order %s has no rider", order.ID)
	}

	weekStart, weekEnd := WeekRange(deliveredAt, a.loc)
	if err := a.ensure(ctx, order.RiderID, weekStart, weekEnd); err != nil {
		return err
	}

	snap := storage.PayoutOrder{
		OrderID:     order.ID,
		DeliveredAt: deliveredAt,
		Gross:       fin.GrossAmount,
		Commission:  fin.CommissionAmount,
		RiderNet:    fin.RiderNetAmount,
		ServiceType: order.ServiceType,
	}
	payout, added, err := a.store.AppendPayoutOrder(ctx, order.RiderID, weekStart, snap)
	if err != nil {
		return fmt.Errorf("append payout order: %w", err)
	}
	if added {
		a.log.Info().
			Str("payout_id", payout.ID).
			Str("rider_id", order.RiderID).
			Str("order_id", order.ID).
			Str("commission", payout.Totals.Commission.String()).
			Int("orders", payout.Totals.Count).
			Msg("order folded into weekly payout")
	}
	return nil
}

// ensure creates the weekly document if absent, regenerating the
// reference code on the rare collision.
func (a *Aggregator) ensure(ctx context.Context, riderID string, weekStart, weekEnd time.Time) error {
	for attempt := 0; attempt < refCodeRetries; attempt++ {
		code := ReferenceCode(riderID, a.now())
		_, err := a.store.EnsurePayout(ctx, riderID, weekStart, weekEnd, code)
		if errors.Is(err, storage.ErrDuplicateReferenceCode) {
			continue
		}
		if err != nil {
			return fmt.Errorf("ensure payout: %w", err)
		}
		return nil
	}
	return apperr.New(apperr.CodeContention, "could not generate a unique payment reference code")
}

// GenerateForWeek scans delivered orders in the given week and folds
// any not yet captured into payouts. Idempotent; returns how many
// orders were newly added.
func (a *Aggregator) GenerateForWeek(ctx context.Context, weekStart time.Time) (int, error) {
	start, end := WeekRange(weekStart, a.loc)

	orders, err := a.store.ListDeliveredOrders(ctx, storage.OrderFilter{From: start, To: end})
	if err != nil {
		return 0, fmt.Errorf("list delivered orders: %w", err)
	}

	added := 0
	for _, order := range orders {
		if order.Financial == nil || order.RiderID == "" || order.DeliveredAt == nil {
			continue
		}
		payout, getErr := a.store.GetPayoutByRiderWeek(ctx, order.RiderID, start)
		if getErr == nil && payout.HasOrder(order.ID) {
			continue
		}
		if getErr != nil && !errors.Is(getErr, storage.ErrNotFound) {
			return added, getErr
		}
		if err := a.UpsertForDelivery(ctx, order, *order.Financial, *order.DeliveredAt); err != nil {
			return added, err
		}
		added++
	}

	a.log.Info().
		Time("week_start", start).
		Int("orders_added", added).
		Msg("payout generation sweep complete")
	return added, nil
}

// MarkPaid settles a payout exactly once and announces it. Unblocking a
// rider blocked on this payout stays a separate admin action.
func (a *Aggregator) MarkPaid(ctx context.Context, payoutID string, by storage.PaidBy, proofURL, paystackRef string) (View, error) {
	now := a.now()
	payout, err := a.store.MarkPayoutPaid(ctx, payoutID, by, proofURL, paystackRef, now)
	if err != nil {
		return View{}, err
	}

	a.bus.Publish(ctx, events.PayoutPaid{Payout: payout})
	a.log.Info().
		Str("payout_id", payout.ID).
		Str("rider_id", payout.RiderID).
		Str("paid_by", string(by)).
		Str("commission", payout.Totals.Commission.String()).
		Msg("payout marked paid")
	return a.view(payout, now), nil
}

// Get returns one payout with window flags.
func (a *Aggregator) Get(ctx context.Context, payoutID string) (View, error) {
	payout, err := a.store.GetPayout(ctx, payoutID)
	if err != nil {
		return View{}, err
	}
	return a.view(payout, a.now()), nil
}

// List returns payouts matching the filter, each with window flags.
func (a *Aggregator) List(ctx context.Context, filter storage.PayoutFilter) ([]View, error) {
	payouts, err := a.store.ListPayouts(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := a.now()
	views := make([]View, 0, len(payouts))
	for _, p := range payouts {
		views = append(views, a.view(p, now))
	}
	return views, nil
}

// CurrentWeek returns the rider's payout for the week containing now,
// or ErrNotFound when nothing was delivered yet.
func (a *Aggregator) CurrentWeek(ctx context.Context, riderID string) (View, error) {
	now := a.now()
	weekStart, _ := WeekRange(now, a.loc)
	payout, err := a.store.GetPayoutByRiderWeek(ctx, riderID, weekStart)
	if err != nil {
		return View{}, err
	}
	return a.view(payout, now), nil
}

// RunWeeklyGeneration periodically backfills the previous week's
// payouts, catching deliveries whose live upsert was missed.
func (a *Aggregator) RunWeeklyGeneration(ctx context.Context, interval time.Duration) {
	a.log.Info().Dur("interval", interval).Msg("weekly payout generation started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("weekly payout generation stopped")
			return
		case <-ticker.C:
			lastWeek := a.now().In(a.loc).AddDate(0, 0, -7)
			if _, err := a.GenerateForWeek(ctx, lastWeek); err != nil && ctx.Err() == nil {
				a.log.Error().Err(err).Msg("weekly payout generation failed")
			}
		}
	}
}
