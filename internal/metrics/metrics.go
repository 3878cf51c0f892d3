// Package metrics holds the Prometheus instrumentation. Domain
// counters are fed from the event bus so the engines stay free of
// instrumentation calls.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ninewheels/server/internal/events"
)

// Metrics holds all Prometheus metrics for the earnings core.
type Metrics struct {
	// Order and commission metrics
	OrdersDeliveredTotal *prometheus.CounterVec
	CommissionKoboTotal  prometheus.Counter

	// Promotion metrics
	PromoAwardsTotal     *prometheus.CounterVec
	PromoAmountKoboTotal *prometheus.CounterVec
	GoldUnlocksTotal     prometheus.Counter
	GoldExpiriesTotal    prometheus.Counter

	// Payout and enforcement metrics
	PayoutsPaidTotal       *prometheus.CounterVec
	RidersBlockedTotal     prometheus.Counter
	StrikesTotal           prometheus.Counter
	RidersDeactivatedTotal prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		OrdersDeliveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninewheels_orders_delivered_total",
				Help: "Total delivered orders",
			},
			[]string{"service_type"},
		),
		CommissionKoboTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ninewheels_commission_kobo_total",
				Help: "Total commission frozen onto delivered orders, in kobo",
			},
		),
		PromoAwardsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninewheels_promo_awards_total",
				Help: "Total promotion awards credited",
			},
			[]string{"type"},
		),
		PromoAmountKoboTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninewheels_promo_amount_kobo_total",
				Help: "Total promotion amounts credited, in kobo",
			},
			[]string{"type"},
		),
		GoldUnlocksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ninewheels_gold_unlocks_total",
				Help: "Total gold status grants",
			},
		),
		GoldExpiriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ninewheels_gold_expiries_total",
				Help: "Total gold status expiry notifications",
			},
		),
		PayoutsPaidTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninewheels_payouts_paid_total",
				Help: "Total weekly payouts settled",
			},
			[]string{"paid_by"},
		),
		RidersBlockedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ninewheels_riders_blocked_total",
				Help: "Total payment blocks applied",
			},
		),
		StrikesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ninewheels_strikes_total",
				Help: "Total enforcement strikes added",
			},
		),
		RidersDeactivatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ninewheels_riders_deactivated_total",
				Help: "Total rider deactivations",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ninewheels_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ninewheels_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// BindBus subscribes the counters to the domain event stream.
func (m *Metrics) BindBus(bus *events.Bus) {
	bus.Subscribe(events.TopicOrderDelivered, func(_ context.Context, evt events.Event) {
		if e, ok := evt.(events.OrderDelivered); ok {
			m.OrdersDeliveredTotal.WithLabelValues(string(e.Order.ServiceType)).Inc()
			m.CommissionKoboTotal.Add(float64(e.Financial.CommissionAmount.Kobo()))
		}
	})
	bus.Subscribe(events.TopicPromoAwarded, func(_ context.Context, evt events.Event) {
		if e, ok := evt.(events.PromoAwarded); ok {
			m.PromoAwardsTotal.WithLabelValues(string(e.Type)).Inc()
			m.PromoAmountKoboTotal.WithLabelValues(string(e.Type)).Add(float64(e.Amount.Kobo()))
		}
	})
	bus.Subscribe(events.TopicGoldUnlocked, func(_ context.Context, _ events.Event) {
		m.GoldUnlocksTotal.Inc()
	})
	bus.Subscribe(events.TopicGoldExpired, func(_ context.Context, _ events.Event) {
		m.GoldExpiriesTotal.Inc()
	})
	bus.Subscribe(events.TopicPayoutPaid, func(_ context.Context, evt events.Event) {
		if e, ok := evt.(events.PayoutPaid); ok {
			m.PayoutsPaidTotal.WithLabelValues(string(e.Payout.MarkedPaidBy)).Inc()
		}
	})
	bus.Subscribe(events.TopicRiderBlocked, func(_ context.Context, _ events.Event) {
		m.RidersBlockedTotal.Inc()
	})
	bus.Subscribe(events.TopicRiderStruck, func(_ context.Context, _ events.Event) {
		m.StrikesTotal.Inc()
	})
	bus.Subscribe(events.TopicRiderDeactivated, func(_ context.Context, _ events.Event) {
		m.RidersDeactivatedTotal.Inc()
	})
}
