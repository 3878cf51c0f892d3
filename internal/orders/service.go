// Package orders owns the order lifecycle. Delivery is the financial
// commit point: the commission split is computed with the rider's
// effective rate, frozen onto the order exactly once, and announced on
// the bus for the promo engines and the payout aggregator.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/commission"
	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

// Service drives order state transitions.
type Service struct {
	store    storage.Store
	splitter *commission.Splitter
	bus      *events.Bus
	log      zerolog.Logger
	now      func() time.Time
}

// New creates the order service.
func New(store storage.Store, splitter *commission.Splitter, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		splitter: splitter,
		bus:      bus,
		log:      log.With().Str("component", "orders").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new pending order for a customer.
func (s *Service) Create(ctx context.Context, customerID string, serviceType storage.ServiceType, price money.Amount) (storage.Order, error) {
	if serviceType != storage.ServiceCourier && serviceType != storage.ServiceRide {
		return storage.Order{}, apperr.Newf(apperr.CodeInvalidInput, "unknown service type %q", serviceType)
	}
	if !price.IsPositive() {
		return storage.Order{}, apperr.New(apperr.CodeInvalidInput, "price must be positive")
	}

	order := storage.Order{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		ServiceType: serviceType,
		Price:       price,
		Status:      storage.OrderPending,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return storage.Order{}, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID string) (storage.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// Accept assigns the order to a rider and counts toward their
// acceptance streak. Blocked and deactivated riders cannot accept.
func (s *Service) Accept(ctx context.Context, orderID, riderID string) (storage.Order, error) {
	if err := s.requireActiveRider(ctx, riderID); err != nil {
		return storage.Order{}, err
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, storage.OrderPending, storage.OrderAssigned, riderID); err != nil {
		return storage.Order{}, err
	}

	s.bus.Publish(ctx, events.OrderAccepted{RiderID: riderID, OrderID: orderID, At: s.now()})
	return s.store.GetOrder(ctx, orderID)
}

// Reject records a declined offer, which breaks the rider's streak.
// The order itself stays pending for re-dispatch.
func (s *Service) Reject(ctx context.Context, orderID, riderID string) error {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.StreakBroken{RiderID: riderID, Reason: "order_rejected", At: s.now()})
	return nil
}

// Advance moves an assigned order through pickup and transit.
func (s *Service) Advance(ctx context.Context, orderID string, from, to storage.OrderStatus) (storage.Order, error) {
	valid := map[storage.OrderStatus]storage.OrderStatus{
		storage.OrderAssigned: storage.OrderPickedUp,
		storage.OrderPickedUp: storage.OrderDelivering,
	}
	if valid[from] != to {
		return storage.Order{}, apperr.Newf(apperr.CodeInvalidInput, "invalid transition %s -> %s", from, to)
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, from, to, ""); err != nil {
		return storage.Order{}, err
	}
	return s.store.GetOrder(ctx, orderID)
}

// Cancel cancels a not-yet-delivered order. Cancelling an order a rider
// already accepted breaks that rider's acceptance streak.
func (s *Service) Cancel(ctx context.Context, orderID string) (storage.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return storage.Order{}, err
	}
	if order.Status == storage.OrderDelivered || order.Status == storage.OrderCancelled {
		return storage.Order{}, apperr.Newf(apperr.CodeConflict, "order is already %s", order.Status)
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, storage.OrderCancelled, ""); err != nil {
		return storage.Order{}, err
	}
	if order.RiderID != "" {
		s.bus.Publish(ctx, events.StreakBroken{RiderID: order.RiderID, Reason: "order_cancelled", At: s.now()})
	}
	return s.store.GetOrder(ctx, orderID)
}

// Deliver completes the order: guards the state transition, freezes the
// commission split at the rider's effective rate, and publishes the
// delivery. Re-delivery of the same order changes nothing.
func (s *Service) Deliver(ctx context.Context, orderID string) (storage.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return storage.Order{}, err
	}
	if order.RiderID == "" {
		return storage.Order{}, apperr.New(apperr.CodeConflict, "order has no assigned rider")
	}
	if err := s.requireActiveRider(ctx, order.RiderID); err != nil {
		return storage.Order{}, err
	}

	now := s.now()
	rider, err := s.store.GetUser(ctx, order.RiderID)
	if err != nil {
		return storage.Order{}, err
	}
	rateBps := s.splitter.RateBpsFor(rider, now)
	fin, err := s.splitter.Split(order.Price, rateBps)
	if err != nil {
		return storage.Order{}, err
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, storage.OrderDelivering, storage.OrderDelivered, ""); err != nil {
		if errors.Is(err, storage.ErrConflict) && order.Status == storage.OrderDelivered {
			return order, nil
		}
		return storage.Order{}, err
	}

	frozen, err := s.store.SetOrderFinancial(ctx, orderID, fin, now)
	if err != nil {
		return storage.Order{}, err
	}
	order, err = s.store.GetOrder(ctx, orderID)
	if err != nil {
		return storage.Order{}, err
	}
	if !frozen || order.Financial == nil {
		return order, nil
	}

	s.bus.Publish(ctx, events.OrderDelivered{Order: order, Financial: *order.Financial, DeliveredAt: now})
	s.log.Info().
		Str("order_id", order.ID).
		Str("rider_id", order.RiderID).
		Int64("rate_bps", fin.CommissionRateBps).
		Str("gross", fin.GrossAmount.String()).
		Str("commission", fin.CommissionAmount.String()).
		Str("rider_net", fin.RiderNetAmount.String()).
		Msg("order delivered")
	return order, nil
}

// SetOnline flips rider presence. Going offline breaks the acceptance
// streak; going online is refused while blocked or deactivated.
func (s *Service) SetOnline(ctx context.Context, riderID string, online bool) error {
	err := s.store.SetRiderOnline(ctx, riderID, online)
	if errors.Is(err, storage.ErrConflict) {
		return apperr.New(apperr.CodeBlocked, "rider is blocked or deactivated")
	}
	if err != nil {
		return err
	}
	if !online {
		s.bus.Publish(ctx, events.StreakBroken{RiderID: riderID, Reason: "went_offline", At: s.now()})
	}
	return nil
}

func (s *Service) requireActiveRider(ctx context.Context, riderID string) error {
	rider, err := s.store.GetUser(ctx, riderID)
	if err != nil {
		return err
	}
	if rider.AccountDeactivated || rider.PaymentBlocked {
		return apperr.New(apperr.CodeBlocked, "rider is blocked or deactivated")
	}
	if rider.Role != storage.RoleRider {
		return apperr.New(apperr.CodeForbidden, "user is not a rider")
	}
	return nil
}
