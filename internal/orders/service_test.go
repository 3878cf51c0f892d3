package orders

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/commission"
	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

type recorder struct {
	accepted  []events.OrderAccepted
	delivered []events.OrderDelivered
	broken    []events.StreakBroken
}

func newService(t *testing.T) (*Service, *storage.MemoryStore, *recorder) {
	t.Helper()
	store := storage.NewMemoryStore()
	log := zerolog.Nop()
	bus := events.NewBus(log)

	rec := &recorder{}
	bus.Subscribe(events.TopicOrderAccepted, func(_ context.Context, evt events.Event) {
		if e, ok := evt.(events.OrderAccepted); ok {
			rec.accepted = append(rec.accepted, e)
		}
	})
	bus.Subscribe(events.TopicOrderDelivered, func(_ context.Context, evt events.Event) {
		if e, ok := evt.(events.OrderDelivered); ok {
			rec.delivered = append(rec.delivered, e)
		}
	})
	bus.Subscribe(events.TopicStreakBroken, func(_ context.Context, evt events.Event) {
		if e, ok := evt.(events.StreakBroken); ok {
			rec.broken = append(rec.broken, e)
		}
	})

	svc := New(store, commission.New(10), bus, log)
	return svc, store, rec
}

func addRider(t *testing.T, store *storage.MemoryStore, id string) {
	t.Helper()
	if err := store.CreateUser(context.Background(), storage.User{ID: id, Email: id + "@example.com", Role: storage.RoleRider}); err != nil {
		t.Fatalf("create rider: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "c1", "helicopter", money.FromKobo(1000)); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("bad service type err = %v", err)
	}
	if _, err := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(0)); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("zero price err = %v", err)
	}

	order, err := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(500000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != storage.OrderPending || order.CustomerID != "c1" {
		t.Fatalf("order = %+v", order)
	}
}

func TestLifecycleToDelivery(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	addRider(t, store, "r1")

	order, err := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(1000000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Accept(ctx, order.ID, "r1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(rec.accepted) != 1 || rec.accepted[0].RiderID != "r1" {
		t.Fatalf("accepted events = %+v", rec.accepted)
	}

	if _, err := svc.Advance(ctx, order.ID, storage.OrderAssigned, storage.OrderPickedUp); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := svc.Advance(ctx, order.ID, storage.OrderPickedUp, storage.OrderDelivering); err != nil {
		t.Fatalf("start: %v", err)
	}

	delivered, err := svc.Deliver(ctx, order.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != storage.OrderDelivered || delivered.Financial == nil {
		t.Fatalf("delivered = %+v", delivered)
	}
	fin := delivered.Financial
	if fin.CommissionRateBps != 1000 || fin.CommissionAmount.Kobo() != 100000 || fin.RiderNetAmount.Kobo() != 900000 {
		t.Fatalf("financial = %+v", fin)
	}
	if len(rec.delivered) != 1 {
		t.Fatalf("delivered events = %d, want 1", len(rec.delivered))
	}

	// Re-delivery is a no-op and fires no second event.
	again, err := svc.Deliver(ctx, order.ID)
	if err != nil {
		t.Fatalf("re-deliver: %v", err)
	}
	if again.Financial.CommissionAmount.Kobo() != 100000 {
		t.Fatalf("financial changed on re-delivery: %+v", again.Financial)
	}
	if len(rec.delivered) != 1 {
		t.Fatalf("re-delivery fired an event: %d", len(rec.delivered))
	}
}

func TestDeliverUsesGoldDiscountedRate(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	unlocked := now.Add(-time.Hour)
	expires := now.Add(24 * time.Hour)
	err := store.CreateUser(ctx, storage.User{
		ID:    "r1",
		Email: "r1@example.com",
		Role:  storage.RoleRider,
		Gold:  storage.GoldStatus{UnlockedAt: &unlocked, ExpiresAt: &expires, DiscountPercent: 5},
	})
	if err != nil {
		t.Fatalf("create rider: %v", err)
	}

	order, _ := svc.Create(ctx, "c1", storage.ServiceRide, money.FromKobo(1000000))
	if _, err := svc.Accept(ctx, order.ID, "r1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Advance(ctx, order.ID, storage.OrderAssigned, storage.OrderPickedUp); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := svc.Advance(ctx, order.ID, storage.OrderPickedUp, storage.OrderDelivering); err != nil {
		t.Fatalf("start: %v", err)
	}

	delivered, err := svc.Deliver(ctx, order.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Financial.CommissionRateBps != 950 || delivered.Financial.CommissionAmount.Kobo() != 95000 {
		t.Fatalf("financial = %+v", delivered.Financial)
	}
}

func TestBlockedRiderCannotAcceptOrGoOnline(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	addRider(t, store, "r1")

	if _, err := store.BlockRider(ctx, "r1", "overdue", "p1", time.Now()); err != nil {
		t.Fatalf("block: %v", err)
	}

	order, _ := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(1000))
	if _, err := svc.Accept(ctx, order.ID, "r1"); apperr.CodeOf(err) != apperr.CodeBlocked {
		t.Fatalf("accept err = %v, want blocked", err)
	}
	if err := svc.SetOnline(ctx, "r1", true); apperr.CodeOf(err) != apperr.CodeBlocked {
		t.Fatalf("online err = %v, want blocked", err)
	}
}

func TestRejectAndOfflineBreakStreak(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	addRider(t, store, "r1")

	order, _ := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(1000))
	if err := svc.Reject(ctx, order.ID, "r1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	// The rejected order stays pending for re-dispatch.
	got, _ := svc.Get(ctx, order.ID)
	if got.Status != storage.OrderPending {
		t.Fatalf("status after reject = %s", got.Status)
	}

	if err := svc.SetOnline(ctx, "r1", true); err != nil {
		t.Fatalf("online: %v", err)
	}
	if err := svc.SetOnline(ctx, "r1", false); err != nil {
		t.Fatalf("offline: %v", err)
	}

	if len(rec.broken) != 2 {
		t.Fatalf("streak break events = %d, want 2", len(rec.broken))
	}
	if rec.broken[0].Reason != "order_rejected" || rec.broken[1].Reason != "went_offline" {
		t.Fatalf("reasons = %q, %q", rec.broken[0].Reason, rec.broken[1].Reason)
	}
}

func TestCancelAssignedOrderBreaksStreak(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	addRider(t, store, "r1")

	order, _ := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(1000))
	if _, err := svc.Accept(ctx, order.ID, "r1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	cancelled, err := svc.Cancel(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != storage.OrderCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if len(rec.broken) != 1 || rec.broken[0].RiderID != "r1" || rec.broken[0].Reason != "order_cancelled" {
		t.Fatalf("streak break events = %+v", rec.broken)
	}
}

func TestCancelPendingOrderBreaksNoStreak(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	order, _ := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(1000))
	if _, err := svc.Cancel(ctx, order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(rec.broken) != 0 {
		t.Fatalf("streak break events = %+v", rec.broken)
	}
}

func TestCancelDeliveredOrderRefused(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	addRider(t, store, "r1")

	order, _ := svc.Create(ctx, "c1", storage.ServiceCourier, money.FromKobo(1000))
	if _, err := svc.Accept(ctx, order.ID, "r1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Advance(ctx, order.ID, storage.OrderAssigned, storage.OrderPickedUp); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	if _, err := svc.Advance(ctx, order.ID, storage.OrderPickedUp, storage.OrderDelivering); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Deliver(ctx, order.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if _, err := svc.Cancel(ctx, order.ID); apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("cancel delivered err = %v, want conflict", err)
	}
}
