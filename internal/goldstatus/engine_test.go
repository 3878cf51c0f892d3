package goldstatus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/storage"
)

func newEngine(t *testing.T, promo storage.GoldPromo, now time.Time) (*Engine, *storage.MemoryStore, *events.Bus) {
	t.Helper()
	store := storage.NewMemoryStore()

	cfg := storage.DefaultPromoConfig()
	cfg.GoldStatus = promo
	if err := store.SavePromoConfig(context.Background(), cfg); err != nil {
		t.Fatalf("save promo config: %v", err)
	}
	if err := store.CreateUser(context.Background(), storage.User{ID: "r1", Email: "r1@example.com", Role: storage.RoleRider}); err != nil {
		t.Fatalf("create rider: %v", err)
	}

	log := zerolog.Nop()
	bus := events.NewBus(log)
	e := New(store, promos.New(store, time.Minute, log), bus, log)
	e.now = func() time.Time { return now }
	return e, store, bus
}

var seedSeq int

func seedRides(t *testing.T, store *storage.MemoryStore, riderID string, n int, at time.Time, serviceType storage.ServiceType) {
	t.Helper()
	for i := 0; i < n; i++ {
		delivered := at
		seedSeq++
		err := store.CreateOrder(context.Background(), storage.Order{
			ID:          fmt.Sprintf("%s-%s-%d", riderID, serviceType, seedSeq),
			CustomerID:  "c1",
			RiderID:     riderID,
			ServiceType: serviceType,
			Status:      storage.OrderDelivered,
			DeliveredAt: &delivered,
		})
		if err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}
}

func TestEvaluateUnlocksAtThreshold(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	promo := storage.GoldPromo{Enabled: true, RequiredRides: 20, WindowDays: 30, DurationDays: 30, DiscountPercent: 5}
	e, store, _ := newEngine(t, promo, now)
	ctx := context.Background()

	seedRides(t, store, "r1", 19, now.AddDate(0, 0, -5), storage.ServiceRide)
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	u, _ := store.GetUser(ctx, "r1")
	if u.Gold.ActiveAt(now) {
		t.Fatal("gold granted below threshold")
	}

	seedRides(t, store, "r1", 1, now.AddDate(0, 0, -1), storage.ServiceRide)
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	u, _ = store.GetUser(ctx, "r1")
	if !u.Gold.ActiveAt(now) {
		t.Fatal("gold not granted at threshold")
	}
	if u.Gold.DiscountPercent != 5 || u.Gold.TotalUnlocks != 1 {
		t.Fatalf("gold = %+v", u.Gold)
	}
	want := now.AddDate(0, 0, 30)
	if !u.Gold.ExpiresAt.Equal(want) {
		t.Fatalf("expires = %v, want %v", u.Gold.ExpiresAt, want)
	}
}

func TestCourierDeliveriesDoNotCount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	promo := storage.GoldPromo{Enabled: true, RequiredRides: 5, WindowDays: 30, DurationDays: 30, DiscountPercent: 5}
	e, store, _ := newEngine(t, promo, now)
	ctx := context.Background()

	seedRides(t, store, "r1", 10, now.AddDate(0, 0, -2), storage.ServiceCourier)
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	u, _ := store.GetUser(ctx, "r1")
	if u.Gold.ActiveAt(now) {
		t.Fatal("courier deliveries unlocked gold")
	}
}

func TestRidesOutsideWindowDoNotCount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	promo := storage.GoldPromo{Enabled: true, RequiredRides: 5, WindowDays: 30, DurationDays: 30, DiscountPercent: 5}
	e, store, _ := newEngine(t, promo, now)
	ctx := context.Background()

	seedRides(t, store, "r1", 10, now.AddDate(0, 0, -45), storage.ServiceRide)
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	u, _ := store.GetUser(ctx, "r1")
	if u.Gold.ActiveAt(now) {
		t.Fatal("stale rides unlocked gold")
	}
}

func TestNoRegrantWhileActive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	promo := storage.GoldPromo{Enabled: true, RequiredRides: 2, WindowDays: 30, DurationDays: 30, DiscountPercent: 5}
	e, store, _ := newEngine(t, promo, now)
	ctx := context.Background()

	seedRides(t, store, "r1", 5, now.AddDate(0, 0, -1), storage.ServiceRide)
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	u, _ := store.GetUser(ctx, "r1")
	if u.Gold.TotalUnlocks != 1 {
		t.Fatalf("unlocks = %d, want 1", u.Gold.TotalUnlocks)
	}
}

func TestExpiryScanNotifiesOnce(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	promo := storage.GoldPromo{Enabled: true, RequiredRides: 2, WindowDays: 30, DurationDays: 30, DiscountPercent: 5}
	e, store, bus := newEngine(t, promo, now)
	ctx := context.Background()

	seedRides(t, store, "r1", 2, now.AddDate(0, 0, -1), storage.ServiceRide)
	if err := e.Evaluate(ctx, "r1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var expired []events.GoldExpired
	bus.Subscribe(events.TopicGoldExpired, func(_ context.Context, evt events.Event) {
		if ge, ok := evt.(events.GoldExpired); ok {
			expired = append(expired, ge)
		}
	})

	// Still active: nothing to notify.
	notified, err := e.ScanExpired(ctx, 100)
	if err != nil || notified != 0 {
		t.Fatalf("scan while active = %d, %v; want 0, nil", notified, err)
	}

	// Jump past the grant expiry.
	e.now = func() time.Time { return now.AddDate(0, 0, 31) }
	notified, err = e.ScanExpired(ctx, 100)
	if err != nil || notified != 1 {
		t.Fatalf("scan after expiry = %d, %v; want 1, nil", notified, err)
	}
	notified, err = e.ScanExpired(ctx, 100)
	if err != nil || notified != 0 {
		t.Fatalf("second scan = %d, %v; want 0, nil", notified, err)
	}
	if len(expired) != 1 || expired[0].RiderID != "r1" {
		t.Fatalf("expiry events = %+v", expired)
	}
}

func TestStatusForReportsProgress(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	promo := storage.GoldPromo{Enabled: true, RequiredRides: 20, WindowDays: 30, DurationDays: 30, DiscountPercent: 5}
	e, store, _ := newEngine(t, promo, now)
	ctx := context.Background()

	seedRides(t, store, "r1", 7, now.AddDate(0, 0, -3), storage.ServiceRide)

	st, err := e.StatusFor(ctx, "r1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Active || st.RidesInWindow != 7 || st.RequiredRides != 20 || st.WindowDays != 30 {
		t.Fatalf("status = %+v", st)
	}
}
