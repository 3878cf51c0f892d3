package streak

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/events"
	"github.com/ninewheels/server/internal/promos"
	"github.com/ninewheels/server/internal/storage"
	"github.com/ninewheels/server/internal/wallet"
)

type fixture struct {
	store  *storage.MemoryStore
	bus    *events.Bus
	ledger *wallet.Ledger
}

func newFixture(t *testing.T, promo storage.StreakPromo) fixture {
	t.Helper()
	store := storage.NewMemoryStore()

	cfg := storage.DefaultPromoConfig()
	cfg.Streak = promo
	if err := store.SavePromoConfig(context.Background(), cfg); err != nil {
		t.Fatalf("save promo config: %v", err)
	}

	if err := store.CreateUser(context.Background(), storage.User{ID: "r1", Email: "r1@example.com", Role: storage.RoleRider}); err != nil {
		t.Fatalf("create rider: %v", err)
	}

	log := zerolog.Nop()
	bus := events.NewBus(log)
	ledger := wallet.New(store, log)
	New(store, ledger, promos.New(store, time.Minute, log), bus, log)
	return fixture{store: store, bus: bus, ledger: ledger}
}

func (f fixture) accept(orderID string) {
	f.bus.Publish(context.Background(), events.OrderAccepted{RiderID: "r1", OrderID: orderID, At: time.Now()})
}

func (f fixture) balance(t *testing.T) int64 {
	t.Helper()
	w, err := f.ledger.Wallet(context.Background(), "r1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return w.Balance.Kobo()
}

func (f fixture) streak(t *testing.T) int {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), "r1")
	if err != nil {
		t.Fatalf("get rider: %v", err)
	}
	return u.CurrentStreak
}

func TestBonusPaidAtThresholdAndCounterResets(t *testing.T) {
	f := newFixture(t, storage.StreakPromo{Enabled: true, BonusAmount: 50000, RequiredStreak: 3})

	f.accept("o1")
	f.accept("o2")
	if got := f.balance(t); got != 0 {
		t.Fatalf("balance before threshold = %d, want 0", got)
	}

	f.accept("o3")
	if got := f.balance(t); got != 50000 {
		t.Fatalf("balance = %d, want 50000", got)
	}
	if got := f.streak(t); got != 0 {
		t.Fatalf("streak after bonus = %d, want 0", got)
	}

	// The next streak earns a second bonus.
	f.accept("o4")
	f.accept("o5")
	f.accept("o6")
	if got := f.balance(t); got != 100000 {
		t.Fatalf("balance after second streak = %d, want 100000", got)
	}

	u, _ := f.store.GetUser(context.Background(), "r1")
	if u.TotalStreakBonuses != 2 {
		t.Fatalf("total bonuses = %d, want 2", u.TotalStreakBonuses)
	}
}

func TestDuplicateOrderDoesNotBump(t *testing.T) {
	f := newFixture(t, storage.StreakPromo{Enabled: true, BonusAmount: 50000, RequiredStreak: 3})

	f.accept("o1")
	f.accept("o2")
	f.accept("o2") // redelivered event
	f.accept("o2")
	if got := f.streak(t); got != 2 {
		t.Fatalf("streak = %d, want 2", got)
	}
	if got := f.balance(t); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestRejectionResetsStreak(t *testing.T) {
	f := newFixture(t, storage.StreakPromo{Enabled: true, BonusAmount: 50000, RequiredStreak: 3})

	f.accept("o1")
	f.accept("o2")
	f.bus.Publish(context.Background(), events.StreakBroken{RiderID: "r1", Reason: "order_rejected", At: time.Now()})
	if got := f.streak(t); got != 0 {
		t.Fatalf("streak after break = %d, want 0", got)
	}

	f.accept("o3")
	if got := f.streak(t); got != 1 {
		t.Fatalf("streak = %d, want 1", got)
	}
	if got := f.balance(t); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestDisabledPromoCountsButNeverPays(t *testing.T) {
	f := newFixture(t, storage.StreakPromo{Enabled: false, BonusAmount: 50000, RequiredStreak: 2})

	for i := 0; i < 5; i++ {
		f.accept(fmt.Sprintf("o%d", i))
	}
	if got := f.balance(t); got != 0 {
		t.Fatalf("disabled promo paid %d", got)
	}
	if got := f.streak(t); got != 5 {
		t.Fatalf("streak = %d, want 5", got)
	}
}
