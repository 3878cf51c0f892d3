package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

func newLedger() (*Ledger, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return New(store, zerolog.Nop()), store
}

func TestCreditThenDebit(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	tx, w, err := l.Credit(ctx, "u1", Entry{Type: storage.TxReferralReward, Amount: money.FromKobo(100000), ReferralID: "ref1"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if tx.Amount.Kobo() != 100000 || tx.ReferralID != "ref1" || tx.Status != storage.TxStatusCompleted {
		t.Fatalf("tx = %+v", tx)
	}
	if w.Balance.Kobo() != 100000 {
		t.Fatalf("balance = %d", w.Balance.Kobo())
	}

	tx, w, err = l.Debit(ctx, "u1", Entry{Type: storage.TxCommissionDebit, Amount: money.FromKobo(40000), OrderID: "o1"})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if tx.Amount.Kobo() != -40000 {
		t.Fatalf("debit stored as %d, want -40000", tx.Amount.Kobo())
	}
	if w.Balance.Kobo() != 60000 || len(w.Transactions) != 2 {
		t.Fatalf("wallet = %+v", w)
	}
}

func TestCreditRejectsNonPositive(t *testing.T) {
	l, _ := newLedger()
	for _, amt := range []int64{0, -5} {
		if _, _, err := l.Credit(context.Background(), "u1", Entry{Type: storage.TxAdjustment, Amount: money.FromKobo(amt)}); apperr.CodeOf(err) != apperr.CodeInvalidInput {
			t.Fatalf("Credit(%d) err = %v", amt, err)
		}
	}
}

func TestDebitBeyondBalance(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	if _, _, err := l.Credit(ctx, "u1", Entry{Type: storage.TxAdjustment, Amount: money.FromKobo(50)}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	_, _, err := l.Debit(ctx, "u1", Entry{Type: storage.TxAdjustment, Amount: money.FromKobo(51)})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestAdjustSignsRouteCorrectly(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	if _, _, err := l.Adjust(ctx, "u1", money.FromKobo(0), "noop", "admin-1"); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("zero adjust err = %v", err)
	}

	tx, w, err := l.Adjust(ctx, "u1", money.FromKobo(20000), "goodwill", "admin-1")
	if err != nil {
		t.Fatalf("credit adjust: %v", err)
	}
	if tx.Type != storage.TxAdjustment || tx.Metadata["note"] != "goodwill" || tx.Metadata["actor"] != "admin-1" {
		t.Fatalf("tx = %+v", tx)
	}
	if w.Balance.Kobo() != 20000 {
		t.Fatalf("balance = %d", w.Balance.Kobo())
	}

	tx, w, err = l.Adjust(ctx, "u1", money.FromKobo(-5000), "correction", "admin-1")
	if err != nil {
		t.Fatalf("debit adjust: %v", err)
	}
	if tx.Amount.Kobo() != -5000 || w.Balance.Kobo() != 15000 {
		t.Fatalf("tx %d balance %d", tx.Amount.Kobo(), w.Balance.Kobo())
	}
}
