// Package wallet is the append-only rider wallet ledger. Balances are
// derived from the ledger and updated in the same atomic write that
// records the entry, so the balance can never drift from the entries.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/money"
	"github.com/ninewheels/server/internal/storage"
)

// Entry describes a ledger entry to record. Amount is a positive
// magnitude; Credit and Debit fix the sign.
type Entry struct {
	Type       storage.TransactionType
	Amount     money.Amount
	OrderID    string
	ReferralID string
	Metadata   map[string]string
}

// Ledger records wallet movements and answers balance queries.
type Ledger struct {
	store storage.Store
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a wallet ledger.
func New(store storage.Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("component", "wallet").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Wallet returns the user's wallet, which is an implicit zero wallet
// until the first entry lands.
func (l *Ledger) Wallet(ctx context.Context, userID string) (storage.Wallet, error) {
	return l.store.GetWallet(ctx, userID)
}

// Credit appends a positive entry and returns it with the updated wallet.
func (l *Ledger) Credit(ctx context.Context, userID string, e Entry) (storage.Transaction, storage.Wallet, error) {
	if !e.Amount.IsPositive() {
		return storage.Transaction{}, storage.Wallet{}, apperr.New(apperr.CodeInvalidInput, "credit amount must be positive")
	}

	tx := l.newTransaction(e, e.Amount)
	w, err := l.store.CreditWallet(ctx, userID, tx)
	if err != nil {
		return storage.Transaction{}, storage.Wallet{}, fmt.Errorf("credit wallet %s: %w", userID, err)
	}

	l.log.Info().
		Str("user_id", userID).
		Str("tx_id", tx.ID).
		Str("type", string(tx.Type)).
		Str("amount", tx.Amount.String()).
		Str("balance", w.Balance.String()).
		Msg("wallet credited")
	return tx, w, nil
}

// Debit appends a negative entry. The store rejects the write when the
// balance cannot cover it.
func (l *Ledger) Debit(ctx context.Context, userID string, e Entry) (storage.Transaction, storage.Wallet, error) {
	if !e.Amount.IsPositive() {
		return storage.Transaction{}, storage.Wallet{}, apperr.New(apperr.CodeInvalidInput, "debit amount must be positive")
	}

	tx := l.newTransaction(e, e.Amount.Negate())
	w, err := l.store.DebitWallet(ctx, userID, tx)
	if err != nil {
		return storage.Transaction{}, storage.Wallet{}, fmt.Errorf("debit wallet %s: %w", userID, err)
	}

	l.log.Info().
		Str("user_id", userID).
		Str("tx_id", tx.ID).
		Str("type", string(tx.Type)).
		Str("amount", tx.Amount.String()).
		Str("balance", w.Balance.String()).
		Msg("wallet debited")
	return tx, w, nil
}

// Adjust records a signed manual adjustment on behalf of an admin.
// Negative adjustments are still bounded by the balance.
func (l *Ledger) Adjust(ctx context.Context, userID string, amount money.Amount, note, actor string) (storage.Transaction, storage.Wallet, error) {
	if amount.IsZero() {
		return storage.Transaction{}, storage.Wallet{}, apperr.New(apperr.CodeInvalidInput, "adjustment amount must be non-zero")
	}

	e := Entry{
		Type:     storage.TxAdjustment,
		Amount:   amount.Abs(),
		Metadata: map[string]string{"note": note, "actor": actor},
	}
	if amount.IsNegative() {
		return l.Debit(ctx, userID, e)
	}
	return l.Credit(ctx, userID, e)
}

func (l *Ledger) newTransaction(e Entry, signed money.Amount) storage.Transaction {
	return storage.Transaction{
		ID:          uuid.NewString(),
		Type:        e.Type,
		Amount:      signed,
		Status:      storage.TxStatusCompleted,
		OrderID:     e.OrderID,
		ReferralID:  e.ReferralID,
		Metadata:    e.Metadata,
		ProcessedAt: l.now(),
	}
}
