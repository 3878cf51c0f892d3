package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ninewheels/server/internal/money"
)

// MemoryStore is an in-memory Store used for tests and local development.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu sync.Mutex

	users     map[string]User
	orders    map[string]Order
	wallets   map[string]Wallet
	referrals map[string]Referral
	payouts   map[string]RiderPayout
	blocked   map[string]BlockedCredentials

	// payoutKeys indexes payouts by riderID + "|" + weekStart (RFC3339).
	payoutKeys map[string]string

	promo *PromoConfig
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]User),
		orders:     make(map[string]Order),
		wallets:    make(map[string]Wallet),
		referrals:  make(map[string]Referral),
		payouts:    make(map[string]RiderPayout),
		blocked:    make(map[string]BlockedCredentials),
		payoutKeys: make(map[string]string),
	}
}

func payoutKey(riderID string, weekStart time.Time) string {
	return riderID + "|" + weekStart.UTC().Format(time.RFC3339)
}

func cloneUser(u User) User {
	out := u
	out.Strikes = append([]Strike(nil), u.Strikes...)
	out.Gold.History = append([]GoldGrant(nil), u.Gold.History...)
	return out
}

func cloneWallet(w Wallet) Wallet {
	out := w
	out.Transactions = append([]Transaction(nil), w.Transactions...)
	return out
}

func clonePayout(p RiderPayout) RiderPayout {
	out := p
	out.Orders = append([]PayoutOrder(nil), p.Orders...)
	if p.Paystack != nil {
		ps := *p.Paystack
		out.Paystack = &ps
	}
	return out
}

// --- Users ---

func (m *MemoryStore) CreateUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, ErrConflict)
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return fmt.Errorf("email already registered: %w", ErrConflict)
		}
		if user.ReferralCode != "" && existing.ReferralCode == user.ReferralCode {
			return fmt.Errorf("referral code already taken: %w", ErrConflict)
		}
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetUserByReferralCode(_ context.Context, code string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ReferralCode == code {
			return cloneUser(u), nil
		}
	}
	return User{}, fmt.Errorf("referral code %s: %w", code, ErrNotFound)
}

func (m *MemoryStore) SetReferredBy(_ context.Context, userID, referrerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if u.ReferredBy != "" {
		return fmt.Errorf("user %s already referred: %w", userID, ErrConflict)
	}
	u.ReferredBy = referrerID
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) SetRiderOnline(_ context.Context, riderID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if online && (u.PaymentBlocked || u.AccountDeactivated) {
		return fmt.Errorf("rider %s blocked from going online: %w", riderID, ErrConflict)
	}
	u.Online = online
	m.users[riderID] = u
	return nil
}

// --- Streak state ---

func (m *MemoryStore) BumpStreak(_ context.Context, riderID, orderID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return 0, false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if u.LastStreakOrderID == orderID {
		return u.CurrentStreak, false, nil
	}
	u.CurrentStreak++
	u.LastStreakOrderID = orderID
	m.users[riderID] = u
	return u.CurrentStreak, true, nil
}

func (m *MemoryStore) ResetStreak(_ context.Context, riderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	u.CurrentStreak = 0
	m.users[riderID] = u
	return nil
}

func (m *MemoryStore) ClaimStreakBonus(_ context.Context, riderID string, threshold int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if u.CurrentStreak < threshold {
		return false, nil
	}
	u.CurrentStreak = 0
	u.LastStreakBonusAt = &at
	u.TotalStreakBonuses++
	m.users[riderID] = u
	return true, nil
}

// --- Gold status ---

func (m *MemoryStore) GrantGold(_ context.Context, riderID string, grant GoldGrant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if u.Gold.ActiveAt(grant.UnlockedAt) {
		return false, nil
	}
	unlocked := grant.UnlockedAt
	expires := grant.ExpiresAt
	u.Gold.UnlockedAt = &unlocked
	u.Gold.ExpiresAt = &expires
	u.Gold.DiscountPercent = grant.DiscountPercent
	u.Gold.TotalUnlocks++
	u.Gold.ExpiryNotified = false
	u.Gold.History = append(u.Gold.History, grant)
	m.users[riderID] = u
	return true, nil
}

func (m *MemoryStore) MarkGoldExpiryNotified(_ context.Context, riderID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if u.Gold.ExpiresAt == nil || u.Gold.ExpiresAt.After(now) || u.Gold.ExpiryNotified {
		return false, nil
	}
	u.Gold.ExpiryNotified = true
	m.users[riderID] = u
	return true, nil
}

func (m *MemoryStore) ListGoldExpiryCandidates(_ context.Context, now time.Time, limit int) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []User
	for _, u := range m.users {
		if u.Gold.ExpiresAt != nil && !u.Gold.ExpiresAt.After(now) && !u.Gold.ExpiryNotified {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountDeliveredRidesInRange(_ context.Context, riderID string, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, o := range m.orders {
		if o.RiderID != riderID || o.Status != OrderDelivered || o.ServiceType != ServiceRide || o.DeliveredAt == nil {
			continue
		}
		if !o.DeliveredAt.Before(from) && o.DeliveredAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// --- Enforcement ---

func (m *MemoryStore) BlockRider(_ context.Context, riderID, reason, payoutID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if u.PaymentBlocked {
		return false, nil
	}
	u.PaymentBlocked = true
	u.PaymentBlockedAt = &at
	u.PaymentBlockedReason = reason
	u.BlockedPayoutID = payoutID
	u.Online = false
	m.users[riderID] = u
	return true, nil
}

func (m *MemoryStore) UnblockRider(_ context.Context, riderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if !u.PaymentBlocked {
		return false, nil
	}
	u.PaymentBlocked = false
	u.PaymentBlockedAt = nil
	u.PaymentBlockedReason = ""
	u.BlockedPayoutID = ""
	m.users[riderID] = u
	return true, nil
}

func (m *MemoryStore) AddStrike(_ context.Context, riderID string, strike Strike, ifStrikeCount int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return 0, false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if len(u.Strikes) != ifStrikeCount {
		return len(u.Strikes), false, nil
	}
	u.Strikes = append(append([]Strike(nil), u.Strikes...), strike)
	m.users[riderID] = u
	return len(u.Strikes), true, nil
}

func (m *MemoryStore) DeactivateRider(_ context.Context, riderID, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if u.AccountDeactivated {
		return false, nil
	}
	u.AccountDeactivated = true
	u.AccountDeactivatedAt = &at
	u.AccountDeactivatedReason = reason
	u.Online = false
	m.users[riderID] = u
	return true, nil
}

func (m *MemoryStore) ReactivateRider(_ context.Context, riderID string, unblockPayment bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[riderID]
	if !ok {
		return false, fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	if !u.AccountDeactivated {
		return false, nil
	}
	u.AccountDeactivated = false
	u.AccountDeactivatedAt = nil
	u.AccountDeactivatedReason = ""
	if unblockPayment {
		u.PaymentBlocked = false
		u.PaymentBlockedAt = nil
		u.PaymentBlockedReason = ""
		u.BlockedPayoutID = ""
	}
	m.users[riderID] = u
	return true, nil
}

func (m *MemoryStore) InsertBlockedCredentials(_ context.Context, creds BlockedCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.blocked {
		if existing.UserID == creds.UserID {
			m.blocked[id] = creds
			return nil
		}
	}
	if creds.ID == "" {
		creds.ID = uuid.NewString()
	}
	m.blocked[creds.ID] = creds
	return nil
}

func (m *MemoryStore) IsCredentialBlocked(_ context.Context, nin, email, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.blocked {
		if nin != "" && b.NIN == nin {
			return true, nil
		}
		if email != "" && strings.EqualFold(b.Email, email) {
			return true, nil
		}
		if phone != "" && b.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

// --- Orders ---

func (m *MemoryStore) CreateOrder(_ context.Context, order Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return fmt.Errorf("order %s: %w", order.ID, ErrConflict)
	}
	m.orders[order.ID] = order
	return nil
}

func (m *MemoryStore) GetOrder(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

func (m *MemoryStore) UpdateOrderStatus(_ context.Context, orderID string, from, to OrderStatus, riderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("order %s is %s, not %s: %w", orderID, o.Status, from, ErrConflict)
	}
	o.Status = to
	if riderID != "" {
		o.RiderID = riderID
	}
	m.orders[orderID] = o
	return nil
}

func (m *MemoryStore) SetOrderFinancial(_ context.Context, orderID string, fin Financial, deliveredAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return false, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if o.Financial != nil {
		return false, nil
	}
	o.Financial = &fin
	o.DeliveredAt = &deliveredAt
	m.orders[orderID] = o
	return true, nil
}

func (m *MemoryStore) CountDeliveredOrders(_ context.Context, userID string, role Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, o := range m.orders {
		if o.Status != OrderDelivered {
			continue
		}
		switch role {
		case RoleRider:
			if o.RiderID == userID {
				n++
			}
		default:
			if o.CustomerID == userID {
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) ListDeliveredOrders(_ context.Context, filter OrderFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Order
	for _, o := range m.orders {
		if o.Status != OrderDelivered || o.DeliveredAt == nil {
			continue
		}
		if filter.RiderID != "" && o.RiderID != filter.RiderID {
			continue
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.From.IsZero() && o.DeliveredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !o.DeliveredAt.Before(filter.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveredAt.Before(*out[j].DeliveredAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Wallets ---

func (m *MemoryStore) GetWallet(_ context.Context, userID string) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[userID]
	if !ok {
		return Wallet{UserID: userID}, nil
	}
	return cloneWallet(w), nil
}

func (m *MemoryStore) CreditWallet(_ context.Context, userID string, tx Transaction) (Wallet, error) {
	if !tx.Amount.IsPositive() {
		return Wallet{}, fmt.Errorf("credit amount must be positive: %w", ErrConflict)
	}
	return m.applyWalletTx(userID, tx)
}

func (m *MemoryStore) DebitWallet(_ context.Context, userID string, tx Transaction) (Wallet, error) {
	if !tx.Amount.IsNegative() {
		return Wallet{}, fmt.Errorf("debit amount must be negative: %w", ErrConflict)
	}
	return m.applyWalletTx(userID, tx)
}

func (m *MemoryStore) applyWalletTx(userID string, tx Transaction) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[userID]
	if !ok {
		w = Wallet{UserID: userID}
	}
	next, err := w.Balance.Add(tx.Amount)
	if err != nil {
		return Wallet{}, err
	}
	if next.IsNegative() {
		return Wallet{}, fmt.Errorf("wallet %s balance %s cannot cover %s: %w",
			userID, w.Balance, tx.Amount, ErrInsufficientFunds)
	}
	w.Balance = next
	w.Transactions = append(append([]Transaction(nil), w.Transactions...), tx)
	w.UpdatedAt = tx.ProcessedAt
	m.wallets[userID] = w
	return cloneWallet(w), nil
}

// --- Referrals ---

func (m *MemoryStore) CreateReferral(_ context.Context, ref Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.referrals[ref.ID]; ok {
		return fmt.Errorf("referral %s: %w", ref.ID, ErrConflict)
	}
	for _, existing := range m.referrals {
		if existing.ReferredUserID == ref.ReferredUserID {
			return fmt.Errorf("user %s already has a referral: %w", ref.ReferredUserID, ErrConflict)
		}
	}
	m.referrals[ref.ID] = ref
	return nil
}

func (m *MemoryStore) GetReferralByReferredUser(_ context.Context, referredUserID string) (Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.referrals {
		if r.ReferredUserID == referredUserID {
			return r, nil
		}
	}
	return Referral{}, fmt.Errorf("referral for user %s: %w", referredUserID, ErrNotFound)
}

func (m *MemoryStore) SetReferralTrips(_ context.Context, referralID string, trips int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.referrals[referralID]
	if !ok {
		return fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	r.CompletedTrips = trips
	m.referrals[referralID] = r
	return nil
}

func (m *MemoryStore) ClaimReferralReward(_ context.Context, referralID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.referrals[referralID]
	if !ok {
		return false, fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	if r.RewardPaid {
		return false, nil
	}
	r.RewardPaid = true
	m.referrals[referralID] = r
	return true, nil
}

func (m *MemoryStore) FinalizeReferralReward(_ context.Context, referralID string, amount money.Amount, txID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.referrals[referralID]
	if !ok {
		return fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	r.RewardAmount = amount
	r.TransactionID = txID
	r.PaidAt = &at
	m.referrals[referralID] = r
	return nil
}

func (m *MemoryStore) RevertReferralClaim(_ context.Context, referralID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.referrals[referralID]
	if !ok {
		return fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	r.RewardPaid = false
	r.PaidAt = nil
	r.TransactionID = ""
	m.referrals[referralID] = r
	return nil
}

func (m *MemoryStore) AddReferralEarnings(_ context.Context, referrerID string, amount money.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[referrerID]
	if !ok {
		return fmt.Errorf("user %s: %w", referrerID, ErrNotFound)
	}
	total, err := u.ReferralRewardEarned.Add(amount)
	if err != nil {
		return err
	}
	u.ReferralRewardEarned = total
	m.users[referrerID] = u
	return nil
}

func (m *MemoryStore) ListReferralsByReferrer(_ context.Context, referrerID string) ([]Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Referral
	for _, r := range m.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Payouts ---

func (m *MemoryStore) EnsurePayout(_ context.Context, riderID string, weekStart, weekEnd time.Time, refCode string) (RiderPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := payoutKey(riderID, weekStart)
	if id, ok := m.payoutKeys[key]; ok {
		return clonePayout(m.payouts[id]), nil
	}
	for _, p := range m.payouts {
		if p.PaymentReferenceCode == refCode {
			return RiderPayout{}, ErrDuplicateReferenceCode
		}
	}
	now := time.Now().UTC()
	payout := RiderPayout{
		ID:                   uuid.NewString(),
		RiderID:              riderID,
		WeekStart:            weekStart,
		WeekEnd:              weekEnd,
		Orders:               []PayoutOrder{},
		Status:               PayoutPending,
		PaymentReferenceCode: refCode,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	m.payouts[payout.ID] = payout
	m.payoutKeys[key] = payout.ID
	return clonePayout(payout), nil
}

func (m *MemoryStore) AppendPayoutOrder(_ context.Context, riderID string, weekStart time.Time, snap PayoutOrder) (RiderPayout, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.payoutKeys[payoutKey(riderID, weekStart)]
	if !ok {
		return RiderPayout{}, false, fmt.Errorf("payout for rider %s week %s: %w",
			riderID, weekStart.Format("2006-01-02"), ErrNotFound)
	}
	p := m.payouts[id]
	if p.HasOrder(snap.OrderID) {
		return clonePayout(p), false, nil
	}
	p.Orders = append(append([]PayoutOrder(nil), p.Orders...), snap)
	p.Totals = ComputeTotals(p.Orders)
	p.UpdatedAt = time.Now().UTC()
	m.payouts[id] = p
	return clonePayout(p), true, nil
}

func (m *MemoryStore) GetPayout(_ context.Context, id string) (RiderPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[id]
	if !ok {
		return RiderPayout{}, fmt.Errorf("payout %s: %w", id, ErrNotFound)
	}
	return clonePayout(p), nil
}

func (m *MemoryStore) GetPayoutByRiderWeek(_ context.Context, riderID string, weekStart time.Time) (RiderPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.payoutKeys[payoutKey(riderID, weekStart)]
	if !ok {
		return RiderPayout{}, fmt.Errorf("payout for rider %s: %w", riderID, ErrNotFound)
	}
	return clonePayout(m.payouts[id]), nil
}

func (m *MemoryStore) ListPayouts(_ context.Context, filter PayoutFilter) ([]RiderPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RiderPayout
	for _, p := range m.payouts {
		if filter.RiderID != "" && p.RiderID != filter.RiderID {
			continue
		}
		if filter.WeekStart != nil && !p.WeekStart.Equal(*filter.WeekStart) {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, clonePayout(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListPendingPayoutsEndedBefore(_ context.Context, before time.Time, afterID string, limit int) ([]RiderPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []RiderPayout
	for _, p := range m.payouts {
		if p.Status != PayoutPending || p.WeekEnd.After(before) {
			continue
		}
		if afterID != "" && p.ID <= afterID {
			continue
		}
		out = append(out, clonePayout(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkPayoutPaid(_ context.Context, payoutID string, by PaidBy, proofURL, paystackRef string, at time.Time) (RiderPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[payoutID]
	if !ok {
		return RiderPayout{}, fmt.Errorf("payout %s: %w", payoutID, ErrNotFound)
	}
	if p.Status != PayoutPending {
		return RiderPayout{}, fmt.Errorf("payout %s already %s: %w", payoutID, p.Status, ErrConflict)
	}
	p.Status = PayoutPaid
	p.PaidAt = &at
	p.MarkedPaidBy = by
	p.PaymentProofURL = proofURL
	if paystackRef != "" {
		paidAt := at
		p.Paystack = &PaystackPayment{Reference: paystackRef, Status: "success", PaidAt: &paidAt}
	}
	p.UpdatedAt = at
	m.payouts[payoutID] = p
	return clonePayout(p), nil
}

// --- Promo config ---

func (m *MemoryStore) GetPromoConfig(_ context.Context) (PromoConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.promo == nil {
		return DefaultPromoConfig(), nil
	}
	return *m.promo, nil
}

func (m *MemoryStore) SavePromoConfig(_ context.Context, cfg PromoConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg.Version = 1
	if m.promo != nil {
		cfg.Version = m.promo.Version + 1
	}
	m.promo = &cfg
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
