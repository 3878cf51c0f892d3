package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ninewheels/server/internal/money"
)

// DefaultQueryTimeout bounds database queries that arrive without a deadline.
const DefaultQueryTimeout = 5 * time.Second

// promoConfigID is the fixed _id of the promotion config singleton document.
const promoConfigID = "promo_config"

// MongoStore implements Store using MongoDB. Mutations that must be
// atomic are expressed as conditional single-document updates, so the
// store never needs multi-document transactions.
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	users        *mongo.Collection
	orders       *mongo.Collection
	wallets      *mongo.Collection
	referrals    *mongo.Collection
	payouts      *mongo.Collection
	blocked      *mongo.Collection
	promos       *mongo.Collection
	queryTimeout time.Duration
}

// NewMongoStore connects to MongoDB and prepares collections and indexes.
func NewMongoStore(connectionString, database string, queryTimeout time.Duration) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		// Disconnect errors during failed initialization are not
		// actionable; the ping failure is the error that matters.
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	db := client.Database(database)
	store := &MongoStore{
		client:       client,
		db:           db,
		users:        db.Collection("users"),
		orders:       db.Collection("orders"),
		wallets:      db.Collection("wallets"),
		referrals:    db.Collection("referrals"),
		payouts:      db.Collection("rider_payouts"),
		blocked:      db.Collection("blocked_credentials"),
		promos:       db.Collection("promo_config"),
		queryTimeout: queryTimeout,
	}

	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return store, nil
}

// withQueryTimeout wraps the context with the query timeout unless the
// caller already set a deadline.
func (s *MongoStore) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referral_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "gold_status.expires_at", Value: 1}, {Key: "gold_status.expiry_notified", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}

	_, err = s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "rider_id", Value: 1}, {Key: "status", Value: 1}, {Key: "delivered_at", Value: 1}}},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create orders indexes: %w", err)
	}

	_, err = s.referrals.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "referred_user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referrer_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create referrals indexes: %w", err)
	}

	_, err = s.payouts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "rider_id", Value: 1}, {Key: "week_start", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "payment_reference_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "week_end", Value: 1}}},
		{
			Keys: bson.D{{Key: "paystack_payment.reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"paystack_payment.reference": bson.M{"$type": "string"}},
			),
		},
	})
	if err != nil {
		return fmt.Errorf("create payouts indexes: %w", err)
	}

	_, err = s.blocked.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "nin", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "phone_number", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create blocked credentials indexes: %w", err)
	}

	return nil
}

// --- Users ---

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", user.ID, ErrConflict)
	}
	return err
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (User, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var u User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *MongoStore) GetUserByReferralCode(ctx context.Context, code string) (User, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var u User
	err := s.users.FindOne(ctx, bson.M{"referral_code": code}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, fmt.Errorf("referral code %s: %w", code, ErrNotFound)
	}
	return u, err
}

func (s *MongoStore) SetReferredBy(ctx context.Context, userID, referrerID string) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	// $in with null matches documents where the field is absent.
	filter := bson.M{"_id": userID, "referred_by": bson.M{"$in": bson.A{nil, ""}}}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"referred_by": referrerID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
		return fmt.Errorf("user %s already referred: %w", userID, ErrConflict)
	}
	return nil
}

func (s *MongoStore) SetRiderOnline(ctx context.Context, riderID string, online bool) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": riderID}
	if online {
		filter["payment_blocked"] = false
		filter["account_deactivated"] = false
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"online": online}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return err
		}
		return fmt.Errorf("rider %s blocked from going online: %w", riderID, ErrConflict)
	}
	return nil
}

// --- Streak state ---

func (s *MongoStore) BumpStreak(ctx context.Context, riderID, orderID string) (int, bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": riderID, "last_streak_order_id": bson.M{"$ne": orderID}}
	update := bson.M{
		"$inc": bson.M{"current_streak": 1},
		"$set": bson.M{"last_streak_order_id": orderID},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u User
	err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the rider is unknown or this order was already counted.
		existing, getErr := s.GetUser(ctx, riderID)
		if getErr != nil {
			return 0, false, getErr
		}
		return existing.CurrentStreak, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return u.CurrentStreak, true, nil
}

func (s *MongoStore) ResetStreak(ctx context.Context, riderID string) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": riderID}, bson.M{"$set": bson.M{"current_streak": 0}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("rider %s: %w", riderID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) ClaimStreakBonus(ctx context.Context, riderID string, threshold int, at time.Time) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": riderID, "current_streak": bson.M{"$gte": threshold}}
	update := bson.M{
		"$set": bson.M{"current_streak": 0, "last_streak_bonus_at": at},
		"$inc": bson.M{"total_streak_bonuses": 1},
	}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// --- Gold status ---

func (s *MongoStore) GrantGold(ctx context.Context, riderID string, grant GoldGrant) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"_id": riderID,
		"$or": bson.A{
			bson.M{"gold_status.expires_at": bson.M{"$exists": false}},
			bson.M{"gold_status.expires_at": bson.M{"$lte": grant.UnlockedAt}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"gold_status.unlocked_at":      grant.UnlockedAt,
			"gold_status.expires_at":       grant.ExpiresAt,
			"gold_status.discount_percent": grant.DiscountPercent,
			"gold_status.expiry_notified":  false,
		},
		"$inc":  bson.M{"gold_status.total_unlocks": 1},
		"$push": bson.M{"gold_status.history": grant},
	}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) MarkGoldExpiryNotified(ctx context.Context, riderID string, now time.Time) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"_id":                         riderID,
		"gold_status.expires_at":      bson.M{"$lte": now},
		"gold_status.expiry_notified": false,
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"gold_status.expiry_notified": true}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) ListGoldExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]User, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"gold_status.expires_at":      bson.M{"$lte": now},
		"gold_status.expiry_notified": false,
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) CountDeliveredRidesInRange(ctx context.Context, riderID string, from, to time.Time) (int, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"rider_id":     riderID,
		"status":       OrderDelivered,
		"service_type": ServiceRide,
		"delivered_at": bson.M{"$gte": from, "$lt": to},
	}
	n, err := s.orders.CountDocuments(ctx, filter)
	return int(n), err
}

// --- Enforcement ---

func (s *MongoStore) BlockRider(ctx context.Context, riderID, reason, payoutID string, at time.Time) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": riderID, "payment_blocked": false}
	update := bson.M{"$set": bson.M{
		"payment_blocked":        true,
		"payment_blocked_at":     at,
		"payment_blocked_reason": reason,
		"blocked_payout_id":      payoutID,
		"online":                 false,
	}}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) UnblockRider(ctx context.Context, riderID string) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": riderID, "payment_blocked": true}
	update := bson.M{
		"$set": bson.M{"payment_blocked": false},
		"$unset": bson.M{
			"payment_blocked_at":     "",
			"payment_blocked_reason": "",
			"blocked_payout_id":      "",
		},
	}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) AddStrike(ctx context.Context, riderID string, strike Strike, ifStrikeCount int) (int, bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	sizeCond := bson.M{"strikes": bson.M{"$size": ifStrikeCount}}
	filter := bson.M{"_id": riderID}
	if ifStrikeCount == 0 {
		filter["$or"] = bson.A{bson.M{"strikes": bson.M{"$exists": false}}, sizeCond}
	} else {
		filter["strikes"] = sizeCond["strikes"]
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"strikes": strike}})
	if err != nil {
		return 0, false, err
	}
	if res.MatchedCount == 0 {
		u, getErr := s.GetUser(ctx, riderID)
		if getErr != nil {
			return 0, false, getErr
		}
		return len(u.Strikes), false, nil
	}
	return ifStrikeCount + 1, true, nil
}

func (s *MongoStore) DeactivateRider(ctx context.Context, riderID, reason string, at time.Time) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": riderID, "account_deactivated": false}
	update := bson.M{"$set": bson.M{
		"account_deactivated":        true,
		"account_deactivated_at":     at,
		"account_deactivated_reason": reason,
		"online":                     false,
	}}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) ReactivateRider(ctx context.Context, riderID string, unblockPayment bool) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	set := bson.M{"account_deactivated": false}
	unset := bson.M{"account_deactivated_at": "", "account_deactivated_reason": ""}
	if unblockPayment {
		set["payment_blocked"] = false
		unset["payment_blocked_at"] = ""
		unset["payment_blocked_reason"] = ""
		unset["blocked_payout_id"] = ""
	}
	filter := bson.M{"_id": riderID, "account_deactivated": true}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": set, "$unset": unset})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, riderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) InsertBlockedCredentials(ctx context.Context, creds BlockedCredentials) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	if creds.ID == "" {
		creds.ID = uuid.NewString()
	}
	filter := bson.M{"user_id": creds.UserID}
	update := bson.M{
		"$set": bson.M{
			"nin":          creds.NIN,
			"email":        creds.Email,
			"phone_number": creds.PhoneNumber,
			"reason":       creds.Reason,
		},
		"$setOnInsert": bson.M{
			"_id":        creds.ID,
			"user_id":    creds.UserID,
			"created_at": creds.CreatedAt,
		},
	}
	_, err := s.blocked.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) IsCredentialBlocked(ctx context.Context, nin, email, phone string) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var or bson.A
	if nin != "" {
		or = append(or, bson.M{"nin": nin})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if phone != "" {
		or = append(or, bson.M{"phone_number": phone})
	}
	if len(or) == 0 {
		return false, nil
	}
	n, err := s.blocked.CountDocuments(ctx, bson.M{"$or": or})
	return n > 0, err
}

// --- Orders ---

func (s *MongoStore) CreateOrder(ctx context.Context, order Order) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	_, err := s.orders.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("order %s: %w", order.ID, ErrConflict)
	}
	return err
}

func (s *MongoStore) GetOrder(ctx context.Context, id string) (Order, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var o Order
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, err
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, orderID string, from, to OrderStatus, riderID string) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	set := bson.M{"status": to}
	if riderID != "" {
		set["rider_id"] = riderID
	}
	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": orderID, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		o, getErr := s.GetOrder(ctx, orderID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("order %s is %s, not %s: %w", orderID, o.Status, from, ErrConflict)
	}
	return nil
}

func (s *MongoStore) SetOrderFinancial(ctx context.Context, orderID string, fin Financial, deliveredAt time.Time) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": orderID, "financial": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"financial": fin, "delivered_at": deliveredAt}}
	res, err := s.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) CountDeliveredOrders(ctx context.Context, userID string, role Role) (int, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"status": OrderDelivered}
	if role == RoleRider {
		filter["rider_id"] = userID
	} else {
		filter["customer_id"] = userID
	}
	n, err := s.orders.CountDocuments(ctx, filter)
	return int(n), err
}

func (s *MongoStore) ListDeliveredOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	query := bson.M{"status": OrderDelivered}
	if filter.RiderID != "" {
		query["rider_id"] = filter.RiderID
	}
	if filter.CustomerID != "" {
		query["customer_id"] = filter.CustomerID
	}
	deliveredAt := bson.M{}
	if !filter.From.IsZero() {
		deliveredAt["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		deliveredAt["$lt"] = filter.To
	}
	if len(deliveredAt) > 0 {
		query["delivered_at"] = deliveredAt
	}

	opts := options.Find().SetSort(bson.D{{Key: "delivered_at", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := s.orders.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Wallets ---

func (s *MongoStore) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var w Wallet
	err := s.wallets.FindOne(ctx, bson.M{"_id": userID}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// A user with no ledger has an implicit zero wallet.
		return Wallet{UserID: userID}, nil
	}
	return w, err
}

func (s *MongoStore) CreditWallet(ctx context.Context, userID string, tx Transaction) (Wallet, error) {
	if !tx.Amount.IsPositive() {
		return Wallet{}, fmt.Errorf("credit amount must be positive: %w", ErrConflict)
	}

	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	update := bson.M{
		"$inc":  bson.M{"balance": tx.Amount},
		"$push": bson.M{"transactions": tx},
		"$set":  bson.M{"updated_at": tx.ProcessedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var w Wallet
	if err := s.wallets.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (s *MongoStore) DebitWallet(ctx context.Context, userID string, tx Transaction) (Wallet, error) {
	if !tx.Amount.IsNegative() {
		return Wallet{}, fmt.Errorf("debit amount must be negative: %w", ErrConflict)
	}

	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	// Balance guard and ledger append happen in one conditional update,
	// so a concurrent debit can never overdraw the wallet.
	filter := bson.M{"_id": userID, "balance": bson.M{"$gte": tx.Amount.Abs()}}
	update := bson.M{
		"$inc":  bson.M{"balance": tx.Amount},
		"$push": bson.M{"transactions": tx},
		"$set":  bson.M{"updated_at": tx.ProcessedAt},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var w Wallet
	err := s.wallets.FindOneAndUpdate(ctx, filter, update, opts).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Wallet{}, fmt.Errorf("wallet %s cannot cover %s: %w", userID, tx.Amount, ErrInsufficientFunds)
	}
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// --- Referrals ---

func (s *MongoStore) CreateReferral(ctx context.Context, ref Referral) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	_, err := s.referrals.InsertOne(ctx, ref)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s already has a referral: %w", ref.ReferredUserID, ErrConflict)
	}
	return err
}

func (s *MongoStore) GetReferralByReferredUser(ctx context.Context, referredUserID string) (Referral, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var r Referral
	err := s.referrals.FindOne(ctx, bson.M{"referred_user_id": referredUserID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Referral{}, fmt.Errorf("referral for user %s: %w", referredUserID, ErrNotFound)
	}
	return r, err
}

func (s *MongoStore) SetReferralTrips(ctx context.Context, referralID string, trips int) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	res, err := s.referrals.UpdateOne(ctx, bson.M{"_id": referralID}, bson.M{"$set": bson.M{"completed_trips": trips}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) ClaimReferralReward(ctx context.Context, referralID string) (bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": referralID, "reward_paid": false}
	res, err := s.referrals.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"reward_paid": true}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		var r Referral
		err := s.referrals.FindOne(ctx, bson.M{"_id": referralID}).Decode(&r)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
		}
		return false, err
	}
	return true, nil
}

func (s *MongoStore) FinalizeReferralReward(ctx context.Context, referralID string, amount money.Amount, txID string, at time.Time) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"reward_amount":  amount,
		"transaction_id": txID,
		"paid_at":        at,
	}}
	res, err := s.referrals.UpdateOne(ctx, bson.M{"_id": referralID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) RevertReferralClaim(ctx context.Context, referralID string) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"reward_paid": false},
		"$unset": bson.M{"paid_at": "", "transaction_id": ""},
	}
	res, err := s.referrals.UpdateOne(ctx, bson.M{"_id": referralID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("referral %s: %w", referralID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) AddReferralEarnings(ctx context.Context, referrerID string, amount money.Amount) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	update := bson.M{"$inc": bson.M{"referral_reward_earned": amount}}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": referrerID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", referrerID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) ListReferralsByReferrer(ctx context.Context, referrerID string) ([]Referral, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.referrals.Find(ctx, bson.M{"referrer_id": referrerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Referral
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Payouts ---

func (s *MongoStore) EnsurePayout(ctx context.Context, riderID string, weekStart, weekEnd time.Time, refCode string) (RiderPayout, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"rider_id": riderID, "week_start": weekStart}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":                    uuid.NewString(),
		"rider_id":               riderID,
		"week_start":             weekStart,
		"week_end":               weekEnd,
		"orders":                 bson.A{},
		"totals":                 PayoutTotals{},
		"status":                 PayoutPending,
		"payment_reference_code": refCode,
		"rewards_used":           money.Amount(0),
		"created_at":             now,
		"updated_at":             now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var p RiderPayout
	err := s.payouts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if mongo.IsDuplicateKeyError(err) {
		return RiderPayout{}, ErrDuplicateReferenceCode
	}
	if err != nil {
		return RiderPayout{}, err
	}
	return p, nil
}

func (s *MongoStore) AppendPayoutOrder(ctx context.Context, riderID string, weekStart time.Time, snap PayoutOrder) (RiderPayout, bool, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	// Pipeline update: append the snapshot and recompute totals from the
	// full array in the same atomic write.
	filter := bson.M{
		"rider_id":        riderID,
		"week_start":      weekStart,
		"orders.order_id": bson.M{"$ne": snap.OrderID},
	}
	snapDoc := bson.M{
		"order_id":     snap.OrderID,
		"delivered_at": snap.DeliveredAt,
		"gross":        snap.Gross,
		"commission":   snap.Commission,
		"rider_net":    snap.RiderNet,
		"service_type": snap.ServiceType,
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"orders":     bson.M{"$concatArrays": bson.A{"$orders", bson.A{snapDoc}}},
			"updated_at": time.Now().UTC(),
		}}},
		{{Key: "$set", Value: bson.M{
			"totals": bson.M{
				"gross":      bson.M{"$sum": "$orders.gross"},
				"commission": bson.M{"$sum": "$orders.commission"},
				"rider_net":  bson.M{"$sum": "$orders.rider_net"},
				"count":      bson.M{"$size": "$orders"},
			},
		}}},
	}
	res, err := s.payouts.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return RiderPayout{}, false, err
	}

	payout, getErr := s.GetPayoutByRiderWeek(ctx, riderID, weekStart)
	if getErr != nil {
		return RiderPayout{}, false, getErr
	}
	return payout, res.MatchedCount > 0, nil
}

func (s *MongoStore) GetPayout(ctx context.Context, id string) (RiderPayout, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var p RiderPayout
	err := s.payouts.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RiderPayout{}, fmt.Errorf("payout %s: %w", id, ErrNotFound)
	}
	return p, err
}

func (s *MongoStore) GetPayoutByRiderWeek(ctx context.Context, riderID string, weekStart time.Time) (RiderPayout, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var p RiderPayout
	err := s.payouts.FindOne(ctx, bson.M{"rider_id": riderID, "week_start": weekStart}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RiderPayout{}, fmt.Errorf("payout for rider %s: %w", riderID, ErrNotFound)
	}
	return p, err
}

func (s *MongoStore) ListPayouts(ctx context.Context, filter PayoutFilter) ([]RiderPayout, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	query := bson.M{}
	if filter.RiderID != "" {
		query["rider_id"] = filter.RiderID
	}
	if filter.WeekStart != nil {
		query["week_start"] = *filter.WeekStart
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "week_start", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := s.payouts.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []RiderPayout
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) ListPendingPayoutsEndedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]RiderPayout, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	query := bson.M{
		"status":   PayoutPending,
		"week_end": bson.M{"$lte": before},
	}
	if afterID != "" {
		query["_id"] = bson.M{"$gt": afterID}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.payouts.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []RiderPayout
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) MarkPayoutPaid(ctx context.Context, payoutID string, by PaidBy, proofURL, paystackRef string, at time.Time) (RiderPayout, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	set := bson.M{
		"status":         PayoutPaid,
		"paid_at":        at,
		"marked_paid_by": by,
		"updated_at":     at,
	}
	if proofURL != "" {
		set["payment_proof_url"] = proofURL
	}
	if paystackRef != "" {
		set["paystack_payment"] = PaystackPayment{Reference: paystackRef, Status: "success", PaidAt: &at}
	}
	filter := bson.M{"_id": payoutID, "status": PayoutPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p RiderPayout
	err := s.payouts.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, getErr := s.GetPayout(ctx, payoutID)
		if getErr != nil {
			return RiderPayout{}, getErr
		}
		return RiderPayout{}, fmt.Errorf("payout %s already %s: %w", payoutID, existing.Status, ErrConflict)
	}
	if mongo.IsDuplicateKeyError(err) {
		return RiderPayout{}, fmt.Errorf("paystack reference %s already used: %w", paystackRef, ErrConflict)
	}
	if err != nil {
		return RiderPayout{}, err
	}
	return p, nil
}

// --- Promo config ---

func (s *MongoStore) GetPromoConfig(ctx context.Context) (PromoConfig, error) {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	var cfg PromoConfig
	err := s.promos.FindOne(ctx, bson.M{"_id": promoConfigID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DefaultPromoConfig(), nil
	}
	return cfg, err
}

func (s *MongoStore) SavePromoConfig(ctx context.Context, cfg PromoConfig) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"referral":    cfg.Referral,
			"streak":      cfg.Streak,
			"gold_status": cfg.GoldStatus,
			"updated_at":  cfg.UpdatedAt,
			"updated_by":  cfg.UpdatedBy,
		},
		"$inc": bson.M{"version": 1},
	}
	_, err := s.promos.UpdateOne(ctx, bson.M{"_id": promoConfigID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
