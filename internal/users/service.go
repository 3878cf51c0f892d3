// Package users handles account registration and lookup. Every new
// account is stamped with a unique referral code, and credentials
// tombstoned by a past deactivation are refused outright.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/logger"
	"github.com/ninewheels/server/internal/storage"
)

const (
	referralCodeLen     = 8
	referralCodeRetries = 5
	codeAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I
)

// Service manages user accounts.
type Service struct {
	store storage.Store
	log   zerolog.Logger
	now   func() time.Time
}

// New creates the user service.
func New(store storage.Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "users").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Registration is the signup input.
type Registration struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	NIN         string `json:"nin"`
	Role        string `json:"role"`
}

// Register creates an account unless any credential was blocked by a
// prior deactivation. Retries referral code generation on the rare
// collision.
func (s *Service) Register(ctx context.Context, reg Registration) (storage.User, error) {
	role := storage.Role(reg.Role)
	if role != storage.RoleCustomer && role != storage.RoleRider {
		return storage.User{}, apperr.Newf(apperr.CodeInvalidInput, "unknown role %q", reg.Role)
	}
	if reg.Name == "" || reg.Email == "" {
		return storage.User{}, apperr.New(apperr.CodeInvalidInput, "name and email required")
	}

	blocked, err := s.store.IsCredentialBlocked(ctx, reg.NIN, reg.Email, reg.PhoneNumber)
	if err != nil {
		return storage.User{}, fmt.Errorf("check blocked credentials: %w", err)
	}
	if blocked {
		return storage.User{}, apperr.New(apperr.CodeBlocked, "credentials are blocked from registration")
	}

	user := storage.User{
		ID:          uuid.NewString(),
		Name:        reg.Name,
		Email:       strings.ToLower(reg.Email),
		PhoneNumber: reg.PhoneNumber,
		NIN:         reg.NIN,
		Role:        role,
		CreatedAt:   s.now(),
	}

	for attempt := 0; attempt < referralCodeRetries; attempt++ {
		user.ReferralCode = randomCode(referralCodeLen)
		err := s.store.CreateUser(ctx, user)
		if err == nil {
			s.log.Info().
				Str("user_id", user.ID).
				Str("email", logger.RedactEmail(user.Email)).
				Str("role", string(user.Role)).
				Msg("user registered")
			return user, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return storage.User{}, fmt.Errorf("create user: %w", err)
		}
		// Conflict may be the email, not the code; a fresh code settles it.
		if attempt == referralCodeRetries-1 {
			return storage.User{}, apperr.New(apperr.CodeConflict, "email already registered")
		}
	}
	return storage.User{}, apperr.New(apperr.CodeConflict, "email already registered")
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (storage.User, error) {
	return s.store.GetUser(ctx, id)
}

func randomCode(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, c := range buf {
		out[i] = codeAlphabet[int(c)%len(codeAlphabet)]
	}
	return string(out)
}
