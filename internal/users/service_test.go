package users

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/storage"
)

func TestRegisterValidation(t *testing.T) {
	svc := New(storage.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name string
		reg  Registration
	}{
		{name: "unknown role", reg: Registration{Name: "A", Email: "a@example.com", Role: "admin"}},
		{name: "missing name", reg: Registration{Email: "a@example.com", Role: "rider"}},
		{name: "missing email", reg: Registration{Name: "A", Role: "customer"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.reg); apperr.CodeOf(err) != apperr.CodeInvalidInput {
				t.Fatalf("err = %v, want invalid_input", err)
			}
		})
	}
}

func TestRegisterAssignsReferralCodeAndLowercasesEmail(t *testing.T) {
	svc := New(storage.NewMemoryStore(), zerolog.Nop())

	user, err := svc.Register(context.Background(), Registration{
		Name:        "Ada",
		Email:       "Ada@Example.COM",
		PhoneNumber: "+2348000000001",
		NIN:         "12345678901",
		Role:        "rider",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email = %q", user.Email)
	}
	if len(user.ReferralCode) != 8 {
		t.Fatalf("referral code = %q", user.ReferralCode)
	}
	for _, c := range user.ReferralCode {
		if c == '0' || c == 'O' || c == '1' || c == 'I' {
			t.Fatalf("ambiguous character %q in code %q", c, user.ReferralCode)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := New(storage.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	reg := Registration{Name: "Ada", Email: "ada@example.com", Role: "customer"}
	if _, err := svc.Register(ctx, reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, reg); apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("duplicate err = %v, want conflict", err)
	}
}

func TestRegisterBlockedCredentialsRefused(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := New(store, zerolog.Nop())
	ctx := context.Background()

	err := store.InsertBlockedCredentials(ctx, storage.BlockedCredentials{
		ID:          "b1",
		UserID:      "old-rider",
		NIN:         "12345678901",
		Email:       "gone@example.com",
		PhoneNumber: "+2348000000009",
		Reason:      "maximum strikes reached",
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("insert blocked: %v", err)
	}

	tests := []struct {
		name string
		reg  Registration
	}{
		{name: "same nin", reg: Registration{Name: "X", Email: "fresh@example.com", NIN: "12345678901", Role: "rider"}},
		{name: "same email", reg: Registration{Name: "X", Email: "gone@example.com", Role: "rider"}},
		{name: "same phone", reg: Registration{Name: "X", Email: "fresh2@example.com", PhoneNumber: "+2348000000009", Role: "rider"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.reg); apperr.CodeOf(err) != apperr.CodeBlocked {
				t.Fatalf("err = %v, want blocked", err)
			}
		})
	}

	// Clean credentials still register.
	if _, err := svc.Register(ctx, Registration{Name: "Y", Email: "new@example.com", Role: "rider"}); err != nil {
		t.Fatalf("clean register: %v", err)
	}
}
