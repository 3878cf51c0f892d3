package payouts

import (
	"strings"
	"testing"
	"time"
)

func TestReferenceCodeFormat(t *testing.T) {
	now := time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)
	code := ReferenceCode("a1b2c3d4-e5f6-7890-abcd-ef1234567890", now)

	if !strings.HasPrefix(code, "9W") {
		t.Fatalf("code %q missing 9W prefix", code)
	}
	if len(code) != 2+6+6+2 {
		t.Fatalf("code %q length = %d, want 16", code, len(code))
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("code %q not uppercase", code)
	}
	// Rider segment is the last 6 characters of the id with hyphens removed.
	if got := code[2:8]; got != "567890" {
		t.Fatalf("rider segment = %q, want %q", got, "567890")
	}
}

func TestReferenceCodeShortRiderID(t *testing.T) {
	code := ReferenceCode("r1", time.Now())
	if !strings.HasPrefix(code, "9WR1") {
		t.Fatalf("code %q, want 9WR1 prefix", code)
	}
	if len(code) != 2+2+6+2 {
		t.Fatalf("code %q length = %d, want 12", code, len(code))
	}
}

func TestReferenceCodeVaries(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		seen[ReferenceCode("rider-123456", now)] = true
	}
	// Two random suffix characters should produce at least a few
	// distinct codes across 32 draws.
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d distinct", len(seen))
	}
}
