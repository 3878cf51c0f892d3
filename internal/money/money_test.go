package money

import (
	"errors"
	"math"
	"testing"
)

func TestFromNaira(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{name: "whole naira", input: "5000", want: 500000},
		{name: "two decimals", input: "10500.50", want: 1050050},
		{name: "one decimal pads", input: "10.5", want: 1050},
		{name: "rounds half up", input: "1.005", want: 101},
		{name: "rounds down below half", input: "1.004", want: 100},
		{name: "negative", input: "-150.25", want: -15025},
		{name: "zero", input: "0", want: 0},
		{name: "two points", input: "1.2.3", wantErr: ErrInvalidFormat},
		{name: "not a number", input: "abc", wantErr: ErrInvalidFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromNaira(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("FromNaira(%q) err = %v, want %v", tc.input, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromNaira(%q) error: %v", tc.input, err)
			}
			if got.Kobo() != tc.want {
				t.Fatalf("FromNaira(%q) = %d kobo, want %d", tc.input, got.Kobo(), tc.want)
			}
		})
	}
}

func TestNairaRoundTrip(t *testing.T) {
	a := FromKobo(1050050)
	if got := a.Naira(); got != "10500.50" {
		t.Fatalf("Naira() = %q, want %q", got, "10500.50")
	}
	if got := a.String(); got != "NGN 10500.50" {
		t.Fatalf("String() = %q, want %q", got, "NGN 10500.50")
	}
	if got := FromKobo(-15025).Naira(); got != "-150.25" {
		t.Fatalf("negative Naira() = %q, want %q", got, "-150.25")
	}
}

func TestMulBasisPoints(t *testing.T) {
	tests := []struct {
		name string
		a    int64
		bps  int64
		want int64
	}{
		// 10% of N10,000 with a 5% gold discount is 950 bps.
		{name: "discounted commission", a: 1000000, bps: 950, want: 95000},
		{name: "full commission", a: 1000000, bps: 1000, want: 100000},
		{name: "half up rounding", a: 105, bps: 950, want: 10}, // 9.975 -> 10
		{name: "rounds down", a: 104, bps: 950, want: 10},      // 9.88 -> 10
		{name: "one kobo", a: 1, bps: 950, want: 0},            // 0.095 -> 0
		{name: "zero amount", a: 0, bps: 950, want: 0},
		{name: "zero rate", a: 1000000, bps: 0, want: 0},
		{name: "negative amount", a: -1000, bps: 950, want: -95},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromKobo(tc.a).MulBasisPoints(tc.bps)
			if err != nil {
				t.Fatalf("MulBasisPoints(%d, %d) error: %v", tc.a, tc.bps, err)
			}
			if got.Kobo() != tc.want {
				t.Fatalf("MulBasisPoints(%d, %d) = %d, want %d", tc.a, tc.bps, got.Kobo(), tc.want)
			}
		})
	}
}

func TestMulBasisPointsLargeAmountNoOverflow(t *testing.T) {
	// The intermediate product exceeds int64; big.Int must carry it.
	a := FromKobo(math.MaxInt64 / 100)
	got, err := a.MulBasisPoints(950)
	if err != nil {
		t.Fatalf("MulBasisPoints error: %v", err)
	}
	if !got.IsPositive() {
		t.Fatalf("MulBasisPoints = %d, want positive", got.Kobo())
	}
}

func TestAddSubOverflow(t *testing.T) {
	if _, err := FromKobo(math.MaxInt64).Add(FromKobo(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Add overflow err = %v, want ErrOverflow", err)
	}
	if _, err := FromKobo(math.MinInt64).Sub(FromKobo(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Sub overflow err = %v, want ErrOverflow", err)
	}

	sum, err := FromKobo(300).Add(FromKobo(-100))
	if err != nil || sum.Kobo() != 200 {
		t.Fatalf("Add = %d, %v; want 200, nil", sum.Kobo(), err)
	}
}

func TestSignHelpers(t *testing.T) {
	if !FromKobo(1).IsPositive() || FromKobo(1).IsNegative() {
		t.Fatal("positive amount misclassified")
	}
	if !FromKobo(-1).IsNegative() || FromKobo(-1).IsPositive() {
		t.Fatal("negative amount misclassified")
	}
	if !FromKobo(0).IsZero() {
		t.Fatal("zero amount misclassified")
	}
	if FromKobo(-5).Abs().Kobo() != 5 {
		t.Fatal("Abs(-5) != 5")
	}
	if FromKobo(5).Negate().Kobo() != -5 {
		t.Fatal("Negate(5) != -5")
	}
}
