// Package money implements fixed-point arithmetic for the platform
// currency (Nigerian naira). All amounts are int64 kobo; arithmetic
// never touches floating point.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Amount is a monetary value in kobo (1/100 NGN). Negative amounts are
// legal inside the ledger (debits are stored signed) but most callers
// deal in non-negative values.
type Amount int64

var (
	// ErrOverflow occurs when an operation would exceed int64 capacity.
	ErrOverflow = errors.New("money: arithmetic overflow")

	// ErrInvalidFormat occurs when parsing fails.
	ErrInvalidFormat = errors.New("money: invalid format")

	// ErrNegativeAmount occurs when a negative amount is invalid for the operation.
	ErrNegativeAmount = errors.New("money: negative amount not allowed")
)

// FromKobo creates an Amount from atomic units.
func FromKobo(kobo int64) Amount {
	return Amount(kobo)
}

// FromNaira creates an Amount from a major-unit decimal string such as
// "10500.50". Uses half-up rounding beyond two decimals.
func FromNaira(major string) (Amount, error) {
	parts := strings.Split(major, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: too many decimal points", ErrInvalidFormat)
	}

	integerVal, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var fraction int64
	if len(parts) == 2 && parts[1] != "" {
		frac := parts[1]
		if len(frac) > 2 {
			roundDigit := frac[2] - '0'
			frac = frac[:2]
			fraction, _ = strconv.ParseInt(frac, 10, 64)
			if roundDigit >= 5 {
				fraction++
			}
		} else {
			for len(frac) < 2 {
				frac += "0"
			}
			fraction, _ = strconv.ParseInt(frac, 10, 64)
		}
	}

	if integerVal > (1<<62)/100 || integerVal < -((1<<62)/100) {
		return 0, ErrOverflow
	}

	total := integerVal * 100
	if integerVal < 0 {
		total -= fraction
	} else {
		total += fraction
	}
	return Amount(total), nil
}

// Kobo returns the atomic value.
func (a Amount) Kobo() int64 {
	return int64(a)
}

// Naira renders the amount as a major-unit decimal string ("10500.50").
func (a Amount) Naira() string {
	atomic := int64(a)
	neg := atomic < 0
	if neg {
		atomic = -atomic
	}
	s := fmt.Sprintf("%d.%02d", atomic/100, atomic%100)
	if neg {
		return "-" + s
	}
	return s
}

// String returns a human-readable representation, e.g. "NGN 10500.50".
func (a Amount) String() string {
	return "NGN " + a.Naira()
}

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if (sum > a) != (b > 0) {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff := a - b
	if (diff < a) != (b > 0) {
		return 0, ErrOverflow
	}
	return diff, nil
}

// MulBasisPoints multiplies by basis points (1/100th of a percent) with
// half-up rounding. A 9.5% commission rate is 950 basis points. Uses
// big.Int for the intermediate product so large payouts cannot overflow.
func (a Amount) MulBasisPoints(basisPoints int64) (Amount, error) {
	if basisPoints == 0 || a == 0 {
		return 0, nil
	}

	result := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(basisPoints))
	if result.Sign() >= 0 {
		result.Add(result, big.NewInt(5000))
	} else {
		result.Sub(result, big.NewInt(5000))
	}
	// Quo truncates toward zero, so the +-5000 bias rounds half away
	// from zero for either sign.
	result.Quo(result, big.NewInt(10000))

	if !result.IsInt64() {
		return 0, ErrOverflow
	}
	return Amount(result.Int64()), nil
}

// MulPercent multiplies by a whole-number percentage (0-100).
func (a Amount) MulPercent(percent int64) (Amount, error) {
	return a.MulBasisPoints(percent * 100)
}

// IsPositive reports whether the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// IsNegative reports whether the amount is less than zero.
func (a Amount) IsNegative() bool { return a < 0 }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a == 0 }

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Negate returns the negated amount.
func (a Amount) Negate() Amount { return -a }
