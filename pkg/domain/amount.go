package domain

import (
	"github.com/holiman/uint256"

	dErrors "custodia/pkg/domain-errors"
)

// Amount is an unsigned 256-bit token quantity. The zero value is zero.
//
// All arithmetic is checked: Add and Sub fail on wraparound instead of
// silently truncating, which keeps the supply-conservation invariant a
// property of the arithmetic rather than of caller discipline.
type Amount struct {
	u uint256.Int
}

// NewAmount builds an Amount from a uint64, the common case in tests and
// configuration.
func NewAmount(v uint64) Amount {
	var a Amount
	a.u.SetUint64(v)
	return a
}

// ParseAmount constructs an Amount from a decimal string.
//
// Errors: returns CodeInvalidInput when the value is empty, not decimal, or
// exceeds 256 bits.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount cannot be empty")
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be an unsigned 256-bit decimal")
	}
	return Amount{u: *n}, nil
}

// Add returns a+b, failing with CodeInvariantViolation on 256-bit overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum Amount
	if _, overflow := sum.u.AddOverflow(&a.u, &b.u); overflow {
		return Amount{}, dErrors.New(dErrors.CodeInvariantViolation, "amount overflow")
	}
	return sum, nil
}

// Sub returns a-b, failing with CodeInvariantViolation on underflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	var diff Amount
	if _, underflow := diff.u.SubOverflow(&a.u, &b.u); underflow {
		return Amount{}, dErrors.New(dErrors.CodeInvariantViolation, "amount underflow")
	}
	return diff, nil
}

// SaturatingSub returns max(0, a-b). Used for active-balance computation,
// which floors at zero rather than failing.
func (a Amount) SaturatingSub(b Amount) Amount {
	var diff Amount
	if _, underflow := diff.u.SubOverflow(&a.u, &b.u); underflow {
		return Amount{}
	}
	return diff
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Less(b) {
		return a
	}
	return b
}

// Less reports a < b.
func (a Amount) Less(b Amount) bool {
	return a.u.Cmp(&b.u) < 0
}

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool {
	return a.u.Eq(&b.u)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.u.IsZero()
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.u.Dec()
}

// MarshalText serializes the amount as a decimal string, since 256-bit
// values do not fit JSON numbers.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.u.Dec()), nil
}

// UnmarshalText parses a decimal string.
func (a *Amount) UnmarshalText(text []byte) error {
	n, err := uint256.FromDecimal(string(text))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be an unsigned 256-bit decimal")
	}
	a.u = *n
	return nil
}
