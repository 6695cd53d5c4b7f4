package domain

import (
	"encoding/hex"
	"strings"

	dErrors "custodia/pkg/domain-errors"
)

// AddressLength is the byte length of a ledger address.
const AddressLength = 20

// Address identifies an account on the ledger. The zero value is the
// distinguished zero address, used by the transfer primitives to represent
// the mint source and the burn sink; it can never hold a balance or a role.
//
// Usage: construct via ParseAddress at trust boundaries to enforce the hex
// format; direct casting bypasses validation.
type Address [AddressLength]byte

// ZeroAddress is the mint source / burn sink.
var ZeroAddress = Address{}

// ParseAddress constructs an Address from external input.
//
// Accepts a 40-character hex string, with or without a 0x prefix.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or
// the zero address; callers that legitimately need the zero address use
// ZeroAddress directly.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != AddressLength*2 {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes of hex")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address is not valid hex")
	}
	var addr Address
	copy(addr[:], decoded)
	if addr.IsZero() {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "zero address is reserved")
	}
	return addr, nil
}

// IsZero reports whether the address is the distinguished zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the 0x-prefixed lowercase hex representation.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as
// hex strings in JSON payloads and map keys.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unlike ParseAddress it
// accepts the zero address, since stored events legitimately contain it.
func (a *Address) UnmarshalText(text []byte) error {
	raw := strings.TrimPrefix(strings.ToLower(string(text)), "0x")
	if len(raw) != AddressLength*2 {
		return dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes of hex")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "address is not valid hex")
	}
	copy(a[:], decoded)
	return nil
}
