//go:build go1.18

package domain

import (
	"strings"
	"testing"
)

// FuzzParseAddress tests that parsing never panics on arbitrary input
// and always returns either a valid address or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("0x" + strings.Repeat("ab", AddressLength))
	f.Add(strings.Repeat("00", AddressLength))
	f.Add("not-an-address")
	f.Add("'; DROP TABLE accounts;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("0x" + strings.Repeat("ab", AddressLength) + "\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		addr, err := ParseAddress(input)
		if err != nil {
			return
		}

		// A valid address must round-trip unchanged.
		roundTrip, err2 := ParseAddress(addr.String())
		if err2 != nil {
			t.Errorf("valid address failed round-trip: %v", err2)
		}
		if roundTrip != addr {
			t.Error("round-trip changed address value")
		}

		// The zero address must never parse successfully.
		if addr.IsZero() {
			t.Error("zero address was accepted")
		}
	})
}

// FuzzParseAmount verifies the decimal parser rejects anything that is not
// an unsigned 256-bit decimal and never panics.
func FuzzParseAmount(f *testing.F) {
	f.Add("")
	f.Add("0")
	f.Add("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	f.Add("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	f.Add("-1")
	f.Add("1e18")
	f.Add("00012")

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAmount(input)
		if err != nil {
			return
		}

		text, merr := a.MarshalText()
		if merr != nil {
			t.Fatalf("marshal failed for parsed amount: %v", merr)
		}
		var b Amount
		if uerr := b.UnmarshalText(text); uerr != nil {
			t.Fatalf("unmarshal failed for marshaled amount: %v", uerr)
		}
		if !a.Equal(b) {
			t.Error("round-trip changed amount value")
		}
	})
}
