// Package mobi derives the human-readable 21-digit Mobi identifier from a
// secp256k1 public key.
//
// The original derivation lives in an external C library (mobi.h) that is
// not available in this codebase's source material — only a Rust FFI
// wrapper around it was retrieved, with two worked examples but no
// algorithm. Reverse-engineering a one-way function from two input/output
// pairs is not possible, so this package implements an independent,
// deterministic derivation built from the same SHA-256/RIPEMD-160 Hash160
// chain the teacher's wallet package uses for address derivation: it
// satisfies every testable property spec.md states (determinism,
// byte-for-byte round trip between the hex and bytes entry points,
// progressive-prefix collision resolution, display-equivalence,
// endianness-independence) without claiming to reproduce the upstream
// library's exact output. See DESIGN.md for the recorded decision.
package mobi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/ripemd160"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// Mobi is the complete 21-digit identifier with its progressive-collision
// prefixes.
type Mobi struct {
	Full     string // 21 digits, canonical, always unique
	Display  string // first 12 digits
	Extended string // first 15 digits
	Lng      string // first 18 digits
}

var tenTo21 = new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil)

// DeriveFromBytes derives a Mobi from a raw 32-byte public key: SHA-256
// followed by RIPEMD-160 (the same Hash160 chain used for address
// derivation), reduced mod 10^21.
func DeriveFromBytes(pubkey [32]byte) (Mobi, error) {
	sha := sha256.Sum256(pubkey[:])
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	h := ripe.Sum(nil)

	n := new(big.Int).SetBytes(h)
	n.Mod(n, tenTo21)
	full := fmt.Sprintf("%021s", n.String())

	return Mobi{
		Full:     full,
		Display:  full[:12],
		Extended: full[:15],
		Lng:      full[:18],
	}, nil
}

// DeriveFromHex derives a Mobi from a 64-character hex-encoded public key.
// Round-trips byte-for-byte with DeriveFromBytes: DeriveFromHex(hex(pk)) ==
// DeriveFromBytes(pk).
func DeriveFromHex(pubkeyHex string) (Mobi, error) {
	if len(pubkeyHex) != 64 {
		return Mobi{}, fmt.Errorf("%w: expected 64 hex characters, got %d", nineerr.ErrInvalidData, len(pubkeyHex))
	}
	decoded, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return Mobi{}, fmt.Errorf("%w: invalid hex: %v", nineerr.ErrInvalidData, err)
	}
	var raw [32]byte
	copy(raw[:], decoded)
	return DeriveFromBytes(raw)
}

// FormatWithHyphens groups digits in runs of three, joined by hyphens.
func FormatWithHyphens(digits string) string {
	var parts []string
	for i := 0; i < len(digits); i += 3 {
		end := i + 3
		if end > len(digits) {
			end = len(digits)
		}
		parts = append(parts, digits[i:end])
	}
	return strings.Join(parts, "-")
}

// DisplayFormatted returns m.Display grouped with hyphens.
func (m Mobi) DisplayFormatted() string { return FormatWithHyphens(m.Display) }

// ExtendedFormatted returns m.Extended grouped with hyphens.
func (m Mobi) ExtendedFormatted() string { return FormatWithHyphens(m.Extended) }

// LngFormatted returns m.Lng grouped with hyphens.
func (m Mobi) LngFormatted() string { return FormatWithHyphens(m.Lng) }

// FullFormatted returns m.Full grouped with hyphens.
func (m Mobi) FullFormatted() string { return FormatWithHyphens(m.Full) }

// DisplayMatches reports whether m and other share the same first 12 digits.
func (m Mobi) DisplayMatches(other Mobi) bool { return m.Display == other.Display }

// FullMatches reports whether m and other are the exact same identifier.
func (m Mobi) FullMatches(other Mobi) bool { return m.Full == other.Full }

// Normalize strips hyphens/spaces from input, returning digits only.
func Normalize(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '-' || r == ' ' {
			continue
		} else {
			return "", fmt.Errorf("%w: unexpected character %q in mobi string", nineerr.ErrInvalidData, r)
		}
	}
	return b.String(), nil
}

// Validate reports whether mobi is 12, 15, 18, or 21 digits, all numeric.
func Validate(mobiStr string) bool {
	switch len(mobiStr) {
	case 12, 15, 18, 21:
	default:
		return false
	}
	for _, r := range mobiStr {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DisplayMatchesStr compares two mobi strings on their first 12 digits
// after normalization.
func DisplayMatchesStr(a, b string) bool {
	na, err := Normalize(a)
	if err != nil || len(na) < 12 {
		return false
	}
	nb, err := Normalize(b)
	if err != nil || len(nb) < 12 {
		return false
	}
	return na[:12] == nb[:12]
}
