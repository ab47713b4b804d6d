// Package sealed implements the self-contained, shareable encrypted scroll
// envelope: seal/unseal, and the beescroll:// URI codec.
package sealed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninecrypto"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// MaxSealedSize bounds the plaintext scroll JSON that may be sealed.
const MaxSealedSize = 64 * 1024

const (
	uriSchemeCurrent = "beescroll://v1/"
	uriSchemeLegacy  = "beenote://v1/"
)

// defaultKey is the fixed, public 32-byte obfuscation key used when no
// password is supplied. It provides opacity (not confidentiality) against
// casual inspection only.
var defaultKey = [32]byte{
	0x62, 0x65, 0x65, 0x77, 0x61, 0x6c, 0x6c, 0x65,
	0x74, 0x2d, 0x39, 0x73, 0x2d, 0x6f, 0x62, 0x66,
	0x75, 0x73, 0x63, 0x61, 0x74, 0x69, 0x6f, 0x6e,
	0x2d, 0x6b, 0x65, 0x79, 0x2d, 0x76, 0x31, 0x00,
}

// Scroll is the wire format of a sealed envelope.
type Scroll struct {
	Version      int    `json:"version"`
	Ciphertext   string `json:"ciphertext"` // base64
	Nonce        string `json:"nonce"`      // base64
	Salt         string `json:"salt,omitempty"`
	HasPassword  bool   `json:"has_password"`
	SealedAt     int64  `json:"sealed_at"` // unix seconds
	ScrollType   string `json:"scroll_type,omitempty"`
}

// Seal serializes s to JSON (bounded to MaxSealedSize), derives a key from
// password (or falls back to the fixed obfuscation key if password is
// empty), and AEAD-seals it.
func Seal(s scroll.Scroll, password string) (Scroll, error) {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return Scroll{}, fmt.Errorf("%w: marshal scroll: %v", nineerr.ErrInternal, err)
	}
	if len(plaintext) > MaxSealedSize {
		return Scroll{}, fmt.Errorf("%w: scroll exceeds %d bytes", nineerr.ErrInvalidData, MaxSealedSize)
	}

	var key []byte
	var saltB64 string
	hasPassword := password != ""
	if hasPassword {
		salt, err := ninecrypto.GenerateSalt()
		if err != nil {
			return Scroll{}, err
		}
		key = ninecrypto.DeriveKey([]byte(password), salt)
		saltB64 = base64.StdEncoding.EncodeToString(salt)
	} else {
		k := defaultKey
		key = k[:]
	}

	ciphertext, nonce, err := ninecrypto.Seal(key, plaintext)
	if err != nil {
		return Scroll{}, err
	}

	return Scroll{
		Version:     1,
		Ciphertext:  base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:       base64.StdEncoding.EncodeToString(nonce),
		Salt:        saltB64,
		HasPassword: hasPassword,
		SealedAt:    time.Now().UTC().Unix(),
		ScrollType:  s.Type,
	}, nil
}

// Unseal reverses Seal. If sealed.HasPassword, password and the embedded
// salt are required; otherwise the fixed obfuscation key is used.
func Unseal(sealed Scroll, password string) (scroll.Scroll, error) {
	var key []byte
	if sealed.HasPassword {
		if password == "" {
			return scroll.Scroll{}, fmt.Errorf("%w: password required", nineerr.ErrCryptoError)
		}
		salt, err := base64.StdEncoding.DecodeString(sealed.Salt)
		if err != nil {
			return scroll.Scroll{}, fmt.Errorf("%w: decode salt: %v", nineerr.ErrCryptoError, err)
		}
		key = ninecrypto.DeriveKey([]byte(password), salt)
	} else {
		k := defaultKey
		key = k[:]
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode ciphertext: %v", nineerr.ErrCryptoError, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode nonce: %v", nineerr.ErrCryptoError, err)
	}

	plaintext, err := ninecrypto.Unseal(key, ciphertext, nonce)
	if err != nil {
		return scroll.Scroll{}, err
	}

	var s scroll.Scroll
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: decode scroll: %v", nineerr.ErrInternal, err)
	}
	return s, nil
}

// RequiresPassword reports whether sealed can only be opened with a password.
func RequiresPassword(sealed Scroll) bool { return sealed.HasPassword }

// ToURI encodes sealed as beescroll://v1/<base64url(JSON)>.
func ToURI(sealed Scroll) (string, error) {
	b, err := json.Marshal(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: marshal sealed envelope: %v", nineerr.ErrInternal, err)
	}
	return uriSchemeCurrent + base64.URLEncoding.EncodeToString(b), nil
}

// FromURI decodes a beescroll:// URI, a legacy beenote:// URI, or raw JSON.
func FromURI(uri string) (Scroll, error) {
	var payload string
	switch {
	case strings.HasPrefix(uri, uriSchemeCurrent):
		payload = strings.TrimPrefix(uri, uriSchemeCurrent)
	case strings.HasPrefix(uri, uriSchemeLegacy):
		payload = strings.TrimPrefix(uri, uriSchemeLegacy)
	default:
		var s Scroll
		if err := json.Unmarshal([]byte(uri), &s); err != nil {
			return Scroll{}, fmt.Errorf("%w: not a recognized sealed scroll URI or JSON", nineerr.ErrInvalidData)
		}
		return s, nil
	}

	b, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return Scroll{}, fmt.Errorf("%w: decode uri payload: %v", nineerr.ErrInvalidData, err)
	}
	var s Scroll
	if err := json.Unmarshal(b, &s); err != nil {
		return Scroll{}, fmt.Errorf("%w: decode sealed envelope: %v", nineerr.ErrInvalidData, err)
	}
	return s, nil
}
