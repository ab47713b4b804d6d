// Package ninecrypto implements the 9S crypto primitives: the Argon2id KDF
// and passphrase hasher, salt generation, AES-256-GCM AEAD seal/unseal, and
// HKDF-based per-application key derivation.
package ninecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// Argon2id parameters. Compile-time constants, not runtime knobs: no
// environment variable or config entry overrides them.
const (
	argonMemoryKiB  = 64 * 1024
	argonIterations = 3
	argonThreads    = 4
	argonKeyLen     = 32
	saltLen         = 16
	nonceLen        = 12
)

// appKeySalt is the fixed HKDF extract salt for per-application key
// derivation. Domain separation depends on this string: changing it is a
// breaking change for every app key ever derived.
const appKeySalt = "beewallet-9s-v1"

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: generate salt: %v", nineerr.ErrCryptoError, err)
	}
	return salt, nil
}

// DeriveKey runs Argon2id over passphrase with salt, producing a 32-byte
// key directly (no PHC-string truncation — callers that need a storable
// hash use HashPassphrase instead).
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonIterations, argonMemoryKiB, argonThreads, argonKeyLen)
}

// HashPassphrase derives a salted Argon2id hash and encodes it as a PHC
// string, so verification can later recover the exact parameters used even
// if the compile-time defaults change.
func HashPassphrase(passphrase []byte) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	hash := DeriveKey(passphrase, salt)
	return encodePHC(salt, hash), nil
}

// VerifyPassphrase parses a PHC string produced by HashPassphrase and
// reports whether passphrase reproduces the embedded hash, using whatever
// parameters are encoded in the string (so old and new parameter sets both
// verify correctly).
func VerifyPassphrase(phc string, passphrase []byte) (bool, error) {
	params, salt, hash, err := decodePHC(phc)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey(passphrase, salt, params.iterations, params.memoryKiB, params.threads, uint32(len(hash)))
	return constantTimeEqual(got, hash), nil
}

type phcParams struct {
	memoryKiB, iterations uint32
	threads               uint8
}

// encodePHC renders $argon2id$v=19$m=...,t=...,p=...$<b64 salt>$<b64 hash>.
func encodePHC(salt, hash []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemoryKiB, argonIterations, argonThreads,
		b64Encode(salt), b64Encode(hash))
}

func decodePHC(s string) (phcParams, []byte, []byte, error) {
	parts := strings.Split(s, "$")
	// parts[0] == "", parts[1] == "argon2id", parts[2] == "v=19",
	// parts[3] == "m=...,t=...,p=...", parts[4] == salt, parts[5] == hash
	if len(parts) != 6 || parts[1] != "argon2id" {
		return phcParams{}, nil, nil, fmt.Errorf("%w: malformed PHC string", nineerr.ErrCryptoError)
	}
	var p phcParams
	for _, kv := range strings.Split(parts[3], ",") {
		kvParts := strings.SplitN(kv, "=", 2)
		if len(kvParts) != 2 {
			continue
		}
		n, err := strconv.Atoi(kvParts[1])
		if err != nil {
			return phcParams{}, nil, nil, fmt.Errorf("%w: malformed PHC parameter %q", nineerr.ErrCryptoError, kv)
		}
		switch kvParts[0] {
		case "m":
			p.memoryKiB = uint32(n)
		case "t":
			p.iterations = uint32(n)
		case "p":
			p.threads = uint8(n)
		}
	}
	salt, err := b64Decode(parts[4])
	if err != nil {
		return phcParams{}, nil, nil, fmt.Errorf("%w: decode salt: %v", nineerr.ErrCryptoError, err)
	}
	hash, err := b64Decode(parts[5])
	if err != nil {
		return phcParams{}, nil, nil, fmt.Errorf("%w: decode hash: %v", nineerr.ErrCryptoError, err)
	}
	return p, salt, hash, nil
}

// Seal AES-256-GCM-encrypts plaintext under key with a fresh random 12-byte
// nonce, mirroring core/ai_secure_storage.go's encrypt/decrypt pattern.
func Seal(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: new cipher: %v", nineerr.ErrCryptoError, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: new gcm: %v", nineerr.ErrCryptoError, err)
	}
	nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: generate nonce: %v", nineerr.ErrCryptoError, err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Unseal reverses Seal.
func Unseal(key, ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: new cipher: %v", nineerr.ErrCryptoError, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: new gcm: %v", nineerr.ErrCryptoError, err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %v", nineerr.ErrCryptoError, err)
	}
	return plaintext, nil
}

// DeriveAppKey derives a 32-byte, per-application key from masterKey via
// HKDF-SHA256: extract with the fixed salt appKeySalt, expand with
// info = appKey || 0x01.
func DeriveAppKey(masterKey []byte, appKey string) ([]byte, error) {
	info := append([]byte(appKey), 0x01)
	r := hkdf.New(sha256.New, masterKey, []byte(appKeySalt), info)
	out := make([]byte, argonKeyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: hkdf expand: %v", nineerr.ErrCryptoError, err)
	}
	return out, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
