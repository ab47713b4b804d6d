// Package identity wraps the opaque external key-derivation producers the
// 9S core sits on top of: BIP39 mnemonic generation/validation and
// secp256k1 public key handling. The core never interprets these beyond
// treating their output as a 32-byte master key and a public key fed into
// the Mobi derivation (internal/mobi); the actual mnemonic/BIP32 math and
// Nostr signing are out of scope per spec.md's boundary.
package identity

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/obiverse/beewallet-core/internal/nineerr"
)

// masterHMACKey is the fixed HMAC key used to split a BIP39 seed into a 9S
// master key, mirroring the "ed25519 seed" SLIP-0010 constant the teacher's
// wallet package used for the same purpose (core/wallet.go's
// NewHDWalletFromSeed): a domain-separated HMAC, not a secret.
const masterHMACKey = "beewallet-9s-master"

// NewMnemonic generates a fresh BIP39 mnemonic of entropyBits (128 or 256,
// i.e. 12 or 24 words).
func NewMnemonic(entropyBits int) (string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return "", fmt.Errorf("%w: unsupported entropy size %d", nineerr.ErrInvalidData, entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("%w: generate entropy: %v", nineerr.ErrCryptoError, err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("%w: build mnemonic: %v", nineerr.ErrCryptoError, err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether mnemonic is a well-formed, checksum-valid
// BIP39 phrase.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// MasterKey derives the opaque 32-byte master key the vault and the 9S
// store's per-app key derivation (internal/ninecrypto.DeriveAppKey) build
// on: BIP39 seed(mnemonic, passphrase), reduced to 32 bytes via HMAC-SHA512
// under a fixed domain-separation key, keeping only the first half (the
// same "take half of a wide HMAC" idiom as SLIP-0010 master-key splitting).
func MasterKey(mnemonic, passphrase string) ([32]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return [32]byte{}, fmt.Errorf("%w: invalid mnemonic checksum", nineerr.ErrInvalidData)
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	mac := hmac.New(sha512.New, []byte(masterHMACKey))
	mac.Write(seed)
	sum := mac.Sum(nil)
	var out [32]byte
	copy(out[:], sum[:32])
	return out, nil
}

// PublicKeyFromPrivate derives the 32-byte x-coordinate public key used as
// the Mobi derivation's input and as the wallet's `/pubkey` identity
// surface, from a secp256k1 private scalar seeded by masterKey.
func PublicKeyFromPrivate(masterKey [32]byte) ([32]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(masterKey[:])
	pub := priv.PubKey()
	var out [32]byte
	pub.X().FillBytes(out[:])
	return out, nil
}

// PublicKeyHex is PublicKeyFromPrivate formatted as 64 lowercase hex
// characters, the format internal/mobi.DeriveFromHex expects.
func PublicKeyHex(masterKey [32]byte) (string, error) {
	pub, err := PublicKeyFromPrivate(masterKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pub[:]), nil
}
