package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/obiverse/beewallet-core/internal/filens"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninecrypto"
)

const (
	passphraseHashPath = "/passphrase-hash"
	saltPath           = "/salt"
	seedPath           = "/seed"
)

type sealedSeed struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Store is the on-disk vault: a filens namespace holding a passphrase hash,
// a KDF salt, and an AEAD-sealed seed phrase, guarded by a RateLimiter
// against brute-forced unlocks.
type Store struct {
	ns      *filens.Namespace
	limiter *RateLimiter
	mu      sync.Mutex
}

// Open opens or creates a vault store rooted at dir.
func Open(dir string) (*Store, error) {
	ns, err := filens.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Store{ns: ns, limiter: NewRateLimiter()}, nil
}

// IsInitialized reports whether the vault holds a passphrase hash. A reset
// vault (passphrase-hash overwritten with null) reports false.
func (s *Store) IsInitialized() (bool, error) {
	sc, ok, err := s.ns.Read(passphraseHashPath)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var v string
	if err := json.Unmarshal(sc.Data, &v); err != nil {
		return false, nil
	}
	return v != "", nil
}

// Initialize sets up the vault with passphrase and seedPhrase, returning
// the derived vault key. Fails with ErrAlreadyInitialized if the vault
// already holds credentials; call Reset first.
func (s *Store) Initialize(passphrase, seedPhrase string) ([32]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	initialized, err := s.IsInitialized()
	if err != nil {
		return [32]byte{}, err
	}
	if initialized {
		return [32]byte{}, nineerr.ErrAlreadyInitialized
	}
	return s.initializeInternal(passphrase, seedPhrase)
}

func (s *Store) initializeInternal(passphrase, seedPhrase string) ([32]byte, error) {
	salt, err := ninecrypto.GenerateSalt()
	if err != nil {
		return [32]byte{}, err
	}
	vaultKey := deriveVaultKey(passphrase, salt)
	hash, err := ninecrypto.HashPassphrase([]byte(passphrase))
	if err != nil {
		return [32]byte{}, err
	}
	ciphertext, nonce, err := ninecrypto.Seal(vaultKey[:], []byte(seedPhrase))
	if err != nil {
		return [32]byte{}, err
	}

	if err := s.writeJSON(passphraseHashPath, hash); err != nil {
		return [32]byte{}, err
	}
	if err := s.writeJSON(saltPath, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return [32]byte{}, err
	}
	seed := sealedSeed{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}
	if err := s.writeJSON(seedPath, seed); err != nil {
		return [32]byte{}, err
	}

	return vaultKey, nil
}

func (s *Store) writeJSON(path string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", nineerr.ErrInternal, path, err)
	}
	_, err = s.ns.Write(path, raw)
	return err
}

// Unlock verifies passphrase against the stored hash and, on success,
// derives and returns the vault key. Protected by the store's RateLimiter:
// after 3 consecutive failures further attempts (even correct ones) are
// rejected with ErrRateLimited until the backoff window elapses.
func (s *Store) Unlock(passphrase string) ([32]byte, error) {
	if err := s.limiter.CheckLocked(); err != nil {
		return [32]byte{}, err
	}

	hashSc, ok, err := s.ns.Read(passphraseHashPath)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, nineerr.ErrUnavailable
	}
	var hash string
	if err := json.Unmarshal(hashSc.Data, &hash); err != nil {
		return [32]byte{}, fmt.Errorf("%w: decode passphrase hash: %v", nineerr.ErrInternal, err)
	}

	valid, err := ninecrypto.VerifyPassphrase(hash, []byte(passphrase))
	if err != nil {
		return [32]byte{}, err
	}
	if !valid {
		s.limiter.RecordFailure()
		return [32]byte{}, nineerr.ErrInvalidPassphrase
	}
	s.limiter.RecordSuccess()

	saltSc, ok, err := s.ns.Read(saltPath)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, nineerr.ErrUnavailable
	}
	var saltB64 string
	if err := json.Unmarshal(saltSc.Data, &saltB64); err != nil {
		return [32]byte{}, fmt.Errorf("%w: decode salt: %v", nineerr.ErrInternal, err)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: invalid salt encoding: %v", nineerr.ErrInvalidData, err)
	}

	return deriveVaultKey(passphrase, salt), nil
}

// deriveVaultKey wraps ninecrypto.DeriveKey's []byte output in a fixed-size
// array: every caller in this package needs a [32]byte vault key.
func deriveVaultKey(passphrase string, salt []byte) [32]byte {
	var out [32]byte
	copy(out[:], ninecrypto.DeriveKey([]byte(passphrase), salt))
	return out
}

// LockoutRemaining returns the seconds remaining in the current rate-limit
// lockout, 0 if not locked.
func (s *Store) LockoutRemaining() uint64 {
	return s.limiter.LockoutRemaining()
}

// GetSeed decrypts and returns the stored seed phrase using vaultKey.
func (s *Store) GetSeed(vaultKey [32]byte) (string, error) {
	sc, ok, err := s.ns.Read(seedPath)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nineerr.ErrUnavailable
	}
	var seed sealedSeed
	if err := json.Unmarshal(sc.Data, &seed); err != nil {
		return "", fmt.Errorf("%w: decode sealed seed: %v", nineerr.ErrInternal, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(seed.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid seed ciphertext encoding: %v", nineerr.ErrInvalidData, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(seed.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: invalid seed nonce encoding: %v", nineerr.ErrInvalidData, err)
	}
	plaintext, err := ninecrypto.Unseal(vaultKey[:], ciphertext, nonce)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// ChangePassphrase authenticates with currentPassphrase, retrieves the
// seed, and re-initializes the vault under newPassphrase, returning the new
// vault key.
func (s *Store) ChangePassphrase(currentPassphrase, newPassphrase string) ([32]byte, error) {
	currentKey, err := s.Unlock(currentPassphrase)
	if err != nil {
		return [32]byte{}, err
	}
	seed, err := s.GetSeed(currentKey)
	if err != nil {
		return [32]byte{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeInternal(newPassphrase, seed)
}

// Reset destroys the stored credentials and seed: first corrupts every
// path with a null value, then physically deletes the tree, so
// IsInitialized reports false and Initialize can be called again.
func (s *Store) Reset() error {
	paths, err := s.ns.List("/")
	if err != nil {
		return err
	}
	for _, p := range paths {
		_, _ = s.ns.Write(p, json.RawMessage("null"))
	}
	return s.ns.DeleteAll()
}
