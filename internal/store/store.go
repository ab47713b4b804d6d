// Package store implements the git-like, optionally encrypted 9S
// namespace: it composes the file backend (internal/filens) with the patch
// engine (internal/patch) and the anchor engine (internal/anchor) to provide
// monotonic version history, time travel, compaction, and pruning, with
// per-application AEAD encryption layered transparently over the file
// backend.
package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/obiverse/beewallet-core/internal/anchor"
	"github.com/obiverse/beewallet-core/internal/filens"
	"github.com/obiverse/beewallet-core/internal/namespace"
	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/internal/ninecrypto"
	"github.com/obiverse/beewallet-core/internal/patch"
	"github.com/obiverse/beewallet-core/internal/scroll"
)

// encryptedEnvelopeType tags the outer scroll that wraps a sealed inner
// scroll when the store is encrypted.
const encryptedEnvelopeType = "store/encrypted@v1"

type envelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Store is a git-like, optionally encrypted namespace rooted at dir.
type Store struct {
	dir      string
	appKey   string
	storeKey []byte // nil => unencrypted

	fb *filens.Namespace

	// writeMu serializes the read-next_seq-write pipeline per process so
	// that concurrent writers to the same store cannot race on seq
	// selection. The filesystem remains the cross-process source of truth.
	writeMu sync.Mutex

	log *logrus.Entry
}

var _ namespace.Namespace = (*Store)(nil)

// NineSRoot resolves the storage root: NINE_S_ROOT if set, else
// $HOME/.nine_s.
func NineSRoot() string {
	if v := os.Getenv("NINE_S_ROOT"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".nine_s")
}

// ValidateAppKey enforces: non-empty, length <= 64, first character
// alphanumeric, remaining characters in [A-Za-z0-9_-], never "." or "..".
func ValidateAppKey(appKey string) error {
	if appKey == "" {
		return fmt.Errorf("%w: app key must not be empty", nineerr.ErrInvalidData)
	}
	if len(appKey) > 64 {
		return fmt.Errorf("%w: app key too long (max 64)", nineerr.ErrInvalidData)
	}
	if appKey == "." || appKey == ".." {
		return fmt.Errorf("%w: app key must not be '.' or '..'", nineerr.ErrInvalidData)
	}
	first := appKey[0]
	if !isAlnum(first) {
		return fmt.Errorf("%w: app key must start with an alphanumeric character", nineerr.ErrInvalidData)
	}
	for i := 0; i < len(appKey); i++ {
		c := appKey[i]
		if !isAlnum(c) && c != '_' && c != '-' {
			return fmt.Errorf("%w: app key contains disallowed character %q", nineerr.ErrInvalidData, c)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Open validates appKey, resolves the storage root, derives an
// app-isolated key from masterKey via HKDF (internal/ninecrypto), and
// constructs a store under <root>/<appKey> encrypted with that key. A nil
// masterKey gives an unencrypted store.
func Open(appKey string, masterKey []byte) (*Store, error) {
	if err := ValidateAppKey(appKey); err != nil {
		return nil, err
	}
	dir := filepath.Join(NineSRoot(), appKey)
	var storeKey []byte
	if masterKey != nil {
		k, err := ninecrypto.DeriveAppKey(masterKey, appKey)
		if err != nil {
			return nil, err
		}
		storeKey = k
	}
	return At(dir, appKey, storeKey)
}

// At is a test/alternate-path constructor that uses storeKey directly
// (nil for an unencrypted store) instead of deriving it from a master key.
func At(dir, appKey string, storeKey []byte) (*Store, error) {
	fb, err := filens.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Store{
		dir:      dir,
		appKey:   appKey,
		storeKey: storeKey,
		fb:       fb,
		log:      logrus.WithField("component", "store").WithField("app", appKey),
	}, nil
}

// IsEncrypted reports whether this store was constructed with a key.
func (s *Store) IsEncrypted() bool { return s.storeKey != nil }

// Path returns the store's root directory.
func (s *Store) Path() string { return s.dir }

// AppKey returns the store's application key.
func (s *Store) AppKey() string { return s.appKey }

func (s *Store) historyDir(key string) string {
	return filepath.Join(s.dir, "_history", strings.TrimPrefix(key, "/"))
}

func (s *Store) patchesDir(key string) string {
	return filepath.Join(s.historyDir(key), "patches")
}

func (s *Store) anchorsDir(key string) string {
	return filepath.Join(s.historyDir(key), "anchors")
}

// Read implements namespace.Namespace: decrypts transparently if the store
// is encrypted.
func (s *Store) Read(key string) (scroll.Scroll, bool, error) {
	outer, ok, err := s.fb.Read(key)
	if err != nil || !ok {
		return scroll.Scroll{}, ok, err
	}
	if !s.IsEncrypted() {
		return outer, true, nil
	}
	inner, err := s.decrypt(outer)
	if err != nil {
		return scroll.Scroll{}, false, fmt.Errorf("%w: decrypt scroll: %v", nineerr.ErrInternal, err)
	}
	return inner, true, nil
}

func (s *Store) decrypt(outer scroll.Scroll) (scroll.Scroll, error) {
	var env envelope
	if err := outer.DataAs(&env); err != nil {
		return scroll.Scroll{}, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return scroll.Scroll{}, err
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return scroll.Scroll{}, err
	}
	plaintext, err := ninecrypto.Unseal(s.storeKey, ciphertext, nonce)
	if err != nil {
		return scroll.Scroll{}, err
	}
	var inner scroll.Scroll
	if err := json.Unmarshal(plaintext, &inner); err != nil {
		return scroll.Scroll{}, err
	}
	return inner, nil
}

func (s *Store) encrypt(inner scroll.Scroll) (scroll.Scroll, error) {
	plaintext, err := json.Marshal(inner)
	if err != nil {
		return scroll.Scroll{}, err
	}
	ciphertext, nonce, err := ninecrypto.Seal(s.storeKey, plaintext)
	if err != nil {
		return scroll.Scroll{}, err
	}
	env := envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return scroll.Scroll{}, err
	}
	return scroll.Scroll{Key: inner.Key, Type: encryptedEnvelopeType, Data: raw}, nil
}

// Write implements namespace.Namespace.
func (s *Store) Write(key string, data json.RawMessage) (scroll.Scroll, error) {
	sc, err := scroll.New(key, data)
	if err != nil {
		return scroll.Scroll{}, fmt.Errorf("%w: %v", nineerr.ErrInvalidData, err)
	}
	return s.WriteScroll(sc)
}

// WriteScroll runs the full git-like write pipeline: read current state,
// compute next_seq from the filesystem (never from memory), build and
// persist the new scroll (encrypted if applicable), compute and persist
// the corresponding patch.
func (s *Store) WriteScroll(in scroll.Scroll) (scroll.Scroll, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, existed, err := s.Read(in.Key)
	if err != nil {
		return scroll.Scroll{}, err
	}

	nextSeq, err := s.nextSeq(in.Key)
	if err != nil {
		return scroll.Scroll{}, err
	}

	var prevCreated *time.Time
	var prevData json.RawMessage
	if existed {
		prevCreated = prev.Metadata.CreatedAt
		prevData = prev.Data
	}

	newScroll := in.WithVersion(nextSeq).Finalize(time.Now().UTC(), prevCreated)

	var persisted scroll.Scroll
	if s.IsEncrypted() {
		outer, err := s.encrypt(newScroll)
		if err != nil {
			return scroll.Scroll{}, fmt.Errorf("%w: encrypt scroll: %v", nineerr.ErrInternal, err)
		}
		if _, err := s.fb.WriteScroll(outer); err != nil {
			return scroll.Scroll{}, err
		}
		persisted = newScroll
	} else {
		if _, err := s.fb.WriteScroll(newScroll); err != nil {
			return scroll.Scroll{}, err
		}
		persisted = newScroll
	}

	ops, err := patch.Create(prevData, newScroll.Data)
	if err != nil {
		return scroll.Scroll{}, err
	}
	p := patch.Patch{
		Key:       in.Key,
		Ops:       ops,
		Hash:      patch.Hash(newScroll.Data),
		Timestamp: time.Now().UTC(),
		Seq:       nextSeq,
	}
	if existed {
		p.Parent = patch.Hash(prevData)
	}
	if err := s.storePatch(p); err != nil {
		return scroll.Scroll{}, err
	}

	return persisted, nil
}

// nextSeq scans the key's patches directory and returns max(seq)+1, or 1 if
// empty. This is always derived from the filesystem, never cached in
// memory: the filesystem is the monotonic channel.
func (s *Store) nextSeq(key string) (uint64, error) {
	dir := s.patchesDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: scan patches dir: %v", nineerr.ErrInternal, err)
	}
	var max uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (s *Store) storePatch(p patch.Patch) error {
	dir := s.patchesDir(p.Key)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: mkdir patches dir: %v", nineerr.ErrInternal, err)
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode patch: %v", nineerr.ErrInternal, err)
	}
	file := filepath.Join(dir, fmt.Sprintf("%08d.json", p.Seq))
	if err := os.WriteFile(file, b, 0o600); err != nil {
		return fmt.Errorf("%w: write patch file: %v", nineerr.ErrInternal, err)
	}
	return nil
}

// List implements namespace.Namespace.
func (s *Store) List(prefix string) ([]string, error) {
	return s.fb.List(prefix)
}

// Watch implements namespace.Namespace. If encrypted, a forwarder goroutine
// unseals each incoming scroll; decryption failures are logged and dropped
// so a single corrupted scroll cannot kill the stream.
func (s *Store) Watch(pattern string) (*namespace.Receiver, error) {
	childRecv, err := s.fb.Watch(pattern)
	if err != nil {
		return nil, err
	}
	if !s.IsEncrypted() {
		return childRecv, nil
	}

	out := make(chan scroll.Scroll, 16)
	done := make(chan struct{})
	var once sync.Once
	closer := func() {
		once.Do(func() {
			close(done)
			childRecv.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			outer, ok := childRecv.Recv()
			if !ok {
				return
			}
			inner, err := s.decrypt(outer)
			if err != nil {
				s.log.WithError(err).Warn("watch: dropping undecryptable scroll")
				continue
			}
			select {
			case out <- inner:
			case <-done:
				return
			}
		}
	}()

	return namespace.NewReceiver(out, closer), nil
}

// Close implements namespace.Namespace.
func (s *Store) Close() error {
	return s.fb.Close()
}

// sortBySeq is a small helper shared by history readers.
func sortBySeq(ps []patch.Patch) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Seq < ps[j].Seq })
}
