package keyring

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/danmuck/agentctl/internal/wire"
)

var (
	ErrLocked          = errors.New("keyring: locked")
	ErrNotLocked       = errors.New("keyring: not locked")
	ErrBadPassphrase   = errors.New("keyring: bad passphrase")
	ErrKeyNotFound     = errors.New("keyring: key not found")
	ErrConfirmRequired = errors.New("keyring: key requires confirmation")
	ErrUnsupportedKey  = errors.New("keyring: unsupported key type")
	ErrMalformedKey    = errors.New("keyring: malformed key section")
)

// AddOptions carries one decoded add-identity request.
type AddOptions struct {
	Type            string
	KeySection      []byte
	Comment         string
	LifetimeSeconds uint32
	Confirm         bool
}

// Key is one stored identity as shown to callers.
type Key struct {
	Blob    []byte
	Comment string
}

type entry struct {
	signer   ssh.Signer
	blob     []byte
	comment  string
	expireAt time.Time
	confirm  bool
}

// Keyring holds keys for the lifetime of the daemon process.
type Keyring struct {
	mu     sync.RWMutex
	keys   []*entry
	locked bool
	secret []byte
	now    func() time.Time
}

func New() *Keyring {
	return &Keyring{now: time.Now}
}

// Locked reports whether the table is behind a lock passphrase.
func (r *Keyring) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

// Len returns the number of live keys.
func (r *Keyring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	return len(r.keys)
}

// Add stores a decoded private key. Adding an existing key replaces
// its comment and constraints, matching agent convention.
func (r *Keyring) Add(opts AddOptions) error {
	signer, blob, err := decodeKeySection(opts.Type, opts.KeySection)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrLocked
	}
	r.prune()

	e := &entry{
		signer:  signer,
		blob:    blob,
		comment: opts.Comment,
		confirm: opts.Confirm,
	}
	if opts.LifetimeSeconds > 0 {
		e.expireAt = r.now().Add(time.Duration(opts.LifetimeSeconds) * time.Second)
	}

	for i, old := range r.keys {
		if bytes.Equal(old.blob, blob) {
			r.keys[i] = e
			return nil
		}
	}
	r.keys = append(r.keys, e)
	return nil
}

// List returns live keys in insertion order. A locked table shows
// nothing rather than failing.
func (r *Keyring) List() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return nil
	}
	r.prune()
	out := make([]Key, 0, len(r.keys))
	for _, e := range r.keys {
		blob := make([]byte, len(e.blob))
		copy(blob, e.blob)
		out = append(out, Key{Blob: blob, Comment: e.comment})
	}
	return out
}

// Sign signs data with the key named by blob. Flags are accepted for
// wire compatibility; ed25519 has a single signature form.
func (r *Keyring) Sign(blob, data []byte, flags uint32) ([]byte, error) {
	_ = flags

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return nil, ErrLocked
	}
	r.prune()

	e := r.find(blob)
	if e == nil {
		return nil, ErrKeyNotFound
	}
	if e.confirm {
		return nil, fmt.Errorf("%w: %s", ErrConfirmRequired, e.comment)
	}

	sig, err := e.signer.Sign(rand.Reader, data)
	if err != nil {
		return nil, fmt.Errorf("keyring: sign: %w", err)
	}
	var b wire.Builder
	b.String([]byte(sig.Format))
	b.String(sig.Blob)
	return b.Bytes(), nil
}

// Remove drops the key named by blob.
func (r *Keyring) Remove(blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrLocked
	}
	r.prune()
	for i, e := range r.keys {
		if bytes.Equal(e.blob, blob) {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			return nil
		}
	}
	return ErrKeyNotFound
}

// RemoveAll drops every key.
func (r *Keyring) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrLocked
	}
	r.keys = nil
	return nil
}

// Lock hides the table behind a passphrase.
func (r *Keyring) Lock(passphrase []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrLocked
	}
	r.locked = true
	r.secret = append([]byte(nil), passphrase...)
	return nil
}

// Unlock reverses a Lock when the passphrase matches.
func (r *Keyring) Unlock(passphrase []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.locked {
		return ErrNotLocked
	}
	if subtle.ConstantTimeCompare(passphrase, r.secret) != 1 {
		return ErrBadPassphrase
	}
	r.locked = false
	r.secret = nil
	return nil
}

// prune drops expired keys. Callers hold the write lock.
func (r *Keyring) prune() {
	now := r.now()
	live := r.keys[:0]
	for _, e := range r.keys {
		if !e.expireAt.IsZero() && !e.expireAt.After(now) {
			continue
		}
		live = append(live, e)
	}
	for i := len(live); i < len(r.keys); i++ {
		r.keys[i] = nil
	}
	r.keys = live
}

// find returns the live entry for blob. Callers hold the lock.
func (r *Keyring) find(blob []byte) *entry {
	for _, e := range r.keys {
		if bytes.Equal(e.blob, blob) {
			return e
		}
	}
	return nil
}

// decodeKeySection turns the per-type section of an add request into a
// signer plus its public wire blob.
func decodeKeySection(typ string, section []byte) (ssh.Signer, []byte, error) {
	if typ != ssh.KeyAlgoED25519 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, typ)
	}
	pub, rest, err := wire.ReadString(section)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: public part: %v", ErrMalformedKey, err)
	}
	priv, rest, err := wire.ReadString(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: private part: %v", ErrMalformedKey, err)
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedKey, len(rest))
	}
	if len(pub) != ed25519.PublicKeySize || len(priv) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("%w: bad part sizes %d/%d", ErrMalformedKey, len(pub), len(priv))
	}
	if !bytes.Equal(priv[32:], pub) {
		return nil, nil, fmt.Errorf("%w: private half does not match public", ErrMalformedKey)
	}

	signer, err := ssh.NewSignerFromKey(ed25519.PrivateKey(priv))
	if err != nil {
		return nil, nil, fmt.Errorf("keyring: signer: %w", err)
	}
	return signer, signer.PublicKey().Marshal(), nil
}
