package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/danmuck/agentctl/internal/testutil/testlog"
	"github.com/danmuck/agentctl/internal/wire"
)

func newKeySection(t *testing.T) (ed25519.PublicKey, []byte, []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var b wire.Builder
	b.String(pub)
	b.String(priv)
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("new public key: %v", err)
	}
	return pub, b.Bytes(), sshPub.Marshal()
}

func TestAddListSign(t *testing.T) {
	testlog.Start(t)
	r := New()
	pub, section, blob := newKeySection(t)

	err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section, Comment: "work"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	keys := r.List()
	if len(keys) != 1 {
		t.Fatalf("list len got=%d", len(keys))
	}
	if keys[0].Comment != "work" {
		t.Fatalf("comment got=%q", keys[0].Comment)
	}

	data := []byte("sign me")
	sig, err := r.Sign(blob, data, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	format, rest, err := wire.ReadString(sig)
	if err != nil {
		t.Fatalf("sig format: %v", err)
	}
	if string(format) != ssh.KeyAlgoED25519 {
		t.Fatalf("format got=%q", format)
	}
	raw, rest, err := wire.ReadString(rest)
	if err != nil {
		t.Fatalf("sig blob: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("trailing bytes after signature")
	}
	if !ed25519.Verify(pub, data, raw) {
		t.Fatalf("signature does not verify")
	}
}

func TestAddReplacesExisting(t *testing.T) {
	testlog.Start(t)
	r := New()
	_, section, _ := newKeySection(t)

	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section, Comment: "first"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section, Comment: "second"}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	keys := r.List()
	if len(keys) != 1 {
		t.Fatalf("list len got=%d", len(keys))
	}
	if keys[0].Comment != "second" {
		t.Fatalf("comment got=%q", keys[0].Comment)
	}
}

func TestAddRejectsBadSections(t *testing.T) {
	testlog.Start(t)
	r := New()
	_, section, _ := newKeySection(t)

	if err := r.Add(AddOptions{Type: "ssh-rsa", KeySection: section}); !errors.Is(err, ErrUnsupportedKey) {
		t.Fatalf("want ErrUnsupportedKey, got %v", err)
	}
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section[:8]}); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("want ErrMalformedKey, got %v", err)
	}
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: append(append([]byte(nil), section...), 0xFF)}); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("want ErrMalformedKey for trailing bytes, got %v", err)
	}

	_, other, _ := newKeySection(t)
	mixed := append(append([]byte(nil), section[:36]...), other[36:]...)
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: mixed}); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("want ErrMalformedKey for mismatched halves, got %v", err)
	}
}

func TestLockUnlock(t *testing.T) {
	testlog.Start(t)
	r := New()
	_, section, blob := newKeySection(t)
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section, Comment: "k"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := r.Lock([]byte("pw")); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !r.Locked() {
		t.Fatalf("not locked after Lock")
	}
	if keys := r.List(); len(keys) != 0 {
		t.Fatalf("locked list got=%d keys", len(keys))
	}
	if _, err := r.Sign(blob, []byte("x"), 0); !errors.Is(err, ErrLocked) {
		t.Fatalf("sign want ErrLocked, got %v", err)
	}
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section}); !errors.Is(err, ErrLocked) {
		t.Fatalf("add want ErrLocked, got %v", err)
	}
	if err := r.Remove(blob); !errors.Is(err, ErrLocked) {
		t.Fatalf("remove want ErrLocked, got %v", err)
	}
	if err := r.RemoveAll(); !errors.Is(err, ErrLocked) {
		t.Fatalf("remove all want ErrLocked, got %v", err)
	}
	if err := r.Lock([]byte("pw2")); !errors.Is(err, ErrLocked) {
		t.Fatalf("double lock want ErrLocked, got %v", err)
	}

	if err := r.Unlock([]byte("nope")); !errors.Is(err, ErrBadPassphrase) {
		t.Fatalf("want ErrBadPassphrase, got %v", err)
	}
	if err := r.Unlock([]byte("pw")); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := r.Unlock([]byte("pw")); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("want ErrNotLocked, got %v", err)
	}
	if keys := r.List(); len(keys) != 1 {
		t.Fatalf("list after unlock got=%d keys", len(keys))
	}
}

func TestLifetimeExpiry(t *testing.T) {
	testlog.Start(t)
	r := New()
	current := time.Unix(1700000000, 0)
	r.now = func() time.Time { return current }

	_, section, blob := newKeySection(t)
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section, LifetimeSeconds: 60}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if keys := r.List(); len(keys) != 1 {
		t.Fatalf("list got=%d keys", len(keys))
	}

	current = current.Add(59 * time.Second)
	if keys := r.List(); len(keys) != 1 {
		t.Fatalf("list before expiry got=%d keys", len(keys))
	}

	current = current.Add(2 * time.Second)
	if keys := r.List(); len(keys) != 0 {
		t.Fatalf("list after expiry got=%d keys", len(keys))
	}
	if _, err := r.Sign(blob, []byte("x"), 0); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
}

func TestConfirmKeysRefuseSigning(t *testing.T) {
	testlog.Start(t)
	r := New()
	_, section, blob := newKeySection(t)
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section, Comment: "guarded", Confirm: true}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Sign(blob, []byte("x"), 0); !errors.Is(err, ErrConfirmRequired) {
		t.Fatalf("want ErrConfirmRequired, got %v", err)
	}
	if keys := r.List(); len(keys) != 1 {
		t.Fatalf("confirm key missing from list")
	}
}

func TestRemove(t *testing.T) {
	testlog.Start(t)
	r := New()
	_, section, blob := newKeySection(t)
	if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Remove(blob); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.Remove(blob); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("len got=%d", r.Len())
	}
}

func TestRemoveAll(t *testing.T) {
	testlog.Start(t)
	r := New()
	for i := 0; i < 3; i++ {
		_, section, _ := newKeySection(t)
		if err := r.Add(AddOptions{Type: ssh.KeyAlgoED25519, KeySection: section}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("len got=%d", r.Len())
	}
	if err := r.RemoveAll(); err != nil {
		t.Fatalf("remove all: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("len after clear got=%d", r.Len())
	}
}
