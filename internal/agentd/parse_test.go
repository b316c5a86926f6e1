package agentd

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/danmuck/agentctl/internal/agent"
	"github.com/danmuck/agentctl/internal/keyring"
	"github.com/danmuck/agentctl/internal/testutil/testlog"
	"github.com/danmuck/agentctl/internal/wire"
)

func newSection(t *testing.T) (ed25519.PublicKey, []byte, []byte) {
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

func TestParseAddRequestFromClientEncoding(t *testing.T) {
	testlog.Start(t)
	_, section, _ := newSection(t)
	pkt, err := agent.AddIdentity{Type: ssh.KeyAlgoED25519, KeyBlob: section, Comment: "work"}.Packet()
	if err != nil {
		t.Fatalf("packet: %v", err)
	}

	opts, err := parseAddRequest(pkt.Body(), false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Type != ssh.KeyAlgoED25519 {
		t.Fatalf("type got=%q", opts.Type)
	}
	if !bytes.Equal(opts.KeySection, section) {
		t.Fatalf("section mismatch")
	}
	if opts.Comment != "work" {
		t.Fatalf("comment got=%q", opts.Comment)
	}
	if opts.LifetimeSeconds != 0 || opts.Confirm {
		t.Fatalf("unexpected constraints: %+v", opts)
	}
}

func TestParseAddRequestConstrained(t *testing.T) {
	testlog.Start(t)
	_, section, _ := newSection(t)
	pkt, err := agent.AddIdentityConstrained{
		AddIdentity: agent.AddIdentity{Type: ssh.KeyAlgoED25519, KeyBlob: section, Comment: "c"},
		Constraints: []agent.Constraint{agent.LifetimeConstraint(90), agent.ConfirmConstraint()},
	}.Packet()
	if err != nil {
		t.Fatalf("packet: %v", err)
	}

	opts, err := parseAddRequest(pkt.Body(), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.LifetimeSeconds != 90 {
		t.Fatalf("lifetime got=%d", opts.LifetimeSeconds)
	}
	if !opts.Confirm {
		t.Fatalf("confirm not set")
	}
}

func TestParseAddRequestRejects(t *testing.T) {
	testlog.Start(t)
	_, section, _ := newSection(t)

	var rsa wire.Builder
	rsa.String([]byte("ssh-rsa")).Raw(section).String(nil)
	if _, err := parseAddRequest(rsa.Bytes(), false); !errors.Is(err, keyring.ErrUnsupportedKey) {
		t.Fatalf("want ErrUnsupportedKey, got %v", err)
	}

	pkt, err := agent.AddIdentity{Type: ssh.KeyAlgoED25519, KeyBlob: section}.Packet()
	if err != nil {
		t.Fatalf("packet: %v", err)
	}
	body := append(append([]byte(nil), pkt.Body()...), 0xFF)
	if _, err := parseAddRequest(body, false); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest for trailing bytes, got %v", err)
	}

	if _, err := parseAddRequest(pkt.Body()[:10], false); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest for truncated body, got %v", err)
	}

	if _, err := parseAddRequest(body, true); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest for bad constraints, got %v", err)
	}
}

func TestParseSignRequestFromClientEncoding(t *testing.T) {
	testlog.Start(t)
	_, _, blob := newSection(t)
	pkt, err := agent.SignRequest{KeyBlob: blob, Data: []byte("payload"), Flags: agent.SignRSASHA512}.Packet()
	if err != nil {
		t.Fatalf("packet: %v", err)
	}

	req, err := parseSignRequest(pkt.Body())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(req.blob, blob) {
		t.Fatalf("blob mismatch")
	}
	if string(req.data) != "payload" {
		t.Fatalf("data got=%q", req.data)
	}
	if req.flags != agent.SignRSASHA512 {
		t.Fatalf("flags got=%d", req.flags)
	}

	if _, err := parseSignRequest(append(pkt.Body(), 0x00)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest for trailing bytes, got %v", err)
	}
}

func TestParseRemoveRequest(t *testing.T) {
	testlog.Start(t)
	_, _, blob := newSection(t)
	pkt, err := agent.RemoveIdentity{KeyBlob: blob}.Packet()
	if err != nil {
		t.Fatalf("packet: %v", err)
	}
	got, err := parseRemoveRequest(pkt.Body())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("blob mismatch")
	}
	if _, err := parseRemoveRequest(append(pkt.Body(), 0x00)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest, got %v", err)
	}
}

func TestParsePassphrase(t *testing.T) {
	testlog.Start(t)
	pkt, err := agent.Unlock{Passphrase: []byte("test")}.Packet()
	if err != nil {
		t.Fatalf("packet: %v", err)
	}
	pass, err := parsePassphrase(pkt.Body())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(pass) != "test" {
		t.Fatalf("passphrase got=%q", pass)
	}
	if _, err := parsePassphrase(nil); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("want ErrBadRequest, got %v", err)
	}
}
