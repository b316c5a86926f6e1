package keyfile

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"

	"github.com/danmuck/agentctl/internal/wire"
)

var (
	ErrUnsupportedKey = errors.New("keyfile: unsupported key type")
	ErrNoPublicKey    = errors.New("keyfile: no public key in file")
)

// Key is a parsed private key plus the metadata the agent needs.
type Key struct {
	Signer  ssh.Signer
	Comment string

	raw interface{}
}

// LoadPrivate reads and parses an OpenSSH private key file. A nil fs
// reads the host filesystem. Pass the passphrase only for encrypted
// keys; use IsPassphraseMissing to detect that a prompt is needed.
func LoadPrivate(fs afero.Fs, path string, passphrase []byte) (*Key, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "keyfile: read %s", path)
	}

	var raw interface{}
	if len(passphrase) > 0 {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	} else {
		raw, err = ssh.ParseRawPrivateKey(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "keyfile: parse %s", path)
	}

	signer, err := ssh.NewSignerFromKey(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "keyfile: signer for %s", path)
	}
	return &Key{Signer: signer, raw: raw}, nil
}

// IsPassphraseMissing reports whether err means the key is encrypted
// and no passphrase was supplied.
func IsPassphraseMissing(err error) bool {
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing)
}

// PublicBlob returns the wire form of the key's public half.
func (k *Key) PublicBlob() []byte {
	return k.Signer.PublicKey().Marshal()
}

// Type returns the ssh key algorithm name.
func (k *Key) Type() string {
	return k.Signer.PublicKey().Type()
}

// AddPayload renders the per-type key section of an add-identity
// request: the fields between the key type string and the comment.
func (k *Key) AddPayload() (string, []byte, error) {
	switch priv := k.raw.(type) {
	case *ed25519.PrivateKey:
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return "", nil, ErrUnsupportedKey
		}
		var b wire.Builder
		b.String(pub)
		b.String(*priv)
		return ssh.KeyAlgoED25519, b.Bytes(), nil
	case ed25519.PrivateKey:
		pub, ok := priv.Public().(ed25519.PublicKey)
		if !ok {
			return "", nil, ErrUnsupportedKey
		}
		var b wire.Builder
		b.String(pub)
		b.String(priv)
		return ssh.KeyAlgoED25519, b.Bytes(), nil
	default:
		return "", nil, errors.Wrapf(ErrUnsupportedKey, "%T", k.raw)
	}
}

// Public is a parsed authorized_keys style public key.
type Public struct {
	Key     ssh.PublicKey
	Comment string
}

// LoadPublic reads and parses a public key file in authorized_keys
// format. A nil fs reads the host filesystem.
func LoadPublic(fs afero.Fs, path string) (*Public, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "keyfile: read %s", path)
	}
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, errors.Wrapf(ErrNoPublicKey, "%s: %v", path, err)
	}
	return &Public{Key: pub, Comment: comment}, nil
}

// Blob returns the wire form of the public key.
func (p *Public) Blob() []byte {
	return p.Key.Marshal()
}

// Fingerprint renders the OpenSSH SHA256 fingerprint of a public key
// blob.
func Fingerprint(blob []byte) string {
	sum := sha256.Sum256(blob)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}
