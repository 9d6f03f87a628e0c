// Package channel holds channel keys and the local keyring of channels a
// user created or joined.
package channel

import (
	"crypto/cipher"
	"encoding/base64"
	"sync"
	"unicode"

	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"

	"keychannel/pkg/log"
)

// KeyBytes is the amount of randomness in a generated key.
const KeyBytes = 16

// Key is a channel key: the shared secret transferred by QR code.
type Key string

var (
	ErrInvalidKey    = xerrors.New("invalid channel key")
	ErrUnknownKey    = xerrors.New("unknown channel key")
	ErrDuplicateName = xerrors.New("channel name already in use")
)

// Suite provides the XOF used for seeded key generation.
var Suite = suites.MustFind("Ed25519")

var (
	streamMu     sync.Mutex
	randomStream cipher.Stream = Suite.RandomStream()
)

// InitRandom selects the randomness behind NewKey. A non-empty seed makes
// key generation deterministic.
func InitRandom(seed string) {
	streamMu.Lock()
	defer streamMu.Unlock()
	if seed != "" {
		log.Debug("Using deterministic randomness seed: %s", seed)
		randomStream = random.New(Suite.XOF([]byte(seed)))
	} else {
		log.Debug("Using random source")
		randomStream = Suite.RandomStream()
	}
}

// NewKey generates a URL-safe key of KeyBytes random bytes.
func NewKey() Key {
	buf := make([]byte, KeyBytes)
	streamMu.Lock()
	randomStream.XORKeyStream(buf, buf)
	streamMu.Unlock()
	return Key(base64.RawURLEncoding.EncodeToString(buf))
}

// Validate reports whether k is a usable key: non-empty and printable.
func (k Key) Validate() error {
	if k == "" {
		return xerrors.Errorf("empty key: %w", ErrInvalidKey)
	}
	for _, r := range string(k) {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return xerrors.Errorf("non-printable character %q: %w", r, ErrInvalidKey)
		}
	}
	return nil
}

func (k Key) String() string { return string(k) }

// Fingerprint is a short, non-secret form of the key for display.
func (k Key) Fingerprint() string {
	r := []rune(string(k))
	if len(r) <= 8 {
		return "****"
	}
	return string(r[:4]) + "…" + string(r[len(r)-4:])
}
