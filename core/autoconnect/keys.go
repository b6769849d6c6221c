package autoconnect

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
	"golang.org/x/crypto/curve25519"
)

// KeyLen is the size of a Curve25519 key.
const KeyLen = curve25519.ScalarSize

// Key is a WireGuard Curve25519 key.
type Key [KeyLen]byte

// GeneratePrivateKey returns a new clamped private key.
func GeneratePrivateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, oops.In("autoconnect").Wrapf(err, "generate private key")
	}
	k[0] &= 248
	k[31] = (k[31] & 127) | 64
	return k, nil
}

// PublicKey derives the public key for private key k.
func (k Key) PublicKey() (Key, error) {
	pub, err := curve25519.X25519(k[:], curve25519.Basepoint)
	if err != nil {
		return Key{}, oops.In("autoconnect").Wrapf(err, "derive public key")
	}
	var out Key
	copy(out[:], pub)
	return out, nil
}

// String returns the base64 form used in wg-quick configs.
func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// ParseKey decodes a base64 key.
func ParseKey(s string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Key{}, oops.In("autoconnect").Wrapf(err, "decode key")
	}
	if len(raw) != KeyLen {
		return Key{}, oops.In("autoconnect").With("length", len(raw)).Errorf("key must be %d bytes", KeyLen)
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}
