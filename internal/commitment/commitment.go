// Package commitment provides a salted hash commit/open primitive used for
// the DKG's chain-code binding (spec.md §4.7 rounds 1/4).
package commitment

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/zeebo/blake3"
)

const saltSize = 32

// Commitment is the public half (C) plus the opening salt (D), mirroring
// the teacher's commitment.Commitment{C, D} shape (internal/crypto/commitment
// in the teacher repo) but hashing with BLAKE3 directly under a
// "dkls23/commitment/" domain prefix instead of a bare second SHA-256
// instance; it does not use internal/transcript.
type Commitment struct {
	C []byte
	D []byte
}

// New commits to data under label using a fresh random salt.
func New(label string, data []byte) (*Commitment, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return &Commitment{C: digest(label, salt, data), D: salt}, nil
}

// Verify checks that (d, data) opens c under label.
func Verify(label string, c, d, data []byte) bool {
	if len(c) != blake3.New().Size() || len(d) != saltSize {
		return false
	}
	want := digest(label, d, data)
	return subtle.ConstantTimeCompare(want, c) == 1
}

func digest(label string, salt, data []byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte("dkls23/commitment/" + label))
	_, _ = h.Write(salt)
	_, _ = h.Write(data)
	return h.Sum(nil)
}
