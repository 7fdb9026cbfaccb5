// Package curve provides the secp256k1 scalar/point primitives used by every
// higher layer of the protocol: constant-time scalar arithmetic mod the
// group order, compressed point encoding, and hash-to-scalar.
package curve

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar is an element of Z_q, q the order of secp256k1's base point group.
// It wraps secp256k1.ModNScalar so that addition, multiplication and
// inversion never branch on the represented value.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalar samples a uniformly random non-zero scalar using rng.
func NewScalar(rng interface {
	Read([]byte) (int, error)
}) (*Scalar, error) {
	var buf [32]byte
	for {
		if _, err := rng.Read(buf[:]); err != nil {
			return nil, err
		}
		s := new(Scalar)
		overflow := s.v.SetBytes((*[32]byte)(buf[:]))
		if overflow == 0 && !s.v.IsZero() {
			return s, nil
		}
	}
}

// ScalarFromBytes reduces a 32-byte big-endian buffer mod q.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != 32 {
		return nil, errors.New("curve: scalar must be exactly 32 bytes")
	}
	s := new(Scalar)
	s.v.SetByteSlice(b)
	return s, nil
}

// ScalarFromUint32 builds a small scalar, used for party ranks/indices/powers.
// Session parameters cap N and T at 255, so a uint32 is always wide enough.
func ScalarFromUint32(n uint32) *Scalar {
	s := new(Scalar)
	s.v.SetInt(n)
	return s
}

// Bytes returns the 32-byte big-endian encoding of s.
func (s *Scalar) Bytes() []byte {
	b := s.v.Bytes()
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

// IsZero reports whether s is the additive identity.
func (s *Scalar) IsZero() bool { return s.v.IsZero() }

// Add returns s + o mod q.
func (s *Scalar) Add(o *Scalar) *Scalar {
	r := new(Scalar)
	r.v.Set(&s.v)
	r.v.Add(&o.v)
	return r
}

// Mul returns s * o mod q.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	r := new(Scalar)
	r.v.Set(&s.v)
	r.v.Mul(&o.v)
	return r
}

// Sub returns s - o mod q.
func (s *Scalar) Sub(o *Scalar) *Scalar {
	neg := new(secp256k1.ModNScalar)
	neg.Set(&o.v).Negate()
	r := new(Scalar)
	r.v.Set(&s.v)
	r.v.Add(neg)
	return r
}

// Negate returns -s mod q.
func (s *Scalar) Negate() *Scalar {
	r := new(Scalar)
	r.v.Set(&s.v)
	r.v.Negate()
	return r
}

// Inverse returns s^-1 mod q, computed as s^(q-2) by square-and-multiply
// over the public exponent q-2, so the sequence of operations never depends
// on s. A zero s yields zero; callers check for zero before inverting.
func (s *Scalar) Inverse() *Scalar {
	var exp secp256k1.ModNScalar
	exp.SetInt(2)
	exp.Negate()
	e := exp.Bytes()
	r := ScalarFromUint32(1)
	for _, b := range e {
		for bit := 7; bit >= 0; bit-- {
			r.v.Square()
			if (b>>uint(bit))&1 == 1 {
				r.v.Mul(&s.v)
			}
		}
	}
	return r
}

// Equal reports whether s == o (constant-time).
func (s *Scalar) Equal(o *Scalar) bool {
	diff := new(secp256k1.ModNScalar)
	diff.Set(&s.v)
	neg := new(secp256k1.ModNScalar)
	neg.Set(&o.v).Negate()
	diff.Add(neg)
	return diff.IsZero()
}

// Clone returns an independent copy of s.
func (s *Scalar) Clone() *Scalar {
	r := new(Scalar)
	r.v.Set(&s.v)
	return r
}

// Zeroize wipes the scalar's internal representation.
func (s *Scalar) Zeroize() {
	s.v.Zero()
}

// ModN exposes the underlying decred type for callers in this module tree
// that need the lower-level API (e.g. ScalarBaseMultNonConst).
func (s *Scalar) ModN() *secp256k1.ModNScalar { return &s.v }

// NormalizeLowS returns s if s <= q/2, otherwise q-s, the canonical
// low-S form ECDSA verifiers require (BIP-62/spec.md §4.8).
func (s *Scalar) NormalizeLowS() *Scalar {
	r := s.Clone()
	if r.v.IsOverHalfOrder() {
		r.v.Negate()
	}
	return r
}
