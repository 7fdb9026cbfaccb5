// Package schnorrzk implements the non-interactive Schnorr proof of
// knowledge of discrete log used throughout the DKG and for the
// supplemental proof-of-possession operation, per spec.md §4.4.
package schnorrzk

import (
	"io"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/transcript"
)

// Proof is (R, z) proving knowledge of x such that Y = x*g, bound to a
// session id so a proof generated for one DKG run cannot be replayed into
// another. Grounded on the teacher's internal/crypto/zk/schnorr/proof.go
// shape (R, S fields), generalized to bind sessionID via the project's
// transcript instead of a bare H(X, R).
type Proof struct {
	R *curve.Point
	Z *curve.Scalar
}

// Prove generates a proof that the caller knows x with Y = x*g.
func Prove(rng io.Reader, sessionID []byte, label string, x *curve.Scalar, y *curve.Point) (*Proof, error) {
	k, err := curve.NewScalar(rng)
	if err != nil {
		return nil, err
	}
	r := curve.BaseMul(k)
	e := challenge(sessionID, label, y, r)
	z := k.Add(e.Mul(x))
	return &Proof{R: r, Z: z}, nil
}

// Verify checks p against public point y under the same sessionID/label.
func (p *Proof) Verify(sessionID []byte, label string, y *curve.Point) bool {
	if p == nil || p.R == nil || p.Z == nil || y == nil {
		return false
	}
	e := challenge(sessionID, label, y, p.R)
	lhs := curve.BaseMul(p.Z)
	rhs := p.R.Add(y.Mul(e))
	return lhs.Equal(rhs)
}

func challenge(sessionID []byte, label string, y, r *curve.Point) *curve.Scalar {
	tr := transcript.New("dkls23/schnorr")
	tr.Absorb("sid", sessionID)
	tr.Absorb("label", []byte(label))
	tr.Absorb("Y", y.Bytes())
	tr.Absorb("R", r.Bytes())
	return curve.HashToScalar("dkls23/schnorr/challenge", tr.Challenge("e", 48))
}
