package curve

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Point is a point on secp256k1 (the identity included, see IdentityPoint;
// PointFromBytes never yields it), held in Jacobian form so
// repeated additions during VSS/Birkhoff combination avoid the cost of a
// field inversion per step.
type Point struct {
	j secp256k1.JacobianPoint
}

// IdentityPoint returns the group identity (point at infinity).
func IdentityPoint() *Point {
	p := new(Point)
	p.j.X.SetInt(0)
	p.j.Y.SetInt(0)
	p.j.Z.SetInt(0)
	return p
}

// BaseMul returns s*G.
func BaseMul(s *Scalar) *Point {
	p := new(Point)
	secp256k1.ScalarBaseMultNonConst(&s.v, &p.j)
	return p
}

// Mul returns s*p.
func (p *Point) Mul(s *Scalar) *Point {
	r := new(Point)
	secp256k1.ScalarMultNonConst(&s.v, &p.j, &r.j)
	return r
}

// Add returns p+o.
func (p *Point) Add(o *Point) *Point {
	r := new(Point)
	secp256k1.AddNonConst(&p.j, &o.j, &r.j)
	return r
}

// IsIdentity reports whether p is the point at infinity.
func (p *Point) IsIdentity() bool {
	return p.j.Z.IsZero()
}

// Equal reports whether p == o.
func (p *Point) Equal(o *Point) bool {
	a, b := new(secp256k1.JacobianPoint), new(secp256k1.JacobianPoint)
	a.Set(&p.j)
	b.Set(&o.j)
	a.ToAffine()
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

// Bytes returns the 33-byte compressed SEC1 encoding of p.
func (p *Point) Bytes() []byte {
	q := new(secp256k1.JacobianPoint)
	q.Set(&p.j)
	q.ToAffine()
	pub := secp256k1.NewPublicKey(&q.X, &q.Y)
	return pub.SerializeCompressed()
}

// XScalar returns the point's affine x-coordinate reduced mod the group
// order q, the r component of an ECDSA signature computed from R = k*g.
func (p *Point) XScalar() *Scalar {
	q := new(secp256k1.JacobianPoint)
	q.Set(&p.j)
	q.ToAffine()
	xb := q.X.Bytes()
	s := new(Scalar)
	s.v.SetByteSlice(xb[:])
	return s
}

// PointFromBytes parses a 33-byte compressed point and rejects the identity
// and any buffer not on the curve.
func PointFromBytes(b []byte) (*Point, error) {
	if len(b) != 33 {
		return nil, errors.New("curve: compressed point must be 33 bytes")
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	p := new(Point)
	pub.AsJacobian(&p.j)
	if p.IsIdentity() {
		return nil, errors.New("curve: identity point is not a valid public point")
	}
	return p, nil
}

// Jacobian exposes the underlying decred representation for the schnorrzk
// package, which needs direct access to build/verify challenge transcripts.
func (p *Point) Jacobian() *secp256k1.JacobianPoint { return &p.j }

// PointFromJacobian wraps an already-computed Jacobian point.
func PointFromJacobian(j *secp256k1.JacobianPoint) *Point {
	p := new(Point)
	p.j.Set(j)
	return p
}
