// Package vss implements degree-(t-1) polynomial sampling/evaluation,
// Feldman commitments, and Birkhoff (rank-aware Lagrange) interpolation,
// per spec.md §4.3.
package vss

import (
	"io"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
)

// Polynomial is f(x) = a_0 + a_1*x + ... + a_{t-1}*x^{t-1} over Z_q.
// a_0 is typically a secret share; Zeroize wipes the coefficients, and
// nothing calls it automatically when a Polynomial goes out of use.
//
// Grounded on the teacher's internal/crypto/polynomial/polynomial.go
// (same sampling + Horner-evaluation shape), generalized to operate on
// this module's constant-time curve.Scalar instead of math/big.Int.
type Polynomial struct {
	Coeffs []*curve.Scalar
}

// New samples a random polynomial of the given degree. If secret is
// non-nil, f(0) = *secret; otherwise the constant term is also random.
func New(rng io.Reader, degree int, secret *curve.Scalar) (*Polynomial, error) {
	coeffs := make([]*curve.Scalar, degree+1)
	if secret != nil {
		coeffs[0] = secret.Clone()
	} else {
		s, err := curve.NewScalar(rng)
		if err != nil {
			return nil, err
		}
		coeffs[0] = s
	}
	for i := 1; i <= degree; i++ {
		s, err := curve.NewScalar(rng)
		if err != nil {
			return nil, err
		}
		coeffs[i] = s
	}
	return &Polynomial{Coeffs: coeffs}, nil
}

// Evaluate computes f(x) via Horner's method.
func (p *Polynomial) Evaluate(x *curve.Scalar) *curve.Scalar {
	degree := len(p.Coeffs) - 1
	result := p.Coeffs[degree].Clone()
	for i := degree - 1; i >= 0; i-- {
		result = result.Mul(x)
		result = result.Add(p.Coeffs[i])
	}
	return result
}

// Degree returns t-1 for a polynomial committing to a T-of-N share.
func (p *Polynomial) Degree() int { return len(p.Coeffs) - 1 }

// Zeroize wipes every coefficient in place.
func (p *Polynomial) Zeroize() {
	for _, c := range p.Coeffs {
		c.Zeroize()
	}
}
