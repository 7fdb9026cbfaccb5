package vss

import "github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"

// FeldmanCommitment is the point-wise commitment C_k = f_k * g to each
// coefficient of a VSS polynomial, published alongside round 1 of the DKG
// so every peer can verify its received share without learning f.
type FeldmanCommitment struct {
	Coeffs []*curve.Point
}

// Commit builds the Feldman commitment to p.
func Commit(p *Polynomial) *FeldmanCommitment {
	c := &FeldmanCommitment{Coeffs: make([]*curve.Point, len(p.Coeffs))}
	for i, coeff := range p.Coeffs {
		c.Coeffs[i] = curve.BaseMul(coeff)
	}
	return c
}

// Eval evaluates the committed polynomial "in the exponent" at x, i.e.
// returns f(x)*g without knowing f, via Σ x^k * C_k when rank == 0 (the
// common case: verifying a plain VSS share). For rank > 0 it instead
// returns the rank-th formal derivative evaluated at x, scaled by the
// falling factorial perm(k, rank) = k!/(k-rank)!, which is what Birkhoff
// interpolation needs from parties holding a nonzero rank (spec.md §4.3).
func (c *FeldmanCommitment) Eval(x *curve.Scalar, rank uint32) *curve.Point {
	acc := curve.IdentityPoint()
	xPow := curve.ScalarFromUint32(1) // x^(k-rank), starts at x^0
	for k := int(rank); k < len(c.Coeffs); k++ {
		coeff := fallingFactorial(uint32(k), rank)
		scalar := coeff.Mul(xPow)
		acc = acc.Add(c.Coeffs[k].Mul(scalar))
		xPow = xPow.Mul(x)
	}
	return acc
}

// fallingFactorial computes k*(k-1)*...*(k-rank+1) mod q, i.e. k!/(k-rank)!.
// For rank 0 it is the empty product, 1, so Eval reduces to plain Σ x^k*C_k.
func fallingFactorial(k, rank uint32) *curve.Scalar {
	result := curve.ScalarFromUint32(1)
	for i := uint32(0); i < rank; i++ {
		result = result.Mul(curve.ScalarFromUint32(k - i))
	}
	return result
}
