package vss

import "github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"

// Node is one party's evaluation point and derivative rank for Birkhoff
// interpolation. A party's x-coordinate is its id plus one (partyScalar), so
// no party sits at x = 0; spec.md §4.3 requires these be pairwise distinct.
type Node struct {
	PartyID uint8
	Rank    uint32
}

// Coefficients computes the Birkhoff interpolation coefficients λ_j for the
// given node set and threshold T, following the construction grounded on
// luxfi-threshold's pkg/math/polynomial/lagrange_test.go (which exercises a
// rank-aware Lagrange/Birkhoff API of this shape, even though its
// implementation file was not part of the retrieval pack) and spec.md
// §4.3's definition that rank 0 nodes reduce to ordinary Lagrange.
//
// Standard Birkhoff interpolation solves a linear system built from the
// falling-factorial coefficients of each node's derivative row; for the
// common all-ranks-zero case this degenerates to the classical Lagrange
// basis, computed directly without solving a system.
func Coefficients(nodes []Node, threshold int) (map[uint8]*curve.Scalar, error) {
	allZero := true
	for _, n := range nodes {
		if n.Rank != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return lagrangeCoefficients(nodes)
	}
	return birkhoffCoefficients(nodes, threshold)
}

// lagrangeCoefficients computes λ_j = Π_{m != j} x_m / (x_m - x_j) for
// rank-0 nodes, evaluating the interpolating polynomial at 0.
func lagrangeCoefficients(nodes []Node) (map[uint8]*curve.Scalar, error) {
	xs := make(map[uint8]*curve.Scalar, len(nodes))
	for _, n := range nodes {
		xs[n.PartyID] = partyScalar(n.PartyID)
	}

	out := make(map[uint8]*curve.Scalar, len(nodes))
	for _, j := range nodes {
		xj := xs[j.PartyID]
		num := curve.ScalarFromUint32(1)
		den := curve.ScalarFromUint32(1)
		for _, m := range nodes {
			if m.PartyID == j.PartyID {
				continue
			}
			xm := xs[m.PartyID]
			num = num.Mul(xm)
			den = den.Mul(xm.Sub(xj))
		}
		out[j.PartyID] = num.Mul(den.Inverse())
	}
	return out, nil
}

// birkhoffCoefficients solves the Birkhoff system by Gaussian elimination
// over Z_q: the coefficients lambda solve M^T * lambda = e_0 where M is the
// Vandermonde-derivative matrix M[row][k] = falling_factorial(k, rank_row) *
// x_row^(k-rank_row) for k = 0..threshold-1, so that Σ_j lambda_j * f(x_j
// evaluated via rank_j-th derivative) reconstructs f(0) for every degree
// < threshold polynomial f.
func birkhoffCoefficients(nodes []Node, threshold int) (map[uint8]*curve.Scalar, error) {
	n := len(nodes)
	// Build the n x n matrix A where A[row][col] is the col-th power
	// coefficient (falling-factorial-scaled) of node `row`'s derivative row,
	// for col = 0..n-1. The system is sized by the number of nodes passed,
	// not by threshold (the keygen package passes all N parties).
	a := make([][]*curve.Scalar, n)
	for row, node := range nodes {
		a[row] = make([]*curve.Scalar, n)
		x := partyScalar(node.PartyID)
		for col := 0; col < n; col++ {
			if uint32(col) < node.Rank {
				a[row][col] = curve.ScalarFromUint32(0)
				continue
			}
			coeff := fallingFactorial(uint32(col), node.Rank)
			pow := powScalar(x, uint32(col)-node.Rank)
			a[row][col] = coeff.Mul(pow)
		}
	}

	inv, err := invertMatrix(a)
	if err != nil {
		return nil, err
	}

	// lambda_j = inv[0][j] (first row of the inverse), since we want the
	// linear functional extracting a_0 = f(0) from the node evaluations.
	out := make(map[uint8]*curve.Scalar, n)
	for j, node := range nodes {
		out[node.PartyID] = inv[0][j]
	}
	return out, nil
}

func partyScalar(id uint8) *curve.Scalar {
	// Party ids are 0-based in spec.md's data model; interpolation nodes
	// must be pairwise distinct and nonzero as x-coordinates, so we shift
	// by one the same way the teacher's calcLagrangeCoeffs does
	// (internal/protocol/sign/round_1.go: x := index + 1).
	return curve.ScalarFromUint32(uint32(id) + 1)
}

func powScalar(x *curve.Scalar, e uint32) *curve.Scalar {
	result := curve.ScalarFromUint32(1)
	for i := uint32(0); i < e; i++ {
		result = result.Mul(x)
	}
	return result
}

// invertMatrix computes the inverse of a over Z_q via Gauss-Jordan
// elimination with partial pivoting disabled (not constant-time; this runs
// once per signing/keygen session on public data — the node set and ranks
// — never on secret scalars, so constant-time discipline does not apply).
func invertMatrix(a [][]*curve.Scalar) ([][]*curve.Scalar, error) {
	n := len(a)
	aug := make([][]*curve.Scalar, n)
	for i := range a {
		aug[i] = make([]*curve.Scalar, 2*n)
		for j := 0; j < n; j++ {
			aug[i][j] = a[i][j].Clone()
		}
		for j := 0; j < n; j++ {
			if i == j {
				aug[i][n+j] = curve.ScalarFromUint32(1)
			} else {
				aug[i][n+j] = curve.ScalarFromUint32(0)
			}
		}
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if !aug[row][col].IsZero() {
				pivot = row
				break
			}
		}
		if pivot == -1 {
			return nil, errSingularBirkhoffMatrix
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		invPivot := aug[col][col].Inverse()
		for j := 0; j < 2*n; j++ {
			aug[col][j] = aug[col][j].Mul(invPivot)
		}

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col].Clone()
			if factor.IsZero() {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[row][j] = aug[row][j].Sub(aug[col][j].Mul(factor))
			}
		}
	}

	inv := make([][]*curve.Scalar, n)
	for i := 0; i < n; i++ {
		inv[i] = aug[i][n:]
	}
	return inv, nil
}
