// Package mta implements the two-party multiplication (2P-MUL / MtA) that
// converts multiplicative shares into additive ones, built black-box on
// internal/ot, per spec.md §4.6.
//
// Grounded on the teacher's internal/crypto/zk/mta/proof.go for the role an
// MtA module plays in the protocol (a keyed Prove/Verify-shaped exchange
// between a sender and receiver secret that a consistency check can blame),
// re-implemented on OT instead of Paillier range proofs because spec.md's
// DKLs23 family uses OT-based multiplication, not Paillier's.
package mta

import (
	"crypto/rand"
	"errors"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
)

// BitWidth is the number of bits of the scalar field multiplied bit-by-bit
// in the Gilboa construction; 256 safely covers secp256k1's 256-bit order.
const BitWidth = ot.ExtendedLen

// SenderShare is the output held by the party that supplied the "a" input.
type SenderShare struct {
	Alpha *curve.Scalar
}

// ReceiverShare is the output held by the party that supplied the "b"
// input, computed once it receives the sender's masked messages.
type ReceiverShare struct {
	Beta *curve.Scalar
}

// SenderMessage is what the multiplier (holder of a) sends after the OT
// extension has completed: one-time-pad-masked (m0_k, m1_k) pairs, keyed by
// the extension's sent_seed_list.
type SenderMessage struct {
	Masked [][2][32]byte
}

// ComputeSenderMessage runs the "a" side of Gilboa's protocol: it samples
// r_k random per-bit additive masks, derives its own additive share as
// alpha = -Σ r_k mod q, and produces the masked OT payloads whose
// difference encodes a*2^k.
func ComputeSenderMessage(a *curve.Scalar, seeds ot.SenderSeedList) (*SenderShare, *SenderMessage, error) {
	if len(seeds) < BitWidth {
		return nil, nil, errors.New("mta: not enough OT instances for this bit width")
	}
	masked := make([][2][32]byte, BitWidth)
	alpha := curve.ScalarFromUint32(0)
	for k := 0; k < BitWidth; k++ {
		rk, err := curve.NewScalar(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		alpha = alpha.Sub(rk)

		m0 := rk
		m1 := rk.Add(a.Mul(powerOfTwo(k)))

		masked[k][0] = xorScalarSeed(m0, seeds[k][0])
		masked[k][1] = xorScalarSeed(m1, seeds[k][1])
	}
	return &SenderShare{Alpha: alpha}, &SenderMessage{Masked: masked}, nil
}

// ComputeReceiverShare runs the "b" side: it unmasks the message selected by
// its own OT choice bits (the bits of b) using rec_seed_list, and sums the
// results into beta = Σ m_{b_k}, so that alpha + beta = a*b mod q.
func ComputeReceiverShare(seeds ot.ReceiverSeedList, msg *SenderMessage) (*ReceiverShare, error) {
	if len(msg.Masked) != BitWidth || len(seeds.Seeds) < BitWidth {
		return nil, errors.New("mta: malformed sender message")
	}
	beta := curve.ScalarFromUint32(0)
	for k := 0; k < BitWidth; k++ {
		branch := 0
		if seeds.Choices[k] {
			branch = 1
		}
		m := unxorScalarSeed(msg.Masked[k][branch], seeds.Seeds[k])
		beta = beta.Add(m)
	}
	return &ReceiverShare{Beta: beta}, nil
}

func powerOfTwo(k int) *curve.Scalar {
	result := curve.ScalarFromUint32(1)
	two := curve.ScalarFromUint32(2)
	for i := 0; i < k; i++ {
		result = result.Mul(two)
	}
	return result
}

func xorScalarSeed(s *curve.Scalar, seed [32]byte) [32]byte {
	b := s.Bytes()
	var out [32]byte
	for i := range out {
		out[i] = b[i] ^ seed[i]
	}
	return out
}

func unxorScalarSeed(ct [32]byte, seed [32]byte) *curve.Scalar {
	var raw [32]byte
	for i := range raw {
		raw[i] = ct[i] ^ seed[i]
	}
	s, err := curve.ScalarFromBytes(raw[:])
	if err != nil {
		// The pad is a uniformly random 256-bit value; ScalarFromBytes
		// always accepts exactly 32 bytes, so this path is unreachable.
		panic(err)
	}
	return s
}
