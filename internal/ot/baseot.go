// Package ot implements the 1-of-2 endemic base OT and the SoftSpokenOT-style
// extension that turns a handful of base OTs into the many correlated OTs
// the 2P-MUL layer consumes, per spec.md §4.5.
package ot

import (
	"errors"
	"io"

	"github.com/zeebo/blake3"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
)

// Kappa is the number of base OTs run to seed the extension, chosen to
// match the curve's security level (128-bit).
const Kappa = 128

// BaseSenderState is the sender's (OT-extension receiver's) half of a batch
// of Kappa base OTs, following the Chou-Orlandi "simplest OT" construction:
// the sender publishes A = a*G once per instance and later derives both
// branch keys from the receiver's reply.
type BaseSenderState struct {
	a []*curve.Scalar
	A []*curve.Point
}

// BaseSenderMessage1 is the sender's first broadcast: one A point per base
// OT instance.
type BaseSenderMessage1 struct {
	A []*curve.Point
}

// NewBaseSender starts Kappa simultaneous base OT instances.
func NewBaseSender(rng io.Reader) (*BaseSenderState, *BaseSenderMessage1, error) {
	st := &BaseSenderState{a: make([]*curve.Scalar, Kappa), A: make([]*curve.Point, Kappa)}
	for i := 0; i < Kappa; i++ {
		a, err := curve.NewScalar(rng)
		if err != nil {
			return nil, nil, err
		}
		st.a[i] = a
		st.A[i] = curve.BaseMul(a)
	}
	return st, &BaseSenderMessage1{A: st.A}, nil
}

// BaseReceiverState is the receiver's (OT-extension sender's) half: it picks
// one secret choice bit per instance, encoded as the bit vector Delta that
// the extension step later treats as its correlation mask.
type BaseReceiverState struct {
	Delta []bool
	b     []*curve.Scalar
}

// BaseReceiverMessage is the receiver's reply: one masked point per
// instance.
type BaseReceiverMessage struct {
	B []*curve.Point
}

// Receive runs the receiver's side of the base OT given the sender's first
// message and a freshly sampled Delta.
func Receive(rng io.Reader, msg1 *BaseSenderMessage1, delta []bool) (*BaseReceiverState, *BaseReceiverMessage, error) {
	if len(delta) != Kappa {
		return nil, nil, errors.New("ot: delta must have Kappa bits")
	}
	st := &BaseReceiverState{Delta: append([]bool(nil), delta...), b: make([]*curve.Scalar, Kappa)}
	out := &BaseReceiverMessage{B: make([]*curve.Point, Kappa)}
	for i := 0; i < Kappa; i++ {
		bi, err := curve.NewScalar(rng)
		if err != nil {
			return nil, nil, err
		}
		st.b[i] = bi
		B := curve.BaseMul(bi)
		if delta[i] {
			B = B.Add(msg1.A[i])
		}
		out.B[i] = B
	}
	return st, out, nil
}

// SenderSeeds derives, for each instance, the pair of 32-byte seeds (k0,k1)
// the sender can compute for either receiver choice.
func (st *BaseSenderState) SenderSeeds(msg *BaseReceiverMessage) ([][2][32]byte, error) {
	if len(msg.B) != Kappa {
		return nil, errors.New("ot: malformed base OT receiver message")
	}
	out := make([][2][32]byte, Kappa)
	for i := 0; i < Kappa; i++ {
		k0Point := msg.B[i].Mul(st.a[i])
		negA := st.A[i].Mul(curve.ScalarFromUint32(1).Negate())
		k1Point := msg.B[i].Add(negA).Mul(st.a[i])
		out[i][0] = seedHash(i, k0Point)
		out[i][1] = seedHash(i, k1Point)
	}
	return out, nil
}

// ReceiverSeeds derives the single seed the receiver can compute, matching
// SenderSeeds[i][delta[i]] on the sender's side.
func (st *BaseReceiverState) ReceiverSeeds(msg1 *BaseSenderMessage1) [][32]byte {
	out := make([][32]byte, Kappa)
	for i := 0; i < Kappa; i++ {
		point := msg1.A[i].Mul(st.b[i])
		out[i] = seedHash(i, point)
	}
	return out
}

// Bytes returns a canonical encoding of the sender's base-OT secrets, so a
// KeygenSession suspended mid-handshake can be snapshotted and resumed.
func (st *BaseSenderState) Bytes() []byte {
	out := make([]byte, 0, Kappa*32)
	for _, a := range st.a {
		out = append(out, a.Bytes()...)
	}
	return out
}

// BaseSenderStateFromBytes reconstructs a sender state previously produced
// by Bytes, recomputing the public A points deterministically from a.
func BaseSenderStateFromBytes(data []byte) (*BaseSenderState, error) {
	if len(data) != Kappa*32 {
		return nil, errors.New("ot: malformed base sender state")
	}
	st := &BaseSenderState{a: make([]*curve.Scalar, Kappa), A: make([]*curve.Point, Kappa)}
	for i := 0; i < Kappa; i++ {
		a, err := curve.ScalarFromBytes(data[i*32 : i*32+32])
		if err != nil {
			return nil, err
		}
		st.a[i] = a
		st.A[i] = curve.BaseMul(a)
	}
	return st, nil
}

// Bytes returns a canonical encoding of the receiver's base-OT secrets.
func (st *BaseReceiverState) Bytes() []byte {
	out := make([]byte, 0, Kappa/8+Kappa*32)
	packed := packBits(st.Delta)
	out = append(out, packed[:Kappa/8]...)
	for _, b := range st.b {
		out = append(out, b.Bytes()...)
	}
	return out
}

// BaseReceiverStateFromBytes reconstructs a receiver state previously
// produced by Bytes.
func BaseReceiverStateFromBytes(data []byte) (*BaseReceiverState, error) {
	if len(data) != Kappa/8+Kappa*32 {
		return nil, errors.New("ot: malformed base receiver state")
	}
	delta := make([]bool, Kappa)
	for i := range delta {
		delta[i] = getBit(data, i)
	}
	st := &BaseReceiverState{Delta: delta, b: make([]*curve.Scalar, Kappa)}
	rest := data[Kappa/8:]
	for i := 0; i < Kappa; i++ {
		b, err := curve.ScalarFromBytes(rest[i*32 : i*32+32])
		if err != nil {
			return nil, err
		}
		st.b[i] = b
	}
	return st, nil
}

func seedHash(index int, p *curve.Point) [32]byte {
	h := blake3.New()
	_, _ = h.Write([]byte("dkls23/ot/base-seed"))
	var idxBuf [4]byte
	idxBuf[0] = byte(index)
	idxBuf[1] = byte(index >> 8)
	_, _ = h.Write(idxBuf[:])
	_, _ = h.Write(p.Bytes())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
