// Package keygen implements the 5-round DKG state machine described in
// spec.md §4.7: Feldman VSS + Birkhoff interpolation for the secret sharing,
// Schnorr PoK for liveness/knowledge of each contribution, a hash
// commitment for the chain code, and a bidirectional base-OT handshake with
// every peer so the resulting KeyShare carries reusable OT material for
// signing (spec.md §4.5).
//
// Grounded on the teacher's internal/protocol/keygen/{state,round_*}.go
// round-dispatch shape, replacing its Paillier keypair generation with the
// OT base-seed exchange this module's DKLs23 scope requires.
package keygen

import (
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
)

// Params configures a DKG run. Ranks may be nil, meaning every party has
// rank 0 (plain Lagrange reconstruction).
type Params struct {
	N, T, PartyID uint8
	Ranks         []uint32
}

func (p Params) rank(id uint8) uint32 {
	if p.Ranks == nil {
		return 0
	}
	return p.Ranks[id]
}

// PairOT is the per-peer base-OT material a completed session hands back,
// mirroring pkg/dkls.PairOTState's shape one layer down so pkg/dkls can
// copy it verbatim into a KeyShare.
type PairOT struct {
	SentBaseSeeds [][2][32]byte
	RecvBaseSeeds [][32]byte
	RecvDelta     []bool
}

// Result is everything a completed session assembles for the caller to
// fold into a pkg/dkls.KeyShare. It intentionally mirrors KeyShare's fields
// without importing pkg/dkls, which would create an import cycle.
type Result struct {
	PartyID        uint8
	N, T           uint8
	Ranks          []uint32
	Xi             *curve.Scalar
	PublicKey      *curve.Point
	BigS           []*curve.Point
	RootChainCode  [32]byte
	FinalSessionID [32]byte
	OTState        map[uint8]*PairOT
}

// Message is the protocol-local wire envelope, structurally identical to
// pkg/dkls.Message; pkg/dkls converts between the two at the package
// boundary so this package never imports the public API.
type Message struct {
	FromID  uint8
	ToID    *uint8
	Payload []byte
}

func broadcast(from uint8, payload []byte) Message { return Message{FromID: from, Payload: payload} }

func p2p(from, to uint8, payload []byte) Message {
	t := to
	return Message{FromID: from, ToID: &t, Payload: payload}
}

type otPairState struct {
	sender   *ot.BaseSenderState // this party's role as base-OT sender toward the peer
	receiver *ot.BaseReceiverState
}
