// Package sign implements the DSG (distributed signature generation) state
// machine: given a T-of-N threshold key share set, T signers jointly
// produce a standard secp256k1 ECDSA signature without ever reconstructing
// the private key, per spec.md §4.8.
package sign

import "github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"

// Params describes one signer's view of a DSG run: the full participating
// signer set (size T, pairwise distinct, including PartyID) and each
// signer's Birkhoff rank.
type Params struct {
	Signers []uint8
	PartyID uint8
	Ranks   map[uint8]uint32
}

func (p Params) rank(id uint8) uint32 { return p.Ranks[id] }

// PairOT is the persistent base-OT material this session reads from the
// consumed KeyShare for one peer; structurally identical to
// internal/protocol/keygen.PairOT and pkg/dkls.PairOTState, redefined here
// to avoid importing pkg/dkls (which imports this package's Message type).
type PairOT struct {
	SentBaseSeeds [][2][32]byte
	RecvBaseSeeds [][32]byte
	RecvDelta     []bool
}

// Share is the subset of KeyShare fields a DSG session needs. The caller
// (pkg/dkls.SignSession) is responsible for treating the originating
// KeyShare as consumed once a Share is built from it, per spec.md §9's
// "SignSession::new atomically consumes the old KeyShare" rule.
type Share struct {
	PartyID       uint8
	Xi            *curve.Scalar
	PublicKey     *curve.Point
	BigS          []*curve.Point
	RootChainCode [32]byte
	OTState       map[uint8]*PairOT
}

// Result is the final, verified signature.
type Result struct {
	Rx [32]byte
	S  [32]byte
}

// Message is the opaque per-round unit of exchange, structurally identical
// to pkg/dkls.Message.
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

// partyX maps a party id to its Birkhoff/Feldman evaluation point, matching
// internal/vss's and internal/protocol/keygen's id+1 convention.
func partyX(id uint8) *curve.Scalar { return curve.ScalarFromUint32(uint32(id) + 1) }
