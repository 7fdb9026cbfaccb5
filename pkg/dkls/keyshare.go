package dkls

import (
	"crypto/rand"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/schnorrzk"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/wire"
)

// PairOTState is the per-peer base-OT material a KeyShare carries forward
// so SignSession never has to repeat the expensive public-key base OT
// round: every signing session derives fresh, independent correlated OT
// batches from these Kappa base seeds via internal/ot's extension, keyed by
// a per-multiplication context, per spec.md §4.5's "reused across
// signings". Each party runs base OT with every peer in both directions
// during DKG (internal/protocol/keygen), so a given peer entry has both
// halves populated.
type PairOTState struct {
	// SentBaseSeeds is this party's (k0,k1) pairs from having run base OT as
	// sender toward the peer; used later to play the OT-extension receiver
	// role (ot.ExtendAsReceiver) whenever this party holds the 'b' operand
	// of a multiplication with that peer.
	SentBaseSeeds [][2][32]byte

	// RecvBaseSeeds/RecvDelta are this party's single seed per instance and
	// committed bit vector from having run base OT as receiver from the
	// peer; used later to play the OT-extension sender role
	// (ot.ExtendAsSender) whenever this party holds the 'a' operand.
	RecvBaseSeeds [][32]byte
	RecvDelta     []bool
}

// KeyShare is one party's opaque, secret output of a completed DKG, per
// spec.md §3.
type KeyShare struct {
	PartyID uint8
	N       uint8
	T       uint8
	Ranks   []uint32

	Xi        *curve.Scalar // additive share of the master secret
	PublicKey *curve.Point  // P, identical across all N shares

	BigS []*curve.Point // per-party public share commitments S_j

	RootChainCode  [32]byte
	FinalSessionID [32]byte

	// OTState[j] holds the seeds shared with peer j in both OT roles; the
	// DKG runs base OT with every peer in each direction, so both the sent
	// and received halves are populated.
	OTState map[uint8]*PairOTState

	consumed bool
}

// Zeroize wipes every secret scalar/seed the share holds. Per spec.md §5,
// dropping a KeyShare in any form must zeroize its secret material; Go has
// no destructors, so callers must call Zeroize explicitly when done with a
// share (e.g. after SignSession.New or finish_key_rotation have consumed
// it into a new structure).
func (k *KeyShare) Zeroize() {
	if k.Xi != nil {
		k.Xi.Zeroize()
	}
	for _, st := range k.OTState {
		for i := range st.SentBaseSeeds {
			st.SentBaseSeeds[i] = [2][32]byte{}
		}
		for i := range st.RecvBaseSeeds {
			st.RecvBaseSeeds[i] = [32]byte{}
		}
	}
	k.consumed = true
}

// Clone makes an independent deep copy; the clone carries its own secret
// material and must be zeroized independently (spec.md §5).
func (k *KeyShare) Clone() *KeyShare {
	c := &KeyShare{
		PartyID:        k.PartyID,
		N:              k.N,
		T:              k.T,
		Ranks:          append([]uint32(nil), k.Ranks...),
		Xi:             k.Xi.Clone(),
		PublicKey:      k.PublicKey,
		BigS:           append([]*curve.Point(nil), k.BigS...),
		RootChainCode:  k.RootChainCode,
		FinalSessionID: k.FinalSessionID,
		OTState:        make(map[uint8]*PairOTState, len(k.OTState)),
	}
	for id, st := range k.OTState {
		cp := &PairOTState{
			SentBaseSeeds: append([][2][32]byte(nil), st.SentBaseSeeds...),
			RecvBaseSeeds: append([][32]byte(nil), st.RecvBaseSeeds...),
			RecvDelta:     append([]bool(nil), st.RecvDelta...),
		}
		c.OTState[id] = cp
	}
	return c
}

// ProveOwnership issues a non-interactive proof that this party still holds
// its share's secret scalar, bound to context. Supplemental operation
// (SPEC_FULL.md §5), not part of any round-based session: adapted from the
// teacher's standalone internal/protocol/identify package into a direct
// wrapper over internal/schnorrzk, since that package's only content was a
// schnorr PoK over a key share.
func (k *KeyShare) ProveOwnership(context []byte) (*schnorrzk.Proof, error) {
	myShare := k.BigS[k.PartyID]
	return schnorrzk.Prove(rand.Reader, context, "dkls23/ownership", k.Xi, myShare)
}

// VerifyOwnership checks a proof produced by ProveOwnership for the given
// per-party public share.
func VerifyOwnership(proof *schnorrzk.Proof, context []byte, bigSj *curve.Point) bool {
	return proof.Verify(context, "dkls23/ownership", bigSj)
}

// --- wire encoding -------------------------------------------------------

type seedPairWire struct {
	V0 []byte
	V1 []byte
}

type pairOTWire struct {
	SentBaseSeeds []seedPairWire
	RecvBaseSeeds [][]byte
	RecvDelta     []bool
}

type keyShareWire struct {
	PartyID        uint8
	N              uint8
	T              uint8
	Ranks          []uint32
	Xi             []byte
	PublicKey      []byte
	BigS           [][]byte
	RootChainCode  []byte
	FinalSessionID []byte
	OTState        map[uint8]pairOTWire
}

// Bytes returns the canonical versioned encoding of the share.
func (k *KeyShare) Bytes() ([]byte, error) {
	w := keyShareWire{
		PartyID:        k.PartyID,
		N:              k.N,
		T:              k.T,
		Ranks:          k.Ranks,
		Xi:             k.Xi.Bytes(),
		PublicKey:      k.PublicKey.Bytes(),
		RootChainCode:  k.RootChainCode[:],
		FinalSessionID: k.FinalSessionID[:],
		OTState:        make(map[uint8]pairOTWire, len(k.OTState)),
	}
	for _, s := range k.BigS {
		w.BigS = append(w.BigS, s.Bytes())
	}
	for id, st := range k.OTState {
		pw := pairOTWire{RecvDelta: st.RecvDelta}
		for _, pair := range st.SentBaseSeeds {
			pw.SentBaseSeeds = append(pw.SentBaseSeeds, seedPairWire{V0: pair[0][:], V1: pair[1][:]})
		}
		for _, s := range st.RecvBaseSeeds {
			pw.RecvBaseSeeds = append(pw.RecvBaseSeeds, s[:])
		}
		w.OTState[id] = pw
	}
	return wire.Encode(w)
}

// KeyShareFromBytes decodes a share previously produced by Bytes.
func KeyShareFromBytes(data []byte) (*KeyShare, error) {
	var w keyShareWire
	if err := wire.Decode(data, &w); err != nil {
		return nil, newErr(SerializationError, "keyshare decode failed", err)
	}
	xi, err := curve.ScalarFromBytes(w.Xi)
	if err != nil {
		return nil, newErr(SerializationError, "keyshare Xi malformed", err)
	}
	pub, err := curve.PointFromBytes(w.PublicKey)
	if err != nil {
		return nil, newErr(SerializationError, "keyshare public key malformed", err)
	}
	k := &KeyShare{
		PartyID:   w.PartyID,
		N:         w.N,
		T:         w.T,
		Ranks:     w.Ranks,
		Xi:        xi,
		PublicKey: pub,
		OTState:   make(map[uint8]*PairOTState, len(w.OTState)),
	}
	copy(k.RootChainCode[:], w.RootChainCode)
	copy(k.FinalSessionID[:], w.FinalSessionID)
	for _, b := range w.BigS {
		p, err := curve.PointFromBytes(b)
		if err != nil {
			return nil, newErr(SerializationError, "keyshare BigS entry malformed", err)
		}
		k.BigS = append(k.BigS, p)
	}
	for id, pw := range w.OTState {
		sent := make([][2][32]byte, len(pw.SentBaseSeeds))
		for i, p := range pw.SentBaseSeeds {
			copy(sent[i][0][:], p.V0)
			copy(sent[i][1][:], p.V1)
		}
		recv := make([][32]byte, len(pw.RecvBaseSeeds))
		for i, s := range pw.RecvBaseSeeds {
			copy(recv[i][:], s)
		}
		k.OTState[id] = &PairOTState{SentBaseSeeds: sent, RecvBaseSeeds: recv, RecvDelta: pw.RecvDelta}
	}
	return k, nil
}
