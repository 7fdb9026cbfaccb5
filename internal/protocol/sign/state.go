package sign

import (
	"io"
	"sort"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/commitment"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/vss"
)

// State is one signer's view of a single DSG run. Following
// internal/protocol/keygen.State's shape: a round counter plus per-peer
// accumulator maps, advanced one HandleMessages call at a time.
//
// The signing equation follows GG18's gamma/delta construction (Gennaro-
// Goldfeder 2018, "Fast Multiparty Threshold ECDSA with Fast Trustless
// Setup"): R = Γ^{δ^{-1}} where Γ = Σγ_i·g and δ = Σ(k_i·γ_i plus
// cross-party MtA terms) = k·γ; s = Σ(k_i·m + r·w_i·k_i plus cross-party MtA
// terms) = k·(m + r·x). Adapted here onto this module's OT-based 2P-MUL
// (internal/mta) in place of GG18's original Paillier-based MtA, per
// spec.md §4.6.
type State struct {
	params Params
	share  *Share
	tweak  *curve.Scalar
	rng    io.Reader
	peers  []uint8

	round            int
	firstMessageSent bool
	preSigReady      bool
	preSigConsumed   bool

	k, gamma *curve.Scalar
	w        *curve.Scalar // this party's weighted, tweak-adjusted key share

	gammaPoint   *curve.Point
	commit       *commitment.Commitment
	pendingFirst Message

	recvSeeds1 map[uint8]ot.ReceiverSeedList
	recvSeeds2 map[uint8]ot.ReceiverSeedList

	peerCommit      map[uint8][]byte
	peerGammaPoint  map[uint8]*curve.Point
	peerDeltaShares map[uint8]*curve.Scalar

	deltaShare *curve.Scalar
	kxShare    *curve.Scalar

	r     *curve.Scalar
	m     *curve.Scalar
	sigma *curve.Scalar
}

func newState(params Params, share *Share, tweak *curve.Scalar, rng io.Reader) *State {
	peers := make([]uint8, 0, len(params.Signers)-1)
	for _, id := range params.Signers {
		if id != params.PartyID {
			peers = append(peers, id)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return &State{
		params:          params,
		share:           share,
		tweak:           tweak,
		rng:             rng,
		peers:           peers,
		round:           1,
		recvSeeds1:      make(map[uint8]ot.ReceiverSeedList),
		recvSeeds2:      make(map[uint8]ot.ReceiverSeedList),
		peerCommit:      make(map[uint8][]byte),
		peerGammaPoint:  make(map[uint8]*curve.Point),
		peerDeltaShares: make(map[uint8]*curve.Scalar),
	}
}

// New starts a DSG session for a T-party signer set. tweak is the additive
// BIP32 offset already derived from the derivation path (zero for "m").
func New(params Params, share *Share, tweak *curve.Scalar, rng io.Reader) (*State, error) {
	nodes := make([]vss.Node, 0, len(params.Signers))
	for _, id := range params.Signers {
		nodes = append(nodes, vss.Node{PartyID: id, Rank: params.rank(id)})
	}
	coeffs, err := vss.Coefficients(nodes, len(params.Signers))
	if err != nil {
		return nil, err
	}
	lambda, ok := coeffs[params.PartyID]
	if !ok {
		return nil, wrap(ErrInvalidMessage, "party id missing from its own signer set")
	}

	s := newState(params, share, tweak, rng)
	s.w = lambda.Mul(share.Xi)
	if isAnchor(params.Signers, params.PartyID) {
		s.w = s.w.Add(tweak)
	}

	if err := s.prepareFirstMessage(); err != nil {
		return nil, err
	}
	return s, nil
}

// isAnchor reports whether id is the lowest-numbered party in signers, the
// single contributor of the BIP32 tweak so Σw_i = x + tweak regardless of T.
func isAnchor(signers []uint8, id uint8) bool {
	min := signers[0]
	for _, s := range signers {
		if s < min {
			min = s
		}
	}
	return id == min
}

func (s *State) prepareFirstMessage() error {
	k, err := curve.NewScalar(s.rng)
	if err != nil {
		return err
	}
	gamma, err := curve.NewScalar(s.rng)
	if err != nil {
		return err
	}
	s.k = k
	s.gamma = gamma
	s.gammaPoint = curve.BaseMul(gamma)

	c, err := commitment.New("dsg-gamma", s.gammaPoint.Bytes())
	if err != nil {
		return err
	}
	s.commit = c

	u1 := make(map[uint8][]byte, len(s.peers))
	u2 := make(map[uint8][]byte, len(s.peers))
	for _, peer := range s.peers {
		pair := s.share.OTState[peer]
		gammaBits, err := scalarBits(s.gamma)
		if err != nil {
			return err
		}
		wBits, err := scalarBits(s.w)
		if err != nil {
			return err
		}
		seeds1, u1Vec, err := ot.ExtendAsReceiver(pair.SentBaseSeeds, gammaBits, extendContext(s.params.PartyID, peer, "gamma"))
		if err != nil {
			return err
		}
		seeds2, u2Vec, err := ot.ExtendAsReceiver(pair.SentBaseSeeds, wBits, extendContext(s.params.PartyID, peer, "x"))
		if err != nil {
			return err
		}
		s.recvSeeds1[peer] = seeds1
		s.recvSeeds2[peer] = seeds2
		u1[peer] = flattenU(u1Vec)
		u2[peer] = flattenU(u2Vec)
	}

	payload := encodePayload(round1Payload{
		Round:      1,
		Commitment: s.commit.C,
		U1:         u1,
		U2:         u2,
	})
	s.pendingFirst = broadcast(s.params.PartyID, payload)
	return nil
}

// CreateFirstMessage returns the round 1 broadcast. Calling it twice is
// InvalidState.
func (s *State) CreateFirstMessage() (Message, error) {
	if s.firstMessageSent {
		return Message{}, ErrInvalidState
	}
	s.firstMessageSent = true
	return s.pendingFirst, nil
}

// PreSigReady reports whether HandleMessages has produced the local
// pre-signature (r, per-party shares) LastMessage needs.
func (s *State) PreSigReady() bool { return s.preSigReady }

// HandleMessages advances the state machine by exactly one round.
func (s *State) HandleMessages(batch []Message) ([]Message, error) {
	if !s.firstMessageSent {
		return nil, ErrInvalidState
	}
	if s.preSigReady {
		return nil, ErrInvalidState
	}
	if err := s.validateBatch(batch); err != nil {
		return nil, err
	}
	switch s.round {
	case 1:
		return s.handleRound1(batch)
	case 2:
		return s.handleRound2(batch)
	case 3:
		return s.handleRound3(batch)
	default:
		return nil, ErrInvalidState
	}
}

func (s *State) validateBatch(batch []Message) error {
	seen := make(map[uint8]bool, len(batch))
	for _, m := range batch {
		if m.FromID == s.params.PartyID {
			return wrap(ErrInvalidMessage, "self-addressed message")
		}
		if seen[m.FromID] {
			return wrap(ErrInvalidMessage, "duplicate sender")
		}
		seen[m.FromID] = true
		found := false
		for _, p := range s.peers {
			if p == m.FromID {
				found = true
				break
			}
		}
		if !found {
			return wrap(ErrInvalidMessage, "unknown sender")
		}
		if m.ToID != nil && *m.ToID != s.params.PartyID {
			return wrap(ErrInvalidMessage, "message addressed to a different recipient")
		}
	}
	if len(batch) != len(s.peers) {
		return wrap(ErrInvalidMessage, "incomplete batch")
	}
	return nil
}

func extendContext(from, to uint8, label string) []byte {
	return []byte(label + ":" + string([]byte{from, to}))
}

func scalarBits(x *curve.Scalar) ([]bool, error) {
	b := x.Bytes()
	bits := make([]bool, ot.ExtendedLen)
	for i := range bits {
		bits[i] = b[31-i/8]&(1<<uint(i%8)) != 0
	}
	return bits, nil
}

func flattenU(u [][32]byte) []byte {
	out := make([]byte, 0, len(u)*32)
	for _, b := range u {
		out = append(out, b[:]...)
	}
	return out
}

func unflattenU(b []byte) ([][32]byte, error) {
	if len(b)%32 != 0 {
		return nil, wrap(ErrInvalidMessage, "malformed OT correction vector")
	}
	out := make([][32]byte, len(b)/32)
	for i := range out {
		copy(out[i][:], b[i*32:(i+1)*32])
	}
	return out, nil
}
