package keygen

import (
	"io"
	"sort"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/commitment"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/vss"
)

// State is a single party's view of one DKG run, following the teacher's
// round/tempData/receivedMsgs state-machine shape (internal/protocol/keygen/
// state.go) generalized from its PartyID-keyed map of tss.Message to this
// package's batch-oriented HandleMessages.
type State struct {
	params Params
	rng    io.Reader
	peers  []uint8

	round            int
	firstMessageSent bool
	done             bool

	sessionID    [32]byte
	poly         *vss.Polynomial
	feldman      *vss.FeldmanCommitment
	ccValue      [32]byte
	ccCommit     *commitment.Commitment
	pendingFirst Message

	constrainPublicKey *curve.Point

	peerSessionID map[uint8][32]byte
	peerFeldman   map[uint8]*vss.FeldmanCommitment
	peerCommitC   map[uint8][]byte
	peerShare     map[uint8]*curve.Scalar
	peerCC        map[uint8][32]byte

	finalSessionID [32]byte

	otPairs map[uint8]*otPairState
	result  map[uint8]*PairOT

	xi        *curve.Scalar
	publicKey *curve.Point
	bigS      []*curve.Point
}

func newState(params Params, rng io.Reader) *State {
	peers := make([]uint8, 0, int(params.N)-1)
	for id := uint8(0); id < params.N; id++ {
		if id != params.PartyID {
			peers = append(peers, id)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return &State{
		params:        params,
		rng:           rng,
		peers:         peers,
		round:         1,
		peerSessionID: make(map[uint8][32]byte),
		peerFeldman:   make(map[uint8]*vss.FeldmanCommitment),
		peerCommitC:   make(map[uint8][]byte),
		peerShare:     make(map[uint8]*curve.Scalar),
		peerCC:        make(map[uint8][32]byte),
		otPairs:       make(map[uint8]*otPairState),
		result:        make(map[uint8]*PairOT),
		bigS:          make([]*curve.Point, params.N),
	}
}

// New starts a fresh DKG session: f(0) is random, and every party combines
// the chain code by XOR-ing genuinely random per-party contributions.
func New(params Params, rng io.Reader) (*State, error) {
	s := newState(params, rng)
	if err := s.prepareFirstMessage(nil, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRotation re-shares an existing secret among the same N/T/rank
// structure: this party's contribution is its existing share scaled by its
// Birkhoff coefficient, so the sum of all fresh contributions still equals
// the original secret and public_key/root_chain_code are preserved.
//
// Grounded on spec.md §4.9's rotation description; the scaled-share
// construction is the standard proactive-secret-sharing refresh (Herzberg
// et al.), expressed with this module's vss.Coefficients.
func NewRotation(params Params, existingXi *curve.Scalar, existingChainCode [32]byte, rng io.Reader) (*State, error) {
	return newSeeded(params, existingXi, existingChainCode, nil, nil, rng)
}

// NewKeyRecovery is called by a surviving party that still holds its share
// while some peers' shares (lostIDs) are being recreated for replacement
// parties. Locally identical to rotation: only the party set's membership
// differs, not this party's math.
func NewKeyRecovery(params Params, existingXi *curve.Scalar, existingChainCode [32]byte, lostIDs []uint8, publicKey *curve.Point, rng io.Reader) (*State, error) {
	return newSeeded(params, existingXi, existingChainCode, lostIDs, publicKey, rng)
}

// NewLostShareRecovery is called by the party whose share was lost: it has
// no existing secret to contribute (f(0) = 0) and must constrain the
// reconstructed public key to match the one it was given, since it has no
// other way to detect a dishonest majority.
func NewLostShareRecovery(params Params, publicKey *curve.Point, lostIDs []uint8, rng io.Reader) (*State, error) {
	s := newState(params, rng)
	s.constrainPublicKey = publicKey
	zero := curve.ScalarFromUint32(0)
	zeroCC := [32]byte{}
	if err := s.prepareFirstMessage(zero, &zeroCC); err != nil {
		return nil, err
	}
	return s, nil
}

func newSeeded(params Params, existingXi *curve.Scalar, existingChainCode [32]byte, lostIDs []uint8, publicKey *curve.Point, rng io.Reader) (*State, error) {
	s := newState(params, rng)
	s.constrainPublicKey = publicKey

	nodes := make([]vss.Node, 0, params.N)
	for id := uint8(0); id < params.N; id++ {
		nodes = append(nodes, vss.Node{PartyID: id, Rank: params.rank(id)})
	}
	coeffs, err := vss.Coefficients(nodes, int(params.T))
	if err != nil {
		return nil, err
	}
	lambda, ok := coeffs[params.PartyID]
	if !ok {
		return nil, wrap(ErrInvalidMessage, "party id missing from its own node set")
	}
	contribution := lambda.Mul(existingXi)

	cc := &existingChainCode
	if !isAnchor(params, lostIDs, true) {
		zeroCC := [32]byte{}
		cc = &zeroCC
	}
	if err := s.prepareFirstMessage(contribution, cc); err != nil {
		return nil, err
	}
	return s, nil
}

// isAnchor decides, using only locally-known information, whether this
// party is the one that carries the real chain code forward through the
// XOR combine while every other contributing party sends all-zero bytes.
func isAnchor(params Params, lostIDs []uint8, hasExistingShare bool) bool {
	if !hasExistingShare {
		return false
	}
	lost := make(map[uint8]bool, len(lostIDs))
	for _, id := range lostIDs {
		lost[id] = true
	}
	min := params.N
	for id := uint8(0); id < params.N; id++ {
		if !lost[id] {
			min = id
			break
		}
	}
	return params.PartyID == min
}

func (s *State) prepareFirstMessage(secret *curve.Scalar, fixedCC *[32]byte) error {
	var sid [32]byte
	if _, err := io.ReadFull(s.rng, sid[:]); err != nil {
		return err
	}
	s.sessionID = sid

	poly, err := vss.New(s.rng, int(s.params.T)-1, secret)
	if err != nil {
		return err
	}
	s.poly = poly
	s.feldman = vss.Commit(poly)

	if fixedCC != nil {
		s.ccValue = *fixedCC
	} else if _, err := io.ReadFull(s.rng, s.ccValue[:]); err != nil {
		return err
	}
	ccCommit, err := commitment.New("chain-code", s.ccValue[:])
	if err != nil {
		return err
	}
	s.ccCommit = ccCommit

	myShare := curve.BaseMul(poly.Coeffs[0])
	proof, err := schnorrProve(s.rng, s.sessionID[:], myShare, poly.Coeffs[0])
	if err != nil {
		return err
	}

	coeffBytes := make([][]byte, len(s.feldman.Coeffs))
	for i, c := range s.feldman.Coeffs {
		coeffBytes[i] = c.Bytes()
	}
	payload := encodePayload(round1Payload{
		Round:               1,
		SessionID:           s.sessionID[:],
		ChainCodeCommitment: s.ccCommit.C,
		FeldmanCoeffs:       coeffBytes,
		SchnorrR:            proof.R.Bytes(),
		SchnorrZ:            proof.Z.Bytes(),
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

// CalculateChainCodeCommitment returns the commitment published in round 1;
// it is a pure accessor the caller is expected to invoke once between
// rounds 2 and 3, per spec.md §4.7.
func (s *State) CalculateChainCodeCommitment() []byte {
	return s.ccCommit.C
}

// Done reports whether the session finished successfully.
func (s *State) Done() bool { return s.done }

// HandleMessages advances the state machine by exactly one round.
func (s *State) HandleMessages(batch []Message) ([]Message, error) {
	if !s.firstMessageSent {
		return nil, ErrInvalidState
	}
	if s.done {
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
	case 4:
		return s.handleRound4(batch)
	case 5:
		return s.handleRound5(batch)
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

// Result assembles the session's output. Valid only once HandleMessages has
// produced Done() == true.
func (s *State) Result() (*Result, error) {
	if !s.done {
		return nil, ErrInvalidState
	}
	out := make(map[uint8]*PairOT, len(s.result))
	for id, p := range s.result {
		out[id] = p
	}
	return &Result{
		PartyID:        s.params.PartyID,
		N:              s.params.N,
		T:              s.params.T,
		Ranks:          append([]uint32(nil), s.params.Ranks...),
		Xi:             s.xi,
		PublicKey:      s.publicKey,
		BigS:           append([]*curve.Point(nil), s.bigS...),
		RootChainCode:  s.combinedChainCode(),
		FinalSessionID: s.finalSessionID,
		OTState:        out,
	}, nil
}

func (s *State) combinedChainCode() [32]byte {
	out := s.ccValue
	for _, cc := range s.peerCC {
		for i := range out {
			out[i] ^= cc[i]
		}
	}
	return out
}

func randomBits(rng io.Reader, n int) ([]bool, error) {
	buf := make([]byte, (n+7)/8)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, err
	}
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = buf[i/8]&(1<<uint(i%8)) != 0
	}
	return bits, nil
}
