package dkls

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/protocol/keygen"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/protocol/recovery"
)

// KeygenSession drives one party's side of DKG, key rotation, or recovery,
// per spec.md §6. It wraps internal/protocol/keygen's round state machine
// and translates between this package's Message/KeyShare and the
// protocol-local types the state machine itself uses, so the round logic
// never has to import this package.
type KeygenSession struct {
	inner    *keygen.State
	rng      io.Reader
	consumed bool
	banned   []uint8
}

// BannedParties lists every peer this session has identified as
// misbehaving via AbortProtocolAndBanParty, in the order each was banned.
// Supplemental to spec.md §7, grounded on the teacher's tss.Blame.
func (s *KeygenSession) BannedParties() []uint8 {
	return append([]uint8(nil), s.banned...)
}

// New starts a fresh DKG session. ranks may be nil, meaning every party has
// rank 0 (plain Lagrange reconstruction).
func New(n, t, partyID uint8, ranks []uint32) (*KeygenSession, error) {
	return newKeygenSession(func(rng io.Reader) (*keygen.State, error) {
		return keygen.New(keygen.Params{N: n, T: t, PartyID: partyID, Ranks: ranks}, rng)
	})
}

// NewKeyRotation starts a rotation session that re-shares the secret behind
// existingShare among the same N/T/rank structure, preserving public_key
// and root_chain_code. Consumes existingShare.
func NewKeyRotation(existingShare *KeyShare) (*KeygenSession, error) {
	if existingShare == nil || existingShare.consumed {
		return nil, newErr(InvalidState, "key share already consumed", nil)
	}
	params := keygen.Params{N: existingShare.N, T: existingShare.T, PartyID: existingShare.PartyID, Ranks: existingShare.Ranks}
	xi := existingShare.Xi.Clone()
	cc := existingShare.RootChainCode
	existingShare.Zeroize()
	return newKeygenSession(func(rng io.Reader) (*keygen.State, error) {
		return recovery.NewRotation(params, xi, cc, rng)
	})
}

// NewKeyRecovery starts a recovery session run by a surviving party that
// still holds existingShare while lostIDs are being recreated for
// replacement parties. Consumes existingShare.
func NewKeyRecovery(existingShare *KeyShare, lostIDs []uint8) (*KeygenSession, error) {
	if existingShare == nil || existingShare.consumed {
		return nil, newErr(InvalidState, "key share already consumed", nil)
	}
	params := keygen.Params{N: existingShare.N, T: existingShare.T, PartyID: existingShare.PartyID, Ranks: existingShare.Ranks}
	xi := existingShare.Xi.Clone()
	cc := existingShare.RootChainCode
	pub := existingShare.PublicKey
	existingShare.Zeroize()
	return newKeygenSession(func(rng io.Reader) (*keygen.State, error) {
		return recovery.NewKeyRecovery(params, xi, cc, lostIDs, pub, rng)
	})
}

// NewLostShareRecovery starts a recovery session for the party whose share
// was lost: it holds no secret and constrains the reconstructed public key
// to match publicKey, since it has no other way to detect a dishonest
// majority.
func NewLostShareRecovery(n, t, lostPartyID uint8, ranks []uint32, publicKey *curve.Point, lostIDs []uint8) (*KeygenSession, error) {
	params := keygen.Params{N: n, T: t, PartyID: lostPartyID, Ranks: ranks}
	return newKeygenSession(func(rng io.Reader) (*keygen.State, error) {
		return keygen.NewLostShareRecovery(params, publicKey, lostIDs, rng)
	})
}

func newKeygenSession(start func(rng io.Reader) (*keygen.State, error)) (*KeygenSession, error) {
	rng := rand.Reader
	st, err := start(rng)
	if err != nil {
		return nil, translateKeygenErr(err)
	}
	return &KeygenSession{inner: st, rng: rng}, nil
}

// CreateFirstMessage returns the round 1 broadcast. Calling it twice is
// InvalidState.
func (s *KeygenSession) CreateFirstMessage() (Message, error) {
	if s.consumed {
		return Message{}, newErr(InvalidState, "session already consumed", nil)
	}
	m, err := s.inner.CreateFirstMessage()
	if err != nil {
		return Message{}, translateKeygenErr(err)
	}
	return messageFromKeygen(m), nil
}

// HandleMessages advances the session by exactly one round and returns the
// outbound batch for the next round.
func (s *KeygenSession) HandleMessages(batch []Message) ([]Message, error) {
	if s.consumed {
		return nil, newErr(InvalidState, "session already consumed", nil)
	}
	in := make([]keygen.Message, len(batch))
	for i, m := range batch {
		in[i] = messageToKeygen(m)
	}
	out, err := s.inner.HandleMessages(in)
	if err != nil {
		translated := translateKeygenErr(err)
		if pe, ok := translated.(*ProtocolError); ok && pe.Kind == AbortProtocolAndBanParty {
			s.banned = append(s.banned, pe.BanParty)
		}
		return nil, translated
	}
	res := make([]Message, len(out))
	for i, m := range out {
		res[i] = messageFromKeygen(m)
	}
	return res, nil
}

// CalculateChainCodeCommitment returns the commitment published in round 1.
// Callers invoke this once between rounds 2 and 3, per spec.md §4.7.
func (s *KeygenSession) CalculateChainCodeCommitment() []byte {
	return s.inner.CalculateChainCodeCommitment()
}

// Done reports whether the session has finished successfully.
func (s *KeygenSession) Done() bool {
	return !s.consumed && s.inner.Done()
}

// Bytes suspends the session into a canonical snapshot that KeygenSessionFromBytes can
// later resume, per spec.md §6's to_bytes/from_bytes.
func (s *KeygenSession) Bytes() ([]byte, error) {
	if s.consumed {
		return nil, newErr(InvalidState, "session already consumed", nil)
	}
	b, err := s.inner.Snapshot()
	if err != nil {
		return nil, newErr(SerializationError, "session snapshot failed", err)
	}
	return b, nil
}

// KeygenSessionFromBytes resumes a session previously suspended with Bytes.
func KeygenSessionFromBytes(data []byte) (*KeygenSession, error) {
	st, err := keygen.FromSnapshot(data, rand.Reader)
	if err != nil {
		return nil, newErr(SerializationError, "session snapshot decode failed", err)
	}
	return &KeygenSession{inner: st, rng: rand.Reader}, nil
}

// Keyshare assembles the session's output into a KeyShare. Valid only once
// Done() is true; consumes the session.
func (s *KeygenSession) Keyshare() (*KeyShare, error) {
	if s.consumed {
		return nil, newErr(InvalidState, "session already consumed", nil)
	}
	res, err := s.inner.Result()
	if err != nil {
		return nil, translateKeygenErr(err)
	}
	s.consumed = true

	otState := make(map[uint8]*PairOTState, len(res.OTState))
	for id, p := range res.OTState {
		otState[id] = &PairOTState{SentBaseSeeds: p.SentBaseSeeds, RecvBaseSeeds: p.RecvBaseSeeds, RecvDelta: p.RecvDelta}
	}
	return &KeyShare{
		PartyID:        res.PartyID,
		N:              res.N,
		T:              res.T,
		Ranks:          res.Ranks,
		Xi:             res.Xi,
		PublicKey:      res.PublicKey,
		BigS:           res.BigS,
		RootChainCode:  res.RootChainCode,
		FinalSessionID: res.FinalSessionID,
		OTState:        otState,
	}, nil
}

func messageToKeygen(m Message) keygen.Message {
	return keygen.Message{FromID: m.FromID, ToID: m.ToID, Payload: m.Payload}
}

func messageFromKeygen(m keygen.Message) Message {
	return Message{FromID: m.FromID, ToID: m.ToID, Payload: m.Payload}
}

func translateKeygenErr(err error) error {
	var blame *keygen.BlameError
	if errors.As(err, &blame) {
		return banParty(blame.PartyID, blame.Reason)
	}
	switch {
	case errors.Is(err, keygen.ErrInvalidState):
		return newErr(InvalidState, "keygen: invalid state", err)
	case errors.Is(err, keygen.ErrInvalidProof):
		return newErr(InvalidProof, "keygen: invalid proof", err)
	case errors.Is(err, keygen.ErrInvalidCommitment):
		return newErr(InvalidCommitment, "keygen: invalid commitment", err)
	case errors.Is(err, keygen.ErrInvalidKey):
		return newErr(InvalidKey, "keygen: invalid key", err)
	case errors.Is(err, keygen.ErrInvalidMessage):
		return newErr(InvalidMessage, "keygen: invalid message", err)
	default:
		return newErr(InvalidMessage, "keygen: unclassified failure", err)
	}
}
