package dkls

import (
	"crypto/rand"
	"errors"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/protocol/sign"
)

// SignSession drives one signer's side of DSG, per spec.md §6. New consumes
// the KeyShare it is built from; Combine consumes the session itself, since
// a pre-signature must never be reused across two different messages.
type SignSession struct {
	inner    *sign.State
	consumed bool
	banned   []uint8
}

// BannedParties lists every peer this session has identified as
// misbehaving via AbortProtocolAndBanParty, in the order each was banned.
// Supplemental to spec.md §7, grounded on the teacher's tss.Blame.
func (s *SignSession) BannedParties() []uint8 {
	return append([]uint8(nil), s.banned...)
}

// NewSignSession starts a DSG run among signers (a T-sized subset of the
// KeyShare's N parties, including this party's own id) for the key at
// derivationPath. "m" (the default, zero-value BIP32 path) signs with the
// root key unmodified.
func NewSignSession(keyshare *KeyShare, signers []uint8, derivationPath string) (*SignSession, error) {
	if keyshare == nil || keyshare.consumed {
		return nil, newErr(InvalidState, "key share already consumed", nil)
	}
	if derivationPath == "" {
		derivationPath = "m"
	}
	tweak, err := deriveTweak(keyshare.RootChainCode, keyshare.PublicKey, derivationPath)
	if err != nil {
		return nil, err
	}

	ranks := make(map[uint8]uint32, len(keyshare.Ranks))
	for id, r := range keyshare.Ranks {
		ranks[uint8(id)] = r
	}
	params := sign.Params{Signers: append([]uint8(nil), signers...), PartyID: keyshare.PartyID, Ranks: ranks}

	otState := make(map[uint8]*sign.PairOT, len(keyshare.OTState))
	for id, p := range keyshare.OTState {
		otState[id] = &sign.PairOT{
			SentBaseSeeds: append([][2][32]byte(nil), p.SentBaseSeeds...),
			RecvBaseSeeds: append([][32]byte(nil), p.RecvBaseSeeds...),
			RecvDelta:     append([]bool(nil), p.RecvDelta...),
		}
	}
	share := &sign.Share{
		PartyID:       keyshare.PartyID,
		Xi:            keyshare.Xi.Clone(),
		PublicKey:     keyshare.PublicKey,
		BigS:          keyshare.BigS,
		RootChainCode: keyshare.RootChainCode,
		OTState:       otState,
	}
	keyshare.Zeroize()

	st, err := sign.New(params, share, tweak, rand.Reader)
	if err != nil {
		return nil, translateSignErr(err)
	}
	return &SignSession{inner: st}, nil
}

// CreateFirstMessage returns the round 1 broadcast. Calling it twice is
// InvalidState.
func (s *SignSession) CreateFirstMessage() (Message, error) {
	if s.consumed {
		return Message{}, newErr(InvalidState, "session already consumed", nil)
	}
	m, err := s.inner.CreateFirstMessage()
	if err != nil {
		return Message{}, translateSignErr(err)
	}
	return messageFromSign(m), nil
}

// HandleMessages advances the session by exactly one round.
func (s *SignSession) HandleMessages(batch []Message) ([]Message, error) {
	if s.consumed {
		return nil, newErr(InvalidState, "session already consumed", nil)
	}
	in := make([]sign.Message, len(batch))
	for i, m := range batch {
		in[i] = messageToSign(m)
	}
	out, err := s.inner.HandleMessages(in)
	if err != nil {
		translated := translateSignErr(err)
		if pe, ok := translated.(*ProtocolError); ok && pe.Kind == AbortProtocolAndBanParty {
			s.banned = append(s.banned, pe.BanParty)
		}
		return nil, translated
	}
	res := make([]Message, len(out))
	for i, m := range out {
		res[i] = messageFromSign(m)
	}
	return res, nil
}

// PreSigReady reports whether the pre-signature is ready, i.e. whether
// LastMessage can be called.
func (s *SignSession) PreSigReady() bool {
	return !s.consumed && s.inner.PreSigReady()
}

// LastMessage computes this party's partial signature over a 32-byte
// message hash (e.g. sha256(tx)) and returns it for broadcast. Calling it
// twice is InvalidState.
func (s *SignSession) LastMessage(messageHash []byte) (Message, error) {
	if s.consumed {
		return Message{}, newErr(InvalidState, "session already consumed", nil)
	}
	m, err := s.inner.LastMessage(messageHash)
	if err != nil {
		return Message{}, translateSignErr(err)
	}
	return messageFromSign(m), nil
}

// Combine sums every signer's partial signature and returns the finished,
// low-S-normalized ECDSA signature (Rx, s), already verified locally
// against the public key. Consumes the session.
func (s *SignSession) Combine(batch []Message) (rx [32]byte, sig [32]byte, err error) {
	if s.consumed {
		return rx, sig, newErr(InvalidState, "session already consumed", nil)
	}
	in := make([]sign.Message, len(batch))
	for i, m := range batch {
		in[i] = messageToSign(m)
	}
	res, err := s.inner.Combine(in)
	if err != nil {
		return rx, sig, translateSignErr(err)
	}
	s.consumed = true
	return res.Rx, res.S, nil
}

func messageToSign(m Message) sign.Message {
	return sign.Message{FromID: m.FromID, ToID: m.ToID, Payload: m.Payload}
}

func messageFromSign(m sign.Message) Message {
	return Message{FromID: m.FromID, ToID: m.ToID, Payload: m.Payload}
}

func translateSignErr(err error) error {
	var blame *sign.BlameError
	if errors.As(err, &blame) {
		return banParty(blame.PartyID, blame.Reason)
	}
	switch {
	case errors.Is(err, sign.ErrInvalidState):
		return newErr(InvalidState, "sign: invalid state", err)
	case errors.Is(err, sign.ErrInvalidProof):
		return newErr(InvalidProof, "sign: invalid proof", err)
	case errors.Is(err, sign.ErrSignatureInvalid):
		return newErr(InvalidProof, "sign: combined signature failed verification", err)
	case errors.Is(err, sign.ErrInvalidMessage):
		return newErr(InvalidMessage, "sign: invalid message", err)
	default:
		return newErr(InvalidMessage, "sign: unclassified failure", err)
	}
}
