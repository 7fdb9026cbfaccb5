package keygen

import (
	"io"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/commitment"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/vss"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/wire"
)

// Snapshot/FromSnapshot let a caller suspend a session between
// HandleMessages calls and resume it later, per spec.md §6's
// to_bytes/from_bytes. The RNG is never part of the snapshot — spec.md §5
// requires it be injected explicitly by the caller on every operation that
// needs entropy, so FromSnapshot takes a fresh one.

type messageWire struct {
	FromID  uint8
	HasToID bool
	ToID    uint8
	Payload []byte
}

func messageToWire(m Message) messageWire {
	w := messageWire{FromID: m.FromID, Payload: m.Payload}
	if m.ToID != nil {
		w.HasToID = true
		w.ToID = *m.ToID
	}
	return w
}

func messageFromWire(w messageWire) Message {
	m := Message{FromID: w.FromID, Payload: w.Payload}
	if w.HasToID {
		t := w.ToID
		m.ToID = &t
	}
	return m
}

type otPairWire struct {
	HasSender   bool
	Sender      []byte
	HasReceiver bool
	Receiver    []byte
}

type pairOTResultWire struct {
	SentBaseSeeds [][2][]byte
	RecvBaseSeeds [][]byte
	RecvDelta     []bool
}

func pairOTToWire(p *PairOT) pairOTResultWire {
	w := pairOTResultWire{RecvDelta: p.RecvDelta}
	for _, pair := range p.SentBaseSeeds {
		w.SentBaseSeeds = append(w.SentBaseSeeds, [2][]byte{pair[0][:], pair[1][:]})
	}
	for _, s := range p.RecvBaseSeeds {
		w.RecvBaseSeeds = append(w.RecvBaseSeeds, append([]byte(nil), s[:]...))
	}
	return w
}

func pairOTFromWire(w pairOTResultWire) *PairOT {
	p := &PairOT{RecvDelta: w.RecvDelta}
	for _, pair := range w.SentBaseSeeds {
		var entry [2][32]byte
		copy(entry[0][:], pair[0])
		copy(entry[1][:], pair[1])
		p.SentBaseSeeds = append(p.SentBaseSeeds, entry)
	}
	for _, s := range w.RecvBaseSeeds {
		var entry [32]byte
		copy(entry[:], s)
		p.RecvBaseSeeds = append(p.RecvBaseSeeds, entry)
	}
	return p
}

type snapshotWire struct {
	Params           Params
	Round            int
	FirstMessageSent bool
	Done             bool

	SessionID     [32]byte
	PolyCoeffs    [][]byte
	FeldmanCoeffs [][]byte

	CCValue   [32]byte
	CCCommitC []byte
	CCCommitD []byte

	PendingFirst messageWire

	HasConstrainPublicKey bool
	ConstrainPublicKey    []byte

	PeerSessionID map[uint8][32]byte
	PeerFeldman   map[uint8][][]byte
	PeerCommitC   map[uint8][]byte
	PeerShare     map[uint8][]byte
	PeerCC        map[uint8][32]byte

	FinalSessionID [32]byte

	OTPairs map[uint8]otPairWire
	Result  map[uint8]pairOTResultWire

	HasXi        bool
	Xi           []byte
	HasPublicKey bool
	PublicKey    []byte
	BigS         [][]byte
}

// Snapshot returns a canonical encoding of the session's full state,
// including every secret scalar and OT seed still held.
func (s *State) Snapshot() ([]byte, error) {
	w := snapshotWire{
		Params:           s.params,
		Round:            s.round,
		FirstMessageSent: s.firstMessageSent,
		Done:             s.done,
		SessionID:        s.sessionID,
		CCValue:          s.ccValue,
		PendingFirst:     messageToWire(s.pendingFirst),
		PeerSessionID:    s.peerSessionID,
		PeerCommitC:      s.peerCommitC,
		PeerCC:           s.peerCC,
		FinalSessionID:   s.finalSessionID,
		OTPairs:          make(map[uint8]otPairWire, len(s.otPairs)),
		Result:           make(map[uint8]pairOTResultWire, len(s.result)),
		PeerFeldman:      make(map[uint8][][]byte, len(s.peerFeldman)),
		PeerShare:        make(map[uint8][]byte, len(s.peerShare)),
	}
	if s.poly != nil {
		w.PolyCoeffs = make([][]byte, len(s.poly.Coeffs))
		for i, c := range s.poly.Coeffs {
			w.PolyCoeffs[i] = c.Bytes()
		}
	}
	if s.feldman != nil {
		w.FeldmanCoeffs = pointsToBytes(s.feldman.Coeffs)
	}
	if s.ccCommit != nil {
		w.CCCommitC = s.ccCommit.C
		w.CCCommitD = s.ccCommit.D
	}
	if s.constrainPublicKey != nil {
		w.HasConstrainPublicKey = true
		w.ConstrainPublicKey = s.constrainPublicKey.Bytes()
	}
	for id, fc := range s.peerFeldman {
		w.PeerFeldman[id] = pointsToBytes(fc.Coeffs)
	}
	for id, sh := range s.peerShare {
		w.PeerShare[id] = sh.Bytes()
	}
	for id, pair := range s.otPairs {
		pw := otPairWire{}
		if pair.sender != nil {
			pw.HasSender = true
			pw.Sender = pair.sender.Bytes()
		}
		if pair.receiver != nil {
			pw.HasReceiver = true
			pw.Receiver = pair.receiver.Bytes()
		}
		w.OTPairs[id] = pw
	}
	for id, p := range s.result {
		w.Result[id] = pairOTToWire(p)
	}
	if s.xi != nil {
		w.HasXi = true
		w.Xi = s.xi.Bytes()
	}
	if s.publicKey != nil {
		w.HasPublicKey = true
		w.PublicKey = s.publicKey.Bytes()
	}
	w.BigS = make([][]byte, len(s.bigS))
	for i, p := range s.bigS {
		if p != nil {
			w.BigS[i] = p.Bytes()
		}
	}
	return wire.Encode(w)
}

// FromSnapshot restores a session previously suspended with Snapshot. rng
// is used only by whatever operation runs next (e.g. sampling fresh base-OT
// randomness in a later round); it plays no role in reconstructing the
// decoded state itself.
func FromSnapshot(data []byte, rng io.Reader) (*State, error) {
	var w snapshotWire
	if err := wire.Decode(data, &w); err != nil {
		return nil, wrap(ErrInvalidMessage, err.Error())
	}

	s := newState(w.Params, rng)
	s.round = w.Round
	s.firstMessageSent = w.FirstMessageSent
	s.done = w.Done
	s.sessionID = w.SessionID
	s.ccValue = w.CCValue
	s.pendingFirst = messageFromWire(w.PendingFirst)
	s.finalSessionID = w.FinalSessionID

	// cbor decodes an absent (nil) map back to nil; every one of these must
	// stay writable for whatever rounds still run after restoring, so a nil
	// decode result is left as the empty map newState already allocated.
	for id, v := range w.PeerSessionID {
		s.peerSessionID[id] = v
	}
	for id, v := range w.PeerCommitC {
		s.peerCommitC[id] = v
	}
	for id, v := range w.PeerCC {
		s.peerCC[id] = v
	}

	if len(w.PolyCoeffs) > 0 {
		coeffs := make([]*curve.Scalar, len(w.PolyCoeffs))
		for i, b := range w.PolyCoeffs {
			c, err := curve.ScalarFromBytes(b)
			if err != nil {
				return nil, wrap(ErrInvalidMessage, "snapshot polynomial coefficient malformed")
			}
			coeffs[i] = c
		}
		s.poly = &vss.Polynomial{Coeffs: coeffs}
	}
	if len(w.FeldmanCoeffs) > 0 {
		pts, err := pointsFromBytes(w.FeldmanCoeffs)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot feldman commitment malformed")
		}
		s.feldman = &vss.FeldmanCommitment{Coeffs: pts}
	}
	if w.CCCommitC != nil {
		s.ccCommit = &commitment.Commitment{C: w.CCCommitC, D: w.CCCommitD}
	}
	if w.HasConstrainPublicKey {
		p, err := curve.PointFromBytes(w.ConstrainPublicKey)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot constraint key malformed")
		}
		s.constrainPublicKey = p
	}
	for id, raw := range w.PeerFeldman {
		pts, err := pointsFromBytes(raw)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot peer feldman commitment malformed")
		}
		s.peerFeldman[id] = &vss.FeldmanCommitment{Coeffs: pts}
	}
	for id, raw := range w.PeerShare {
		sh, err := curve.ScalarFromBytes(raw)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot peer share malformed")
		}
		s.peerShare[id] = sh
	}
	for id, pw := range w.OTPairs {
		pair := &otPairState{}
		if pw.HasSender {
			sender, err := ot.BaseSenderStateFromBytes(pw.Sender)
			if err != nil {
				return nil, wrap(ErrInvalidMessage, "snapshot base-OT sender state malformed")
			}
			pair.sender = sender
		}
		if pw.HasReceiver {
			receiver, err := ot.BaseReceiverStateFromBytes(pw.Receiver)
			if err != nil {
				return nil, wrap(ErrInvalidMessage, "snapshot base-OT receiver state malformed")
			}
			pair.receiver = receiver
		}
		s.otPairs[id] = pair
	}
	for id, rw := range w.Result {
		s.result[id] = pairOTFromWire(rw)
	}
	if w.HasXi {
		xi, err := curve.ScalarFromBytes(w.Xi)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot xi malformed")
		}
		s.xi = xi
	}
	if w.HasPublicKey {
		pk, err := curve.PointFromBytes(w.PublicKey)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot public key malformed")
		}
		s.publicKey = pk
	}
	s.bigS = make([]*curve.Point, len(w.BigS))
	for i, b := range w.BigS {
		if len(b) == 0 {
			continue
		}
		p, err := curve.PointFromBytes(b)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "snapshot per-party public share malformed")
		}
		s.bigS[i] = p
	}
	return s, nil
}
