package keygen

import (
	"io"
	"sort"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/commitment"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/schnorrzk"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/transcript"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/vss"
)

// partyX maps a party id to its Feldman/Birkhoff evaluation point, shifted
// by one so id 0 is never used as an x-coordinate (matches
// internal/vss.partyScalar's convention; both must agree for share
// verification to succeed).
func partyX(id uint8) *curve.Scalar { return curve.ScalarFromUint32(uint32(id) + 1) }

func schnorrProve(rng io.Reader, sessionID []byte, y *curve.Point, x *curve.Scalar) (*schnorrzk.Proof, error) {
	return schnorrzk.Prove(rng, sessionID, "dkls23/dkg", x, y)
}

func pointsToBytes(pts []*curve.Point) [][]byte {
	out := make([][]byte, len(pts))
	for i, p := range pts {
		out[i] = p.Bytes()
	}
	return out
}

func pointsFromBytes(raw [][]byte) ([]*curve.Point, error) {
	out := make([]*curve.Point, len(raw))
	for i, b := range raw {
		p, err := curve.PointFromBytes(b)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (s *State) handleRound1(batch []Message) ([]Message, error) {
	for _, m := range batch {
		var pl round1Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 1 || len(pl.SessionID) != 32 {
			return nil, wrap(ErrInvalidMessage, "malformed round 1 payload")
		}
		coeffs, err := pointsFromBytes(pl.FeldmanCoeffs)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "malformed feldman coefficients")
		}
		if len(coeffs) != int(s.params.T) {
			return nil, wrap(ErrInvalidMessage, "feldman coefficient count does not match threshold")
		}
		r, err := curve.PointFromBytes(pl.SchnorrR)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "malformed schnorr proof")
		}
		z, err := curve.ScalarFromBytes(pl.SchnorrZ)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "malformed schnorr proof")
		}
		proof := &schnorrzk.Proof{R: r, Z: z}
		if !proof.Verify(pl.SessionID, "dkls23/dkg", coeffs[0]) {
			return nil, wrap(ErrInvalidProof, "round 1 proof of knowledge failed")
		}

		var sid [32]byte
		copy(sid[:], pl.SessionID)
		s.peerSessionID[m.FromID] = sid
		s.peerFeldman[m.FromID] = &vss.FeldmanCommitment{Coeffs: coeffs}
		s.peerCommitC[m.FromID] = append([]byte(nil), pl.ChainCodeCommitment...)
	}

	s.finalSessionID = s.deriveFinalSessionID()

	out := make([]Message, 0, len(s.peers))
	for _, peer := range s.peers {
		share := s.poly.Evaluate(partyX(peer))
		senderState, msg1, err := ot.NewBaseSender(s.rng)
		if err != nil {
			return nil, err
		}
		s.otPairs[peer] = &otPairState{sender: senderState}
		payload := encodePayload(round2Payload{
			Round:      2,
			Share:      share.Bytes(),
			BaseOTMsg1: pointsToBytes(msg1.A),
		})
		out = append(out, p2p(s.params.PartyID, peer, payload))
	}
	s.round = 2
	return out, nil
}

func (s *State) deriveFinalSessionID() [32]byte {
	ids := make([]uint8, 0, s.params.N)
	for id := uint8(0); id < s.params.N; id++ {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tr := transcript.New("dkls23/dkg/sid")
	for _, id := range ids {
		var sid [32]byte
		if id == s.params.PartyID {
			sid = s.sessionID
		} else {
			sid = s.peerSessionID[id]
		}
		tr.Absorb("sid", sid[:])
	}
	var out [32]byte
	copy(out[:], tr.Challenge("final", 32))
	return out
}

func (s *State) handleRound2(batch []Message) ([]Message, error) {
	out := make([]Message, 0, len(s.peers))
	for _, m := range batch {
		var pl round2Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 2 {
			return nil, wrap(ErrInvalidMessage, "malformed round 2 payload")
		}
		share, err := curve.ScalarFromBytes(pl.Share)
		if err != nil {
			return nil, wrap(ErrInvalidMessage, "malformed share")
		}
		expected := s.peerFeldman[m.FromID].Eval(partyX(s.params.PartyID), s.params.rank(s.params.PartyID))
		if !curve.BaseMul(share).Equal(expected) {
			return nil, wrap(ErrInvalidProof, "feldman share verification failed")
		}
		s.peerShare[m.FromID] = share

		points, err := pointsFromBytes(pl.BaseOTMsg1)
		if err != nil || len(points) != ot.Kappa {
			return nil, blame(m.FromID, "malformed base OT message")
		}
		delta, err := randomBits(s.rng, ot.Kappa)
		if err != nil {
			return nil, err
		}
		receiverState, receiverMsg, err := ot.Receive(s.rng, &ot.BaseSenderMessage1{A: points}, delta)
		if err != nil {
			return nil, err
		}
		if s.otPairs[m.FromID] == nil {
			s.otPairs[m.FromID] = &otPairState{}
		}
		s.otPairs[m.FromID].receiver = receiverState
		recvSeeds := receiverState.ReceiverSeeds(&ot.BaseSenderMessage1{A: points})
		s.ensureResult(m.FromID).RecvBaseSeeds = recvSeeds
		s.ensureResult(m.FromID).RecvDelta = delta

		payload := encodePayload(round3Payload{Round: 3, BaseOTReply: pointsToBytes(receiverMsg.B)})
		out = append(out, p2p(s.params.PartyID, m.FromID, payload))
	}

	s.xi = s.poly.Evaluate(partyX(s.params.PartyID))
	for _, peer := range s.peers {
		s.xi = s.xi.Add(s.peerShare[peer])
	}
	s.publicKey = s.feldman.Coeffs[0]
	for _, peer := range s.peers {
		s.publicKey = s.publicKey.Add(s.peerFeldman[peer].Coeffs[0])
	}
	for id := uint8(0); id < s.params.N; id++ {
		acc := s.feldmanOf(0).Eval(partyX(id), s.params.rank(id))
		for k := uint8(1); k < s.params.N; k++ {
			acc = acc.Add(s.feldmanOf(k).Eval(partyX(id), s.params.rank(id)))
		}
		s.bigS[id] = acc
	}

	s.round = 3
	return out, nil
}

func (s *State) feldmanOf(id uint8) *vss.FeldmanCommitment {
	if id == s.params.PartyID {
		return s.feldman
	}
	return s.peerFeldman[id]
}

func (s *State) ensureResult(peer uint8) *PairOT {
	if s.result[peer] == nil {
		s.result[peer] = &PairOT{}
	}
	return s.result[peer]
}

func (s *State) handleRound3(batch []Message) ([]Message, error) {
	for _, m := range batch {
		var pl round3Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 3 {
			return nil, wrap(ErrInvalidMessage, "malformed round 3 payload")
		}
		points, err := pointsFromBytes(pl.BaseOTReply)
		if err != nil || len(points) != ot.Kappa {
			return nil, blame(m.FromID, "malformed base OT reply")
		}
		pair := s.otPairs[m.FromID]
		if pair == nil || pair.sender == nil {
			return nil, blame(m.FromID, "base OT reply with no matching request")
		}
		seeds, err := pair.sender.SenderSeeds(&ot.BaseReceiverMessage{B: points})
		if err != nil {
			return nil, blame(m.FromID, "base OT finalization failed")
		}
		s.ensureResult(m.FromID).SentBaseSeeds = seeds
	}

	payload := encodePayload(round4Payload{Round: 4, ChainCode: s.ccValue[:], Salt: s.ccCommit.D})
	s.round = 4
	return []Message{broadcast(s.params.PartyID, payload)}, nil
}

func (s *State) handleRound4(batch []Message) ([]Message, error) {
	for _, m := range batch {
		var pl round4Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 4 || len(pl.ChainCode) != 32 {
			return nil, wrap(ErrInvalidMessage, "malformed round 4 payload")
		}
		if !commitment.Verify("chain-code", s.peerCommitC[m.FromID], pl.Salt, pl.ChainCode) {
			return nil, wrap(ErrInvalidCommitment, "chain code opening mismatch")
		}
		var cc [32]byte
		copy(cc[:], pl.ChainCode)
		s.peerCC[m.FromID] = cc
	}

	if s.constrainPublicKey != nil && !s.publicKey.Equal(s.constrainPublicKey) {
		return nil, ErrInvalidKey
	}

	confirm := s.confirmDigest()
	payload := encodePayload(round5Payload{Round: 5, Confirm: confirm})
	s.round = 5
	return []Message{broadcast(s.params.PartyID, payload)}, nil
}

func (s *State) confirmDigest() []byte {
	tr := transcript.New("dkls23/dkg/confirm")
	tr.Absorb("sid", s.finalSessionID[:])
	tr.Absorb("pk", s.publicKey.Bytes())
	rcc := s.combinedChainCode()
	tr.Absorb("cc", rcc[:])
	return tr.Challenge("confirm", 32)
}

func (s *State) handleRound5(batch []Message) ([]Message, error) {
	want := s.confirmDigest()
	for _, m := range batch {
		var pl round5Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 5 {
			return nil, wrap(ErrInvalidMessage, "malformed round 5 payload")
		}
		if string(pl.Confirm) != string(want) {
			return nil, wrap(ErrInvalidProof, "final confirmation mismatch")
		}
	}
	s.done = true
	return nil, nil
}
