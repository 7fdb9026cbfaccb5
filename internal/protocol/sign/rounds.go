package sign

import (
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/commitment"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/mta"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
)

// handleRound1 consumes every peer's round 1 broadcast (gamma commitment +
// this party's half of each peer's layer-1/layer-2 OT-extension
// corrections), completes the sender side of both MtA layers, and replies
// P2P with the gamma opening plus the masked Gilboa payloads.
func (s *State) handleRound1(batch []Message) ([]Message, error) {
	s.deltaShare = s.k.Mul(s.gamma)
	s.kxShare = s.k.Mul(s.w)

	out := make([]Message, 0, len(s.peers))
	for _, m := range batch {
		var pl round1Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, blame(m.FromID, "malformed round 1 payload")
		}
		if pl.Round != 1 {
			return nil, wrap(ErrInvalidMessage, "malformed round 1 payload")
		}
		s.peerCommit[m.FromID] = append([]byte(nil), pl.Commitment...)

		u1Raw, ok := pl.U1[s.params.PartyID]
		if !ok {
			return nil, blame(m.FromID, "missing OT correction addressed to this party")
		}
		u2Raw, ok := pl.U2[s.params.PartyID]
		if !ok {
			return nil, blame(m.FromID, "missing OT correction addressed to this party")
		}
		u1, err := unflattenU(u1Raw)
		if err != nil {
			return nil, blame(m.FromID, "malformed OT correction")
		}
		u2, err := unflattenU(u2Raw)
		if err != nil {
			return nil, blame(m.FromID, "malformed OT correction")
		}

		pair := s.share.OTState[m.FromID]
		if pair == nil {
			return nil, blame(m.FromID, "no base-OT material for this peer")
		}
		senderSeeds1, err := ot.ExtendAsSender(pair.RecvBaseSeeds, pair.RecvDelta, u1, extendContext(m.FromID, s.params.PartyID, "gamma"))
		if err != nil {
			return nil, blame(m.FromID, "OT extension failed")
		}
		senderSeeds2, err := ot.ExtendAsSender(pair.RecvBaseSeeds, pair.RecvDelta, u2, extendContext(m.FromID, s.params.PartyID, "x"))
		if err != nil {
			return nil, blame(m.FromID, "OT extension failed")
		}

		alpha1, maskedMsg1, err := mta.ComputeSenderMessage(s.k, senderSeeds1)
		if err != nil {
			return nil, err
		}
		alpha2, maskedMsg2, err := mta.ComputeSenderMessage(s.k, senderSeeds2)
		if err != nil {
			return nil, err
		}
		s.deltaShare = s.deltaShare.Add(alpha1.Alpha)
		s.kxShare = s.kxShare.Add(alpha2.Alpha)

		payload := encodePayload(round2Payload{
			Round:   2,
			Gamma:   s.gammaPoint.Bytes(),
			Salt:    s.commit.D,
			Masked1: maskedMsg1.Masked,
			Masked2: maskedMsg2.Masked,
		})
		out = append(out, p2p(s.params.PartyID, m.FromID, payload))
	}

	s.round = 2
	return out, nil
}

// handleRound2 consumes every peer's gamma opening and masked MtA replies,
// completing the receiver side of both layers so delta_share and kx_share
// become this party's full additive contributions.
func (s *State) handleRound2(batch []Message) ([]Message, error) {
	for _, m := range batch {
		var pl round2Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 2 {
			return nil, wrap(ErrInvalidMessage, "malformed round 2 payload")
		}
		if !commitment.Verify("dsg-gamma", s.peerCommit[m.FromID], pl.Salt, pl.Gamma) {
			return nil, wrap(ErrInvalidProof, "gamma commitment opening mismatch")
		}
		gammaPoint, err := curve.PointFromBytes(pl.Gamma)
		if err != nil {
			return nil, blame(m.FromID, "malformed gamma point")
		}
		s.peerGammaPoint[m.FromID] = gammaPoint

		beta1, err := mta.ComputeReceiverShare(s.recvSeeds1[m.FromID], &mta.SenderMessage{Masked: pl.Masked1})
		if err != nil {
			return nil, blame(m.FromID, "malformed masked MtA message")
		}
		beta2, err := mta.ComputeReceiverShare(s.recvSeeds2[m.FromID], &mta.SenderMessage{Masked: pl.Masked2})
		if err != nil {
			return nil, blame(m.FromID, "malformed masked MtA message")
		}
		s.deltaShare = s.deltaShare.Add(beta1.Beta)
		s.kxShare = s.kxShare.Add(beta2.Beta)
	}

	payload := encodePayload(round3Payload{Round: 3, DeltaShare: s.deltaShare.Bytes()})
	s.round = 3
	return []Message{broadcast(s.params.PartyID, payload)}, nil
}

// handleRound3 collects every peer's delta_share, reconstructs the public
// delta = k*gamma and Γ = gamma*g, and derives R = Γ^{δ^{-1}} and its
// x-coordinate r. The pre-signature is ready for LastMessage once this
// returns.
func (s *State) handleRound3(batch []Message) ([]Message, error) {
	for _, m := range batch {
		var pl round3Payload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 3 {
			return nil, wrap(ErrInvalidMessage, "malformed round 3 payload")
		}
		share, err := curve.ScalarFromBytes(pl.DeltaShare)
		if err != nil {
			return nil, blame(m.FromID, "malformed delta share")
		}
		s.peerDeltaShares[m.FromID] = share
	}

	delta := s.deltaShare.Clone()
	for _, share := range s.peerDeltaShares {
		delta = delta.Add(share)
	}
	if delta.IsZero() {
		return nil, wrap(ErrInvalidProof, "combined delta is zero")
	}

	gammaSum := s.gammaPoint
	for _, p := range s.peerGammaPoint {
		gammaSum = gammaSum.Add(p)
	}
	r := gammaSum.Mul(delta.Inverse())
	if r.IsIdentity() {
		return nil, wrap(ErrInvalidProof, "combined nonce point is the identity")
	}
	s.r = r.XScalar()

	s.preSigReady = true
	return nil, nil
}

// LastMessage computes this party's partial signature over a 32-byte
// message hash and broadcasts it; it consumes the pre-signature, so a
// second call returns InvalidState.
func (s *State) LastMessage(messageHash []byte) (Message, error) {
	if !s.preSigReady {
		return Message{}, ErrInvalidState
	}
	if s.preSigConsumed {
		return Message{}, ErrInvalidState
	}
	if len(messageHash) != 32 {
		return Message{}, wrap(ErrInvalidMessage, "message hash must be exactly 32 bytes")
	}
	m, err := curve.ScalarFromBytes(messageHash)
	if err != nil {
		return Message{}, wrap(ErrInvalidMessage, "message hash malformed")
	}
	s.m = m

	s.sigma = s.k.Mul(m).Add(s.r.Mul(s.kxShare))
	s.preSigConsumed = true

	payload := encodePayload(lastMessagePayload{Round: 4, Sigma: s.sigma.Bytes()})
	return broadcast(s.params.PartyID, payload), nil
}

// Combine sums every signer's partial signature, normalizes to low-S, and
// verifies the result locally against the (tweak-adjusted) public key
// before returning it.
func (s *State) Combine(batch []Message) (*Result, error) {
	if !s.preSigConsumed {
		return nil, ErrInvalidState
	}
	seen := make(map[uint8]bool, len(batch))
	total := s.sigma.Clone()
	for _, m := range batch {
		if m.FromID == s.params.PartyID {
			return nil, wrap(ErrInvalidMessage, "self-addressed message")
		}
		if seen[m.FromID] {
			return nil, wrap(ErrInvalidMessage, "duplicate sender")
		}
		seen[m.FromID] = true
		var pl lastMessagePayload
		if err := decodePayload(m.Payload, &pl); err != nil {
			return nil, err
		}
		if pl.Round != 4 {
			return nil, wrap(ErrInvalidMessage, "malformed signature share payload")
		}
		share, err := curve.ScalarFromBytes(pl.Sigma)
		if err != nil {
			return nil, blame(m.FromID, "malformed signature share")
		}
		total = total.Add(share)
	}
	if len(batch) != len(s.peers) {
		return nil, wrap(ErrInvalidMessage, "incomplete signature share batch")
	}

	sig := total.NormalizeLowS()

	publicKey := s.share.PublicKey
	if !s.tweak.IsZero() {
		publicKey = publicKey.Add(curve.BaseMul(s.tweak))
	}
	if !verifyECDSA(publicKey, s.m, s.r, sig) {
		return nil, wrap(ErrSignatureInvalid, "combined signature does not verify against the tweaked public key")
	}

	var out Result
	copy(out.Rx[:], s.r.Bytes())
	copy(out.S[:], sig.Bytes())
	return &out, nil
}

// verifyECDSA checks (r, sig) against pub and the message scalar m using the
// standard equation u1*G + u2*pub, x-coordinate == r.
func verifyECDSA(pub *curve.Point, m, r, sig *curve.Scalar) bool {
	if r.IsZero() || sig.IsZero() {
		return false
	}
	sInv := sig.Inverse()
	u1 := m.Mul(sInv)
	u2 := r.Mul(sInv)
	point := curve.BaseMul(u1).Add(pub.Mul(u2))
	if point.IsIdentity() {
		return false
	}
	return point.XScalar().Equal(r)
}
