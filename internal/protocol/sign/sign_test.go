package sign

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/protocol/keygen"
)

// route delivers every message produced this round to its addressees,
// excluding a party's own broadcasts from its own next-round inbox.
func route(outgoing map[uint8][]Message) map[uint8][]Message {
	inbox := make(map[uint8][]Message)
	for from, msgs := range outgoing {
		for _, m := range msgs {
			if m.ToID == nil {
				for to := range outgoing {
					if to != from {
						inbox[to] = append(inbox[to], m)
					}
				}
			} else {
				inbox[*m.ToID] = append(inbox[*m.ToID], m)
			}
		}
	}
	return inbox
}

// runKeygen produces real DKG results to build DSG Shares from, so DSG
// tests exercise the same OT material 2P-MUL consumes in production instead
// of a synthetic stand-in.
func runKeygen(t *testing.T, n, threshold uint8) []*keygen.Result {
	t.Helper()
	states := make(map[uint8]*keygen.State, n)
	outgoing := make(map[uint8][]keygen.Message, n)
	for id := uint8(0); id < n; id++ {
		st, err := keygen.New(keygen.Params{N: n, T: threshold, PartyID: id}, rand.Reader)
		require.NoError(t, err)
		states[id] = st
		first, err := st.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []keygen.Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := make(map[uint8][]keygen.Message)
		for from, msgs := range outgoing {
			for _, m := range msgs {
				if m.ToID == nil {
					for to := range outgoing {
						if to != from {
							inbox[to] = append(inbox[to], m)
						}
					}
				} else {
					inbox[*m.ToID] = append(inbox[*m.ToID], m)
				}
			}
		}
		outgoing = make(map[uint8][]keygen.Message, n)
		for id, st := range states {
			out, err := st.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	results := make([]*keygen.Result, 0, n)
	for id := uint8(0); id < n; id++ {
		r, err := states[id].Result()
		require.NoError(t, err)
		results = append(results, r)
	}
	return results
}

func shareFrom(r *keygen.Result) *Share {
	ot := make(map[uint8]*PairOT, len(r.OTState))
	for id, p := range r.OTState {
		ot[id] = &PairOT{SentBaseSeeds: p.SentBaseSeeds, RecvBaseSeeds: p.RecvBaseSeeds, RecvDelta: p.RecvDelta}
	}
	return &Share{
		PartyID:       r.PartyID,
		Xi:            r.Xi,
		PublicKey:     r.PublicKey,
		BigS:          r.BigS,
		RootChainCode: r.RootChainCode,
		OTState:       ot,
	}
}

// runDSG drives a full signing session for the given signer subset and
// returns every party's (rx, s).
func runDSG(t *testing.T, shares map[uint8]*Share, signers []uint8, hash []byte) map[uint8]*Result {
	t.Helper()
	states := make(map[uint8]*State, len(signers))
	outgoing := make(map[uint8][]Message, len(signers))
	for _, id := range signers {
		params := Params{Signers: signers, PartyID: id}
		st, err := New(params, shares[id], curve.ScalarFromUint32(0), rand.Reader)
		require.NoError(t, err)
		states[id] = st
		first, err := st.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []Message{first}
	}
	for round := 1; round <= 3; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]Message, len(signers))
		for id, st := range states {
			out, err := st.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	for _, id := range signers {
		require.True(t, states[id].PreSigReady())
	}

	lastMsgs := make(map[uint8][]Message, len(signers))
	for id, st := range states {
		m, err := st.LastMessage(hash)
		require.NoError(t, err)
		lastMsgs[id] = []Message{m}
	}
	inbox := route(lastMsgs)

	results := make(map[uint8]*Result, len(signers))
	for id, st := range states {
		r, err := st.Combine(inbox[id])
		require.NoError(t, err)
		results[id] = r
	}
	return results
}

func TestDSGProducesVerifiableSignature(t *testing.T) {
	keygenResults := runKeygen(t, 3, 2)
	shares := make(map[uint8]*Share, len(keygenResults))
	for _, r := range keygenResults {
		shares[r.PartyID] = shareFrom(r)
	}
	signers := []uint8{0, 1}
	hash := sha256.Sum256([]byte("dsg-e2e-message"))

	results := runDSG(t, shares, signers, hash[:])
	first := results[signers[0]]
	for _, id := range signers[1:] {
		assert.Equal(t, first.Rx, results[id].Rx)
		assert.Equal(t, first.S, results[id].S)
	}

	s, err := curve.ScalarFromBytes(first.S[:])
	require.NoError(t, err)
	assert.True(t, s.Equal(s.NormalizeLowS()), "Combine must return a low-S signature")
}

func TestDSGAfterRotationStillVerifies(t *testing.T) {
	keygenResults := runKeygen(t, 2, 2)
	rotated := make(map[uint8]*keygen.Result, 2)
	states := make(map[uint8]*keygen.State, 2)
	outgoing := make(map[uint8][]keygen.Message, 2)
	for _, r := range keygenResults {
		st, err := keygen.NewRotation(keygen.Params{N: 2, T: 2, PartyID: r.PartyID}, r.Xi, r.RootChainCode, rand.Reader)
		require.NoError(t, err)
		states[r.PartyID] = st
		first, err := st.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[r.PartyID] = []keygen.Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := make(map[uint8][]keygen.Message)
		for from, msgs := range outgoing {
			for _, m := range msgs {
				if m.ToID == nil {
					for to := range outgoing {
						if to != from {
							inbox[to] = append(inbox[to], m)
						}
					}
				} else {
					inbox[*m.ToID] = append(inbox[*m.ToID], m)
				}
			}
		}
		outgoing = make(map[uint8][]keygen.Message, 2)
		for id, st := range states {
			out, err := st.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	for id, st := range states {
		r, err := st.Result()
		require.NoError(t, err)
		rotated[id] = r
	}
	assert.True(t, rotated[0].PublicKey.Equal(keygenResults[0].PublicKey))

	shares := make(map[uint8]*Share, 2)
	for _, r := range rotated {
		shares[r.PartyID] = shareFrom(r)
	}
	hash := sha256.Sum256([]byte("post-rotation-message"))
	results := runDSG(t, shares, []uint8{0, 1}, hash[:])
	assert.Equal(t, results[0].Rx, results[1].Rx)
}

func TestDSGBansCorruptingPeerDuringRound1(t *testing.T) {
	keygenResults := runKeygen(t, 2, 2)
	shares := make(map[uint8]*Share, 2)
	for _, r := range keygenResults {
		shares[r.PartyID] = shareFrom(r)
	}
	signers := []uint8{0, 1}

	states := make(map[uint8]*State, 2)
	firsts := make(map[uint8]Message, 2)
	for _, id := range signers {
		st, err := New(Params{Signers: signers, PartyID: id}, shares[id], curve.ScalarFromUint32(0), rand.Reader)
		require.NoError(t, err)
		states[id] = st
		first, err := st.CreateFirstMessage()
		require.NoError(t, err)
		firsts[id] = first
	}

	// Truncate party 1's OT-extension correction addressed to party 0, so
	// its length is no longer a multiple of 32 and unflattenU rejects it.
	var pl round1Payload
	require.NoError(t, decodePayload(firsts[1].Payload, &pl))
	pl.U1[0] = pl.U1[0][:len(pl.U1[0])-1]
	corrupted := Message{FromID: 1, Payload: encodePayload(pl)}

	_, err := states[0].HandleMessages([]Message{corrupted})
	require.Error(t, err)
	var blameErr *BlameError
	require.ErrorAs(t, err, &blameErr)
	assert.Equal(t, uint8(1), blameErr.PartyID)
}

func TestLastMessageRejectsWrongLengthHash(t *testing.T) {
	keygenResults := runKeygen(t, 2, 2)
	shares := make(map[uint8]*Share, 2)
	for _, r := range keygenResults {
		shares[r.PartyID] = shareFrom(r)
	}
	signers := []uint8{0, 1}

	states := make(map[uint8]*State, 2)
	outgoing := make(map[uint8][]Message, 2)
	for _, id := range signers {
		st, err := New(Params{Signers: signers, PartyID: id}, shares[id], curve.ScalarFromUint32(0), rand.Reader)
		require.NoError(t, err)
		states[id] = st
		first, err := st.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []Message{first}
	}
	for round := 1; round <= 3; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]Message, 2)
		for id, st := range states {
			out, err := st.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	_, err := states[0].LastMessage([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestCreateFirstMessageTwiceIsInvalidState(t *testing.T) {
	keygenResults := runKeygen(t, 2, 2)
	share := shareFrom(keygenResults[0])
	st, err := New(Params{Signers: []uint8{0, 1}, PartyID: 0}, share, curve.ScalarFromUint32(0), rand.Reader)
	require.NoError(t, err)
	_, err = st.CreateFirstMessage()
	require.NoError(t, err)
	_, err = st.CreateFirstMessage()
	assert.ErrorIs(t, err, ErrInvalidState)
}
