// Package e2e drives the public pkg/dkls surface the way a real transport
// integration would: build sessions, shuttle Message values between them
// with no access to session internals, and check the outputs.
package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/pkg/dkls"
)

func route(outgoing map[uint8][]dkls.Message) map[uint8][]dkls.Message {
	inbox := make(map[uint8][]dkls.Message)
	for from, msgs := range outgoing {
		for _, m := range msgs {
			if m.IsBroadcast() {
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

func runKeygen(t *testing.T, n, threshold uint8) map[uint8]*dkls.KeyShare {
	t.Helper()
	sessions := make(map[uint8]*dkls.KeygenSession, n)
	outgoing := make(map[uint8][]dkls.Message, n)
	for id := uint8(0); id < n; id++ {
		s, err := dkls.New(n, threshold, id, nil)
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []dkls.Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]dkls.Message, n)
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	shares := make(map[uint8]*dkls.KeyShare, n)
	for id, s := range sessions {
		require.True(t, s.Done())
		k, err := s.Keyshare()
		require.NoError(t, err)
		shares[id] = k
	}
	return shares
}

func runDSG(t *testing.T, shares map[uint8]*dkls.KeyShare, signers []uint8, hash []byte) (map[uint8][32]byte, map[uint8][32]byte) {
	t.Helper()
	sessions := make(map[uint8]*dkls.SignSession, len(signers))
	outgoing := make(map[uint8][]dkls.Message, len(signers))
	for _, id := range signers {
		s, err := dkls.NewSignSession(shares[id], signers, "m")
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []dkls.Message{first}
	}
	for round := 1; round <= 3; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]dkls.Message, len(signers))
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	lastMsgs := make(map[uint8][]dkls.Message, len(signers))
	for id, s := range sessions {
		m, err := s.LastMessage(hash)
		require.NoError(t, err)
		lastMsgs[id] = []dkls.Message{m}
	}
	inbox := route(lastMsgs)

	rxs := make(map[uint8][32]byte, len(signers))
	ss := make(map[uint8][32]byte, len(signers))
	for id, s := range sessions {
		rx, sig, err := s.Combine(inbox[id])
		require.NoError(t, err)
		rxs[id], ss[id] = rx, sig
	}
	return rxs, ss
}

// Scenario 1: a 2-of-2 DKG run produces a shared public key and chain code.
func TestScenarioDKGProducesSharedKey(t *testing.T) {
	shares := runKeygen(t, 2, 2)
	assert.True(t, shares[1].PublicKey.Equal(shares[0].PublicKey))
	assert.Equal(t, shares[0].RootChainCode, shares[1].RootChainCode)
}

// Scenario 2: a 2-of-3 DSG run produces a signature every signer agrees on.
func TestScenarioDSGWithSubsetOfSigners(t *testing.T) {
	shares := runKeygen(t, 3, 2)
	signers := []uint8{0, 2}
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i * 7)
	}
	rxs, ss := runDSG(t, shares, signers, hash)
	assert.Equal(t, rxs[signers[0]], rxs[signers[1]])
	assert.Equal(t, ss[signers[0]], ss[signers[1]])
}

// Scenario 3: key rotation preserves public_key across DKG -> rotate -> DSG.
func TestScenarioKeyRotationThenSign(t *testing.T) {
	before := runKeygen(t, 2, 2)
	originalPublicKey := before[0].PublicKey

	sessions := make(map[uint8]*dkls.KeygenSession, 2)
	outgoing := make(map[uint8][]dkls.Message, 2)
	for id, share := range before {
		s, err := dkls.NewKeyRotation(share)
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []dkls.Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]dkls.Message, 2)
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	rotated := make(map[uint8]*dkls.KeyShare, 2)
	for id, s := range sessions {
		k, err := s.Keyshare()
		require.NoError(t, err)
		rotated[id] = k
	}
	assert.True(t, rotated[0].PublicKey.Equal(originalPublicKey))

	hash := make([]byte, 32)
	rxs, ss := runDSG(t, rotated, []uint8{0, 1}, hash)
	assert.Equal(t, rxs[0], rxs[1])
	assert.Equal(t, ss[0], ss[1])
}

// Scenario 4: lost-share recovery reconstructs a replacement party's share
// without it ever having held secret material, preserving public_key.
func TestScenarioLostShareRecovery(t *testing.T) {
	before := runKeygen(t, 3, 2)
	lostIDs := []uint8{2}
	publicKey := before[0].PublicKey

	sessions := make(map[uint8]*dkls.KeygenSession, 3)
	outgoing := make(map[uint8][]dkls.Message, 3)

	survivor0, err := dkls.NewKeyRecovery(before[0], lostIDs)
	require.NoError(t, err)
	sessions[0] = survivor0
	survivor1, err := dkls.NewKeyRecovery(before[1], lostIDs)
	require.NoError(t, err)
	sessions[1] = survivor1
	replacement, err := dkls.NewLostShareRecovery(3, 2, 2, nil, publicKey, lostIDs)
	require.NoError(t, err)
	sessions[2] = replacement

	for id, s := range sessions {
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []dkls.Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]dkls.Message, 3)
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	for id, s := range sessions {
		k, err := s.Keyshare()
		require.NoError(t, err)
		assert.True(t, k.PublicKey.Equal(publicKey), "party %d", id)
	}
}

// Scenario 5: a corrupted first-round message during DSG identifies the
// misbehaving peer by id instead of failing opaquely.
func TestScenarioDSGBansCorruptingParty(t *testing.T) {
	shares := runKeygen(t, 2, 2)
	signers := []uint8{0, 1}

	sessions := make(map[uint8]*dkls.SignSession, 2)
	firsts := make(map[uint8]dkls.Message, 2)
	for _, id := range signers {
		s, err := dkls.NewSignSession(shares[id], signers, "m")
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		firsts[id] = first
	}

	corruptPayload := append([]byte(nil), firsts[1].Payload...)
	corruptPayload[0] ^= 0xFF
	corrupted := dkls.NewMessage(corruptPayload, 1, nil)

	_, err := sessions[0].HandleMessages([]dkls.Message{corrupted})
	require.Error(t, err)
	var protoErr *dkls.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, dkls.AbortProtocolAndBanParty, protoErr.Kind)
	assert.Equal(t, uint8(1), protoErr.BanParty)
}

// Scenario 6: LastMessage rejects a hash that is not exactly 32 bytes.
func TestScenarioLastMessageRejectsWrongLengthHash(t *testing.T) {
	shares := runKeygen(t, 2, 2)
	signers := []uint8{0, 1}
	outgoing := make(map[uint8][]dkls.Message, 2)
	sessions := make(map[uint8]*dkls.SignSession, 2)
	for _, id := range signers {
		s, err := dkls.NewSignSession(shares[id], signers, "m")
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []dkls.Message{first}
	}
	for round := 1; round <= 3; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]dkls.Message, 2)
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	_, err := sessions[0].LastMessage([]byte{1, 2, 3})
	require.Error(t, err)
	var protoErr *dkls.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, dkls.InvalidMessage, protoErr.Kind)
}
