package dkls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func runKeygenSessions(t *testing.T, n, threshold uint8) map[uint8]*KeyShare {
	t.Helper()
	sessions := make(map[uint8]*KeygenSession, n)
	outgoing := make(map[uint8][]Message, n)
	for id := uint8(0); id < n; id++ {
		s, err := New(n, threshold, id, nil)
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]Message, n)
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}
	shares := make(map[uint8]*KeyShare, n)
	for id, s := range sessions {
		require.True(t, s.Done())
		k, err := s.Keyshare()
		require.NoError(t, err)
		shares[id] = k
	}
	return shares
}

func TestKeygenSessionProducesUsableShares(t *testing.T) {
	shares := runKeygenSessions(t, 3, 2)
	for id := uint8(1); id < 3; id++ {
		assert.True(t, shares[id].PublicKey.Equal(shares[0].PublicKey))
		assert.Equal(t, shares[0].RootChainCode, shares[id].RootChainCode)
	}
}

func TestKeygenSessionSnapshotRoundTrip(t *testing.T) {
	s, err := New(2, 2, 0, nil)
	require.NoError(t, err)
	_, err = s.CreateFirstMessage()
	require.NoError(t, err)

	snap, err := s.Bytes()
	require.NoError(t, err)
	_, err = s.Bytes() // snapshotting does not consume the session
	require.NoError(t, err)

	resumed, err := KeygenSessionFromBytes(snap)
	require.NoError(t, err)
	assert.False(t, resumed.Done())
}

func TestSignSessionProducesVerifiableSignature(t *testing.T) {
	shares := runKeygenSessions(t, 3, 2)
	signers := []uint8{0, 1}

	sessions := make(map[uint8]*SignSession, len(signers))
	outgoing := make(map[uint8][]Message, len(signers))
	for _, id := range signers {
		s, err := NewSignSession(shares[id], signers, "m")
		require.NoError(t, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(t, err)
		outgoing[id] = []Message{first}
	}
	for round := 1; round <= 3; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]Message, len(signers))
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(t, err)
			outgoing[id] = out
		}
	}

	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	lastMsgs := make(map[uint8][]Message, len(signers))
	for id, s := range sessions {
		m, err := s.LastMessage(hash)
		require.NoError(t, err)
		lastMsgs[id] = []Message{m}
	}
	inbox := route(lastMsgs)

	var firstRx, firstS [32]byte
	for id, s := range sessions {
		rx, sig, err := s.Combine(inbox[id])
		require.NoError(t, err)
		if id == signers[0] {
			firstRx, firstS = rx, sig
		} else {
			assert.Equal(t, firstRx, rx)
			assert.Equal(t, firstS, sig)
		}
	}
}

func TestKeyRotationConsumesOldShare(t *testing.T) {
	shares := runKeygenSessions(t, 2, 2)
	old := shares[0]
	_, err := NewKeyRotation(old)
	require.NoError(t, err)
	assert.True(t, old.consumed)

	_, err = NewKeyRotation(old)
	require.Error(t, err)
}

func TestProveAndVerifyOwnership(t *testing.T) {
	shares := runKeygenSessions(t, 2, 2)
	share := shares[0]
	ctx := []byte("session-context")
	proof, err := share.ProveOwnership(ctx)
	require.NoError(t, err)
	assert.True(t, VerifyOwnership(proof, ctx, share.BigS[share.PartyID]))
}

func TestKeyShareBytesRoundTrip(t *testing.T) {
	shares := runKeygenSessions(t, 2, 2)
	share := shares[0]
	b, err := share.Bytes()
	require.NoError(t, err)
	decoded, err := KeyShareFromBytes(b)
	require.NoError(t, err)
	assert.True(t, decoded.PublicKey.Equal(share.PublicKey))
	assert.Equal(t, share.RootChainCode, decoded.RootChainCode)
}
