// Package benchmark times a full DKG and DSG run through the public
// pkg/dkls API end to end, following the teacher's benchmark_test.go shape
// (setupParties/route helpers driving a fixed party count) adapted onto
// Message/KeygenSession/SignSession instead of tss.StateMachine.
package benchmark

import (
	"testing"

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

func runKeygen(b *testing.B, n, threshold uint8) map[uint8]*dkls.KeyShare {
	b.Helper()
	sessions := make(map[uint8]*dkls.KeygenSession, n)
	outgoing := make(map[uint8][]dkls.Message, n)
	for id := uint8(0); id < n; id++ {
		s, err := dkls.New(n, threshold, id, nil)
		require.NoError(b, err)
		sessions[id] = s
		first, err := s.CreateFirstMessage()
		require.NoError(b, err)
		outgoing[id] = []dkls.Message{first}
	}
	for round := 1; round <= 5; round++ {
		inbox := route(outgoing)
		outgoing = make(map[uint8][]dkls.Message, n)
		for id, s := range sessions {
			out, err := s.HandleMessages(inbox[id])
			require.NoError(b, err)
			outgoing[id] = out
		}
	}
	shares := make(map[uint8]*dkls.KeyShare, n)
	for id, s := range sessions {
		k, err := s.Keyshare()
		require.NoError(b, err)
		shares[id] = k
	}
	return shares
}

// BenchmarkDKG times a 3-of-3 DKG run.
func BenchmarkDKG(b *testing.B) {
	for i := 0; i < b.N; i++ {
		runKeygen(b, 3, 3)
	}
}

// BenchmarkDSG times a 2-of-2 DSG run against freshly generated shares,
// excluding keygen from the timed portion.
func BenchmarkDSG(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		shares := runKeygen(b, 2, 2)
		signers := []uint8{0, 1}
		sessions := make(map[uint8]*dkls.SignSession, 2)
		outgoing := make(map[uint8][]dkls.Message, 2)
		for _, id := range signers {
			s, err := dkls.NewSignSession(shares[id], signers, "m")
			require.NoError(b, err)
			sessions[id] = s
		}
		b.StartTimer()

		for _, id := range signers {
			first, err := sessions[id].CreateFirstMessage()
			require.NoError(b, err)
			outgoing[id] = []dkls.Message{first}
		}
		for round := 1; round <= 3; round++ {
			inbox := route(outgoing)
			outgoing = make(map[uint8][]dkls.Message, 2)
			for id, s := range sessions {
				out, err := s.HandleMessages(inbox[id])
				require.NoError(b, err)
				outgoing[id] = out
			}
		}
		hash := make([]byte, 32)
		lastMsgs := make(map[uint8][]dkls.Message, 2)
		for id, s := range sessions {
			m, err := s.LastMessage(hash)
			require.NoError(b, err)
			lastMsgs[id] = []dkls.Message{m}
		}
		inbox := route(lastMsgs)
		for id, s := range sessions {
			_, _, err := s.Combine(inbox[id])
			require.NoError(b, err)
		}
	}
}
