// Package transcript implements a domain-separated sponge used to derive
// Fiat-Shamir challenges and the DKG's final_session_id, per spec.md §4.2.
package transcript

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Transcript accumulates labeled absorbs and squeezes labeled challenges.
// Every absorb/challenge call is prefixed with its label's length and bytes
// so that identical byte sequences under different labels never collide,
// the same discipline the keygen/sign rounds rely on for "dkls23/dkg/sid"
// vs. schnorr challenge labels sharing one underlying hash primitive.
type Transcript struct {
	h *blake3.Hasher
}

// New starts a fresh transcript bound to label (e.g. the protocol name).
func New(label string) *Transcript {
	t := &Transcript{h: blake3.New()}
	t.writeFramed([]byte(label))
	return t
}

func (t *Transcript) writeFramed(b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = t.h.Write(lenBuf[:])
	_, _ = t.h.Write(b)
}

// Absorb mixes labeled bytes into the transcript state.
func (t *Transcript) Absorb(label string, data []byte) {
	t.writeFramed([]byte(label))
	t.writeFramed(data)
}

// Challenge derives nBytes of output bound to label and everything absorbed
// so far. The label is absorbed into the running state, so later challenges
// depend on it; the output itself is read from a fresh digest reader forked
// from that state.
func (t *Transcript) Challenge(label string, nBytes int) []byte {
	t.writeFramed([]byte(label))
	out := make([]byte, nBytes)
	_, _ = t.h.Digest().Read(out)
	return out
}

// Clone returns an independent copy of the transcript's current state, for
// when a single absorbed prefix needs to seed several independent
// challenges.
func (t *Transcript) Clone() *Transcript {
	return &Transcript{h: t.h.Clone()}
}
