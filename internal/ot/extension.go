package ot

import (
	"encoding/binary"
	"errors"
	"hash"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// ExtendedLen is the number of correlated OT instances produced from one
// batch of Kappa base OTs, sized to cover a 256-bit Gilboa-style
// multiplication (spec.md §4.6) per invocation of the extension.
const ExtendedLen = 256

// SenderSeedList holds, per extended OT instance, the pair the extension
// sender can derive — named to match spec.md §4.5's sent_seed_list.
type SenderSeedList [][2][32]byte

// ReceiverSeedList holds, per extended OT instance, the single seed the
// extension receiver derives plus the choice bit it committed to — named to
// match spec.md §4.5's rec_seed_list.
type ReceiverSeedList struct {
	Seeds   [][32]byte
	Choices []bool
}

// ExtendAsReceiver runs the SoftSpokenOT-style extension from the
// "OT-extension receiver" side: this party ran the Kappa base OTs as the
// base-OT *sender* (NewBaseSender), so it now holds (k0_i, k1_i) seed pairs
// and must choose the L-bit vector r of OT instances it wants correlated
// output for (e.g. the bits of a Gilboa multiplicand). It returns the
// correction payload to broadcast and the resulting ReceiverSeedList.
//
// Grounded on IKNP-style OT extension: no pack repo implements this (see
// DESIGN.md), so the construction follows the well known
// Ishai-Kilian-Nissim-Petrank (2003) extension directly, expressed with
// this module's curve/OT primitives.
// context distinguishes independent extensions drawn from the same
// persistent base-OT seeds (e.g. one per signing session, one per MtA
// instance within it) so reusing the Kappa base seeds across many
// multiplications never repeats a PRG output. Per spec.md §4.5's "reused
// across signings" requirement: the base OT material is what persists in
// the KeyShare, while each extension is re-derived fresh with a unique
// context.
func ExtendAsReceiver(baseSeeds [][2][32]byte, choices []bool, context []byte) (ReceiverSeedList, [][32]byte, error) {
	if len(baseSeeds) != Kappa {
		return ReceiverSeedList{}, nil, errors.New("ot: need Kappa base OT seed pairs to extend")
	}
	if len(choices) != ExtendedLen {
		return ReceiverSeedList{}, nil, errors.New("ot: choice vector must have ExtendedLen bits")
	}
	r := packBits(choices)

	t0 := make([][]byte, Kappa)
	u := make([][32]byte, Kappa)
	for i := 0; i < Kappa; i++ {
		t0i := expand(baseSeeds[i][0], ExtendedLen/8, context)
		t1i := expand(baseSeeds[i][1], ExtendedLen/8, context)
		t0[i] = t0i
		u[i] = xor32(xorBytes(t0i, t1i), r)
	}

	seeds := make([][32]byte, ExtendedLen)
	for j := 0; j < ExtendedLen; j++ {
		col := make([]byte, Kappa/8)
		for i := 0; i < Kappa; i++ {
			setBit(col, i, getBit(t0[i], j))
		}
		seeds[j] = instanceSeed(j, col)
	}

	return ReceiverSeedList{Seeds: seeds, Choices: append([]bool(nil), choices...)}, u, nil
}

// ExtendAsSender completes the extension from the other side: this party
// ran the base OTs as the base-OT *receiver* (Receive) with secret Delta,
// and combines its ReceiverSeeds from that step with the correction payload
// u to recover, per extended instance, the pair (v0, v1) correlated by
// Delta — spec.md §4.5's sent_seed_list.
func ExtendAsSender(baseReceiverSeeds [][32]byte, delta []bool, u [][32]byte, context []byte) (SenderSeedList, error) {
	if len(baseReceiverSeeds) != Kappa || len(delta) != Kappa || len(u) != Kappa {
		return nil, errors.New("ot: malformed extension inputs")
	}
	deltaPacked := packBits(delta)

	q := make([][]byte, Kappa)
	for i := 0; i < Kappa; i++ {
		si := expand(baseReceiverSeeds[i], ExtendedLen/8, context)
		if delta[i] {
			si = xorBytes(si, u[i][:])
		}
		q[i] = si
	}

	out := make(SenderSeedList, ExtendedLen)
	for j := 0; j < ExtendedLen; j++ {
		col := make([]byte, Kappa/8)
		for i := 0; i < Kappa; i++ {
			setBit(col, i, getBit(q[i], j))
		}
		v0 := instanceSeed(j, col)

		colXorDelta := xorBytes(col, deltaPacked[:])
		v1 := instanceSeed(j, colXorDelta)
		out[j] = [2][32]byte{v0, v1}
	}
	return out, nil
}

// VerifyConsistency lets the extension sender spot-check a random subset of
// instances against openings the receiver reveals, catching a receiver that
// used an inconsistent choice vector across columns. It returns false on the
// first mismatch. The keygen and sign rounds do not call it, so the OT
// extensions they run are not checked this way.
func VerifyConsistency(seeds SenderSeedList, openings map[int]struct {
	Seed   [32]byte
	Choice bool
}) bool {
	for idx, open := range openings {
		if idx < 0 || idx >= len(seeds) {
			return false
		}
		want := seeds[idx][0]
		if open.Choice {
			want = seeds[idx][1]
		}
		if want != open.Seed {
			return false
		}
	}
	return true
}

func instanceSeed(index int, column []byte) [32]byte {
	h := blake3.New()
	_, _ = h.Write([]byte("dkls23/ot/extend"))
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], uint32(index))
	_, _ = h.Write(idx[:])
	_, _ = h.Write(column)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func expand(seed [32]byte, nBytes int, context []byte) []byte {
	kdf := hkdf.New(func() hash.Hash { return blake3.New() }, seed[:], nil, append([]byte("dkls23/ot/prg:"), context...))
	out := make([]byte, nBytes)
	_, _ = io.ReadFull(kdf, out)
	return out
}

func packBits(bits []bool) [32]byte {
	var out [32]byte
	for i, b := range bits {
		if b {
			setBit(out[:], i, true)
		}
	}
	return out
}

func setBit(buf []byte, i int, v bool) {
	if v {
		buf[i/8] |= 1 << uint(i%8)
	} else {
		buf[i/8] &^= 1 << uint(i%8)
	}
}

func getBit(buf []byte, i int) bool {
	return buf[i/8]&(1<<uint(i%8)) != 0
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func xor32(b []byte, r [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	for i := range out {
		out[i] ^= r[i]
	}
	return out
}
