package sign

import (
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/wire"
)

type round1Payload struct {
	Round      uint8
	Commitment []byte
	U1         map[uint8][]byte // keyed by recipient party id: gamma-layer OT-extension correction
	U2         map[uint8][]byte // keyed by recipient party id: x-layer OT-extension correction
}

type round2Payload struct {
	Round   uint8
	Gamma   []byte
	Salt    []byte
	Masked1 [][2][32]byte // Gilboa-masked MtA(k_i, gamma_self) reply
	Masked2 [][2][32]byte // Gilboa-masked MtA(k_i, x_self) reply
}

type round3Payload struct {
	Round      uint8
	DeltaShare []byte
}

type lastMessagePayload struct {
	Round uint8
	Sigma []byte
}

func encodePayload(v interface{}) []byte {
	b, err := wire.Encode(v)
	if err != nil {
		// Every payload here is built entirely from fixed-size scalar byte
		// slices, curve points, and OT ciphertext arrays cbor always accepts;
		// a marshal failure would mean this module's own encodings are
		// malformed.
		panic(err)
	}
	return b
}

func decodePayload(data []byte, v interface{}) error {
	if err := wire.Decode(data, v); err != nil {
		return wrap(ErrInvalidMessage, err.Error())
	}
	return nil
}
