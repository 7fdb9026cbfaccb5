package keygen

import (
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/wire"
)

type round1Payload struct {
	Round               uint8
	SessionID           []byte
	ChainCodeCommitment []byte
	FeldmanCoeffs       [][]byte
	SchnorrR            []byte
	SchnorrZ            []byte
}

type round2Payload struct {
	Round      uint8
	Share      []byte
	BaseOTMsg1 [][]byte
}

type round3Payload struct {
	Round       uint8
	BaseOTReply [][]byte
}

type round4Payload struct {
	Round     uint8
	ChainCode []byte
	Salt      []byte
}

type round5Payload struct {
	Round   uint8
	Confirm []byte
}

func encodePayload(v interface{}) []byte {
	b, err := wire.Encode(v)
	if err != nil {
		// Every payload here is built entirely from fixed-size scalar/point
		// byte slices and primitives cbor always accepts; a marshal failure
		// would mean this module's own encodings are malformed.
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
