package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	A uint8
	B []byte
}

func TestRoundTrip(t *testing.T) {
	in := sample{A: 7, B: []byte{1, 2, 3}}
	data, err := Encode(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	data, err := Encode(sample{A: 1})
	require.NoError(t, err)
	data[0] = 99
	var out sample
	assert.Error(t, Decode(data, &out))
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(sample{A: 1})
	require.NoError(t, err)
	data = append(data, 0xFF)
	var out sample
	assert.Error(t, Decode(data, &out))
}
