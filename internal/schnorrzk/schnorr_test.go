package schnorrzk

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
)

func TestProveVerify(t *testing.T) {
	x, err := curve.NewScalar(rand.Reader)
	require.NoError(t, err)
	y := curve.BaseMul(x)
	sid := []byte("session-1")

	proof, err := Prove(rand.Reader, sid, "dkg/pok", x, y)
	require.NoError(t, err)
	assert.True(t, proof.Verify(sid, "dkg/pok", y))
}

func TestVerifyRejectsWrongSession(t *testing.T) {
	x, err := curve.NewScalar(rand.Reader)
	require.NoError(t, err)
	y := curve.BaseMul(x)

	proof, err := Prove(rand.Reader, []byte("session-1"), "dkg/pok", x, y)
	require.NoError(t, err)
	assert.False(t, proof.Verify([]byte("session-2"), "dkg/pok", y))
}

func TestVerifyRejectsTamperedResponse(t *testing.T) {
	x, err := curve.NewScalar(rand.Reader)
	require.NoError(t, err)
	y := curve.BaseMul(x)
	sid := []byte("session-1")

	proof, err := Prove(rand.Reader, sid, "dkg/pok", x, y)
	require.NoError(t, err)
	proof.Z = proof.Z.Add(curve.ScalarFromUint32(1))
	assert.False(t, proof.Verify(sid, "dkg/pok", y))
}
