package mta

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/ot"
)

// setupExtension runs a full base-OT + extension handshake with the
// receiver's choice vector fixed to choices, since the OT extension commits
// the receiver's seed to exactly the branch it chose at extension time.
func setupExtension(t *testing.T, choices []bool) (ot.SenderSeedList, ot.ReceiverSeedList) {
	t.Helper()
	baseSender, msg1, err := ot.NewBaseSender(rand.Reader)
	require.NoError(t, err)

	delta := make([]bool, ot.Kappa)
	buf := make([]byte, ot.Kappa/8)
	_, _ = rand.Read(buf)
	for i := range delta {
		delta[i] = buf[i/8]&(1<<uint(i%8)) != 0
	}

	baseReceiver, receiverMsg, err := ot.Receive(rand.Reader, msg1, delta)
	require.NoError(t, err)

	senderSeeds, err := baseSender.SenderSeeds(receiverMsg)
	require.NoError(t, err)
	receiverSeeds := baseReceiver.ReceiverSeeds(msg1)

	ctx := []byte("mta-test-context")
	extReceiver, u, err := ot.ExtendAsReceiver(senderSeeds, choices, ctx)
	require.NoError(t, err)
	extSender, err := ot.ExtendAsSender(receiverSeeds, delta, u, ctx)
	require.NoError(t, err)

	return extSender, extReceiver
}

func bitsOf(s *curve.Scalar) []bool {
	b := s.Bytes()
	bits := make([]bool, BitWidth)
	for k := 0; k < BitWidth; k++ {
		byteIdx := 31 - k/8
		bits[k] = b[byteIdx]&(1<<uint(k%8)) != 0
	}
	return bits
}

func TestMtAProducesAdditiveSharesOfProduct(t *testing.T) {
	a, err := curve.NewScalar(rand.Reader)
	require.NoError(t, err)
	b, err := curve.NewScalar(rand.Reader)
	require.NoError(t, err)

	extSender, extReceiver := setupExtension(t, bitsOf(b))

	senderShare, senderMsg, err := ComputeSenderMessage(a, extSender)
	require.NoError(t, err)
	receiverShare, err := ComputeReceiverShare(extReceiver, senderMsg)
	require.NoError(t, err)

	sum := senderShare.Alpha.Add(receiverShare.Beta)
	want := a.Mul(b)
	assert.True(t, sum.Equal(want))
}
