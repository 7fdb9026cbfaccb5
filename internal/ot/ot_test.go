package ot

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBits(n int) []bool {
	out := make([]bool, n)
	buf := make([]byte, (n+7)/8)
	_, _ = rand.Read(buf)
	for i := range out {
		out[i] = getBit(buf, i)
	}
	return out
}

func TestBaseOTSeedsAgree(t *testing.T) {
	senderState, msg1, err := NewBaseSender(rand.Reader)
	require.NoError(t, err)

	delta := randomBits(Kappa)
	receiverState, receiverMsg, err := Receive(rand.Reader, msg1, delta)
	require.NoError(t, err)

	senderSeeds, err := senderState.SenderSeeds(receiverMsg)
	require.NoError(t, err)
	receiverSeeds := receiverState.ReceiverSeeds(msg1)

	for i := 0; i < Kappa; i++ {
		want := senderSeeds[i][0]
		if delta[i] {
			want = senderSeeds[i][1]
		}
		assert.Equal(t, want, receiverSeeds[i], "instance %d seed mismatch", i)
	}
}

func TestExtensionAgreesOnChosenBranch(t *testing.T) {
	senderState, msg1, err := NewBaseSender(rand.Reader)
	require.NoError(t, err)
	delta := randomBits(Kappa)
	receiverState, receiverMsg, err := Receive(rand.Reader, msg1, delta)
	require.NoError(t, err)
	baseSenderSeeds, err := senderState.SenderSeeds(receiverMsg)
	require.NoError(t, err)
	baseReceiverSeeds := receiverState.ReceiverSeeds(msg1)

	choices := randomBits(ExtendedLen)
	ctx := []byte("test-context")
	extReceiver, u, err := ExtendAsReceiver(baseSenderSeeds, choices, ctx)
	require.NoError(t, err)
	extSender, err := ExtendAsSender(baseReceiverSeeds, delta, u, ctx)
	require.NoError(t, err)

	for j := 0; j < ExtendedLen; j++ {
		want := extSender[j][0]
		if choices[j] {
			want = extSender[j][1]
		}
		assert.Equal(t, want, extReceiver.Seeds[j], "extended instance %d seed mismatch", j)
	}
}
