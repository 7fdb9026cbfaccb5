package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChallengeDomainSeparation(t *testing.T) {
	t1 := New("dkls23/dkg")
	t1.Absorb("x", []byte("same-bytes"))
	c1 := t1.Challenge("out", 32)

	t2 := New("dkls23/dkg")
	t2.Absorb("y", []byte("same-bytes"))
	c2 := t2.Challenge("out", 32)

	assert.NotEqual(t, c1, c2, "different labels for identical bytes must diverge")
}

func TestChallengeDeterministic(t *testing.T) {
	mk := func() []byte {
		tr := New("dkls23/sig")
		tr.Absorb("sid", []byte{1, 2, 3})
		return tr.Challenge("e", 32)
	}
	assert.Equal(t, mk(), mk())
}
