// Package recovery adapts internal/protocol/keygen's rotation and
// lost-share recovery constructors into the operation names spec.md §4.9
// uses, so pkg/dkls can expose rotation/recovery entry points without every
// caller reaching into internal/protocol/keygen directly.
//
// Grounded on the teacher's internal/protocol/refresh (zero-hole polynomial
// refresh, the rotation case) and internal/protocol/reshare (a session with
// fewer starting secrets than a full keygen, the lost-share case): both are
// folded here into thin wrappers over keygen's own rotation/recovery
// constructors rather than duplicated as a second state machine, since
// keygen.State already implements the scaled-share refresh those packages
// existed to provide.
package recovery

import (
	"io"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/protocol/keygen"
)

type (
	Params  = keygen.Params
	Message = keygen.Message
	Result  = keygen.Result
	State   = keygen.State
)

// NewRotation starts a key-rotation session: every party re-shares its
// existing secret so public_key and root_chain_code survive unchanged.
func NewRotation(params Params, existingXi *curve.Scalar, existingChainCode [32]byte, rng io.Reader) (*State, error) {
	return keygen.NewRotation(params, existingXi, existingChainCode, rng)
}

// NewKeyRecovery starts a recovery session run by a surviving party that
// still holds its share while lostIDs are being recreated.
func NewKeyRecovery(params Params, existingXi *curve.Scalar, existingChainCode [32]byte, lostIDs []uint8, publicKey *curve.Point, rng io.Reader) (*State, error) {
	return keygen.NewKeyRecovery(params, existingXi, existingChainCode, lostIDs, publicKey, rng)
}

// NewLostShareRecovery starts a recovery session run by the party whose
// share was lost; it contributes no secret and constrains the reconstructed
// public key to match the one it was given.
func NewLostShareRecovery(params Params, publicKey *curve.Point, lostIDs []uint8, rng io.Reader) (*State, error) {
	return keygen.NewLostShareRecovery(params, publicKey, lostIDs, rng)
}
