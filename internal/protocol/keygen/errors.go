package keygen

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures the way pkg/dkls needs to map them onto
// ErrorKind without this package importing pkg/dkls.
var (
	ErrInvalidMessage    = errors.New("keygen: invalid message")
	ErrInvalidProof      = errors.New("keygen: invalid proof")
	ErrInvalidCommitment = errors.New("keygen: invalid commitment")
	ErrInvalidKey        = errors.New("keygen: reconstructed public key does not match constraint")
	ErrInvalidState      = errors.New("keygen: operation invalid in current state")
)

// BlameError identifies a specific peer whose contribution failed a
// consistency check the core can prove deterministically, per spec.md §4.6.
type BlameError struct {
	PartyID uint8
	Reason  string
}

func (e *BlameError) Error() string {
	return fmt.Sprintf("keygen: party %d: %s", e.PartyID, e.Reason)
}

func blame(id uint8, reason string) error { return &BlameError{PartyID: id, Reason: reason} }

func wrap(sentinel error, detail string) error { return fmt.Errorf("%w: %s", sentinel, detail) }
