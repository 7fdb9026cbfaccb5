package sign

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures the way pkg/dkls needs to map them onto
// ErrorKind without this package importing pkg/dkls.
var (
	ErrInvalidMessage   = errors.New("sign: invalid message")
	ErrInvalidProof     = errors.New("sign: invalid proof")
	ErrInvalidState     = errors.New("sign: operation invalid in current state")
	ErrSignatureInvalid = errors.New("sign: combined signature failed local verification")
)

// BlameError identifies a specific peer whose contribution failed a
// consistency check the core can prove deterministically, per spec.md §4.6.
type BlameError struct {
	PartyID uint8
	Reason  string
}

func (e *BlameError) Error() string {
	return fmt.Sprintf("sign: party %d: %s", e.PartyID, e.Reason)
}

func blame(id uint8, reason string) error { return &BlameError{PartyID: id, Reason: reason} }

func wrap(sentinel error, detail string) error { return fmt.Errorf("%w: %s", sentinel, detail) }
