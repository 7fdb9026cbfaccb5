// Package wire implements the canonical, versioned byte encoding used for
// every Message payload, session snapshot, and KeyShare, per spec.md §4.10.
//
// Grounded on luxfi-threshold's pkg/protocol/handler.go, which wires
// fxamacker/cbor for round-message encoding; the teacher's ad hoc
// encoding/json + manual big.Int byte-slicing
// (internal/protocol/keygen/round_3.go) is exactly the brittle,
// non-versioned format spec.md §4.10/§7 asks to replace.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version is the two-byte (major, minor) header prefixed to every encoded
// payload, per spec.md §6.
type Version struct {
	Major byte
	Minor byte
}

// CurrentVersion is the version this build emits.
var CurrentVersion = Version{Major: 1, Minor: 0}

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}
	m, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Encode canonically serializes v with the version header, using CBOR's
// canonical encoding options so that Encode is a pure function of v.
func Encode(v interface{}) ([]byte, error) {
	body, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	out := make([]byte, 2+len(body))
	out[0] = CurrentVersion.Major
	out[1] = CurrentVersion.Minor
	copy(out[2:], body)
	return out, nil
}

// Decode parses a versioned payload into v, rejecting unknown major
// versions and any trailing bytes left after the CBOR item, so corruption
// is caught deterministically rather than silently ignored.
func Decode(data []byte, v interface{}) error {
	if len(data) < 2 {
		return errors.New("wire: payload too short for version header")
	}
	if data[0] != CurrentVersion.Major {
		return fmt.Errorf("wire: unsupported major version %d", data[0])
	}
	body := data[2:]
	if err := decMode.Unmarshal(body, v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	// cbor.Unmarshal already rejects trailing bytes after a single item for
	// the non-streaming API, but we double check to keep the "rejects any
	// trailing bytes" invariant explicit regardless of library behavior.
	var rest cbor.RawMessage
	if err := decMode.Unmarshal(body, &rest); err == nil && len(rest) != len(body) {
		return errors.New("wire: trailing bytes after decoded value")
	}
	return nil
}
