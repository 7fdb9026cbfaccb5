package dkls

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/silence-laboratories/silent-shard-dkls23-ll/internal/curve"
)

// deriveTweak walks a non-hardened BIP32 path ("m", "m/0/1", ...) from a
// KeyShare's root chain code and public key, accumulating the additive
// tweak a SignSession folds into its own weighted key share (spec.md §4.8's
// δ). The default "m" path yields a zero tweak.
//
// No pack repo implements BIP32 (none of the retrieved examples are wallet
// libraries), so this is built directly on crypto/hmac + crypto/sha512 per
// BIP-32's CKDpub construction; see DESIGN.md for why no third-party
// library was pulled in for it.
//
// Hardened derivation (indices with a trailing ' or h) needs the parent
// private key, which no single party holds, so paths containing a hardened
// segment are rejected.
func deriveTweak(rootChainCode [32]byte, rootPublicKey *curve.Point, path string) (*curve.Scalar, error) {
	indices, err := parseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	tweak := curve.ScalarFromUint32(0)
	chainCode := rootChainCode
	pubKey := rootPublicKey
	for _, idx := range indices {
		il, childCC, err := ckdPub(chainCode, pubKey, idx)
		if err != nil {
			return nil, err
		}
		tweak = tweak.Add(il)
		pubKey = pubKey.Add(curve.BaseMul(il))
		chainCode = childCC
	}
	return tweak, nil
}

func ckdPub(chainCode [32]byte, pubKey *curve.Point, index uint32) (*curve.Scalar, [32]byte, error) {
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)

	mac := hmac.New(sha512.New, chainCode[:])
	mac.Write(pubKey.Bytes())
	mac.Write(idxBuf[:])
	i := mac.Sum(nil)

	il, err := curve.ScalarFromBytes(i[:32])
	if err != nil {
		return nil, [32]byte{}, err
	}
	if il.IsZero() {
		return nil, [32]byte{}, errInvalidChildIndex
	}
	var childCC [32]byte
	copy(childCC[:], i[32:])
	return il, childCC, nil
}

var errInvalidChildIndex = newErr(InvalidMessage, "derivation index produced an invalid child key", nil)

func parseDerivationPath(path string) ([]uint32, error) {
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] != "m" {
		return nil, newErr(InvalidMessage, "derivation path must start with \"m\"", nil)
	}
	segments = segments[1:]
	out := make([]uint32, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h") || strings.HasSuffix(seg, "H") {
			return nil, newErr(InvalidMessage, "hardened derivation is not supported by a threshold key", nil)
		}
		n, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return nil, newErr(InvalidMessage, "malformed derivation path segment", err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}
