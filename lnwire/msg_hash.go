package lnwire

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Offsets into the full wire encoding (type included) at which the signed
// portion of each announcement starts.
const (
	// ChanAnnSigOffset skips the message type and the four signatures up
	// to the last two bytes of the final funding signature.
	ChanAnnSigOffset = 256

	// ChanUpdateSigOffset skips the message type and the signature.
	ChanUpdateSigOffset = 66

	// NodeAnnSigOffset skips the message type and the signature.
	NodeAnnSigOffset = 66
)

// SignedPortion returns the slice of raw starting at offset.
func SignedPortion(raw []byte, offset int) ([]byte, error) {
	if len(raw) < offset {
		return nil, fmt.Errorf("message of %d bytes is shorter than "+
			"signature offset %d", len(raw), offset)
	}

	return raw[offset:], nil
}

// SignedDigest returns the double-SHA256 of the signed portion of raw, which
// is what announcement signatures commit to.
func SignedDigest(raw []byte, offset int) ([]byte, error) {
	data, err := SignedPortion(raw, offset)
	if err != nil {
		return nil, err
	}

	return chainhash.DoubleHashB(data), nil
}

// MsgHash returns the double-SHA256 of the full raw message. It serves as a
// compact identifier of a message for caching purposes.
func MsgHash(raw []byte) chainhash.Hash {
	return chainhash.DoubleHashH(raw)
}
