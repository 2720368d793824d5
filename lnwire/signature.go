package lnwire

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var (
	errSigTooShort = errors.New("malformed signature: too short")
	errBadLength   = errors.New("malformed signature: bad length")
	errRTooLong    = errors.New("R is over 32 bytes long without padding")
	errSTooLong    = errors.New("S is over 32 bytes long without padding")
)

// minDERSigLen is the minimum length of a DER encoded signature: the
// sequence and two integer headers plus at least one byte for each of R and
// S.
const minDERSigLen = 8

// Sig is a fixed-sized ECDSA signature. Unlike Bitcoin, we use fixed sized
// signatures on the wire, instead of DER encoded signatures. This type
// provides several methods to convert to/from a regular Bitcoin DER encoded
// signature (raw bytes and *ecdsa.Signature).
type Sig [64]byte

// NewSigFromDER converts a DER encoded signature to a 64-byte fixed size
// signature.
func NewSigFromDER(sig []byte) (Sig, error) {
	var b Sig

	// Check the total length is above the minimal.
	if len(sig) < minDERSigLen {
		return b, errSigTooShort
	}

	// The DER representation is laid out as:
	//   0x30 <length> 0x02 <length r> r 0x02 <length s> s
	// which means the length of R is the 4th byte and the length of S is
	// the second byte after R ends. 0x02 signifies a length-prefixed,
	// zero-padded, big-endian bigint. 0x30 signifies a DER signature.
	if sig[0] != 0x30 || sig[2] != 0x02 {
		return b, errBadLength
	}

	rLen := int(sig[3])
	if 4+rLen+2 > len(sig) || sig[4+rLen] != 0x02 {
		return b, errBadLength
	}
	sLen := int(sig[4+rLen+1])
	if 4+rLen+2+sLen != len(sig) {
		return b, errBadLength
	}

	// Check to make sure R and S can both fit into their intended buffers.
	// We check S first because these code blocks decrement sLen and rLen
	// when leading zeroes are stripped.
	sBytes := sig[4+rLen+2:]
	for len(sBytes) > 0 && sBytes[0] == 0x00 {
		sBytes = sBytes[1:]
	}
	if len(sBytes) > 32 {
		return b, errSTooLong
	}

	rBytes := sig[4 : 4+rLen]
	for len(rBytes) > 0 && rBytes[0] == 0x00 {
		rBytes = rBytes[1:]
	}
	if len(rBytes) > 32 {
		return b, errRTooLong
	}

	// Add R and S to the fixed-size byte array, left padded.
	copy(b[32-len(rBytes):32], rBytes)
	copy(b[64-len(sBytes):], sBytes)

	return b, nil
}

// NewSigFromSignature creates a new signature as used on the wire, from an
// existing ecdsa.Signature.
func NewSigFromSignature(e *ecdsa.Signature) (Sig, error) {
	if e == nil {
		return Sig{}, fmt.Errorf("cannot decode empty signature")
	}

	return NewSigFromDER(e.Serialize())
}

// ToSignature converts the fixed-sized signature to an ecdsa.Signature object
// which can be used for signature validation checks.
func (b Sig) ToSignature() (*ecdsa.Signature, error) {
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(b[0:32]); overflow {
		return nil, errors.New("invalid signature: R >= group order")
	}
	if overflow := s.SetByteSlice(b[32:64]); overflow {
		return nil, errors.New("invalid signature: S >= group order")
	}
	if r.IsZero() || s.IsZero() {
		return nil, errors.New("invalid signature: zero R or S")
	}

	return ecdsa.NewSignature(&r, &s), nil
}

// IsZero reports whether the signature is the all-zero placeholder used
// before a message has been signed.
func (b Sig) IsZero() bool {
	return b == Sig{}
}
