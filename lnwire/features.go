package lnwire

import "fmt"

// FeatureBit represents a feature that can be enabled in a feature vector.
// Even bits are required, odd bits are optional ("it's OK to be odd").
type FeatureBit uint16

// IsRequired returns true if the feature bit is even, and false otherwise.
func (b FeatureBit) IsRequired() bool {
	return b&0x01 == 0x00
}

// FeatureBits is the raw big-endian feature bitfield carried by
// announcements. Bit 0 is the least significant bit of the last byte.
type FeatureBits []byte

// IsSet returns whether the given bit is set in the vector.
func (f FeatureBits) IsSet(bit FeatureBit) bool {
	byteIndex := int(bit / 8)
	if byteIndex >= len(f) {
		return false
	}

	return f[len(f)-1-byteIndex]&(1<<(bit%8)) != 0
}

// NewFeatureBits returns a minimal feature vector with the given bits set.
func NewFeatureBits(bits ...FeatureBit) FeatureBits {
	var maxBit FeatureBit
	for _, bit := range bits {
		if bit > maxBit {
			maxBit = bit
		}
	}
	if len(bits) == 0 {
		return FeatureBits{}
	}

	f := make(FeatureBits, maxBit/8+1)
	for _, bit := range bits {
		f[len(f)-1-int(bit/8)] |= 1 << (bit % 8)
	}

	return f
}

// SetBits returns every bit that is set in the vector, lowest first.
func (f FeatureBits) SetBits() []FeatureBit {
	var bits []FeatureBit
	for i := len(f) - 1; i >= 0; i-- {
		for j := 0; j < 8; j++ {
			if f[i]&(1<<j) != 0 {
				bits = append(bits, FeatureBit((len(f)-1-i)*8+j))
			}
		}
	}

	return bits
}

// UnknownRequiredFeatures returns the required (even) bits that are set in
// the vector but are not part of the known set.
func (f FeatureBits) UnknownRequiredFeatures(
	known map[FeatureBit]string) []FeatureBit {

	var unknown []FeatureBit
	for _, bit := range f.SetBits() {
		if _, ok := known[bit]; ok {
			continue
		}
		if bit.IsRequired() {
			unknown = append(unknown, bit)
		}
	}

	return unknown
}

// NodeAlias is a hex encoded UTF-8 string that may be displayed as an
// alternative to the node's ID. Notice that aliases are not unique and may be
// freely chosen by the node operators.
type NodeAlias [32]byte

// NewNodeAlias creates a new instance of a NodeAlias. Verification is
// performed on the passed string to ensure it meets the alias requirements.
func NewNodeAlias(s string) (NodeAlias, error) {
	var n NodeAlias

	if len(s) > 32 {
		return n, fmt.Errorf("alias too large: max is %v, got %v", 32,
			len(s))
	}

	copy(n[:], []byte(s))

	return n, nil
}

// String returns a utf8 string representation of the alias bytes.
func (n NodeAlias) String() string {
	// Trim trailing zero-bytes for presentation
	num := 32
	for num > 0 && n[num-1] == 0 {
		num--
	}

	return string(n[:num])
}
