package lnwire

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// ChannelRefLen is the number of bytes a ChannelRef occupies on the wire.
const ChannelRefLen = 10

// ChannelRef identifies a channel by the location of its funding output
// within the chain: the block it was confirmed in, the index of the funding
// transaction within that block, and the output index within the
// transaction.
type ChannelRef struct {
	// BlockHeight is the height of the block where the funding
	// transaction is located.
	BlockHeight uint32

	// TxIndex is a byte index within the block that the funding
	// transaction resides at.
	TxIndex uint32

	// TxPosition denotes the output which pays to the funding 2-of-2
	// multi-sig script.
	TxPosition uint16
}

// NewChannelRefFromBytes decodes the wire encoding of a ChannelRef.
func NewChannelRefFromBytes(b [ChannelRefLen]byte) ChannelRef {
	return ChannelRef{
		BlockHeight: binary.BigEndian.Uint32(b[0:4]),
		TxIndex:     binary.BigEndian.Uint32(b[4:8]),
		TxPosition:  binary.BigEndian.Uint16(b[8:10]),
	}
}

// Bytes returns the wire encoding of the ChannelRef. It is also used as the
// deduplication key for channel level broadcasts.
func (c ChannelRef) Bytes() [ChannelRefLen]byte {
	var b [ChannelRefLen]byte
	binary.BigEndian.PutUint32(b[0:4], c.BlockHeight)
	binary.BigEndian.PutUint32(b[4:8], c.TxIndex)
	binary.BigEndian.PutUint16(b[8:10], c.TxPosition)

	return b
}

// String generates a human-readable representation of the channel reference
// in the form block:tx:out.
func (c ChannelRef) String() string {
	return fmt.Sprintf("%d:%d:%d", c.BlockHeight, c.TxIndex, c.TxPosition)
}

// ParseChannelRef is the inverse of String.
func ParseChannelRef(s string) (ChannelRef, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ChannelRef{}, fmt.Errorf("invalid channel ref %q", s)
	}

	height, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("invalid block height: %w", err)
	}
	txIndex, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("invalid tx index: %w", err)
	}
	txPos, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("invalid output index: %w", err)
	}

	return ChannelRef{
		BlockHeight: uint32(height),
		TxIndex:     uint32(txIndex),
		TxPosition:  uint16(txPos),
	}, nil
}
