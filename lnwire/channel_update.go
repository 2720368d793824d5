package lnwire

import (
	"bytes"
	"io"
)

// ChanUpdateFlags is a bitfield that signals various options concerning a
// particular channel edge. Each bit is to be examined in order to determine
// how the ChannelUpdate message is to be interpreted.
type ChanUpdateFlags uint16

const (
	// ChanUpdateDirection indicates the direction of a channel update. If
	// this bit is set to 0 if Node1 (the node with the "smaller" Node ID)
	// is updating the channel, and to 1 otherwise.
	ChanUpdateDirection ChanUpdateFlags = 1 << iota
)

// Direction returns the direction bit selected by the flags.
func (c ChanUpdateFlags) Direction() uint8 {
	return uint8(c & ChanUpdateDirection)
}

// ChannelUpdate message is used after channel has been initially announced.
// Each side independently announces its fees and minimum expiry for HTLCs and
// other parameters. Also this message is used to redeclare initially set
// channel parameters.
type ChannelUpdate struct {
	// Signature is used to validate the announced data and prove the
	// ownership of node id.
	Signature Sig

	// ChannelRef is the unique description of the funding transaction.
	ChannelRef ChannelRef

	// Timestamp allows ordering in the case of multiple announcements. We
	// should ignore the message if timestamp is not greater than
	// the last-received.
	Timestamp uint32

	// Flags is a bitfield that describes additional meta-data concerning
	// how the update is to be interpreted. The least-significant bit
	// selects the direction this update applies to.
	Flags ChanUpdateFlags

	// TimeLockDelta is the minimum number of blocks this node requires to
	// be added to the expiry of HTLCs. This is a security parameter
	// determined by the node operator. This value represents the required
	// gap between the time locks of the incoming and outgoing HTLC's set
	// to this node.
	TimeLockDelta uint16

	// HtlcMinimumMsat is the minimum HTLC value which will be accepted.
	HtlcMinimumMsat uint32

	// BaseFee is the base fee that must be used for incoming HTLC's to
	// this particular channel. This value will be tacked onto the required
	// for a payment independent of the size of the payment.
	BaseFee uint32

	// FeeRate is the fee rate that will be charged per millionth of a
	// satoshi.
	FeeRate uint32

	// ExtraOpaqueData is the set of data that was appended to this
	// message to fill out the full maximum transport message size.
	ExtraOpaqueData ExtraOpaqueData
}

// A compile time check to ensure ChannelUpdate implements the lnwire.Message
// interface.
var _ Message = (*ChannelUpdate)(nil)

// Decode deserializes a serialized ChannelUpdate stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the lnwire.Message interface.
func (a *ChannelUpdate) Decode(r io.Reader) error {
	var flags uint16
	err := ReadElements(r,
		&a.Signature,
		&a.ChannelRef,
		&a.Timestamp,
		&flags,
		&a.TimeLockDelta,
		&a.HtlcMinimumMsat,
		&a.BaseFee,
		&a.FeeRate,
		&a.ExtraOpaqueData,
	)
	if err != nil {
		return err
	}
	a.Flags = ChanUpdateFlags(flags)

	return nil
}

// Encode serializes the target ChannelUpdate into the passed io.Writer
// observing the protocol version specified.
//
// This is part of the lnwire.Message interface.
func (a *ChannelUpdate) Encode(w *bytes.Buffer) error {
	return WriteElements(w,
		a.Signature,
		a.ChannelRef,
		a.Timestamp,
		uint16(a.Flags),
		a.TimeLockDelta,
		a.HtlcMinimumMsat,
		a.BaseFee,
		a.FeeRate,
		a.ExtraOpaqueData,
	)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the lnwire.Message interface.
func (a *ChannelUpdate) MsgType() MessageType {
	return MsgChannelUpdate
}

// Direction returns the channel direction this update applies to.
func (a *ChannelUpdate) Direction() uint8 {
	return a.Flags.Direction()
}

// DataToSign is used to retrieve part of the announcement message which
// should be signed.
//
// This is part of the lnwire.AnnounceSignedMsg interface.
func (a *ChannelUpdate) DataToSign() ([]byte, error) {
	raw, err := Serialize(a)
	if err != nil {
		return nil, err
	}

	return SignedPortion(raw, ChanUpdateSigOffset)
}
