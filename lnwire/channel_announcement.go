package lnwire

import (
	"bytes"
	"io"
)

// ChannelAnnouncement message is used to announce the existence of a channel
// between two peers in the overlay, which is propagated by the discovery
// service over broadcast handler.
type ChannelAnnouncement struct {
	// This signatures are used by nodes in order to create cross
	// references between node's channel and node. Requiring both nodes
	// to sign indicates they are both willing to route other payments via
	// this node.
	NodeSig1 Sig
	NodeSig2 Sig

	// This signatures are used by nodes in order to create cross
	// references between node's channel and node. Requiring the funding
	// keys to sign indicates they are willing to route other payments via
	// this node.
	FundingSig1 Sig
	FundingSig2 Sig

	// ChannelRef is the unique description of the funding transaction.
	ChannelRef ChannelRef

	// The public keys of the two nodes who are operating the channel, such
	// that is NodeID1 the numerically-lesser than NodeID2 (ascending
	// numerical order).
	NodeID1 [33]byte
	NodeID2 [33]byte

	// Public keys which corresponds to the keys which was declared in
	// multisig funding transaction output.
	FundingKey1 [33]byte
	FundingKey2 [33]byte

	// Features is the feature vector that encodes the features supported
	// by the target node.
	Features FeatureBits

	// ExtraOpaqueData is the set of data that was appended to this
	// message to fill out the full maximum transport message size.
	ExtraOpaqueData ExtraOpaqueData
}

// A compile time check to ensure ChannelAnnouncement implements the
// lnwire.Message interface.
var _ Message = (*ChannelAnnouncement)(nil)

// Decode deserializes a serialized ChannelAnnouncement stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the lnwire.Message interface.
func (a *ChannelAnnouncement) Decode(r io.Reader) error {
	return ReadElements(r,
		&a.NodeSig1,
		&a.NodeSig2,
		&a.FundingSig1,
		&a.FundingSig2,
		&a.ChannelRef,
		&a.NodeID1,
		&a.NodeID2,
		&a.FundingKey1,
		&a.FundingKey2,
		&a.Features,
		&a.ExtraOpaqueData,
	)
}

// Encode serializes the target ChannelAnnouncement into the passed io.Writer
// observing the protocol version specified.
//
// This is part of the lnwire.Message interface.
func (a *ChannelAnnouncement) Encode(w *bytes.Buffer) error {
	return WriteElements(w,
		a.NodeSig1,
		a.NodeSig2,
		a.FundingSig1,
		a.FundingSig2,
		a.ChannelRef,
		a.NodeID1,
		a.NodeID2,
		a.FundingKey1,
		a.FundingKey2,
		a.Features,
		a.ExtraOpaqueData,
	)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the lnwire.Message interface.
func (a *ChannelAnnouncement) MsgType() MessageType {
	return MsgChannelAnnouncement
}

// DataToSign is used to retrieve part of the announcement message which
// should be signed by the two nodes.
//
// This is part of the lnwire.AnnounceSignedMsg interface.
func (a *ChannelAnnouncement) DataToSign() ([]byte, error) {
	raw, err := Serialize(a)
	if err != nil {
		return nil, err
	}

	return SignedPortion(raw, ChanAnnSigOffset)
}
