package lnwire

import (
	"bytes"
	"image/color"
	"io"
)

// NodeAnnouncement message is used to announce the presence of a Lightning
// node and also to signal that the node is accepting incoming connections.
// Each NodeAnnouncement authenticating the advertised information within the
// announcement via a signature using the advertised node pubkey.
type NodeAnnouncement struct {
	// Signature is used to prove the ownership of node id.
	Signature Sig

	// Timestamp allows ordering in the case of multiple announcements.
	Timestamp uint32

	// NodeID is a public key which is used as node identification.
	NodeID [33]byte

	// RGBColor is used to customize their node's appearance in maps and
	// graphs
	RGBColor color.RGBA

	// Alias is used to customize their node's appearance in maps and
	// graphs
	Alias NodeAlias

	// Features is the list of protocol features this node supports.
	Features FeatureBits

	// Addresses includes a list of network addresses in their raw
	// descriptor encoding. Decoding is left to DecodeAddresses so that a
	// malformed list can be detected separately from a malformed message.
	Addresses RawAddrs

	// ExtraOpaqueData is the set of data that was appended to this
	// message to fill out the full maximum transport message size.
	ExtraOpaqueData ExtraOpaqueData
}

// A compile time check to ensure NodeAnnouncement implements the
// lnwire.Message interface.
var _ Message = (*NodeAnnouncement)(nil)

// Decode deserializes a serialized NodeAnnouncement stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the lnwire.Message interface.
func (a *NodeAnnouncement) Decode(r io.Reader) error {
	return ReadElements(r,
		&a.Signature,
		&a.Timestamp,
		&a.NodeID,
		&a.RGBColor,
		&a.Alias,
		&a.Features,
		&a.Addresses,
		&a.ExtraOpaqueData,
	)
}

// Encode serializes the target NodeAnnouncement into the passed io.Writer
// observing the protocol version specified.
//
// This is part of the lnwire.Message interface.
func (a *NodeAnnouncement) Encode(w *bytes.Buffer) error {
	return WriteElements(w,
		a.Signature,
		a.Timestamp,
		a.NodeID,
		a.RGBColor,
		a.Alias,
		a.Features,
		a.Addresses,
		a.ExtraOpaqueData,
	)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the lnwire.Message interface.
func (a *NodeAnnouncement) MsgType() MessageType {
	return MsgNodeAnnouncement
}

// DataToSign returns the part of the message that should be signed.
//
// This is part of the lnwire.AnnounceSignedMsg interface.
func (a *NodeAnnouncement) DataToSign() ([]byte, error) {
	raw, err := Serialize(a)
	if err != nil {
		return nil, err
	}

	return SignedPortion(raw, NodeAnnSigOffset)
}
