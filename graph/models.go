package graph

import (
	"encoding/hex"
	"fmt"
	"image/color"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// VertexSize is the size of the array to store a vertex.
const VertexSize = 33

// Vertex is a simple alias for the serialization of a compressed Bitcoin
// public key. It is the identity of a node in the graph.
type Vertex [VertexSize]byte

// NewVertex returns a new Vertex given a public key.
func NewVertex(pub *btcec.PublicKey) Vertex {
	var v Vertex
	copy(v[:], pub.SerializeCompressed())
	return v
}

// NewVertexFromStr returns a new Vertex given its hex-encoded string format.
func NewVertexFromStr(v string) (Vertex, error) {
	// Return error if hex string is of incorrect length.
	if len(v) != VertexSize*2 {
		return Vertex{}, fmt.Errorf("invalid vertex string length of "+
			"%v, want %v", len(v), VertexSize*2)
	}

	vertex, err := hex.DecodeString(v)
	if err != nil {
		return Vertex{}, err
	}

	var out Vertex
	copy(out[:], vertex)

	return out, nil
}

// String returns a human readable version of the Vertex which is the
// hex-encoding of the serialized compressed public key.
func (v Vertex) String() string {
	return fmt.Sprintf("%x", v[:])
}

// PubKey parses the vertex into a public key.
func (v Vertex) PubKey() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(v[:])
}

// Node represents an individual vertex/node within the channel graph. A node
// is created lazily the first time a channel announcement references it, and
// only a node announcement can fill in the rest of its attributes.
type Node struct {
	// PubKeyBytes is the raw bytes of the public key of the target node.
	PubKeyBytes Vertex

	// LastUpdate is the timestamp of the last accepted node announcement.
	// It is None until the first one is accepted.
	LastUpdate fn.Option[uint32]

	// Address is the network address this node is reachable over, if it
	// advertised one.
	Address fn.Option[lnwire.NetAddr]

	// Color is the selected color for the node.
	Color color.RGBA

	// Alias is a nick-name for the node.
	Alias lnwire.NodeAlias

	// Announcement is the raw, signed node announcement last accepted for
	// this node. It is retransmitted verbatim.
	Announcement []byte
}

// HaveAnnouncement returns true if a node announcement has been accepted for
// the node.
func (n *Node) HaveAnnouncement() bool {
	return len(n.Announcement) > 0
}

// NodeUpdate holds the attributes an accepted node announcement replaces.
type NodeUpdate struct {
	Timestamp    uint32
	Address      fn.Option[lnwire.NetAddr]
	Color        color.RGBA
	Alias        lnwire.NodeAlias
	Announcement []byte
}

// EdgePolicy holds the routing parameters a node announces for its direction
// of a channel.
type EdgePolicy struct {
	// TimeLockDelta is the number of blocks this node will subtract from
	// the expiry of an incoming HTLC. This value expresses the time buffer
	// the node would like to HTLC exchanges.
	TimeLockDelta uint16

	// MinHTLC is the smallest value HTLC this node will forward, expressed
	// in millisatoshi.
	MinHTLC uint32

	// FeeBaseMSat is the base HTLC fee that will be charged for forwarding
	// ANY HTLC, expressed in mSAT's.
	FeeBaseMSat uint32

	// FeeProportionalMillionths is the rate that the node will charge for
	// HTLCs for each millionth of a satoshi forwarded.
	FeeProportionalMillionths uint32
}

// ChannelEdge represents a *directed* edge within the channel graph. For each
// announced channel there are two distinct edges: one for each possible
// direction of travel along the channel.
type ChannelEdge struct {
	// ChannelRef is the on-chain reference of the channel.
	ChannelRef lnwire.ChannelRef

	// Direction is 0 for the edge from node 1 to node 2 and 1 for the
	// reverse.
	Direction uint8

	// Source is the node that sets the policy of this edge.
	Source Vertex

	// Destination is the node this directed edge leads to.
	Destination Vertex

	// LastUpdate is the timestamp of the last accepted channel update for
	// this direction. It is None until the first one is accepted.
	LastUpdate fn.Option[uint32]

	// Policy holds the routing parameters from the last accepted update.
	Policy EdgePolicy

	// Active is set once a channel update for this direction has been
	// accepted.
	Active bool

	// Announcement is the raw channel announcement that created the edge.
	Announcement []byte

	// ChannelUpdate is the raw, signed channel update last accepted for
	// this direction, nil until the first one.
	ChannelUpdate []byte
}

// edgeKey uniquely identifies a directed edge.
type edgeKey struct {
	ref       lnwire.ChannelRef
	direction uint8
}
