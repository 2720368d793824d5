package netann

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/lnwire"
)

// TxLocator resolves a transaction to its position in the chain.
type TxLocator interface {
	// LocateTx returns the height of the block that confirmed the given
	// transaction and the index of the transaction within that block.
	LocateTx(txid chainhash.Hash) (uint32, uint32, error)
}

// Broadcaster accepts outbound gossip for fan-out to peers. It is
// implemented by broadcast.Log.
type Broadcaster interface {
	Enqueue(msgType lnwire.MessageType, key broadcast.Key,
		payload []byte) uint64
}

// GraphWriter is the subset of the graph the producer uses to record our own
// channels and node.
type GraphWriter interface {
	AddChannelDirection(src, dst graph.Vertex, direction uint8,
		ref lnwire.ChannelRef, rawAnn []byte) bool

	UpdateEdgePolicy(ref lnwire.ChannelRef, direction uint8,
		timestamp uint32, policy graph.EdgePolicy,
		rawUpdate []byte) error

	Edge(ref lnwire.ChannelRef, direction uint8) (*graph.ChannelEdge,
		bool)

	GetOrCreateNode(v graph.Vertex) *graph.Node

	UpdateNode(v graph.Vertex, upd graph.NodeUpdate) error
}

// ChannelRefFromOutPoint derives the channel reference of a funding output.
func ChannelRefFromOutPoint(locator TxLocator,
	op wire.OutPoint) (lnwire.ChannelRef, error) {

	if op.Index > math.MaxUint16 {
		return lnwire.ChannelRef{}, fmt.Errorf("output index %d of %v "+
			"does not fit a channel reference", op.Index, op.Hash)
	}

	height, txIndex, err := locator.LocateTx(op.Hash)
	if err != nil {
		return lnwire.ChannelRef{}, fmt.Errorf("unable to locate "+
			"funding tx %v: %w", op.Hash, err)
	}

	return lnwire.ChannelRef{
		BlockHeight: height,
		TxIndex:     txIndex,
		TxPosition:  uint16(op.Index),
	}, nil
}
