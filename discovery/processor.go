package discovery

import (
	"bytes"
	"fmt"

	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/ellemouton/lngossip/netann"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// FundingValidator checks an announced channel against the chain.
type FundingValidator interface {
	// ValidateFundingOutput returns an error unless the output referenced
	// by ref exists, is unspent and pays to the 2-of-2 multisig of the two
	// funding keys.
	ValidateFundingOutput(ref lnwire.ChannelRef,
		fundingKey1, fundingKey2 [33]byte) error
}

// A compile time check to ensure the chain backed validator of netann
// implements FundingValidator.
var _ FundingValidator = (*netann.FundingValidator)(nil)

// ProcessorConfig holds the collaborators of a Processor.
type ProcessorConfig struct {
	// Graph is the topology store mutated by accepted messages.
	Graph *graph.Graph

	// Broadcaster receives every accepted message for forwarding.
	Broadcaster netann.Broadcaster

	// AssumeChannelValid skips the feature, signature and funding checks
	// of channel announcements and the signature check of channel
	// updates. Node announcement signatures are always checked.
	AssumeChannelValid bool

	// FundingValidator, if set and AssumeChannelValid is false, checks the
	// funding output of announced channels.
	FundingValidator FundingValidator

	// KnownFeatures is the set of feature bits we understand. A channel
	// announcement requiring any other bit is rejected.
	KnownFeatures map[lnwire.FeatureBit]string

	// RejectCacheSize is the number of signature failures we remember.
	RejectCacheSize uint64
}

// Processor validates inbound gossip, applies it to the graph and queues it
// for forwarding. A rejected message never changes any state.
//
// NOTE: Processor does no locking of its own. It must only ever be driven
// from a single goroutine.
type Processor struct {
	cfg *ProcessorConfig

	rejects *rejectCache
}

// NewProcessor creates a new Processor.
func NewProcessor(cfg *ProcessorConfig) *Processor {
	return &Processor{
		cfg:     cfg,
		rejects: newRejectCache(cfg.RejectCacheSize),
	}
}

// ProcessMessage dispatches a raw wire message to the handler for its type.
func (p *Processor) ProcessMessage(raw []byte) error {
	msgType, err := lnwire.PeekType(raw)
	if err != nil {
		return reject(ReasonMalformed, msgType, err)
	}

	switch msgType {
	case lnwire.MsgChannelAnnouncement:
		return p.ProcessChannelAnnouncement(raw)

	case lnwire.MsgChannelUpdate:
		return p.ProcessChannelUpdate(raw)

	case lnwire.MsgNodeAnnouncement:
		return p.ProcessNodeAnnouncement(raw)

	default:
		return reject(ReasonMalformed, msgType, lnwire.ErrUnknownMessage)
	}
}

// decode parses raw into msg, making sure it carries the expected type.
func decode(raw []byte, msg lnwire.Message) error {
	r := bytes.NewReader(raw)

	var msgType lnwire.MessageType
	if err := lnwire.ReadElement(r, &msgType); err != nil {
		return err
	}
	if msgType != msg.MsgType() {
		return fmt.Errorf("unexpected message type %v", msgType)
	}

	return msg.Decode(r)
}

// checkRejectCache fails fast for raw messages whose signature already failed
// to verify.
func (p *Processor) checkRejectCache(raw []byte,
	msgType lnwire.MessageType) error {

	reason, ok := p.rejects.lookup(lnwire.MsgHash(raw))
	if !ok {
		return nil
	}

	return reject(reason, msgType, fmt.Errorf("previously rejected"))
}

// rejectAuth rejects a message whose signature failed and remembers it.
func (p *Processor) rejectAuth(raw []byte, reason RejectReason,
	msgType lnwire.MessageType, err error) error {

	p.rejects.insert(lnwire.MsgHash(raw), reason)

	return reject(reason, msgType, err)
}

// checkTimestamp returns an error unless ts is newer than the last accepted
// timestamp, if there is one.
func checkTimestamp(last fn.Option[uint32], ts uint32) error {
	var err error
	last.WhenSome(func(l uint32) {
		if ts <= l {
			err = fmt.Errorf("timestamp %d is not newer than %d",
				ts, l)
		}
	})

	return err
}

// ProcessChannelAnnouncement handles a raw channel announcement. Both directed
// edges of the channel are added to the graph, and the announcement is queued
// for forwarding only if at least one of them was new.
func (p *Processor) ProcessChannelAnnouncement(raw []byte) error {
	const msgType = lnwire.MsgChannelAnnouncement

	if err := p.checkRejectCache(raw, msgType); err != nil {
		return err
	}

	var ann lnwire.ChannelAnnouncement
	if err := decode(raw, &ann); err != nil {
		return reject(ReasonMalformed, msgType, err)
	}

	log.Debugf("Received channel_announcement for channel %v",
		ann.ChannelRef)

	if !p.cfg.AssumeChannelValid {
		if err := p.validateChannelAnn(raw, &ann); err != nil {
			return err
		}
	}

	node1, node2 := graph.Vertex(ann.NodeID1), graph.Vertex(ann.NodeID2)

	// Both directions must be attempted, so the results are combined
	// without short-circuiting.
	added1 := p.cfg.Graph.AddChannelDirection(
		node1, node2, 0, ann.ChannelRef, raw,
	)
	added2 := p.cfg.Graph.AddChannelDirection(
		node2, node1, 1, ann.ChannelRef, raw,
	)
	if !added1 && !added2 {
		log.Debugf("Not forwarding channel_announcement for known "+
			"channel %v", ann.ChannelRef)

		return nil
	}

	p.cfg.Broadcaster.Enqueue(
		msgType, broadcast.ChannelKey(ann.ChannelRef), raw,
	)

	return nil
}

// validateChannelAnn runs the checks that AssumeChannelValid skips.
func (p *Processor) validateChannelAnn(raw []byte,
	ann *lnwire.ChannelAnnouncement) error {

	const msgType = lnwire.MsgChannelAnnouncement

	unknown := ann.Features.UnknownRequiredFeatures(p.cfg.KnownFeatures)
	if len(unknown) > 0 {
		return reject(ReasonUnknownFeature, msgType,
			fmt.Errorf("required feature bits %v", unknown))
	}

	if err := netann.ValidateChannelAnn(raw, ann); err != nil {
		return p.rejectAuth(raw, ReasonBadSignature, msgType, err)
	}

	if p.cfg.FundingValidator == nil {
		return nil
	}

	err := p.cfg.FundingValidator.ValidateFundingOutput(
		ann.ChannelRef, ann.FundingKey1, ann.FundingKey2,
	)
	if err != nil {
		// Funding failures are not cached: the output may just not be
		// visible to us yet.
		return reject(ReasonInvalidFunding, msgType, err)
	}

	return nil
}

// ProcessChannelUpdate handles a raw channel update. The update must address
// a known directed edge and carry a timestamp newer than the last accepted
// one for that edge.
func (p *Processor) ProcessChannelUpdate(raw []byte) error {
	const msgType = lnwire.MsgChannelUpdate

	if err := p.checkRejectCache(raw, msgType); err != nil {
		return err
	}

	var upd lnwire.ChannelUpdate
	if err := decode(raw, &upd); err != nil {
		return reject(ReasonMalformed, msgType, err)
	}

	direction := upd.Direction()
	log.Debugf("Received channel_update for channel %v(%d)",
		upd.ChannelRef, direction)

	edge, ok := p.cfg.Graph.Edge(upd.ChannelRef, direction)
	if !ok {
		return reject(ReasonUnknownChannel, msgType, fmt.Errorf(
			"channel %v direction %d", upd.ChannelRef, direction,
		))
	}

	if err := checkTimestamp(edge.LastUpdate, upd.Timestamp); err != nil {
		return reject(ReasonStale, msgType, err)
	}

	if !p.cfg.AssumeChannelValid {
		pubKey, err := edge.Source.PubKey()
		if err != nil {
			return p.rejectAuth(raw, ReasonBadSignature, msgType,
				err)
		}

		err = netann.ValidateChannelUpdateAnn(raw, pubKey, &upd)
		if err != nil {
			return p.rejectAuth(raw, ReasonBadSignature, msgType,
				err)
		}
	}

	policy := graph.EdgePolicy{
		TimeLockDelta:             upd.TimeLockDelta,
		MinHTLC:                   upd.HtlcMinimumMsat,
		FeeBaseMSat:               upd.BaseFee,
		FeeProportionalMillionths: upd.FeeRate,
	}
	err := p.cfg.Graph.UpdateEdgePolicy(
		upd.ChannelRef, direction, upd.Timestamp, policy, raw,
	)
	if err != nil {
		return err
	}

	log.Debugf("Channel %v(%d) was updated", upd.ChannelRef, direction)

	// Both directions share the broadcast slot of the channel.
	p.cfg.Broadcaster.Enqueue(
		msgType, broadcast.ChannelKey(upd.ChannelRef), raw,
	)

	return nil
}

// ProcessNodeAnnouncement handles a raw node announcement. The node must
// already be known from a channel announcement, and the announcement must be
// signed by it and newer than the last accepted one.
func (p *Processor) ProcessNodeAnnouncement(raw []byte) error {
	const msgType = lnwire.MsgNodeAnnouncement

	if err := p.checkRejectCache(raw, msgType); err != nil {
		return err
	}

	var ann lnwire.NodeAnnouncement
	if err := decode(raw, &ann); err != nil {
		return reject(ReasonMalformed, msgType, err)
	}

	nodeID := graph.Vertex(ann.NodeID)
	log.Debugf("Received node_announcement for node %v", nodeID)

	if err := netann.ValidateNodeAnnSignature(raw, &ann); err != nil {
		return p.rejectAuth(raw, ReasonBadSignature, msgType, err)
	}

	node, ok := p.cfg.Graph.Node(nodeID)
	if !ok {
		return reject(ReasonUnknownNode, msgType, fmt.Errorf("node %v "+
			"has no announced channel", nodeID))
	}

	if err := checkTimestamp(node.LastUpdate, ann.Timestamp); err != nil {
		return reject(ReasonStale, msgType, err)
	}

	// The address list is decoded before anything is written so that a
	// bad list leaves the node untouched.
	addr, err := lnwire.DecodeAddresses(ann.Addresses)
	if err != nil {
		return reject(ReasonBadAddress, msgType, err)
	}

	err = p.cfg.Graph.UpdateNode(nodeID, graph.NodeUpdate{
		Timestamp:    ann.Timestamp,
		Address:      addr,
		Color:        ann.RGBColor,
		Alias:        ann.Alias,
		Announcement: raw,
	})
	if err != nil {
		return err
	}

	p.cfg.Broadcaster.Enqueue(msgType, broadcast.NodeKey(ann.NodeID), raw)

	return nil
}

// RejectCacheLen returns the number of remembered authentication failures.
func (p *Processor) RejectCacheLen() int {
	return p.rejects.len()
}
