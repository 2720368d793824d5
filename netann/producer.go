package netann

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNoExternalAddr is returned when a node announcement is requested
	// but no reachable address is configured.
	ErrNoExternalAddr = errors.New("no external address configured")

	// ErrNoActiveChannels is returned when a node announcement is
	// requested while we have no active channel.
	ErrNoActiveChannels = errors.New("no active channels")
)

// ProducerConfig holds the dependencies and settings of a Producer.
type ProducerConfig struct {
	// Signer signs with our identity key and funding keys.
	Signer keychain.MessageSigner

	// SelfKey is our compressed identity key.
	SelfKey [33]byte

	// TxLocator resolves funding transactions to chain positions.
	TxLocator TxLocator

	// Policy is the routing policy advertised for our channels.
	Policy ChannelPolicy

	// ExternalAddr is our reachable address, if any. Without one we never
	// announce our node.
	ExternalAddr fn.Option[lnwire.NetAddr]

	// Alias, Color and Features are announced in our node announcement.
	Alias    lnwire.NodeAlias
	Color    color.RGBA
	Features lnwire.FeatureBits

	// Clock provides announcement timestamps.
	Clock clock.Clock

	// Broadcaster receives every message we produce.
	Broadcaster Broadcaster

	// Graph, if set, records our own channels and node so they are known
	// locally before any peer echoes them back.
	Graph GraphWriter
}

// Producer builds and signs our own gossip.
//
// NOTE: Producer does no locking of its own. It must only ever be driven from
// a single goroutine.
type Producer struct {
	cfg *ProducerConfig

	// lastTimestamps is the timestamp last produced per broadcast key.
	lastTimestamps map[broadcast.Key]uint32
}

// NewProducer creates a new Producer.
func NewProducer(cfg *ProducerConfig) *Producer {
	return &Producer{
		cfg:            cfg,
		lastTimestamps: make(map[broadcast.Key]uint32),
	}
}

// nextTimestamp returns the current time as a timestamp for key. It is
// raised past the last timestamp produced for key and past stored, the
// timestamp the graph holds for the record, so the message is never stale.
func (p *Producer) nextTimestamp(key broadcast.Key,
	stored fn.Option[uint32]) uint32 {

	ts := uint32(p.cfg.Clock.Now().Unix())
	if last, ok := p.lastTimestamps[key]; ok && ts <= last {
		ts = last + 1
	}
	stored.WhenSome(func(s uint32) {
		if ts <= s {
			ts = s + 1
		}
	})
	p.lastTimestamps[key] = ts

	return ts
}

// AnnounceChannel builds our channel announcement and channel update for ch
// and submits both for broadcast. The channel reference of ch is returned.
func (p *Producer) AnnounceChannel(ch *LocalChannel) (lnwire.ChannelRef,
	error) {

	ref, err := ChannelRefFromOutPoint(p.cfg.TxLocator, ch.FundingOutpoint)
	if err != nil {
		return lnwire.ChannelRef{}, err
	}

	self := p.cfg.SelfKey
	ann, rawAnn, err := CreateChanAnnouncement(p.cfg.Signer, self, ref, ch)
	if err != nil {
		return ref, fmt.Errorf("unable to create channel announcement "+
			"for %v: %w", ref, err)
	}

	// Our channel is recorded before the update is built, so that an
	// update for our direction already in the graph raises our timestamp.
	var stored fn.Option[uint32]
	if p.cfg.Graph != nil {
		node1 := graph.Vertex(ann.NodeID1)
		node2 := graph.Vertex(ann.NodeID2)
		p.cfg.Graph.AddChannelDirection(node1, node2, 0, ref, rawAnn)
		p.cfg.Graph.AddChannelDirection(node2, node1, 1, ref, rawAnn)

		var direction uint8
		if IsNode2(self, ch.RemotePubKey) {
			direction = 1
		}
		if edge, ok := p.cfg.Graph.Edge(ref, direction); ok {
			stored = edge.LastUpdate
		}
	}

	key := broadcast.ChannelKey(ref)
	ts := p.nextTimestamp(key, stored)
	upd, rawUpd, err := CreateChannelUpdate(
		p.cfg.Signer, self, ch.RemotePubKey, ref, p.cfg.Policy, ts,
	)
	if err != nil {
		return ref, fmt.Errorf("unable to create channel update for "+
			"%v: %w", ref, err)
	}

	p.cfg.Broadcaster.Enqueue(lnwire.MsgChannelAnnouncement, key, rawAnn)
	p.cfg.Broadcaster.Enqueue(lnwire.MsgChannelUpdate, key, rawUpd)

	log.Debugf("Announced channel %v with peer %x at timestamp %d", ref,
		ch.RemotePubKey, ts)

	if p.cfg.Graph == nil {
		return ref, nil
	}

	err = p.cfg.Graph.UpdateEdgePolicy(
		ref, upd.Direction(), ts, p.cfg.Policy.EdgePolicy(), rawUpd,
	)
	if err != nil {
		return ref, fmt.Errorf("unable to record own policy for %v: %w",
			ref, err)
	}

	return ref, nil
}

// AnnounceNode builds our node announcement and submits it for broadcast.
// numActive is the number of our channels currently active. Nothing is
// produced unless an external address is configured and at least one channel
// is active.
func (p *Producer) AnnounceNode(numActive int) error {
	if numActive == 0 {
		return ErrNoActiveChannels
	}

	if p.cfg.ExternalAddr.IsNone() {
		return ErrNoExternalAddr
	}
	addr := p.cfg.ExternalAddr.UnwrapOr(lnwire.NetAddr{})

	self := p.cfg.SelfKey
	v := graph.Vertex(self)

	var stored fn.Option[uint32]
	if p.cfg.Graph != nil {
		stored = p.cfg.Graph.GetOrCreateNode(v).LastUpdate
	}

	key := broadcast.NodeKey(self)
	ts := p.nextTimestamp(key, stored)

	params := NodeAnnParams{
		Addr:     addr,
		Alias:    p.cfg.Alias,
		Color:    p.cfg.Color,
		Features: p.cfg.Features,
	}
	ann, raw, err := CreateNodeAnnouncement(p.cfg.Signer, self, params, ts)
	if err != nil {
		return fmt.Errorf("unable to create node announcement: %w", err)
	}

	p.cfg.Broadcaster.Enqueue(lnwire.MsgNodeAnnouncement, key, raw)

	log.Debugf("Announced node %x at %v, timestamp %d", self, addr, ts)

	if p.cfg.Graph == nil {
		return nil
	}

	return p.cfg.Graph.UpdateNode(v, graph.NodeUpdate{
		Timestamp:    ann.Timestamp,
		Address:      fn.Some(addr),
		Color:        ann.RGBColor,
		Alias:        ann.Alias,
		Announcement: raw,
	})
}
