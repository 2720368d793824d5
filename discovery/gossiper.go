package discovery

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/ellemouton/lngossip/netann"
	"github.com/ellemouton/lngossip/peer"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultReannounceInterval is how often we rebroadcast our own
	// channels and node so peers don't consider them stale.
	DefaultReannounceInterval = 5 * time.Hour

	// DefaultDrainInterval is how often the broadcast log is flushed to
	// every peer.
	DefaultDrainInterval = 30 * time.Second
)

var (
	// ErrGossiperNotStarted is returned for requests made before the
	// gossiper was started.
	ErrGossiperNotStarted = errors.New("gossiper not started")

	// ErrGossiperShuttingDown is returned for requests made once the
	// gossiper is stopping.
	ErrGossiperShuttingDown = errors.New("gossiper shutting down")
)

// Config holds the settings and collaborators of the Gossiper.
type Config struct {
	// SelfKey is our compressed identity key.
	SelfKey [33]byte

	// Signer signs our own announcements.
	Signer keychain.MessageSigner

	// FundingKey is the key we put in the funding output of our channels,
	// if it is not our identity key. Signer must hold its private key
	// under keychain.FundingKeyLocator. Channels that name their own
	// funding key keep it.
	FundingKey fn.Option[[33]byte]

	// TxLocator resolves our funding transactions to channel references.
	TxLocator netann.TxLocator

	// FundingValidator, if set, checks the funding output of announced
	// channels.
	FundingValidator FundingValidator

	// Policy is the routing policy we advertise for our channels.
	Policy netann.ChannelPolicy

	// ExternalAddr is our reachable address, if any.
	ExternalAddr fn.Option[lnwire.NetAddr]

	// Alias, Color and Features are announced for our node.
	Alias    lnwire.NodeAlias
	Color    color.RGBA
	Features lnwire.FeatureBits

	// KnownFeatures is the set of feature bits we understand.
	KnownFeatures map[lnwire.FeatureBit]string

	// AssumeChannelValid skips the authentication of channel
	// announcements and updates.
	AssumeChannelValid bool

	// RejectCacheSize is the number of signature failures we
	// remember.
	RejectCacheSize uint64

	// ReannounceInterval is the delay between two rebroadcasts of our own
	// gossip.
	ReannounceInterval time.Duration

	// DrainInterval is the delay between two flushes of the broadcast log.
	DrainInterval time.Duration

	// Clock drives both periodic tasks and our announcement timestamps.
	Clock clock.Clock
}

// LogStats summarises the broadcast side of the gossiper.
type LogStats struct {
	Positions      uint64 `json:"positions"`
	LiveEntries    int    `json:"live_entries"`
	NumPeers       int    `json:"num_peers"`
	RejectCacheLen int    `json:"reject_cache_len"`
}

// Snapshot is a consistent copy of the gossiper state.
type Snapshot struct {
	Nodes    []graph.Node
	Edges    []graph.ChannelEdge
	Stats    graph.NetworkStats
	LogStats LogStats
}

// Gossiper owns the channel graph, the broadcast log and the peer registry.
// Every access to them happens on a single event loop goroutine: inbound
// messages, local events, snapshots and both periodic tasks.
type Gossiper struct {
	started uint32 // To be used atomically.
	stopped uint32 // To be used atomically.

	cfg *Config

	graph     *graph.Graph
	bcast     *broadcast.Log
	peers     *peer.Registry
	processor *Processor
	producer  *netann.Producer

	requests chan func()

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a new Gossiper with an empty graph and broadcast log.
func New(cfg *Config) (*Gossiper, error) {
	if cfg.ReannounceInterval <= 0 {
		return nil, fmt.Errorf("reannounce interval must be positive")
	}
	if cfg.DrainInterval <= 0 {
		return nil, fmt.Errorf("drain interval must be positive")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	g := &Gossiper{
		cfg:      cfg,
		graph:    graph.New(),
		bcast:    broadcast.NewLog(),
		peers:    peer.NewRegistry(),
		requests: make(chan func()),
		quit:     make(chan struct{}),
	}

	g.processor = NewProcessor(&ProcessorConfig{
		Graph:              g.graph,
		Broadcaster:        g.bcast,
		AssumeChannelValid: cfg.AssumeChannelValid,
		FundingValidator:   cfg.FundingValidator,
		KnownFeatures:      cfg.KnownFeatures,
		RejectCacheSize:    cfg.RejectCacheSize,
	})

	g.producer = netann.NewProducer(&netann.ProducerConfig{
		Signer:       cfg.Signer,
		SelfKey:      cfg.SelfKey,
		TxLocator:    cfg.TxLocator,
		Policy:       cfg.Policy,
		ExternalAddr: cfg.ExternalAddr,
		Alias:        cfg.Alias,
		Color:        cfg.Color,
		Features:     cfg.Features,
		Clock:        cfg.Clock,
		Broadcaster:  g.bcast,
		Graph:        g.graph,
	})

	return g, nil
}

// Start launches the event loop and arms both periodic tasks.
func (g *Gossiper) Start() error {
	if !atomic.CompareAndSwapUint32(&g.started, 0, 1) {
		return nil
	}

	log.Infof("Gossiper starting: reannounce every %v, drain every %v",
		g.cfg.ReannounceInterval, g.cfg.DrainInterval)

	g.wg.Add(1)
	go g.eventLoop()

	return nil
}

// Stop halts the event loop and waits for it to exit.
func (g *Gossiper) Stop() error {
	if !atomic.CompareAndSwapUint32(&g.stopped, 0, 1) {
		return nil
	}

	log.Info("Gossiper shutting down...")
	defer log.Debug("Gossiper shutdown complete")

	close(g.quit)
	g.wg.Wait()

	return nil
}

// eventLoop serialises all work on the gossiper state. Each periodic task is
// re-armed only once its run has finished, so a slow run delays its own next
// run and nothing else.
func (g *Gossiper) eventLoop() {
	defer g.wg.Done()

	reannounce := g.cfg.Clock.TickAfter(g.cfg.ReannounceInterval)
	drain := g.cfg.Clock.TickAfter(g.cfg.DrainInterval)

	for {
		select {
		case req := <-g.requests:
			req()

		case <-reannounce:
			g.reannounce()
			reannounce = g.cfg.Clock.TickAfter(
				g.cfg.ReannounceInterval,
			)

		case <-drain:
			g.drainAll()
			drain = g.cfg.Clock.TickAfter(g.cfg.DrainInterval)

		case <-g.quit:
			return
		}
	}
}

// do runs f on the event loop and returns its error.
func (g *Gossiper) do(f func() error) error {
	if atomic.LoadUint32(&g.started) == 0 {
		return ErrGossiperNotStarted
	}

	errChan := make(chan error, 1)

	select {
	case g.requests <- func() { errChan <- f() }:
	case <-g.quit:
		return ErrGossiperShuttingDown
	}

	select {
	case err := <-errChan:
		return err
	case <-g.quit:
		return ErrGossiperShuttingDown
	}
}

// ProcessRemoteMessage validates and applies a raw gossip message received
// from a peer. Rejections are returned as *ErrRejected so the caller can act
// on ShouldPenalize.
func (g *Gossiper) ProcessRemoteMessage(raw []byte) error {
	return g.do(func() error {
		err := g.processor.ProcessMessage(raw)

		var rejected *ErrRejected
		if errors.As(err, &rejected) {
			log.Debugf("Dropped gossip: %v", rejected)
		}

		return err
	})
}

// AddPeer registers a peer connection in the given state.
func (g *Gossiper) AddPeer(conn peer.Conn, state peer.State) error {
	return g.do(func() error {
		_, err := g.peers.Add(conn, state)
		return err
	})
}

// SetPeerState moves a peer to a new lifecycle state.
func (g *Gossiper) SetPeerState(pub graph.Vertex, state peer.State) error {
	return g.do(func() error {
		return g.peers.SetState(pub, state)
	})
}

// RemovePeer forgets a peer.
func (g *Gossiper) RemovePeer(pub graph.Vertex) error {
	return g.do(func() error {
		return g.peers.Remove(pub)
	})
}

// OnLocalChannelReady records our channel with a peer and announces it, along
// with our node, right away instead of waiting for the next re-announcement.
func (g *Gossiper) OnLocalChannelReady(pub graph.Vertex,
	ch *netann.LocalChannel) error {

	if ch.LocalFundingKey.IsNone() {
		g.cfg.FundingKey.WhenSome(func(key [33]byte) {
			withKey := *ch
			withKey.LocalFundingKey = fn.Some(key)
			withKey.FundingKeyLoc = fn.Some(
				keychain.FundingKeyLocator,
			)
			ch = &withKey
		})
	}

	return g.do(func() error {
		if err := g.peers.SetChannel(pub, ch); err != nil {
			return err
		}

		ref, err := g.producer.AnnounceChannel(ch)
		if err != nil {
			return err
		}

		log.Infof("Announced new channel %v with peer %v", ref, pub)

		g.announceNode(g.peers.NumActiveChannels())

		return nil
	})
}

// DrainForPeer immediately sends every pending broadcast message to the
// given peer and returns the number sent.
func (g *Gossiper) DrainForPeer(pub graph.Vertex) (int, error) {
	var sent int
	err := g.do(func() error {
		p, ok := g.peers.Get(pub)
		if !ok {
			return fmt.Errorf("%w: %v", peer.ErrPeerNotFound, pub)
		}

		var err error
		sent, err = g.drainPeer(p)

		return err
	})

	return sent, err
}

// MessagesAfter returns the payloads a reader at cursor has not received yet,
// in log order, together with the cursor after them.
func (g *Gossiper) MessagesAfter(cursor uint64) ([][]byte, uint64, error) {
	var msgs [][]byte
	err := g.do(func() error {
		for {
			msg, next, ok := g.bcast.NextAfter(cursor)
			cursor = next
			if !ok {
				return nil
			}
			msgs = append(msgs, msg.Payload)
		}
	})

	return msgs, cursor, err
}

// Snapshot returns a copy of the graph and broadcast statistics.
func (g *Gossiper) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{}
	err := g.do(func() error {
		err := g.graph.ForEachNode(func(n *graph.Node) error {
			snap.Nodes = append(snap.Nodes, *n)
			return nil
		})
		if err != nil {
			return err
		}

		err = g.graph.ForEachEdge(func(e *graph.ChannelEdge) error {
			snap.Edges = append(snap.Edges, *e)
			return nil
		})
		if err != nil {
			return err
		}

		snap.Stats = g.graph.Stats()
		snap.LogStats = LogStats{
			Positions:      g.bcast.Len(),
			LiveEntries:    g.bcast.NumLive(),
			NumPeers:       g.peers.Len(),
			RejectCacheLen: g.processor.RejectCacheLen(),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// reannounce rebuilds our announcements for every channel with a peer in the
// normal state, and our node announcement if there was at least one.
func (g *Gossiper) reannounce() {
	var numChans int
	_ = g.peers.ForEachNormal(func(p *peer.Peer) error {
		p.Channel.WhenSome(func(ch *netann.LocalChannel) {
			_, err := g.producer.AnnounceChannel(ch)
			if err != nil {
				log.Errorf("Unable to reannounce channel with "+
					"%v: %v", p.PubKey(), err)
				return
			}
			numChans++
		})

		return nil
	})

	log.Debugf("Reannounced %d channels", numChans)

	if numChans > 0 {
		g.announceNode(numChans)
	}
}

// announceNode produces our node announcement, logging why it was skipped if
// it was.
func (g *Gossiper) announceNode(numChans int) {
	err := g.producer.AnnounceNode(numChans)
	switch {
	case errors.Is(err, netann.ErrNoExternalAddr),
		errors.Is(err, netann.ErrNoActiveChannels):

		log.Debugf("Not announcing node: %v", err)

	case err != nil:
		log.Errorf("Unable to announce node: %v", err)
	}
}

// drainAll flushes the broadcast log to every peer in the normal state.
func (g *Gossiper) drainAll() {
	var total int
	_ = g.peers.ForEachNormal(func(p *peer.Peer) error {
		sent, err := g.drainPeer(p)
		if err != nil {
			log.Warnf("Drain to %v stopped after %d messages: %v",
				p.PubKey(), sent, err)
		}
		total += sent

		return nil
	})

	if total > 0 {
		log.Debugf("Drained %d gossip messages", total)
	}
}

// drainPeer sends the peer every entry after its cursor. If a send fails the
// cursor stays at the failed entry, so the next drain starts there.
func (g *Gossiper) drainPeer(p *peer.Peer) (int, error) {
	var sent int
	for {
		msg, next, ok := g.bcast.NextAfter(p.Cursor)
		if !ok {
			p.Cursor = next
			return sent, nil
		}

		if err := p.Conn.SendMessage(msg.Payload); err != nil {
			return sent, fmt.Errorf("unable to send %v at position "+
				"%d: %w", msg.Type, msg.Index, err)
		}

		p.Cursor = next
		sent++
	}
}
