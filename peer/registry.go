package peer

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/netann"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrPeerExists is returned when a peer is added twice.
	ErrPeerExists = errors.New("peer already registered")

	// ErrPeerNotFound is returned when an operation refers to an unknown
	// peer.
	ErrPeerNotFound = errors.New("peer not found")
)

// State is the lifecycle state of a peer connection.
type State uint8

const (
	// StatePending is a connection that is not yet established. No gossip
	// is exchanged in this state.
	StatePending State = iota

	// StateNormal is an established connection. Gossip is only sent to
	// peers in this state.
	StateNormal

	// StateClosing is a connection being torn down.
	StateClosing
)

// String returns a human readable name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateNormal:
		return "normal"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("<unknown state %d>", uint8(s))
	}
}

// Conn is the transport of a single peer.
type Conn interface {
	// PubKey returns the identity key of the remote peer.
	PubKey() [33]byte

	// SendMessage queues a raw wire message for delivery to the peer.
	SendMessage(raw []byte) error
}

// Peer holds everything the gossiper tracks about a connected peer.
type Peer struct {
	// Conn is the transport to the peer.
	Conn Conn

	// State is the lifecycle state of the connection.
	State State

	// Cursor is the broadcast log position of the next message to send.
	Cursor uint64

	// Channel is our channel with the peer, once it is ready to be
	// announced.
	Channel fn.Option[*netann.LocalChannel]
}

// PubKey returns the identity key of the peer.
func (p *Peer) PubKey() graph.Vertex {
	return graph.Vertex(p.Conn.PubKey())
}

// Registry tracks the connected peers.
//
// NOTE: Registry does no locking of its own. It must only ever be driven from
// a single goroutine.
type Registry struct {
	peers map[graph.Vertex]*Peer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[graph.Vertex]*Peer),
	}
}

// Add registers a new peer in the given state. The peer starts at cursor
// zero, so it is sent the current state of every live broadcast entry.
func (r *Registry) Add(conn Conn, state State) (*Peer, error) {
	key := graph.Vertex(conn.PubKey())
	if _, ok := r.peers[key]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPeerExists, key)
	}

	p := &Peer{
		Conn:    conn,
		State:   state,
		Channel: fn.None[*netann.LocalChannel](),
	}
	r.peers[key] = p

	log.Debugf("Added peer %v in state %v", key, state)

	return p, nil
}

// Remove forgets a peer.
func (r *Registry) Remove(key graph.Vertex) error {
	if _, ok := r.peers[key]; !ok {
		return fmt.Errorf("%w: %v", ErrPeerNotFound, key)
	}
	delete(r.peers, key)

	log.Debugf("Removed peer %v", key)

	return nil
}

// Get returns the peer with the given identity.
func (r *Registry) Get(key graph.Vertex) (*Peer, bool) {
	p, ok := r.peers[key]
	return p, ok
}

// SetState moves a peer to a new lifecycle state.
func (r *Registry) SetState(key graph.Vertex, state State) error {
	p, ok := r.peers[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrPeerNotFound, key)
	}

	log.Debugf("Peer %v: %v -> %v", key, p.State, state)
	p.State = state

	return nil
}

// SetChannel records our channel with a peer.
func (r *Registry) SetChannel(key graph.Vertex,
	ch *netann.LocalChannel) error {

	p, ok := r.peers[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrPeerNotFound, key)
	}
	p.Channel = fn.Some(ch)

	return nil
}

// ForEachNormal calls cb for every peer in the normal state, ordered by
// identity. An error returned by cb stops the iteration and is passed
// through.
func (r *Registry) ForEachNormal(cb func(*Peer) error) error {
	keys := make([]graph.Vertex, 0, len(r.peers))
	for k, p := range r.peers {
		if p.State == StateNormal {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	for _, k := range keys {
		if err := cb(r.peers[k]); err != nil {
			return err
		}
	}

	return nil
}

// NumActiveChannels returns the number of peers in the normal state that we
// have a channel with.
func (r *Registry) NumActiveChannels() int {
	var n int
	for _, p := range r.peers {
		if p.State == StateNormal && p.Channel.IsSome() {
			n++
		}
	}

	return n
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	return len(r.peers)
}
