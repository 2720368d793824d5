package graph

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ellemouton/lngossip/lnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNodeNotFound is returned when a node is expected to exist in the
	// graph but doesn't.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when a directed edge is expected to
	// exist in the graph but doesn't.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrOutdated is returned when an update carries a timestamp that is
	// not newer than the one already stored.
	ErrOutdated = errors.New("update is not newer than the stored one")
)

// Graph is the authoritative in-memory view of the channel graph: a set of
// nodes keyed by identity and a set of directed edges keyed by channel
// reference and direction.
//
// NOTE: Graph does no locking of its own. It must only ever be driven from a
// single goroutine.
type Graph struct {
	nodes map[Vertex]*Node
	edges map[edgeKey]*ChannelEdge
}

// New creates an empty Graph.
func New(options ...Option) *Graph {
	opts := defaultGraphOptions()
	for _, o := range options {
		o(opts)
	}

	return &Graph{
		nodes: make(map[Vertex]*Node, opts.preAllocNumNodes),
		edges: make(map[edgeKey]*ChannelEdge, opts.preAllocNumNodes),
	}
}

// GetOrCreateNode returns the node with the given identity, creating a bare
// record for it first if it isn't known yet.
func (g *Graph) GetOrCreateNode(v Vertex) *Node {
	if node, ok := g.nodes[v]; ok {
		return node
	}

	node := &Node{PubKeyBytes: v}
	g.nodes[v] = node

	log.Tracef("Created node %v", v)

	return node
}

// Node looks up a node without creating it.
func (g *Graph) Node(v Vertex) (*Node, bool) {
	node, ok := g.nodes[v]
	return node, ok
}

// AddChannelDirection creates the directed edge from src to dst for the given
// channel reference and direction, unless it already exists. Both endpoints
// are created as bare nodes if needed. The return value reports whether the
// call changed the graph.
func (g *Graph) AddChannelDirection(src, dst Vertex, direction uint8,
	ref lnwire.ChannelRef, rawAnn []byte) bool {

	key := edgeKey{ref: ref, direction: direction}
	if _, ok := g.edges[key]; ok {
		return false
	}

	g.GetOrCreateNode(src)
	g.GetOrCreateNode(dst)

	g.edges[key] = &ChannelEdge{
		ChannelRef:   ref,
		Direction:    direction,
		Source:       src,
		Destination:  dst,
		LastUpdate:   fn.None[uint32](),
		Announcement: bytes.Clone(rawAnn),
	}

	log.Debugf("Added channel %v direction %d: %v -> %v", ref, direction,
		src, dst)

	return true
}

// Edge looks up the directed edge for the channel reference and direction.
func (g *Graph) Edge(ref lnwire.ChannelRef, direction uint8) (*ChannelEdge,
	bool) {

	edge, ok := g.edges[edgeKey{ref: ref, direction: direction}]
	return edge, ok
}

// UpdateEdgePolicy replaces the routing policy, timestamp and raw update of a
// directed edge and marks it active. The timestamp must be newer than the one
// of the last update.
func (g *Graph) UpdateEdgePolicy(ref lnwire.ChannelRef, direction uint8,
	timestamp uint32, policy EdgePolicy, rawUpdate []byte) error {

	edge, ok := g.Edge(ref, direction)
	if !ok {
		return ErrEdgeNotFound
	}
	if !isNewer(edge.LastUpdate, timestamp) {
		return fmt.Errorf("%w: channel %v direction %d at %d",
			ErrOutdated, ref, direction, timestamp)
	}

	edge.LastUpdate = fn.Some(timestamp)
	edge.Policy = policy
	edge.Active = true
	edge.ChannelUpdate = bytes.Clone(rawUpdate)

	return nil
}

// UpdateNode replaces the announced attributes of a known node in one step.
// The timestamp must be newer than the one of the last update.
func (g *Graph) UpdateNode(v Vertex, upd NodeUpdate) error {
	node, ok := g.nodes[v]
	if !ok {
		return ErrNodeNotFound
	}
	if !isNewer(node.LastUpdate, upd.Timestamp) {
		return fmt.Errorf("%w: node %v at %d", ErrOutdated, v,
			upd.Timestamp)
	}

	node.LastUpdate = fn.Some(upd.Timestamp)
	node.Address = upd.Address
	node.Color = upd.Color
	node.Alias = upd.Alias
	node.Announcement = bytes.Clone(upd.Announcement)

	return nil
}

// isNewer reports whether ts may follow last. Anything follows a record that
// was never updated.
func isNewer(last fn.Option[uint32], ts uint32) bool {
	newer := true
	last.WhenSome(func(l uint32) {
		newer = ts > l
	})

	return newer
}

// ForEachNode calls cb for every node in the graph, ordered by identity. An
// error returned by cb stops the iteration and is passed through.
func (g *Graph) ForEachNode(cb func(*Node) error) error {
	vertices := make([]Vertex, 0, len(g.nodes))
	for v := range g.nodes {
		vertices = append(vertices, v)
	}
	sort.Slice(vertices, func(i, j int) bool {
		return bytes.Compare(vertices[i][:], vertices[j][:]) < 0
	})

	for _, v := range vertices {
		if err := cb(g.nodes[v]); err != nil {
			return err
		}
	}

	return nil
}

// ForEachEdge calls cb for every directed edge, ordered by channel reference
// and then direction. An error returned by cb stops the iteration and is
// passed through.
func (g *Graph) ForEachEdge(cb func(*ChannelEdge) error) error {
	keys := make([]edgeKey, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i].ref.Bytes(), keys[j].ref.Bytes()
		if c := bytes.Compare(a[:], b[:]); c != 0 {
			return c < 0
		}
		return keys[i].direction < keys[j].direction
	})

	for _, k := range keys {
		if err := cb(g.edges[k]); err != nil {
			return err
		}
	}

	return nil
}

// NetworkStats summarises the contents of the graph.
type NetworkStats struct {
	NumNodes          int `json:"num_nodes"`
	NumAnnouncedNodes int `json:"num_announced_nodes"`
	NumChannels       int `json:"num_channels"`
	NumEdges          int `json:"num_edges"`
	NumActiveEdges    int `json:"num_active_edges"`
}

// Stats returns a summary of the graph.
func (g *Graph) Stats() NetworkStats {
	stats := NetworkStats{
		NumNodes: len(g.nodes),
		NumEdges: len(g.edges),
	}

	for _, n := range g.nodes {
		if n.HaveAnnouncement() {
			stats.NumAnnouncedNodes++
		}
	}

	channels := make(map[lnwire.ChannelRef]struct{}, len(g.edges)/2)
	for k, e := range g.edges {
		channels[k.ref] = struct{}{}
		if e.Active {
			stats.NumActiveEdges++
		}
	}
	stats.NumChannels = len(channels)

	return stats
}
