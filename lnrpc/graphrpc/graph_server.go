package graphrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ellemouton/lngossip/discovery"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/gorilla/mux"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// subServerName is the name used to identify the server in logs.
	subServerName = "GraphRPC"

	// shutdownTimeout is how long Stop waits for in-flight requests.
	shutdownTimeout = 5 * time.Second
)

// SnapshotSource provides consistent copies of the gossip state.
type SnapshotSource interface {
	// Snapshot returns a copy of the graph and broadcast statistics.
	Snapshot() (*discovery.Snapshot, error)
}

// Config holds the settings of the Server.
type Config struct {
	// ListenAddr is the TCP address the server listens on.
	ListenAddr string

	// Source is where the served state is read from.
	Source SnapshotSource
}

// Server is a read-only JSON view of the channel graph and the broadcast log.
type Server struct {
	started  atomic.Bool
	shutdown atomic.Bool

	cfg *Config

	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener

	wg sync.WaitGroup
}

// New returns a new Server with its routes registered.
func New(cfg *Config) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/nodes", s.listNodes).Methods(http.MethodGet)
	api.HandleFunc("/nodes/{pubkey}", s.getNode).Methods(http.MethodGet)
	api.HandleFunc("/channels", s.listChannels).Methods(http.MethodGet)
	api.HandleFunc("/channels/{chanref}", s.getChannel).
		Methods(http.MethodGet)
	api.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	s.router.Use(s.loggingMiddleware)

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening and serving requests.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("unable to listen on %v: %w",
			s.cfg.ListenAddr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Infof("%s listening on %v", subServerName, listener.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("%s stopped serving: %v", subServerName, err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}

	log.Infof("%s shutting down...", subServerName)

	ctx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()

	return err
}

// Name returns a unique string representation of the server.
func (s *Server) Name() string {
	return subServerName
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Node is the JSON form of a graph node.
type Node struct {
	PubKey          string  `json:"pub_key"`
	Alias           string  `json:"alias,omitempty"`
	Color           string  `json:"color"`
	Address         string  `json:"address,omitempty"`
	LastUpdate      *uint32 `json:"last_update,omitempty"`
	HasAnnouncement bool    `json:"has_announcement"`
}

// Policy is the JSON form of the routing policy of an edge.
type Policy struct {
	TimeLockDelta             uint16 `json:"time_lock_delta"`
	MinHTLC                   uint32 `json:"min_htlc_msat"`
	FeeBaseMSat               uint32 `json:"fee_base_msat"`
	FeeProportionalMillionths uint32 `json:"fee_rate_milli_msat"`
}

// Edge is the JSON form of a directed channel edge.
type Edge struct {
	ChannelRef  string  `json:"channel_ref"`
	Direction   uint8   `json:"direction"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Active      bool    `json:"active"`
	LastUpdate  *uint32 `json:"last_update,omitempty"`
	Policy      *Policy `json:"policy,omitempty"`
}

// Stats is the JSON form of the graph and broadcast statistics.
type Stats struct {
	Graph graph.NetworkStats `json:"graph"`
	Log   discovery.LogStats `json:"broadcast_log"`
}

func optionalTimestamp(last fn.Option[uint32]) *uint32 {
	if last.IsNone() {
		return nil
	}
	ts := last.UnwrapOr(0)

	return &ts
}

func marshalNode(n graph.Node) Node {
	resp := Node{
		PubKey: n.PubKeyBytes.String(),
		Color: fmt.Sprintf("#%02x%02x%02x", n.Color.R, n.Color.G,
			n.Color.B),
		LastUpdate:      optionalTimestamp(n.LastUpdate),
		HasAnnouncement: n.HaveAnnouncement(),
	}
	if n.HaveAnnouncement() {
		resp.Alias = n.Alias.String()
	}
	n.Address.WhenSome(func(a lnwire.NetAddr) {
		resp.Address = a.String()
	})

	return resp
}

func marshalEdge(e graph.ChannelEdge) Edge {
	resp := Edge{
		ChannelRef:  e.ChannelRef.String(),
		Direction:   e.Direction,
		Source:      e.Source.String(),
		Destination: e.Destination.String(),
		Active:      e.Active,
		LastUpdate:  optionalTimestamp(e.LastUpdate),
	}
	if e.Active {
		p := e.Policy
		resp.Policy = &Policy{
			TimeLockDelta:             p.TimeLockDelta,
			MinHTLC:                   p.MinHTLC,
			FeeBaseMSat:               p.FeeBaseMSat,
			FeeProportionalMillionths: p.FeeProportionalMillionths,
		}
	}

	return resp
}

func (s *Server) snapshot(w http.ResponseWriter) (*discovery.Snapshot, bool) {
	snap, err := s.cfg.Source.Snapshot()
	if err != nil {
		log.Errorf("Unable to take graph snapshot: %v", err)
		writeError(w, "graph unavailable", http.StatusServiceUnavailable)

		return nil, false
	}

	return snap, true
}

func (s *Server) listNodes(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	nodes := make([]Node, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodes = append(nodes, marshalNode(n))
	}

	writeJSON(w, nodes)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	vertex, err := graph.NewVertexFromStr(mux.Vars(r)["pubkey"])
	if err != nil {
		writeError(w, "invalid pubkey", http.StatusBadRequest)
		return
	}

	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	for _, n := range snap.Nodes {
		if n.PubKeyBytes == vertex {
			writeJSON(w, marshalNode(n))
			return
		}
	}

	writeError(w, "node not found", http.StatusNotFound)
}

func (s *Server) listChannels(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	edges := make([]Edge, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		edges = append(edges, marshalEdge(e))
	}

	writeJSON(w, edges)
}

func (s *Server) getChannel(w http.ResponseWriter, r *http.Request) {
	ref, err := lnwire.ParseChannelRef(mux.Vars(r)["chanref"])
	if err != nil {
		writeError(w, "invalid channel reference",
			http.StatusBadRequest)
		return
	}

	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	var edges []Edge
	for _, e := range snap.Edges {
		if e.ChannelRef == ref {
			edges = append(edges, marshalEdge(e))
		}
	}
	if len(edges) == 0 {
		writeError(w, "channel not found", http.StatusNotFound)
		return
	}

	writeJSON(w, edges)
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	writeJSON(w, Stats{
		Graph: snap.Stats,
		Log:   snap.LogStats,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Unable to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(map[string]string{"error": msg})
	if err != nil {
		log.Errorf("Unable to encode error response: %v", err)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Tracef("%s %s served in %v", r.Method, r.URL.Path,
			time.Since(start))
	})
}
