// Package node implements the Chord ring protocol (spec §4): join,
// find_successor, stabilization, finger maintenance, and successor
// failover, wired on top of the rpc package's framed TCP transport.
package node

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ringjobs/ringjobs/ring"
	"github.com/ringjobs/ringjobs/rpc"
	"github.com/ringjobs/ringjobs/store"
)

// Node is a single member of the Chord ring: its identity, its view of the
// ring topology (state), its RPC client/server pair, and the local key
// store it owns. Every exported method is safe for concurrent use.
type Node struct {
	cfg    Config
	logger zerolog.Logger

	state      *state
	client     *rpc.Client
	server     *rpc.Server
	localStore *store.Store

	listener  net.Listener
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewNode derives this node's identifier from endpoint (spec §3: "a node's
// identifier is hash(endpoint)") and wires up the RPC server's handlers.
// Call Serve to start accepting connections and StartDaemons to begin
// stabilization.
func NewNode(cfg Config, endpoint string, logger zerolog.Logger) (*Node, error) {
	id, err := ring.HashID([]byte(endpoint), cfg.HashWidthBytes)
	if err != nil {
		return nil, err
	}
	self := PeerHandle{ID: id, Endpoint: endpoint}

	n := &Node{
		cfg:        cfg,
		logger:     logger.With().Str("component", "node").Str("self", id.String()).Logger(),
		state:      newState(self, cfg.SuccessorListSize, cfg.widthBits()),
		client:     rpc.NewClient(logger),
		server:     rpc.NewServer(logger),
		localStore: store.New(id),
		stopCh:     make(chan struct{}),
	}
	n.registerHandlers()
	return n, nil
}

// Self returns this node's identity.
func (n *Node) Self() PeerHandle {
	return n.state.Self()
}

// Store exposes the local key-value store, for the job/API layers.
func (n *Node) Store() *store.Store {
	return n.localStore
}

// Predecessor returns the current predecessor, if known.
func (n *Node) Predecessor() (PeerHandle, bool) {
	return n.state.Predecessor()
}

// SuccessorList returns a copy of the current successor list.
func (n *Node) SuccessorList() []PeerHandle {
	return n.state.SuccessorList()
}

// Fingers returns a copy of the current finger table.
func (n *Node) Fingers() []PeerHandle {
	return n.state.Fingers()
}

// owns reports whether key falls in this node's ownership arc
// (predecessor.id, self.id], per spec §3. A node with no known predecessor
// (singleton ring) owns every key.
func (n *Node) owns(key ring.ID) bool {
	pred, ok := n.state.Predecessor()
	if !ok {
		return true
	}
	return ring.Between(key, pred.ID, n.Self().ID, true)
}

// Owns exposes the ownership check for callers outside this package (the
// job coordinator decides locally vs. forward routing with it).
func (n *Node) Owns(key ring.ID) bool {
	return n.owns(key)
}

// Config returns the node's Chord-layer configuration.
func (n *Node) Config() Config {
	return n.cfg
}

// Logger returns the node's component logger, for layers built on top that
// want to nest under the same sink.
func (n *Node) Logger() zerolog.Logger {
	return n.logger
}

// Handle registers an additional RPC kind on this node's server, for
// layers above the Chord protocol (the job coordinator's submit_job,
// job_status, and list_jobs kinds) that share the same listener and
// connection pool.
func (n *Node) Handle(kind byte, h rpc.Handler) {
	n.server.Handle(kind, h)
}

// CallPeer issues an arbitrary RPC kind against peer using this node's
// connection pool and RPC timeout.
func (n *Node) CallPeer(ctx context.Context, peer PeerHandle, kind byte, body any) ([]byte, error) {
	return n.client.Call(ctx, peer.Endpoint, kind, body, n.cfg.RPCTimeout)
}

// RemotePut writes a single key/value/version directly to peer's local
// store via the put RPC (spec §4.5), used by the job coordinator to
// relocate a job record when ownership changes mid-execution (spec §4.6).
func (n *Node) RemotePut(ctx context.Context, peer PeerHandle, key ring.ID, value []byte, version uint64) error {
	_, err := n.client.Call(ctx, peer.Endpoint, rpc.KindPut, putRequest{Key: key.String(), Value: value, Version: version}, n.cfg.RPCTimeout)
	return err
}

// RemoteGet reads a single key from peer's local store via the get RPC.
func (n *Node) RemoteGet(ctx context.Context, peer PeerHandle, key ring.ID) ([]byte, bool, error) {
	body, err := n.client.Call(ctx, peer.Endpoint, rpc.KindGet, getRequest{Key: key.String()}, n.cfg.RPCTimeout)
	if err != nil {
		return nil, false, err
	}
	var reply getReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, false, err
	}
	return reply.Value, reply.Found, nil
}

// Serve binds l and begins accepting RPC connections. It blocks until
// Close is called or l stops accepting, mirroring rpc.Server.Serve.
func (n *Node) Serve(l net.Listener) error {
	n.listener = l
	return n.server.Serve(l)
}

// Close stops the daemons, the RPC server, and the RPC client's pooled
// connections. Safe to call more than once (e.g. a test killing a peer
// explicitly, with a deferred cleanup also calling Close).
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.stopCh)
		if serr := n.server.Close(); serr != nil {
			err = serr
			return
		}
		err = n.client.Close()
	})
	return err
}

// Ping checks whether peer is reachable within the configured RPC timeout.
func (n *Node) Ping(ctx context.Context, peer PeerHandle) bool {
	return n.callPing(ctx, peer) == nil
}
