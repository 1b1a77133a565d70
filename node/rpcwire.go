package node

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/ring"
	"github.com/ringjobs/ringjobs/rpc"
	"github.com/ringjobs/ringjobs/store"
)

// Wire body shapes for every Chord RPC kind (spec §6). Each is plain JSON;
// the frame layer only cares about the kind byte and an opaque payload.

type findSuccessorRequest struct {
	ID string `json:"id"`
}

type findSuccessorReply struct {
	Successor wirePeer `json:"successor"`
}

type getPredecessorReply struct {
	Predecessor wirePeer `json:"predecessor"` // zero value if none
}

type getSuccessorListReply struct {
	Successors []wirePeer `json:"successors"`
}

type notifyRequest struct {
	Candidate wirePeer `json:"candidate"`
}

type putRequest struct {
	Key     string `json:"key"`
	Value   []byte `json:"value"`
	Version uint64 `json:"version"`
}

type getRequest struct {
	Key string `json:"key"`
}

type getReply struct {
	Found   bool   `json:"found"`
	Value   []byte `json:"value"`
	Version uint64 `json:"version"`
}

type transferRangeRequest struct {
	Records []wireRecord `json:"records"`
}

type wireRecord struct {
	Key     string `json:"key"`
	Value   []byte `json:"value"`
	Version uint64 `json:"version"`
}

func toWireRecord(r store.Record) wireRecord {
	return wireRecord{Key: r.Key.String(), Value: r.Value, Version: r.Version}
}

func parseID(hexStr string) (ring.ID, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, xerrors.Errorf("node: decode id %q: %w", hexStr, err)
	}
	return ring.ID(raw), nil
}

func jsonErr(v any, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("node: encode reply: %w", err)
	}
	return b, nil
}

// registerHandlers wires every Chord RPC kind into n.server. Called once
// from NewNode, mirroring the teacher's pattern of binding message types to
// callbacks at construction time.
func (n *Node) registerHandlers() {
	n.server.Handle(rpc.KindPing, n.handlePing)
	n.server.Handle(rpc.KindFindSuccessor, n.handleFindSuccessor)
	n.server.Handle(rpc.KindGetPredecessor, n.handleGetPredecessor)
	n.server.Handle(rpc.KindGetSuccessorList, n.handleGetSuccessorList)
	n.server.Handle(rpc.KindNotify, n.handleNotify)
	n.server.Handle(rpc.KindPut, n.handlePut)
	n.server.Handle(rpc.KindGet, n.handleGet)
	n.server.Handle(rpc.KindTransferRange, n.handleTransferRange)
}

func (n *Node) handlePing(ctx context.Context, body []byte) ([]byte, error) {
	return []byte("{}"), nil
}

func (n *Node) handleFindSuccessor(ctx context.Context, body []byte) ([]byte, error) {
	var req findSuccessorRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("node: decode find_successor request: %w", err)
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	successor, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonErr(findSuccessorReply{Successor: toWire(successor)}, nil)
}

func (n *Node) handleGetPredecessor(ctx context.Context, body []byte) ([]byte, error) {
	pred, _ := n.state.Predecessor()
	return jsonErr(getPredecessorReply{Predecessor: toWire(pred)}, nil)
}

func (n *Node) handleGetSuccessorList(ctx context.Context, body []byte) ([]byte, error) {
	list := n.state.SuccessorList()
	wire := make([]wirePeer, len(list))
	for i, p := range list {
		wire[i] = toWire(p)
	}
	return jsonErr(getSuccessorListReply{Successors: wire}, nil)
}

func (n *Node) handleNotify(ctx context.Context, body []byte) ([]byte, error) {
	var req notifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("node: decode notify request: %w", err)
	}
	candidate, err := fromWire(req.Candidate)
	if err != nil {
		return nil, err
	}
	n.Notify(candidate)
	return []byte("{}"), nil
}

func (n *Node) handlePut(ctx context.Context, body []byte) ([]byte, error) {
	var req putRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("node: decode put request: %w", err)
	}
	key, err := parseID(req.Key)
	if err != nil {
		return nil, err
	}
	if !n.owns(key) {
		return nil, &rpc.RemoteError{Code: errCodeNotOwner, Message: "key not owned by this node"}
	}
	if req.Version == 0 {
		n.localStore.LocalPut(key, req.Value)
	} else {
		n.localStore.AcceptVersioned(key, req.Value, req.Version)
	}
	return []byte("{}"), nil
}

func (n *Node) handleGet(ctx context.Context, body []byte) ([]byte, error) {
	var req getRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("node: decode get request: %w", err)
	}
	key, err := parseID(req.Key)
	if err != nil {
		return nil, err
	}
	rec, ok := n.localStore.LocalGet(key)
	if !ok {
		return jsonErr(getReply{Found: false}, nil)
	}
	return jsonErr(getReply{Found: true, Value: rec.Value, Version: rec.Version}, nil)
}

func (n *Node) handleTransferRange(ctx context.Context, body []byte) ([]byte, error) {
	var req transferRangeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("node: decode transfer_range request: %w", err)
	}
	for _, wr := range req.Records {
		key, err := parseID(wr.Key)
		if err != nil {
			continue
		}
		n.localStore.AcceptVersioned(key, wr.Value, wr.Version)
	}
	return []byte("{}"), nil
}

// errCodeNotOwner is the RemoteError.Code a peer returns when asked to put
// a key outside its (predecessor, self] ownership arc (spec §4.5).
const errCodeNotOwner = 1

// --- client-side call helpers, used by protocol.go ---

func (n *Node) callPing(ctx context.Context, peer PeerHandle) error {
	_, err := n.client.Call(ctx, peer.Endpoint, rpc.KindPing, struct{}{}, n.cfg.RPCTimeout)
	return err
}

func (n *Node) callFindSuccessor(ctx context.Context, peer PeerHandle, id ring.ID) (PeerHandle, error) {
	body, err := n.client.Call(ctx, peer.Endpoint, rpc.KindFindSuccessor, findSuccessorRequest{ID: id.String()}, n.cfg.RPCTimeout)
	if err != nil {
		return PeerHandle{}, err
	}
	var reply findSuccessorReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return PeerHandle{}, xerrors.Errorf("node: decode find_successor reply: %w", err)
	}
	return fromWire(reply.Successor)
}

func (n *Node) callGetPredecessor(ctx context.Context, peer PeerHandle) (PeerHandle, error) {
	body, err := n.client.Call(ctx, peer.Endpoint, rpc.KindGetPredecessor, struct{}{}, n.cfg.RPCTimeout)
	if err != nil {
		return PeerHandle{}, err
	}
	var reply getPredecessorReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return PeerHandle{}, xerrors.Errorf("node: decode get_predecessor reply: %w", err)
	}
	return fromWire(reply.Predecessor)
}

func (n *Node) callGetSuccessorList(ctx context.Context, peer PeerHandle) ([]PeerHandle, error) {
	body, err := n.client.Call(ctx, peer.Endpoint, rpc.KindGetSuccessorList, struct{}{}, n.cfg.RPCTimeout)
	if err != nil {
		return nil, err
	}
	var reply getSuccessorListReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, xerrors.Errorf("node: decode get_successor_list reply: %w", err)
	}
	out := make([]PeerHandle, 0, len(reply.Successors))
	for _, w := range reply.Successors {
		p, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (n *Node) callNotify(ctx context.Context, peer PeerHandle, candidate PeerHandle) error {
	_, err := n.client.Call(ctx, peer.Endpoint, rpc.KindNotify, notifyRequest{Candidate: toWire(candidate)}, n.cfg.RPCTimeout)
	return err
}

// callTransferRange hands off records to peer, used during stabilization
// when the predecessor moves forward and this node sheds keys it no longer
// owns (spec §4.5).
func (n *Node) callTransferRange(ctx context.Context, peer PeerHandle, records []store.Record) error {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = toWireRecord(r)
	}
	_, err := n.client.Call(ctx, peer.Endpoint, rpc.KindTransferRange, transferRangeRequest{Records: wire}, n.cfg.RPCTimeout)
	return err
}
