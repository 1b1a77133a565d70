package node

import (
	"context"
	"errors"
	"time"

	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/ring"
	"github.com/ringjobs/ringjobs/rpc"
)

// maxFindSuccessorHops caps how many candidate peers a single FindSuccessor
// call tries in turn when a hop fails with Unreachable or Timeout; the first
// hop that answers resolves the rest of the lookup remotely. The
// fix-fingers daemon also scales its per-round deadline by it.
const maxFindSuccessorHops = 64

// Join attaches this node to the ring reachable through bootstrap. An empty
// bootstrap endpoint forms a fresh singleton ring (spec §4.4 step 1).
func (n *Node) Join(ctx context.Context, bootstrap string) error {
	if bootstrap == "" || bootstrap == n.Self().Endpoint {
		n.state.CollapseToSingleton()
		n.logger.Info().Msg("formed new ring")
		return nil
	}

	boot := PeerHandle{Endpoint: bootstrap}
	successor, err := n.callFindSuccessor(ctx, boot, n.Self().ID)
	for attempt := 0; err != nil; attempt++ {
		if n.cfg.FormSingletonOnBootstrapFailure {
			n.state.CollapseToSingleton()
			n.logger.Warn().Err(err).Str("bootstrap", bootstrap).Msg("bootstrap unreachable, formed new ring")
			return nil
		}
		if attempt >= n.cfg.JoinRetries {
			return xerrors.Errorf("node: join via %s: %w", bootstrap, err)
		}
		time.Sleep(n.cfg.JoinRetryBackoff)
		successor, err = n.callFindSuccessor(ctx, boot, n.Self().ID)
	}

	fetched, err := n.callGetSuccessorList(ctx, successor)
	if err != nil {
		// The successor itself just answered find_successor, so treat a
		// failure to fetch its list as non-fatal: we still have a valid
		// primary successor and stabilization will fill the rest in.
		fetched = nil
	}
	n.state.SetSuccessorList(successor, fetched)
	n.state.ClearPredecessor()

	n.logger.Info().Str("successor", successor.ID.String()).Msg("joined ring")
	return nil
}

// FindSuccessor resolves the peer responsible for id, per spec §4.4. It
// first checks this node's own primary-successor arc, then chases
// closest-preceding-finger hops remotely, falling back to the next-closer
// finger on an Unreachable hop.
func (n *Node) FindSuccessor(ctx context.Context, id ring.ID) (PeerHandle, error) {
	self := n.Self()
	primary := n.state.PrimarySuccessor()
	if ring.Between(id, self.ID, primary.ID, true) {
		return primary, nil
	}

	next := n.closestPrecedingFinger(id)
	if next.Equal(self) {
		// No peer known that's any closer; we are authoritative for id as
		// far as our own view of the ring goes.
		return primary, nil
	}

	for hop := 0; hop < maxFindSuccessorHops; hop++ {
		reply, err := n.callFindSuccessor(ctx, next, id)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, rpc.ErrUnreachable) && !errors.Is(err, rpc.ErrTimeout) {
			return PeerHandle{}, xerrors.Errorf("node: find_successor(%s) via %s: %w", id, next.Endpoint, err)
		}
		next = n.nextCloserFinger(next, id)
		if next.Equal(self) {
			return PeerHandle{}, ErrLookupExhausted
		}
	}
	return PeerHandle{}, ErrLookupExhausted
}

// closestPrecedingFinger scans the finger table and successor list from
// the widest reach down to the narrowest, returning the first peer whose
// id lies in the open arc (self.id, id). Falls back to self (spec §4.4).
func (n *Node) closestPrecedingFinger(id ring.ID) PeerHandle {
	self := n.Self()
	fingers := n.state.Fingers()
	for i := len(fingers) - 1; i >= 0; i-- {
		p := fingers[i]
		if p.IsZero() || p.Equal(self) {
			continue
		}
		if ring.Between(p.ID, self.ID, id, false) {
			return p
		}
	}
	successors := n.state.SuccessorList()
	for i := len(successors) - 1; i >= 0; i-- {
		p := successors[i]
		if p.IsZero() || p.Equal(self) {
			continue
		}
		if ring.Between(p.ID, self.ID, id, false) {
			return p
		}
	}
	return self
}

// nextCloserFinger returns the next candidate strictly closer to self than
// failed, used when a find_successor hop comes back Unreachable (spec
// §4.4: "try the next-closer finger").
func (n *Node) nextCloserFinger(failed PeerHandle, id ring.ID) PeerHandle {
	self := n.Self()
	candidates := append(append([]PeerHandle{}, n.state.Fingers()...), n.state.SuccessorList()...)
	best := self
	for _, p := range candidates {
		if p.IsZero() || p.Equal(self) || p.Equal(failed) {
			continue
		}
		if !ring.Between(p.ID, self.ID, failed.ID, false) {
			continue
		}
		if best.Equal(self) || ring.Between(best.ID, self.ID, p.ID, false) {
			best = p
		}
	}
	return best
}

// Notify handles a peer telling us it might be our predecessor (spec
// §4.4). On an accepted change, keys now owned by candidate are handed
// off.
func (n *Node) Notify(candidate PeerHandle) {
	self := n.Self()
	if candidate.Equal(self) {
		return
	}
	pred, havePred := n.state.Predecessor()
	accept := !havePred || ring.Between(candidate.ID, pred.ID, self.ID, false)
	if !accept {
		return
	}
	oldPred := pred
	n.state.SetPredecessor(candidate)

	// With no previous predecessor, the keys candidate now owns are those
	// outside our new arc (candidate.id, self.id], i.e. in (self.id,
	// candidate.id].
	lowExclusive := self.ID
	if havePred {
		lowExclusive = oldPred.ID
	}
	n.handoff(lowExclusive, candidate)
}

// handoff transfers every locally held key in (lowExclusive, candidate.id]
// to candidate, deleting them locally only once the transfer RPC succeeds
// (spec §4.5).
func (n *Node) handoff(lowExclusive ring.ID, candidate PeerHandle) {
	records := n.localStore.KeysInArc(lowExclusive, candidate.ID)
	if len(records) == 0 {
		return
	}
	ctx, cancel := n.rpcContext()
	defer cancel()
	if err := n.callTransferRange(ctx, candidate, records); err != nil {
		n.logger.Warn().Err(err).Str("peer", candidate.ID.String()).Int("count", len(records)).Msg("handoff failed")
		return
	}
	keys := make([]ring.ID, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	n.localStore.DeleteKeys(keys)
	n.logger.Debug().Str("peer", candidate.ID.String()).Int("count", len(records)).Msg("handed off keys")
}

// Stabilize runs one round of the periodic stabilization protocol (spec
// §4.4).
func (n *Node) Stabilize(ctx context.Context) {
	primary := n.state.PrimarySuccessor()
	self := n.Self()

	var x PeerHandle
	if primary.Equal(self) {
		// Our successor is ourselves, so its predecessor is our own.
		pred, ok := n.state.Predecessor()
		if !ok {
			return // singleton ring, nothing to stabilize against
		}
		x = pred
	} else {
		var err error
		x, err = n.callGetPredecessor(ctx, primary)
		if err != nil {
			if errors.Is(err, rpc.ErrUnreachable) {
				n.failoverSuccessor(ctx)
			}
			return
		}
	}
	if !x.IsZero() && ring.Between(x.ID, self.ID, primary.ID, false) {
		primary = x
		n.state.SetFinger(0, primary)
	}

	if err := n.callNotify(ctx, primary, self); err != nil {
		if errors.Is(err, rpc.ErrUnreachable) {
			n.failoverSuccessor(ctx)
		}
		return
	}

	fetched, err := n.callGetSuccessorList(ctx, primary)
	if err != nil {
		fetched = nil
	}
	n.state.SetSuccessorList(primary, fetched)
}

// failoverSuccessor implements spec §4.4 "Successor failover": evict the
// unreachable head and promote the next entry, or detach if exhausted.
func (n *Node) failoverSuccessor(ctx context.Context) {
	next, ok := n.state.EvictPrimarySuccessor()
	if !ok {
		n.logger.Warn().Msg("successor list exhausted, detached from ring")
		if n.cfg.FormSingletonOnBootstrapFailure {
			n.state.CollapseToSingleton()
		}
		return
	}
	n.logger.Info().Str("new_successor", next.ID.String()).Msg("evicted unreachable successor")
}

// FixFingers advances the fix-fingers cursor and refreshes one finger
// table entry per call (spec §4.4).
func (n *Node) FixFingers(ctx context.Context) {
	i := n.state.AdvanceFixFingerCursor()
	target := ring.AddPow2(n.Self().ID, i)
	successor, err := n.FindSuccessor(ctx, target)
	if err != nil {
		return // errors are swallowed; stale finger stays in place
	}
	n.state.SetFinger(i, successor)
}

// CheckPredecessor pings the current predecessor and clears it when the
// ping fails with Unreachable (spec §4.4).
func (n *Node) CheckPredecessor(ctx context.Context) {
	pred, ok := n.state.Predecessor()
	if !ok {
		return
	}
	if err := n.callPing(ctx, pred); errors.Is(err, rpc.ErrUnreachable) {
		n.state.ClearPredecessor()
	}
}

func (n *Node) rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), n.cfg.RPCTimeout)
}
