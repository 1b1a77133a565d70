package node

import (
	"context"
	"time"
)

// StartDaemons launches the three periodic background loops named in spec
// §4.4: stabilize, fix_fingers, and check_predecessor. An interval of zero
// disables the corresponding loop (used by tests that drive the protocol
// manually, one round at a time).
func (n *Node) StartDaemons() {
	go n.stabilizeDaemon()
	go n.fixFingersDaemon()
	go n.checkPredecessorDaemon()
}

func (n *Node) stabilizeDaemon() {
	if n.cfg.StabilizeInterval == 0 {
		return
	}
	ticker := time.NewTicker(n.cfg.StabilizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := n.rpcContext()
			n.Stabilize(ctx)
			cancel()
		}
	}
}

func (n *Node) fixFingersDaemon() {
	if n.cfg.FixFingerInterval == 0 {
		return
	}
	ticker := time.NewTicker(n.cfg.FixFingerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RPCTimeout*time.Duration(maxFindSuccessorHops))
			n.FixFingers(ctx)
			cancel()
		}
	}
}

func (n *Node) checkPredecessorDaemon() {
	if n.cfg.CheckPredecessorInterval == 0 {
		return
	}
	ticker := time.NewTicker(n.cfg.CheckPredecessorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := n.rpcContext()
			n.CheckPredecessor(ctx)
			cancel()
		}
	}
}
