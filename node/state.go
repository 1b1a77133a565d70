package node

import "sync"

// state is the mutable Chord node state of spec §3/§4.3: predecessor,
// successor list, finger table, and the fix-fingers cursor. Every mutator
// holds mu only across the in-memory update itself, never across an RPC
// (spec §5's concurrency discipline); callers perform the RPC first, then
// call a mutator with the result.
type state struct {
	mu sync.RWMutex

	self PeerHandle

	predecessor PeerHandle // zero value means "none"

	successorList []PeerHandle // successorList[0] is the primary successor

	fingerTable []PeerHandle

	nextFingerToFix int
}

func newState(self PeerHandle, successorListSize, fingerCount int) *state {
	successors := make([]PeerHandle, successorListSize)
	for i := range successors {
		successors[i] = self
	}
	fingers := make([]PeerHandle, fingerCount)
	for i := range fingers {
		fingers[i] = self
	}
	return &state{
		self:          self,
		successorList: successors,
		fingerTable:   fingers,
	}
}

func (s *state) Self() PeerHandle {
	return s.self
}

// Predecessor returns the current predecessor and whether one is known.
func (s *state) Predecessor() (PeerHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predecessor, !s.predecessor.IsZero()
}

// SetPredecessor installs p as the predecessor. If p is self and the ring
// is not a singleton, the assignment is a bug guard: the predecessor is
// cleared instead (spec §4.3).
func (s *state) SetPredecessor(p PeerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Equal(s.self) && !s.isSingletonLocked() {
		s.predecessor = PeerHandle{}
		return
	}
	s.predecessor = p
}

// ClearPredecessor removes the predecessor (used after a failed liveness
// check, spec §4.4 check_predecessor).
func (s *state) ClearPredecessor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predecessor = PeerHandle{}
}

func (s *state) isSingletonLocked() bool {
	if len(s.successorList) == 0 {
		return true
	}
	return s.successorList[0].Equal(s.self)
}

// IsSingleton reports whether this node currently believes it is alone on
// the ring (its primary successor is itself).
func (s *state) IsSingleton() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSingletonLocked()
}

// SuccessorList returns a copy of the successor list, ordered nearest
// first.
func (s *state) SuccessorList() []PeerHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PeerHandle, len(s.successorList))
	copy(out, s.successorList)
	return out
}

// PrimarySuccessor returns successorList[0].
func (s *state) PrimarySuccessor() PeerHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successorList[0]
}

// SetSuccessorList installs primary as the new head of the successor list
// and fills the remainder from fetched (a remote successor-list reply),
// eliding our own id and truncating to the configured width, per spec
// §4.3's update_successor_list.
func (s *state) SetSuccessorList(primary PeerHandle, fetched []PeerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := len(s.successorList)
	next := make([]PeerHandle, 0, r)
	next = append(next, primary)
	for _, p := range fetched {
		if len(next) >= r {
			break
		}
		if p.Equal(s.self) || p.Equal(primary) {
			continue
		}
		next = append(next, p)
	}
	for len(next) < r {
		next = append(next, next[len(next)-1])
	}
	s.successorList = next
}

// EvictPrimarySuccessor drops the unreachable head of the successor list
// and promotes the next entry, per spec §4.4 "Successor failover". It
// reports false if the list is exhausted: either a single-entry list
// (r == 1, no backup to promote) or every remaining entry is just the dead
// head repeated (SetSuccessorList pads a short fetched list by duplicating
// its last live entry, so a ring with <= r peers leaves no genuinely
// distinct successor to fall back to). In that case the node declares
// itself detached instead of routing to a corpse.
func (s *state) EvictPrimarySuccessor() (PeerHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := len(s.successorList)
	dead := s.successorList[0]

	if r < 2 {
		s.successorList[0] = s.self
		return s.self, false
	}

	for i := 0; i < r-1; i++ {
		s.successorList[i] = s.successorList[i+1]
	}
	s.successorList[r-1] = s.successorList[r-2]

	if s.isSingletonLocked() || s.successorList[0].Equal(dead) {
		for i := range s.successorList {
			s.successorList[i] = s.self
		}
		return s.self, false
	}
	return s.successorList[0], true
}

// CollapseToSingleton resets the successor list and finger table to point
// entirely at self (used when the node detaches and chooses to form a
// fresh ring rather than retry bootstrap).
func (s *state) CollapseToSingleton() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.successorList {
		s.successorList[i] = s.self
	}
	for i := range s.fingerTable {
		s.fingerTable[i] = s.self
	}
	s.predecessor = PeerHandle{}
}

// Finger returns finger_table[i].
func (s *state) Finger(i int) PeerHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerTable[i]
}

// Fingers returns a copy of the full finger table, in index order.
func (s *state) Fingers() []PeerHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PeerHandle, len(s.fingerTable))
	copy(out, s.fingerTable)
	return out
}

// SetFinger replaces finger_table[i]. Fingers are best-effort: no invariant
// is enforced on whether the new value is tighter than the old one.
func (s *state) SetFinger(i int, p PeerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerTable[i] = p
}

// NextFingerToFix returns the current fix_fingers cursor without advancing
// it.
func (s *state) NextFingerToFix() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextFingerToFix
}

// AdvanceFixFingerCursor returns the cursor to fix this round and advances
// it cyclically for next time.
func (s *state) AdvanceFixFingerCursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.nextFingerToFix
	s.nextFingerToFix = (s.nextFingerToFix + 1) % len(s.fingerTable)
	return i
}
