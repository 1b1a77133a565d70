package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringjobs/ringjobs/ring"
)

func id(b byte) ring.ID {
	return ring.ID{b}
}

func TestEvictPrimarySuccessorSingleWidthDetachesWithoutPanic(t *testing.T) {
	self := PeerHandle{ID: id(1), Endpoint: "self:1"}
	dead := PeerHandle{ID: id(2), Endpoint: "dead:1"}

	s := newState(self, 1, 4)
	s.SetSuccessorList(dead, nil)
	require.True(t, s.successorList[0].Equal(dead))

	require.NotPanics(t, func() {
		next, ok := s.EvictPrimarySuccessor()
		require.False(t, ok)
		require.True(t, next.Equal(self))
	})
	require.True(t, s.IsSingleton())
}

func TestEvictPrimarySuccessorExhaustedWhenOnlyPeerDies(t *testing.T) {
	// A 2-node ring: the successor list is wider than the ring, so
	// SetSuccessorList pads every remaining slot with the only live peer.
	self := PeerHandle{ID: id(1), Endpoint: "self:1"}
	other := PeerHandle{ID: id(2), Endpoint: "other:1"}

	s := newState(self, 4, 4)
	s.SetSuccessorList(other, nil)
	require.Equal(t, []PeerHandle{other, other, other, other}, s.successorList)

	next, ok := s.EvictPrimarySuccessor()
	require.False(t, ok, "list is fully padded with the dead peer; no distinct successor to promote")
	require.True(t, next.Equal(self))
	require.True(t, s.IsSingleton())
	for _, p := range s.successorList {
		require.True(t, p.Equal(self))
	}
}

func TestEvictPrimarySuccessorPromotesDistinctSuccessor(t *testing.T) {
	self := PeerHandle{ID: id(1), Endpoint: "self:1"}
	b := PeerHandle{ID: id(2), Endpoint: "b:1"}
	c := PeerHandle{ID: id(3), Endpoint: "c:1"}
	d := PeerHandle{ID: id(4), Endpoint: "d:1"}

	s := newState(self, 4, 4)
	s.SetSuccessorList(b, []PeerHandle{c, d})

	next, ok := s.EvictPrimarySuccessor()
	require.True(t, ok)
	require.True(t, next.Equal(c))
	require.True(t, s.successorList[0].Equal(c))
}
