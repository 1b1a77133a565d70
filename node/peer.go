package node

import (
	"encoding/hex"

	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/ring"
)

// PeerHandle is a value-typed reference to a ring member: an identifier and
// an endpoint. Equality is by ID, per spec §3. Handles are never held as
// long-lived connections — the rpc.Client resolves them to a live TCP
// connection, keyed by endpoint, on demand (spec §9 "Cyclic peer graph").
type PeerHandle struct {
	ID       ring.ID
	Endpoint string
}

// IsZero reports whether h is the absent/unset handle.
func (h PeerHandle) IsZero() bool {
	return h.Endpoint == ""
}

// Equal reports whether h and o denote the same ring member.
func (h PeerHandle) Equal(o PeerHandle) bool {
	if h.IsZero() || o.IsZero() {
		return h.IsZero() == o.IsZero()
	}
	return h.ID.Equal(o.ID)
}

// wirePeer is the JSON-over-the-wire shape of a PeerHandle (spec §6 bodies
// are opaque to the frame layer; each RPC body type, including this one, is
// plain JSON for readability and easy evolution).
type wirePeer struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

func toWire(h PeerHandle) wirePeer {
	if h.IsZero() {
		return wirePeer{}
	}
	return wirePeer{ID: h.ID.String(), Endpoint: h.Endpoint}
}

func fromWire(w wirePeer) (PeerHandle, error) {
	if w.Endpoint == "" {
		return PeerHandle{}, nil
	}
	raw, err := hex.DecodeString(w.ID)
	if err != nil {
		return PeerHandle{}, xerrors.Errorf("node: decode peer id %q: %w", w.ID, err)
	}
	return PeerHandle{ID: ring.ID(raw), Endpoint: w.Endpoint}, nil
}
