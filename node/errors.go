package node

import "golang.org/x/xerrors"

// Protocol-level errors (spec §7 "Protocol"). Transport errors from the rpc
// package are recovered inside this package wherever possible (alternate
// fingers, successor failover); only these surface to callers once every
// option is exhausted.
var (
	// ErrLookupExhausted means find_successor tried every closer finger
	// and the successor list, down to self, without completing.
	ErrLookupExhausted = xerrors.New("node: lookup exhausted all known peers")

	// ErrRingDetached means the successor list was exhausted and no
	// remembered bootstrap peer could be reached either.
	ErrRingDetached = xerrors.New("node: detached from ring")
)
