package rpc

import "golang.org/x/xerrors"

// Sentinel transport errors, checked with errors.Is by callers (the node
// and job packages) to decide whether a hop can be retried via another
// finger/successor or must be surfaced.
var (
	// ErrUnreachable means the peer could not be dialed or the connection
	// broke mid-call. This is the only error that implies "peer dead" for
	// stabilization decisions (spec C2).
	ErrUnreachable = xerrors.New("rpc: peer unreachable")

	// ErrTimeout means the call's deadline elapsed before a reply arrived.
	ErrTimeout = xerrors.New("rpc: call timed out")

	// ErrFrameCorrupt means a frame failed to decode.
	ErrFrameCorrupt = xerrors.New("rpc: corrupt frame")

	// ErrServerClosed is returned by Server.Serve after Close.
	ErrServerClosed = xerrors.New("rpc: server closed")
)

// RemoteError wraps an application-level failure reported by the remote
// peer's handler (kind 0xFF error replies, spec §6). It is distinct from
// ErrUnreachable: the peer answered, it just refused or failed the request.
type RemoteError struct {
	Code    uint16
	Message string
}

func (e *RemoteError) Error() string {
	return "rpc: remote error " + e.Message
}
