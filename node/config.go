package node

import "time"

// Config holds the Chord-layer settings of spec §6's configuration table.
// The job coordinator has its own config struct; the top-level config
// package composes both.
type Config struct {
	// HashWidthBytes is m/8: the identifier width in bytes. Default 20
	// (m=160, SHA-1), per spec §3 and §6 (hash_width_m default 160).
	HashWidthBytes int

	// SuccessorListSize is r, the number of clockwise neighbors tracked
	// for failure resilience. Default 4 (successor_list_r).
	SuccessorListSize int

	// RPCTimeout is the per-call deadline enforced by the rpc.Client for
	// every Chord protocol RPC. Default a few hundred milliseconds, since
	// it doubles as a liveness probe (spec §4.2).
	RPCTimeout time.Duration

	// StabilizeInterval is T_stab. 0 disables the stabilize loop (used in
	// tests that drive stabilization manually).
	StabilizeInterval time.Duration

	// FixFingerInterval is T_fix. 0 disables the fix-fingers loop.
	FixFingerInterval time.Duration

	// CheckPredecessorInterval drives the periodic predecessor liveness
	// probe. 0 disables it.
	CheckPredecessorInterval time.Duration

	// FormSingletonOnBootstrapFailure resolves spec §9's open question on
	// an unreachable bootstrap peer: false (default) retries JoinRetries
	// times with backoff then fails Join; true forms a fresh singleton
	// ring instead.
	FormSingletonOnBootstrapFailure bool

	// JoinRetries bounds the bootstrap retry loop when
	// FormSingletonOnBootstrapFailure is false.
	JoinRetries int

	// JoinRetryBackoff is the delay between bootstrap retries.
	JoinRetryBackoff time.Duration
}

// DefaultConfig returns the configuration defaults named in spec §6.
func DefaultConfig() Config {
	return Config{
		HashWidthBytes:                  20,
		SuccessorListSize:               4,
		RPCTimeout:                      300 * time.Millisecond,
		StabilizeInterval:               time.Second,
		FixFingerInterval:               500 * time.Millisecond,
		CheckPredecessorInterval:        time.Second,
		FormSingletonOnBootstrapFailure: false,
		JoinRetries:                     5,
		JoinRetryBackoff:                200 * time.Millisecond,
	}
}

// widthBits is m, the ring width in bits.
func (c Config) widthBits() int {
	return c.HashWidthBytes * 8
}
