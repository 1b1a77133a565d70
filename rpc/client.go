package rpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// callResult is handed to the caller waiting on a correlation id, either
// the raw reply body or the error the remote (or the connection) produced.
type callResult struct {
	body []byte
	err  error
}

// conn is one pooled connection to a remote peer, with a single reader
// goroutine demultiplexing replies by correlation id (spec §4.2: "a single
// connection per remote peer is acceptable but not required").
type conn struct {
	endpoint string
	nc       net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // uint64 -> chan callResult
	nextID   atomic.Uint64
	dead     atomic.Bool
	done     chan struct{}
}

func (c *conn) fail(err error) {
	if !c.dead.CompareAndSwap(false, true) {
		return
	}
	c.pending.Range(func(key, value any) bool {
		ch := value.(chan callResult)
		select {
		case ch <- callResult{err: err}:
		default:
		}
		return true
	})
	close(c.done)
	_ = c.nc.Close()
}

func (c *conn) readLoop() {
	for {
		fr, err := readFrame(c.nc)
		if err != nil {
			c.fail(xerrors.Errorf("%w: %v", ErrUnreachable, err))
			return
		}
		value, ok := c.pending.LoadAndDelete(fr.correlationID)
		if !ok {
			continue // reply for a call that already timed out locally
		}
		ch := value.(chan callResult)
		if fr.kind == kindError {
			var re RemoteError
			if err := json.Unmarshal(fr.body, &re); err != nil {
				ch <- callResult{err: xerrors.Errorf("%w: %v", ErrFrameCorrupt, err)}
				continue
			}
			ch <- callResult{err: &re}
			continue
		}
		ch <- callResult{body: fr.body}
	}
}

// Client dials and pools one conn per remote endpoint and issues correlated
// request/reply calls over it, enforcing a per-call deadline.
type Client struct {
	mu      sync.Mutex
	conns   map[string]*conn
	dialer  net.Dialer
	logger  zerolog.Logger
}

// NewClient returns a Client that logs connection lifecycle events with
// logger (pass zerolog.Nop() in tests that don't care).
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		conns:  make(map[string]*conn),
		logger: logger,
	}
}

func (c *Client) getConn(ctx context.Context, endpoint string) (*conn, error) {
	c.mu.Lock()
	if existing, ok := c.conns[endpoint]; ok && !existing.dead.Load() {
		c.mu.Unlock()
		return existing, nil
	}
	c.mu.Unlock()

	nc, err := c.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, xerrors.Errorf("%w: dial %s: %v", ErrUnreachable, endpoint, err)
	}

	c.mu.Lock()
	if existing, ok := c.conns[endpoint]; ok && !existing.dead.Load() {
		// A concurrent caller dialed first; keep one connection per endpoint.
		c.mu.Unlock()
		_ = nc.Close()
		return existing, nil
	}
	cn := &conn{endpoint: endpoint, nc: nc, done: make(chan struct{})}
	c.conns[endpoint] = cn
	c.mu.Unlock()
	go cn.readLoop()

	c.logger.Debug().Str("endpoint", endpoint).Msg("rpc: dialed peer")
	return cn, nil
}

// Call sends kind/body to endpoint and blocks until a reply arrives or
// deadline elapses. body is JSON-encoded; the reply body is returned raw
// for the caller to unmarshal into the expected response type.
func (c *Client) Call(ctx context.Context, endpoint string, kind byte, body any, deadline time.Duration) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Errorf("rpc: encode request body: %w", err)
	}

	cn, err := c.getConn(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	correlationID := cn.nextID.Add(1)
	replyCh := make(chan callResult, 1)
	cn.pending.Store(correlationID, replyCh)
	defer cn.pending.Delete(correlationID)

	cn.writeMu.Lock()
	if deadline > 0 {
		_ = cn.nc.SetWriteDeadline(time.Now().Add(deadline))
	}
	writeErr := writeFrame(cn.nc, frame{correlationID: correlationID, kind: kind, body: encoded})
	cn.writeMu.Unlock()
	if writeErr != nil {
		cn.fail(xerrors.Errorf("%w: %v", ErrUnreachable, writeErr))
		return nil, ErrUnreachable
	}

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if deadline > 0 {
		timer = time.NewTimer(deadline)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-replyCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.body, nil
	case <-timeoutCh:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-cn.done:
		return nil, ErrUnreachable
	}
}

// Close tears down every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cn := range c.conns {
		cn.fail(ErrServerClosed)
	}
	c.conns = make(map[string]*conn)
	return nil
}
