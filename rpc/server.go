package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Handler processes one request body for a given kind and returns the reply
// body to marshal back to the caller, or an error to report as a
// RemoteError (a returned *RemoteError keeps its own Code and Message).
// Every request is dispatched on its own goroutine, so a handler may itself
// issue RPCs, including back to the peer that sent the request.
type Handler func(ctx context.Context, body []byte) ([]byte, error)

// Server accepts connections and dispatches framed requests to registered
// Handlers by kind, matching the wire protocol of spec §6. The accept loop
// and every per-connection pump it spawns run under one errgroup, so Close
// can cancel the lot with a single context and Serve can wait on all of
// them with a single Wait.
type Server struct {
	mu       sync.RWMutex
	handlers map[byte]Handler
	logger   zerolog.Logger

	listener net.Listener
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServer returns a Server with no handlers registered yet.
func NewServer(logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &Server{
		handlers: make(map[byte]Handler),
		logger:   logger,
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handle registers h for requests of the given kind, overwriting any prior
// registration.
func (s *Server) Handle(kind byte, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

func (s *Server) handlerFor(kind byte) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

// Serve accepts connections on l until Close is called, blocking the
// calling goroutine until the accept loop and every connection pump it
// spawned have returned. Each connection is served on its own goroutine,
// all tracked by the same errgroup as the accept loop.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	s.group.Go(func() error {
		for {
			nc, err := l.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return nil
				default:
					return err
				}
			}
			s.group.Go(func() error {
				s.serveConn(nc)
				return nil
			})
		}
	})

	if err := s.group.Wait(); err != nil {
		return err
	}
	select {
	case <-s.ctx.Done():
		return ErrServerClosed
	default:
		return nil
	}
}

func (s *Server) serveConn(nc net.Conn) {
	defer nc.Close()
	var writeMu sync.Mutex
	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	// Close the connection on server shutdown so the blocking readFrame
	// below returns and Close's Wait can complete.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = nc.Close()
		case <-connDone:
		}
	}()

	for {
		fr, err := readFrame(nc)
		if err != nil {
			return
		}
		if isReply(fr.kind) {
			// A well-behaved peer never sends us a reply on a server
			// connection; ignore rather than tearing down the link.
			continue
		}

		inFlight.Add(1)
		go func(fr frame) {
			defer inFlight.Done()
			s.dispatch(nc, &writeMu, fr)
		}(fr)
	}
}

func (s *Server) dispatch(nc net.Conn, writeMu *sync.Mutex, fr frame) {
	handler, ok := s.handlerFor(fr.kind)
	if !ok {
		s.writeError(nc, writeMu, fr.correlationID, 1, "unknown request kind")
		return
	}

	respBody, err := handler(context.Background(), fr.body)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			s.writeError(nc, writeMu, fr.correlationID, re.Code, re.Message)
			return
		}
		s.writeError(nc, writeMu, fr.correlationID, 0, err.Error())
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := writeFrame(nc, frame{correlationID: fr.correlationID, kind: replyKind(fr.kind), body: respBody}); err != nil {
		s.logger.Debug().Err(err).Msg("rpc: write reply failed")
	}
}

func (s *Server) writeError(nc net.Conn, writeMu *sync.Mutex, correlationID uint64, code uint16, message string) {
	body, _ := json.Marshal(RemoteError{Code: code, Message: message})
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := writeFrame(nc, frame{correlationID: correlationID, kind: kindError, body: body}); err != nil {
		s.logger.Debug().Err(err).Msg("rpc: write error reply failed")
	}
}

// Close cancels the server's errgroup, stops accepting new connections,
// and waits for the accept loop and every connection pump to finish.
func (s *Server) Close() error {
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if werr := s.group.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}
