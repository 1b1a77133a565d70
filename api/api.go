// Package api exposes the HTTP surface of spec §6 (the JSON endpoints a
// dashboard front-end consumes). The front-end itself is out of scope
// (spec §1); this package produces the responses only.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ringjobs/ringjobs/job"
	"github.com/ringjobs/ringjobs/node"
	"github.com/ringjobs/ringjobs/objectstore"
)

// Server wires a Chord node, job coordinator, and object-store adapter
// into the route table of spec §6's HTTP surface table.
type Server struct {
	node    *node.Node
	jobs    *job.Coordinator
	objects objectstore.Store
	logger  zerolog.Logger

	mux *http.ServeMux
}

// New builds a Server with every route of spec §6 registered and ready to
// be handed to http.Serve.
func New(n *node.Node, jobs *job.Coordinator, objects objectstore.Store, logger zerolog.Logger) *Server {
	s := &Server{
		node:    n,
		jobs:    jobs,
		objects: objects,
		logger:  logger.With().Str("component", "api").Logger(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler, so Server can be passed directly to
// http.Serve/http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /", s.handleIndex)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /finger", s.handleFinger)
	s.mux.HandleFunc("GET /ring", s.handleRing)
	s.mux.HandleFunc("GET /buckets", s.handleBuckets)
	s.mux.HandleFunc("POST /add_job", s.handleAddJob)
	s.mux.HandleFunc("GET /job_status/{job_id}", s.handleJobStatus)
	s.mux.HandleFunc("GET /all_jobs", s.handleAllJobs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
