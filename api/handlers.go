package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ringjobs/ringjobs/job"
	"github.com/ringjobs/ringjobs/rpc"
	"github.com/ringjobs/ringjobs/task"
)

const indexPage = `<!DOCTYPE html>
<html><head><title>ringjobs</title></head>
<body><h1>ringjobs</h1><p>dashboard front-end is served elsewhere; this node only answers the JSON API.</p></body>
</html>`

// handleIndex serves a placeholder dashboard page. The real dashboard is
// explicitly out of scope (spec §1); this keeps the route table of spec §6
// complete without pulling a templating engine into the module.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

type statusResponse struct {
	Chord        string `json:"chord"`
	Minio        string `json:"minio"`
	MinioAddress string `json:"minioAddress"`
}

// handleStatus reports whether the Chord ring and the object store are
// reachable (spec §6: `{chord, minio, minioAddress}`).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	chordState := "offline"
	if pred, ok := s.node.Predecessor(); ok {
		if s.node.Ping(ctx, pred) {
			chordState = "online"
		}
	} else {
		chordState = "online" // singleton ring, no predecessor required
	}

	minioState := "offline"
	minioAddress := ""
	if s.objects != nil {
		if _, err := s.objects.ListBuckets(); err == nil {
			minioState = "online"
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Chord:        chordState,
		Minio:        minioState,
		MinioAddress: minioAddress,
	})
}

// handleFinger returns the finger table in index order (spec §6:
// `{finger: [peer_id, …]}`).
func (s *Server) handleFinger(w http.ResponseWriter, r *http.Request) {
	fingers := s.node.Fingers()
	ids := make([]string, len(fingers))
	for i, f := range fingers {
		ids[i] = f.ID.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"finger": ids})
}

type ringPeerView struct {
	ID          string `json:"id"`
	Endpoint    string `json:"endpoint"`
	Predecessor string `json:"predecessor,omitempty"`
	ArcLow      string `json:"arc_low,omitempty"`
	ArcHigh     string `json:"arc_high"`
}

// handleRing is a supplemented endpoint (not in spec §6's table, additive
// per SPEC_FULL.md): a ring-wide membership and per-peer key-range view,
// built by walking this node's successor list.
func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	self := s.node.Self()
	view := ringPeerView{
		ID:       self.ID.String(),
		Endpoint: self.Endpoint,
		ArcHigh:  self.ID.String(),
	}
	if pred, ok := s.node.Predecessor(); ok {
		view.Predecessor = pred.Endpoint
		view.ArcLow = pred.ID.String()
	}

	peers := []ringPeerView{view}
	for _, succ := range s.node.SuccessorList() {
		if succ.Equal(self) {
			continue
		}
		peers = append(peers, ringPeerView{ID: succ.ID.String(), Endpoint: succ.Endpoint})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ring": peers})
}

// handleBuckets lists the object-store buckets visible to this peer (spec
// §6: `{buckets: [name, …]}`).
func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	if s.objects == nil {
		writeJSON(w, http.StatusOK, map[string]any{"buckets": []string{}})
		return
	}
	buckets, err := s.objects.ListBuckets()
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

type addJobRequest struct {
	Task         string `json:"task"`
	SourceBucket string `json:"source_bucket"`
	DestBucket   string `json:"dest_bucket"`
	ObjectName   string `json:"object_name"`
	Params       string `json:"params"`
}

// handleAddJob decodes the job.json body, validates the task kind, and
// submits it to the coordinator, returning `{job_id}` (spec §6).
func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	var req addJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed job body: "+err.Error())
		return
	}
	kind, err := task.ParseKind(req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.jobs.Submit(r.Context(), kind, req.SourceBucket, req.DestBucket, req.ObjectName, req.Params)
	if err != nil {
		s.logger.Warn().Err(err).Str("task", req.Task).Msg("add_job failed")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

type jobStatusResponse struct {
	State    job.Phase `json:"state"`
	Progress *int      `json:"progress,omitempty"`
	Result   string    `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// handleJobStatus returns `{state, progress?, result?, error?}` (spec §6).
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	rec, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := jobStatusResponse{State: rec.Phase, Error: rec.Error}
	if rec.Phase == job.Running || rec.Phase == job.Succeeded {
		p := rec.Progress
		resp.Progress = &p
	}
	if rec.Phase == job.Succeeded {
		resp.Result = rec.ResultBucket + "/" + rec.ResultKey
	}
	writeJSON(w, http.StatusOK, resp)
}

type listJobsReply struct {
	Jobs []job.Record `json:"jobs"`
}

// handleAllJobs aggregates job records across the ring: this peer's own
// local jobs plus a best-effort list_jobs RPC fan-out to its successor
// list (spec §6: "Aggregated across ring"; spec §4.6: "The HTTP aggregator
// may fan out via RPC to build a ring-wide view").
func (s *Server) handleAllJobs(w http.ResponseWriter, r *http.Request) {
	all := s.jobs.ListLocalJobs()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	self := s.node.Self()
	seen := map[string]bool{self.Endpoint: true}
	for _, peer := range s.node.SuccessorList() {
		if seen[peer.Endpoint] {
			continue
		}
		seen[peer.Endpoint] = true

		body, err := s.node.CallPeer(ctx, peer, rpc.KindListJobs, struct{}{})
		if err != nil {
			s.logger.Debug().Err(err).Str("peer", peer.Endpoint).Msg("all_jobs: peer unreachable")
			continue
		}
		var reply listJobsReply
		if err := json.Unmarshal(body, &reply); err != nil {
			continue
		}
		all = append(all, reply.Jobs...)
	}

	writeJSON(w, http.StatusOK, map[string]any{"jobs": all})
}
