package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ringjobs/ringjobs/job"
	"github.com/ringjobs/ringjobs/node"
	"github.com/ringjobs/ringjobs/objectstore"
	"github.com/ringjobs/ringjobs/task"
)

const (
	waitTimeout  = time.Second
	pollInterval = 5 * time.Millisecond
)

type fakeExecutor struct {
	run func(kind task.Kind, sourceBucket, destBucket, objectName, params string, progress task.ProgressFunc) (task.Artifact, error)
}

func (f *fakeExecutor) Execute(kind task.Kind, sourceBucket, destBucket, objectName, params string, progress task.ProgressFunc) (task.Artifact, error) {
	return f.run(kind, sourceBucket, destBucket, objectName, params, progress)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := node.DefaultConfig()
	cfg.HashWidthBytes = 4
	cfg.StabilizeInterval = 0
	cfg.FixFingerInterval = 0
	cfg.CheckPredecessorInterval = 0

	n, err := node.NewNode(cfg, l.Addr().String(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, n.Join(context.Background(), ""))
	go func() { _ = n.Serve(l) }()
	t.Cleanup(func() { _ = n.Close() })

	exec := &fakeExecutor{run: func(kind task.Kind, src, dst, obj, params string, progress task.ProgressFunc) (task.Artifact, error) {
		return task.Artifact{Bucket: dst, Key: obj}, nil
	}}
	jobCfg := job.DefaultConfig()
	jobCfg.WorkerPoolSize = 1
	coord := job.NewCoordinator(n, exec, jobCfg, zerolog.Nop())
	coord.Start()
	t.Cleanup(coord.Stop)

	objects := objectstore.NewFake("raw", "processed")

	return New(n, coord, objects, zerolog.Nop())
}

func TestHandleStatusSingletonRing(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "online", resp.Chord)
	require.Equal(t, "online", resp.Minio)
}

func TestHandleFingerReturnsMEntries(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/finger", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp["finger"], 32) // HashWidthBytes=4 => m=32 bits
}

func TestHandleBuckets(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/buckets", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.ElementsMatch(t, []string{"raw", "processed"}, resp["buckets"])
}

func TestAddJobAndPollStatus(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"task":"fitacf","source_bucket":"raw","dest_bucket":"processed","object_name":"x.dat","params":""}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/add_job", bytes.NewReader(body))
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var addResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addResp))
	jobID := addResp["job_id"]
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job_status/"+jobID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var statusResp jobStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &statusResp); err != nil {
			return false
		}
		return statusResp.State == job.Succeeded
	}, waitTimeout, pollInterval)
}

func TestAllJobsIncludesLocal(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"task":"despeck","source_bucket":"raw","dest_bucket":"processed","object_name":"y.dat","params":""}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/add_job", bytes.NewReader(body))
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/all_jobs", nil))
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp map[string][]job.Record
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	require.Len(t, resp["jobs"], 1)
}
