package job

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/node"
	"github.com/ringjobs/ringjobs/task"
)

// fakeExecutor counts invocations per job id and lets tests script
// success/failure/progress behavior.
type fakeExecutor struct {
	mu    sync.Mutex
	calls int
	run   func(kind task.Kind, sourceBucket, destBucket, objectName, params string, progress task.ProgressFunc) (task.Artifact, error)
}

func (f *fakeExecutor) Execute(kind task.Kind, sourceBucket, destBucket, objectName, params string, progress task.ProgressFunc) (task.Artifact, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.run(kind, sourceBucket, destBucket, objectName, params, progress)
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func startTestNode(t *testing.T) *node.Node {
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
	return n
}

func waitForPhase(t *testing.T, c *Coordinator, jobID string, phase Phase, timeout time.Duration) Record {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		rec, err := c.Status(context.Background(), jobID)
		require.NoError(t, err)
		if rec.Phase == phase {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never reached phase %s, last seen %+v", jobID, phase, rec)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitAndRunToSuccess(t *testing.T) {
	n := startTestNode(t)
	exec := &fakeExecutor{run: func(kind task.Kind, src, dst, obj, params string, progress task.ProgressFunc) (task.Artifact, error) {
		progress(50)
		return task.Artifact{Bucket: dst, Key: obj}, nil
	}}
	cfg := DefaultConfig()
	cfg.WorkerPoolSize = 1
	c := NewCoordinator(n, exec, cfg, zerolog.Nop())
	c.Start()
	t.Cleanup(c.Stop)

	jobID, err := c.Submit(context.Background(), task.Fitacf, "raw", "processed", "obj.dat", "")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	rec := waitForPhase(t, c, jobID, Succeeded, time.Second)
	require.Equal(t, "processed", rec.ResultBucket)
	require.Equal(t, "obj.dat", rec.ResultKey)
}

func TestSubmitDedupesConcurrentIdenticalJobs(t *testing.T) {
	n := startTestNode(t)
	exec := &fakeExecutor{run: func(kind task.Kind, src, dst, obj, params string, progress task.ProgressFunc) (task.Artifact, error) {
		time.Sleep(30 * time.Millisecond)
		return task.Artifact{Bucket: dst, Key: obj}, nil
	}}
	cfg := DefaultConfig()
	cfg.WorkerPoolSize = 4
	c := NewCoordinator(n, exec, cfg, zerolog.Nop())
	c.Start()
	t.Cleanup(c.Stop)

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := c.Submit(context.Background(), task.Despeck, "a", "b", "x", "")
			require.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i := 1; i < 5; i++ {
		require.Equal(t, ids[0], ids[i])
	}
	waitForPhase(t, c, ids[0], Succeeded, time.Second)
	require.Equal(t, 1, exec.callCount())
}

func TestFailedJobIsLegalReattempt(t *testing.T) {
	n := startTestNode(t)
	var attempt int32
	exec := &fakeExecutor{run: func(kind task.Kind, src, dst, obj, params string, progress task.ProgressFunc) (task.Artifact, error) {
		attempt++
		if attempt == 1 {
			return task.Artifact{}, xerrors.New("boom")
		}
		return task.Artifact{Bucket: dst, Key: obj}, nil
	}}
	cfg := DefaultConfig()
	cfg.WorkerPoolSize = 1
	c := NewCoordinator(n, exec, cfg, zerolog.Nop())
	c.Start()
	t.Cleanup(c.Stop)

	jobID, err := c.Submit(context.Background(), task.Combine, "a", "b", "x", "")
	require.NoError(t, err)
	waitForPhase(t, c, jobID, Failed, time.Second)

	jobID2, err := c.Submit(context.Background(), task.Combine, "a", "b", "x", "")
	require.NoError(t, err)
	require.Equal(t, jobID, jobID2)
	waitForPhase(t, c, jobID2, Succeeded, time.Second)
	require.EqualValues(t, 2, attempt)
}
