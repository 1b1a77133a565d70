package job

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/node"
	"github.com/ringjobs/ringjobs/ring"
	"github.com/ringjobs/ringjobs/rpc"
	"github.com/ringjobs/ringjobs/task"
)

// Config holds the job coordinator's settings (spec §4.6/§5).
type Config struct {
	// WorkerPoolSize bounds concurrent job executions. Default: one per CPU.
	WorkerPoolSize int

	// QueueHighWaterMark bounds the pending queue; Submit returns
	// ErrOverloaded beyond it. 0 means unbounded.
	QueueHighWaterMark int

	// ExecuteTimeout bounds the owner lookup and record relocation that
	// follow a finished execution. The task.Executor.Execute call itself is
	// not bounded: a job runs to completion.
	ExecuteTimeout time.Duration
}

// DefaultConfig mirrors spec §6's "worker_pool_size (default CPU count)".
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize:     runtime.NumCPU(),
		QueueHighWaterMark: 1024,
		ExecuteTimeout:     10 * time.Minute,
	}
}

// Coordinator implements C6: submit/status/list_local_jobs, a bounded
// worker pool, and forwarding of requests whose owner is a different peer.
// The task.Executor is responsible for its own object-store access; the
// coordinator only ever touches job records.
type Coordinator struct {
	node     *node.Node
	executor task.Executor
	logger   zerolog.Logger
	cfg      Config

	queue  *pendingQueue
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCoordinator wires handlers for submit_job/job_status/list_jobs onto
// n's RPC server and returns a Coordinator ready to Start.
func NewCoordinator(n *node.Node, executor task.Executor, cfg Config, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		node:     n,
		executor: executor,
		logger:   logger.With().Str("component", "job").Logger(),
		cfg:      cfg,
		queue:    newPendingQueue(),
		stopCh:   make(chan struct{}),
	}
	c.registerHandlers()
	return c
}

// Start launches the bounded worker pool.
func (c *Coordinator) Start() {
	n := c.cfg.WorkerPoolSize
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// Submit computes the job's deterministic id, routes to its owner, and
// either executes it locally or forwards it (spec §4.6).
func (c *Coordinator) Submit(ctx context.Context, taskName task.Kind, sourceBucket, destBucket, objectName, params string) (string, error) {
	id, err := computeJobID(taskName, sourceBucket, destBucket, params, c.node.Config().HashWidthBytes)
	if err != nil {
		return "", err
	}

	trace := xid.New().String()

	owner, err := c.node.FindSuccessor(ctx, id)
	if err != nil {
		return "", xerrors.Errorf("job: route submit: %w", err)
	}

	if owner.Equal(c.node.Self()) {
		if err := c.submitLocal(id, taskName, sourceBucket, destBucket, objectName, params); err != nil {
			return "", err
		}
		c.logger.Info().Str("trace_id", trace).Str("job_id", id.String()).Str("task", string(taskName)).Msg("job submitted locally")
		return id.String(), nil
	}

	req := submitJobRequest{
		TaskName:     taskName,
		SourceBucket: sourceBucket,
		DestBucket:   destBucket,
		ObjectName:   objectName,
		Params:       params,
	}
	if _, err := c.node.CallPeer(ctx, owner, rpc.KindSubmitJob, req); err != nil {
		return "", xerrors.Errorf("job: forward submit to %s: %w", owner.Endpoint, err)
	}
	c.logger.Info().Str("trace_id", trace).Str("job_id", id.String()).Str("owner", owner.ID.String()).Msg("job submitted, forwarded to owner")
	return id.String(), nil
}

func (c *Coordinator) submitLocal(id ring.ID, taskName task.Kind, sourceBucket, destBucket, objectName, params string) error {
	if existing, ok := c.node.Store().LocalGet(id); ok {
		rec, err := decodeRecord(existing.Value)
		if err == nil {
			switch rec.Phase {
			case Running, Succeeded, Pending:
				return nil // spec §4.6: no-op, returns the existing state
			case Failed:
				// legal re-attempt: fall through to re-enqueue
			}
		}
	}

	enqueued, duplicate := c.queue.tryEnqueue(id, c.cfg.QueueHighWaterMark)
	if duplicate {
		return nil // another in-flight submission already claimed this id
	}
	if !enqueued {
		return ErrOverloaded
	}

	rec := Record{
		JobID:        id.String(),
		TaskName:     taskName,
		SourceBucket: sourceBucket,
		DestBucket:   destBucket,
		ObjectName:   objectName,
		Params:       params,
		SubmittedAt:  c.submittedAt(),
		Phase:        Pending,
	}
	c.node.Store().LocalPut(id, rec.encode())
	return nil
}

// submittedAt returns the timestamp recorded on a newly submitted job: the
// current wall-clock time.
func (c *Coordinator) submittedAt() time.Time {
	return time.Now()
}

// Status returns the job's current record, routing to its owner if it
// isn't this peer (spec §4.6).
func (c *Coordinator) Status(ctx context.Context, jobIDHex string) (Record, error) {
	id, err := parseHexID(jobIDHex)
	if err != nil {
		return Record{}, err
	}

	owner, err := c.node.FindSuccessor(ctx, id)
	if err != nil {
		return Record{}, xerrors.Errorf("job: route status: %w", err)
	}

	if owner.Equal(c.node.Self()) {
		return c.localStatus(id), nil
	}

	body, err := c.node.CallPeer(ctx, owner, rpc.KindJobStatus, jobStatusRequest{JobID: jobIDHex})
	if err != nil {
		return Record{}, xerrors.Errorf("job: forward status to %s: %w", owner.Endpoint, err)
	}
	var reply jobStatusReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Record{}, xerrors.Errorf("job: decode status reply: %w", err)
	}
	if !reply.Found {
		return Record{JobID: jobIDHex, Phase: Unknown}, nil
	}
	return reply.Record, nil
}

func (c *Coordinator) localStatus(id ring.ID) Record {
	existing, ok := c.node.Store().LocalGet(id)
	if !ok {
		return Record{JobID: id.String(), Phase: Unknown}
	}
	rec, err := decodeRecord(existing.Value)
	if err != nil {
		return Record{JobID: id.String(), Phase: Unknown}
	}
	return rec
}

// ListLocalJobs returns every job record held locally (spec §4.6: "Local
// only. The HTTP aggregator may fan out via RPC to build a ring-wide
// view.").
func (c *Coordinator) ListLocalJobs() []Record {
	all := c.node.Store().All()
	out := make([]Record, 0, len(all))
	for _, r := range all {
		rec, err := decodeRecord(r.Value)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

