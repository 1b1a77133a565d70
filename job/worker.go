package job

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/ring"
	"github.com/ringjobs/ringjobs/task"
)

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		id, ok := c.queue.dequeue()
		if !ok {
			select {
			case <-c.stopCh:
				return
			case <-c.queue.wake:
			}
			continue
		}
		c.execute(id)
		c.queue.done(id)

		select {
		case <-c.stopCh:
			return
		default:
		}
	}
}

// execute runs one job to completion: loads its record, invokes the
// executor with a progress callback that persists Running(pct), then
// writes the final Succeeded/Failed state — to this peer if it still owns
// the job, or to the new owner if ownership moved mid-execution (spec
// §4.6 "Ownership changes mid-execution").
func (c *Coordinator) execute(id ring.ID) {
	existing, ok := c.node.Store().LocalGet(id)
	if !ok {
		return // handed off or deleted before a worker picked it up
	}
	rec, err := decodeRecord(existing.Value)
	if err != nil || rec.Phase != Pending {
		return // stale queue entry; record already moved on
	}

	rec.Phase = Running
	rec.Progress = 0
	c.node.Store().LocalPut(id, rec.encode())

	progress := func(pct int) {
		running := rec
		running.Phase = Running
		running.Progress = pct
		c.node.Store().LocalPut(id, running.encode())
	}

	artifact, execErr := c.runExecutor(rec, progress)

	final := rec
	if execErr != nil {
		final.Phase = Failed
		final.Error = execErr.Error()
	} else {
		final.Phase = Succeeded
		final.Progress = 100
		final.ResultBucket = artifact.Bucket
		final.ResultKey = artifact.Key
	}

	saved := c.node.Store().LocalPut(id, final.encode())
	if final.Phase == Failed {
		c.logger.Warn().Str("job_id", id.String()).Str("task", string(rec.TaskName)).Str("error", final.Error).Msg("job failed")
	} else {
		c.logger.Info().Str("job_id", id.String()).Str("task", string(rec.TaskName)).Str("result_bucket", final.ResultBucket).Msg("job succeeded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ExecuteTimeout)
	defer cancel()
	owner, ferr := c.node.FindSuccessor(ctx, id)
	if ferr == nil && !owner.Equal(c.node.Self()) {
		if err := c.node.RemotePut(ctx, owner, id, final.encode(), saved.Version); err == nil {
			c.node.Store().LocalDelete(id)
		} else {
			c.logger.Warn().Err(err).Str("job_id", id.String()).Str("new_owner", owner.ID.String()).
				Msg("failed to relocate job record after ownership change")
		}
	}
}

// runExecutor invokes the executor and recovers a panic as ExecutorFailed
// (spec §7: "A panic in a worker must be caught and recorded as
// ExecutorFailed").
func (c *Coordinator) runExecutor(rec Record, progress task.ProgressFunc) (artifact task.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("%w: recovered panic: %v", ErrExecutorFailed, r)
		}
	}()
	artifact, execErr := c.executor.Execute(rec.TaskName, rec.SourceBucket, rec.DestBucket, rec.ObjectName, rec.Params, progress)
	if execErr != nil {
		return task.Artifact{}, xerrors.Errorf("%w: %v", ErrExecutorFailed, execErr)
	}
	return artifact, nil
}
