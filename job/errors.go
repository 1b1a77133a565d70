package job

import "golang.org/x/xerrors"

// Errors of spec §7's "Job" category. ErrOverloaded is returned by Submit
// (and by the submit_job RPC handler); ErrExecutorFailed wraps execution
// failures whose text is stored on the job record and surfaced through
// job_status.
var (
	// ErrOverloaded means the pending-job queue's high-water mark was hit
	// (spec §5 "Resources": "no unbounded queues").
	ErrOverloaded = xerrors.New("job: queue overloaded")

	// ErrExecutorFailed wraps any error (including a recovered panic) the
	// task.Executor produced.
	ErrExecutorFailed = xerrors.New("job: executor failed")

	// ErrArtifactUnavailable means execution finished but the result could
	// not be written to the object store.
	ErrArtifactUnavailable = xerrors.New("job: artifact unavailable")
)
