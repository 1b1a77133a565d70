package job

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/rpc"
	"github.com/ringjobs/ringjobs/task"
)

// Wire bodies for the job-coordinator RPC kinds (spec §6: submit_job,
// job_status, list_jobs). Plain JSON, like every other body in this
// system.

type submitJobRequest struct {
	TaskName     task.Kind `json:"task_name"`
	SourceBucket string    `json:"source_bucket"`
	DestBucket   string    `json:"dest_bucket"`
	ObjectName   string    `json:"object_name"`
	Params       string    `json:"params"`
}

type submitJobReply struct {
	JobID string `json:"job_id"`
}

type jobStatusRequest struct {
	JobID string `json:"job_id"`
}

type jobStatusReply struct {
	Found  bool   `json:"found"`
	Record Record `json:"record"`
}

type listJobsReply struct {
	Jobs []Record `json:"jobs"`
}

func (c *Coordinator) registerHandlers() {
	c.node.Handle(rpc.KindSubmitJob, c.handleSubmitJob)
	c.node.Handle(rpc.KindJobStatus, c.handleJobStatus)
	c.node.Handle(rpc.KindListJobs, c.handleListJobs)
}

// handleSubmitJob serves a submit_job RPC forwarded by a peer that routed
// the request here. It goes straight to submitLocal rather than re-running
// Submit's FindSuccessor/forward logic, since the caller already
// established this peer is the owner.
func (c *Coordinator) handleSubmitJob(ctx context.Context, body []byte) ([]byte, error) {
	var req submitJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("job: decode submit_job request: %w", err)
	}
	id, err := computeJobID(req.TaskName, req.SourceBucket, req.DestBucket, req.Params, c.node.Config().HashWidthBytes)
	if err != nil {
		return nil, err
	}
	if err := c.submitLocal(id, req.TaskName, req.SourceBucket, req.DestBucket, req.ObjectName, req.Params); err != nil {
		return nil, err
	}
	return encodeReply(submitJobReply{JobID: id.String()})
}

func (c *Coordinator) handleJobStatus(ctx context.Context, body []byte) ([]byte, error) {
	var req jobStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, xerrors.Errorf("job: decode job_status request: %w", err)
	}
	id, err := parseHexID(req.JobID)
	if err != nil {
		return nil, err
	}
	existing, ok := c.node.Store().LocalGet(id)
	if !ok {
		return encodeReply(jobStatusReply{Found: false})
	}
	rec, err := decodeRecord(existing.Value)
	if err != nil {
		return encodeReply(jobStatusReply{Found: false})
	}
	return encodeReply(jobStatusReply{Found: true, Record: rec})
}

func (c *Coordinator) handleListJobs(ctx context.Context, body []byte) ([]byte, error) {
	return encodeReply(listJobsReply{Jobs: c.ListLocalJobs()})
}

func encodeReply(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("job: encode reply: %w", err)
	}
	return b, nil
}
