// Package job implements the job coordinator (spec §4.6, C6): job record
// deduplication keyed by content hash, routing through the Chord ring, a
// bounded worker pool draining a FIFO pending queue, and handling of
// ownership changes mid-execution.
package job

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/xerrors"

	"github.com/ringjobs/ringjobs/ring"
	"github.com/ringjobs/ringjobs/task"
)

// Phase is the job lifecycle state (spec §3: "state ∈ {Pending, Running,
// Succeeded(pct=100), Failed, Unknown}"). Unknown is never persisted — it
// is what callers see when no record exists anywhere reachable.
type Phase string

const (
	Pending   Phase = "pending"
	Running   Phase = "running"
	Succeeded Phase = "succeeded"
	Failed    Phase = "failed"
	Unknown   Phase = "unknown"
)

// Record is the job record of spec §3, a specialization of the generic DHT
// record: it is persisted through the same store.Store as any other key,
// JSON-encoded as the record's value.
type Record struct {
	JobID        string    `json:"job_id"`
	TaskName     task.Kind `json:"task_name"`
	SourceBucket string    `json:"source_bucket"`
	DestBucket   string    `json:"dest_bucket"`
	ObjectName   string    `json:"object_name"`
	Params       string    `json:"params"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Phase        Phase     `json:"phase"`
	Progress     int       `json:"progress"` // meaningful when Phase == Running or Succeeded (100)
	ResultBucket string    `json:"result_bucket,omitempty"`
	ResultKey    string    `json:"result_key,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func (r Record) encode() []byte {
	b, _ := json.Marshal(r)
	return b
}

func decodeRecord(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, xerrors.Errorf("job: decode record: %w", err)
	}
	return r, nil
}

// computeJobID derives the deterministic job id spec §3 requires: a hash
// of (task, source_bucket, dest_bucket, params) so identical submissions
// collide and deduplicate, sized to the ring's identifier width so it can
// double as a DHT key.
func computeJobID(taskName task.Kind, sourceBucket, destBucket, params string, widthBytes int) (ring.ID, error) {
	buf := []byte(string(taskName) + "\x00" + sourceBucket + "\x00" + destBucket + "\x00" + params)
	return ring.HashID(buf, widthBytes)
}

func parseHexID(hexStr string) (ring.ID, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, xerrors.Errorf("job: decode job id %q: %w", hexStr, err)
	}
	return ring.ID(raw), nil
}
