// Package task models the job payload processors (spec §4.6, C7b): the
// fixed set of task kinds the original SuperDARN processing pipeline
// supports, and the executor contract invoked by the job coordinator.
package task

import "golang.org/x/xerrors"

// Kind is a tagged variant over the task names the coordinator accepts
// (spec §9 "Dynamic dispatch in the source": "a tagged variant Task { Fit,
// Despeck, MakeGrid(params), … } parsed from the incoming string with an
// explicit unknown-task error"). The six kinds mirror the original
// pipeline's Tasks switcher one-for-one.
type Kind string

const (
	Fitacf      Kind = "fitacf"
	Despeck     Kind = "despeck"
	Combine     Kind = "combine"
	CombineGrid Kind = "combine_grid"
	MakeGrid    Kind = "make_grid"
	MapGrd      Kind = "map_grd"
)

// ErrUnknownKind is returned by ParseKind for any string outside the fixed
// set above.
var ErrUnknownKind = xerrors.New("task: unknown task kind")

// ParseKind validates name against the known task kinds.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case Fitacf, Despeck, Combine, CombineGrid, MakeGrid, MapGrd:
		return Kind(name), nil
	default:
		return "", xerrors.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// String satisfies fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Artifact is the result of a successful execution: a reference into the
// object store plus an optional inline preview, mirroring the original
// pipeline's destfile-plus-rendered-thumbnail result shape.
type Artifact struct {
	// Bucket and Key locate the written object in the object store.
	Bucket string
	Key    string

	// Preview is an optional small rendered summary of the artifact, as
	// raw bytes. The job coordinator records only Bucket and Key; Preview
	// is not stored in the job record.
	Preview []byte
}

// ProgressFunc reports execution progress as a percentage in [0, 100].
// Executors call it as often as convenient; the job coordinator persists
// the most recent value (spec §4.6: "every progress update transitions the
// record to Running(pct) and persists locally").
type ProgressFunc func(pct int)

// Executor runs one task kind against source/dest object-store locations.
// Concrete adapters (shelling out to the original radar-processing
// binaries, or a test fake) implement this; the job coordinator depends
// only on the interface (spec §4.1 C7: "a trait execute(task, source,
// dest, params) -> Result<Artifact>").
type Executor interface {
	Execute(kind Kind, sourceBucket, destBucket, objectName, params string, progress ProgressFunc) (Artifact, error)
}
