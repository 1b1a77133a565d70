package main

import (
	"github.com/ringjobs/ringjobs/objectstore"
	"github.com/ringjobs/ringjobs/task"
)

// passthroughExecutor is the process entry point's stand-in task.Executor.
// Job payload processors (the original SuperDARN radar-processing
// binaries) are out of scope (spec §1); this copies the source object to
// the destination bucket unchanged so the end-to-end job lifecycle (spec
// §8 scenario 1: submit, Pending/Running, Succeeded) is exercisable
// without a real processing pipeline wired in.
type passthroughExecutor struct {
	objects objectstore.Store
}

func newPassthroughExecutor(objects objectstore.Store) *passthroughExecutor {
	return &passthroughExecutor{objects: objects}
}

func (e *passthroughExecutor) Execute(kind task.Kind, sourceBucket, destBucket, objectName, params string, progress task.ProgressFunc) (task.Artifact, error) {
	if progress != nil {
		progress(0)
	}
	obj, err := e.objects.GetObject(sourceBucket, objectName)
	if err != nil {
		return task.Artifact{}, err
	}
	if progress != nil {
		progress(50)
	}
	out, err := e.objects.PutObject(destBucket, objectName, obj.Data)
	if err != nil {
		return task.Artifact{}, err
	}
	if progress != nil {
		progress(100)
	}
	return task.Artifact{Bucket: out.Bucket, Key: out.Key}, nil
}
