// Package objectstore defines the bucket-oriented blob store contract job
// execution reads input from and writes results to (spec §1, C7a: "out of
// scope, as contract only: object-store client"). This package ships only
// the contract and an in-memory fake; there is no adapter to a real object
// store, and cmd/dhtnode wires the fake.
package objectstore

import (
	"bytes"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// ErrNoSuchBucket and ErrNoSuchObject are the sentinel lookup failures a
// Store implementation should return so callers can distinguish "nothing
// there" from a transport failure.
var (
	ErrNoSuchBucket = xerrors.New("objectstore: no such bucket")
	ErrNoSuchObject = xerrors.New("objectstore: no such object")
)

// Object is a single stored blob plus the version tag PutObject assigned
// it, mirroring the original node's fget_object/fput_object round-trip.
type Object struct {
	Bucket  string
	Key     string
	Data    []byte
	Version string
}

// Store is the adapter contract (spec §1 C7a): list buckets, fetch an
// object, and write one. Implementations must be safe for concurrent use
// since job workers call them from a shared pool.
type Store interface {
	ListBuckets() ([]string, error)
	GetObject(bucket, key string) (Object, error)
	PutObject(bucket, key string, data []byte) (Object, error)
}

// Fake is an in-memory Store, used by the api tests and by cmd/dhtnode so
// neither depends on a live MinIO deployment.
type Fake struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Object
}

// NewFake returns an empty in-memory store seeded with the given bucket
// names (created empty).
func NewFake(buckets ...string) *Fake {
	f := &Fake{buckets: make(map[string]map[string]Object)}
	for _, b := range buckets {
		f.buckets[b] = make(map[string]Object)
	}
	return f
}

func (f *Fake) ListBuckets() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		out = append(out, name)
	}
	return out, nil
}

func (f *Fake) GetObject(bucket, key string) (Object, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		return Object{}, xerrors.Errorf("objectstore: bucket %q: %w", bucket, ErrNoSuchBucket)
	}
	obj, ok := objs[key]
	if !ok {
		return Object{}, xerrors.Errorf("objectstore: object %q/%q: %w", bucket, key, ErrNoSuchObject)
	}
	return obj, nil
}

func (f *Fake) PutObject(bucket, key string, data []byte) (Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	objs, ok := f.buckets[bucket]
	if !ok {
		objs = make(map[string]Object)
		f.buckets[bucket] = objs
	}
	obj := Object{
		Bucket:  bucket,
		Key:     key,
		Data:    bytes.Clone(data),
		Version: uuid.NewString(),
	}
	objs[key] = obj
	return obj, nil
}
