// Package store implements the DHT key-value layer (spec §4.5, C5): the
// local key->value map for keys this node owns, and arc selection and bulk
// deletion for handoff on predecessor change. The (predecessor, self]
// ownership check itself lives in the node package.
package store

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/ringjobs/ringjobs/ring"
)

// Record is a DHT key-value record (spec §3): key, value, and a
// monotonically increasing per-key version assigned at the owning peer.
// Checksum is an HMAC-SHA256 integrity tag over Value, carried forward
// from the original system's Storage.make_digest — an at-rest integrity
// check, not a security boundary (spec's Non-goals exclude secure channels
// and cryptographic proof of completion, not local tamper detection).
type Record struct {
	Key      ring.ID
	Value    []byte
	Version  uint64
	Checksum string
}

func checksum(secret, value []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(value)
	return hex.EncodeToString(mac.Sum(nil))
}

// Store holds the records this node currently owns, keyed by the hex form
// of the identifier (ring.ID isn't comparable as a map key directly).
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	secret  []byte // HMAC key for the integrity checksum
}

// New returns an empty Store. secret seeds the integrity checksum HMAC; the
// node's own identifier is a reasonable default (matching the original
// system, which falls back to the node id when no separate secret is
// configured).
func New(secret []byte) *Store {
	return &Store{
		records: make(map[string]Record),
		secret:  secret,
	}
}

func keyOf(id ring.ID) string {
	return id.String()
}

// LocalPut assigns the next version for key and stores value, returning the
// resulting record. This is the owner-side write path (spec §4.5
// local_put): no ownership check, because the caller (the job/node layer)
// has already established this node owns key.
func (s *Store) LocalPut(key ring.ID, value []byte) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := uint64(1)
	if existing, ok := s.records[keyOf(key)]; ok {
		version = existing.Version + 1
	}
	rec := Record{Key: key, Value: value, Version: version, Checksum: checksum(s.secret, value)}
	s.records[keyOf(key)] = rec
	return rec
}

// LocalGet returns the record for key, if present and passing its
// integrity check.
func (s *Store) LocalGet(key ring.ID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[keyOf(key)]
	if !ok {
		return Record{}, false
	}
	if checksum(s.secret, rec.Value) != rec.Checksum {
		return Record{}, false
	}
	return rec, true
}

// LocalDelete removes key unconditionally.
func (s *Store) LocalDelete(key ring.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, keyOf(key))
}

// AcceptVersioned stores value under key only if version is newer than any
// record already held for that key (spec §4.5: handoff "is best-effort and
// idempotent: the receiver accepts only keys whose versions are newer than
// its own for the same key"). It reports whether the write was applied.
func (s *Store) AcceptVersioned(key ring.ID, value []byte, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[keyOf(key)]; ok && existing.Version >= version {
		return false
	}
	s.records[keyOf(key)] = Record{Key: key, Value: value, Version: version, Checksum: checksum(s.secret, value)}
	return true
}

// KeysInArc returns every locally stored record whose key lies on the
// clockwise arc strictly after lowExclusive and up to and including
// highInclusive — the arc used both for the ownership invariant (spec §3:
// "every key stored locally ... satisfies key ∈ (predecessor.id, self.id]")
// and for handoff (spec §4.5).
func (s *Store) KeysInArc(lowExclusive, highInclusive ring.ID) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if ring.Between(rec.Key, lowExclusive, highInclusive, true) {
			out = append(out, rec)
		}
	}
	return out
}

// DeleteKeys removes every key in keys. Used by the handoff sender after a
// successful transfer RPC (spec §4.5: "the sender deletes handed-off keys
// only after the RPC succeeds").
func (s *Store) DeleteKeys(keys []ring.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.records, keyOf(k))
	}
}

// All returns every locally stored record (used by the job coordinator's
// ListLocalJobs).
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}
