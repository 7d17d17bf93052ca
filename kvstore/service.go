// Package kvstore implements the in-memory, versioned, linearizable
// key-value store (component D of the design): a single mutual-exclusion
// region serializes every GET and PUT, and a per-client dedup cache gives
// PUT at-most-once semantics under retries.
//
// kvstore has no notion of an unreliable transport; it is a plain,
// reliable, synchronous API. Drop simulation lives one layer up, in
// [github.com/joeycumines/distkv/kvnet].
package kvstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/joeycumines/distkv/kverr"
	"github.com/joeycumines/distkv/kvproto"
	"github.com/joeycumines/distkv/telemetry"
)

// entry is the stored (value, version) pair for one key. Version 0 never
// appears in entries: its absence from the map IS version 0.
type entry struct {
	value   []byte
	version uint64
}

// dedupEntry is the latest (seq, reply) observed for one client, giving
// PUT its at-most-once semantics under retries.
type dedupEntry struct {
	seq   uint64
	reply kvproto.PutReply
	err   error
}

// Service is the key-value store. The zero value is not usable; construct
// with [New]. Service is safe for concurrent use: every exported method
// takes the same mutex, by design - a single critical section is what
// makes every Get/Put linearizable with respect to every other, at the
// cost of serializing all access through one lock rather than splitting
// reads and writes.
type Service struct {
	mu      sync.Mutex
	log     *telemetry.Logger
	entries map[string]entry
	dedup   map[string]dedupEntry
}

// New constructs an empty Service.
func New(opts ...Option) *Service {
	cfg := resolveOptions(opts)
	return &Service{
		log:     cfg.log,
		entries: make(map[string]entry),
		dedup:   make(map[string]dedupEntry),
	}
}

// Get performs a read. GET is idempotent and side-effect free: it never
// touches the dedup cache, and may be retried by a caller without limit.
//
// Returns [kverr.ErrNoKey]-shaped error if key does not exist.
func (s *Service) Get(_ context.Context, key []byte) (kvproto.GetReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[string(key)]
	if !ok {
		return kvproto.GetReply{}, kverr.New(kverr.NoKey, fmt.Sprintf("key %q", key))
	}
	return kvproto.GetReply{Value: e.value, Version: e.version}, nil
}

// Put performs a conditional write:
//
//  1. If the dedup cache has a matching (ClientID, Seq), the recorded
//     reply is returned verbatim, without re-executing anything.
//  2. Otherwise the write is attempted against the current (or absent)
//     entry, the reply is recorded in the dedup cache, and returned.
//
// A Seq strictly less than the cached Seq for ClientID is a caller bug:
// a correct, single-threaded Clerk never reuses or rewinds its sequence
// counter, so this should never happen in practice. Put logs it as a
// warning and executes the write anyway rather than rejecting it outright,
// since doing so cannot corrupt the store and gives the operator a signal
// without imposing a stronger guarantee than is actually needed.
func (s *Service) Put(_ context.Context, req kvproto.PutRequest) (kvproto.PutReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.dedup[req.ClientID]; ok {
		switch {
		case req.Seq == d.seq:
			s.log.Debug().Str("client_id", req.ClientID).Uint64("seq", req.Seq).Log("put: served from dedup cache")
			return d.reply, d.err
		case req.Seq < d.seq:
			s.log.Warning().
				Str("client_id", req.ClientID).
				Uint64("seq", req.Seq).
				Uint64("cached_seq", d.seq).
				Log("put: stale sequence number, executing anyway")
		}
	}

	reply, err := s.apply(req)
	s.dedup[req.ClientID] = dedupEntry{seq: req.Seq, reply: reply, err: err}
	return reply, err
}

// apply performs the actual conditional mutation. Must be called with s.mu
// held.
func (s *Service) apply(req kvproto.PutRequest) (kvproto.PutReply, error) {
	key := string(req.Key)
	cur, exists := s.entries[key]

	if !exists {
		if req.ExpectedVersion != 0 {
			return kvproto.PutReply{}, kverr.New(kverr.NoKey, fmt.Sprintf("key %q", req.Key))
		}
		s.entries[key] = entry{value: req.Value, version: 1}
		s.log.Debug().Str("key", key).Uint64("version", 1).Log("put: created")
		return kvproto.PutReply{Version: 1}, nil
	}

	if req.ExpectedVersion != cur.version {
		return kvproto.PutReply{}, kverr.New(kverr.VersionMismatch, fmt.Sprintf(
			"key %q: expected version %d, current version %d", req.Key, req.ExpectedVersion, cur.version,
		))
	}

	newVersion := cur.version + 1
	s.entries[key] = entry{value: req.Value, version: newVersion}
	s.log.Debug().Str("key", key).Uint64("version", newVersion).Log("put: updated")
	return kvproto.PutReply{Version: newVersion}, nil
}
