// Package clerk implements the fault-tolerant client (component E): a
// retry loop that turns the transport's best-effort delivery into the
// three-outcome contract of [github.com/joeycumines/distkv/kverr] (OK,
// definitive failure, or Maybe/Timeout).
package clerk

import (
	"context"
	"errors"
	"sync"

	"github.com/joeycumines/distkv/idgen"
	"github.com/joeycumines/distkv/kverr"
	"github.com/joeycumines/distkv/kvproto"
	"github.com/joeycumines/distkv/telemetry"
	"github.com/joeycumines/distkv/transport"
)

// KVClient is the narrow interface the Clerk depends on: the call
// boundary to the key-value store, however it is reached. A
// [github.com/joeycumines/distkv/kvnet.Client] satisfies this over a
// simulated unreliable transport; a bare [github.com/joeycumines/distkv/kvstore.Service]
// satisfies it directly, for tests that want a perfectly reliable
// backend without constructing a Simulator.
//
// This mirrors the corpus's preference for depending on the narrowest
// possible interface at a call boundary (e.g. inprocgrpc.Channel is
// consumed through grpc.ClientConnInterface, not the concrete type).
type KVClient interface {
	Get(ctx context.Context, key []byte) (kvproto.GetReply, error)
	Put(ctx context.Context, req kvproto.PutRequest) (kvproto.PutReply, error)
}

// Clerk is a single logical client of the key-value store. Each Clerk owns
// a durable-for-the-process client-id and a strictly monotonic sequence
// counter; it is intended for use by one caller at a time, though the
// sequence counter itself is safe for concurrent use.
type Clerk struct {
	clientID string
	client   KVClient
	retry    RetryPolicy
	log      *telemetry.Logger

	mu  sync.Mutex
	seq uint64
}

// New constructs a Clerk with a fresh client-id.
func New(client KVClient, opts ...Option) *Clerk {
	cfg := resolveOptions(opts)
	return &Clerk{
		clientID: idgen.New(),
		client:   client,
		retry:    resolveRetryPolicy(cfg.retry),
		log:      cfg.log,
	}
}

// ClientID returns this Clerk's stable client identifier.
func (c *Clerk) ClientID() string { return c.clientID }

// nextSeq allocates a fresh sequence number for a new logical operation.
// Guarded so concurrent callers sharing a Clerk never reuse a seq; the
// Clerk is still only intended for one in-flight logical operation at a
// time.
func (c *Clerk) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Get retrieves the current (value, version) for key. GET is idempotent
// at the server, so the Clerk retries indefinitely up to its retry
// budget; it never returns Maybe, since a read has no side effect whose
// ambiguity would matter to the caller.
//
// Returns a [kverr.Error] wrapping [kverr.NoKey] if the key does not
// exist, or [kverr.Timeout] if the retry budget is exhausted without ever
// hearing from the server.
func (c *Clerk) Get(ctx context.Context, key []byte) ([]byte, uint64, error) {
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		rep, err := c.client.Get(ctx, key)
		switch {
		case err == nil:
			return rep.Value, rep.Version, nil
		case transport.IsDropped(err):
			c.log.Debug().Str("client_id", c.clientID).Log("get: dropped, retrying")
			if sleepErr := c.retry.sleep(ctx, attempt); sleepErr != nil {
				return nil, 0, sleepErr
			}
		case errors.Is(err, kverr.ErrNoKey):
			return nil, 0, err
		default:
			return nil, 0, err
		}
	}
	return nil, 0, kverr.New(kverr.Timeout, "get: retry budget exhausted")
}

// Put performs a conditional write: apply value to key iff the server's
// current version equals expectedVersion (0 meaning "key must be
// absent"). The outcome is classified as follows:
//
//   - OK: the write (or an earlier, deduplicated retry of it) succeeded.
//   - a definitive [kverr.NoKey] or [kverr.VersionMismatch]: the first
//     attempt to reach the server found that condition; the store is
//     unchanged.
//   - [kverr.Maybe]: a later attempt found [kverr.NoKey] or
//     [kverr.VersionMismatch] after an earlier attempt was dropped -
//     meaning the earlier attempt may have been the one that actually
//     applied. The caller must re-read to resolve.
//   - [kverr.Maybe] is also returned when the retry budget is exhausted:
//     every attempt was dropped, and a request-side drop cannot be told
//     apart from a reply-side one, so each drop counts as possibly sent.
//   - [kverr.Timeout]: the retry budget allowed no attempt at all
//     (MaxAttempts below 1), so nothing was ever sent.
func (c *Clerk) Put(ctx context.Context, key, value []byte, expectedVersion uint64) (uint64, error) {
	seq := c.nextSeq()
	everSent := false

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		rep, err := c.client.Put(ctx, kvproto.PutRequest{
			Key:             key,
			Value:           value,
			ExpectedVersion: expectedVersion,
			ClientID:        c.clientID,
			Seq:             seq,
		})

		switch {
		case err == nil:
			return rep.Version, nil

		case transport.IsDropped(err):
			// The server may or may not have seen this attempt: we cannot
			// tell, so from here on any definitive failure is ambiguous
			// evidence rather than proof.
			everSent = true
			c.log.Debug().Str("client_id", c.clientID).Uint64("seq", seq).Log("put: dropped, retrying")
			if sleepErr := c.retry.sleep(ctx, attempt); sleepErr != nil {
				return 0, sleepErr
			}

		case errors.Is(err, kverr.ErrVersionMismatch):
			if !everSent {
				return 0, err
			}
			return 0, kverr.New(kverr.Maybe, "version mismatch observed after an earlier attempt may have reached the server")

		case errors.Is(err, kverr.ErrNoKey):
			if !everSent {
				return 0, err
			}
			return 0, kverr.New(kverr.Maybe, "no-key observed after an earlier attempt may have reached the server")

		default:
			return 0, err
		}
	}

	if everSent {
		return 0, kverr.New(kverr.Maybe, "put: retry budget exhausted after at least one attempt may have reached the server")
	}
	return 0, kverr.New(kverr.Timeout, "put: retry budget exhausted, no attempt ever reached the server")
}
