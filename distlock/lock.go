// Package distlock implements a distributed mutual-exclusion lock
// (component F) using only version-conditional writes against a
// [github.com/joeycumines/distkv/clerk.Clerk]. No server-side lock
// primitive is involved: the key's existence and version, observed
// through the Clerk's three-outcome contract, is the sole source of
// truth.
package distlock

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/joeycumines/distkv/clerk"
	"github.com/joeycumines/distkv/idgen"
	"github.com/joeycumines/distkv/kverr"
	"github.com/joeycumines/distkv/telemetry"
)

// defaultRetryInterval is how long Acquire sleeps between contention
// rounds, e.g. after observing the lock held by another owner, or after
// losing a takeover race.
const defaultRetryInterval = 10 * time.Millisecond

// Lock is a distributed mutual-exclusion lock over a single key. Two Lock
// instances targeting the same key are distinct actors; each allocates its
// own high-entropy owner-id at construction.
//
// The zero value is not usable; construct with [New].
type Lock struct {
	clerk         *clerk.Clerk
	key           []byte
	ownerID       []byte
	freeMarker    []byte
	retryInterval time.Duration
	log           *telemetry.Logger
}

// New constructs a Lock over key, using c for all store access. freeMarker
// is the value conventionally stored to mean "not held"; pass nil or an
// empty slice for the usual empty-token convention.
func New(c *clerk.Clerk, key string, freeMarker []byte, opts ...Option) *Lock {
	cfg := resolveOptions(opts)
	return &Lock{
		clerk:         c,
		key:           []byte(key),
		ownerID:       []byte(idgen.New()),
		freeMarker:    append([]byte(nil), freeMarker...),
		retryInterval: cfg.retryInterval,
		log:           cfg.log,
	}
}

// OwnerID returns this Lock instance's owner-id.
func (l *Lock) OwnerID() string { return string(l.ownerID) }

// Acquire attempts to take ownership of the lock, retrying through
// contention until it succeeds or timeout elapses. It implements the
// following state machine:
//
//   - if the key is absent, attempt to create it at version 0 (the usual
//     "no entry" convention);
//   - if the key is present holding this instance's own owner-id, it is
//     already held (e.g. recovered after an earlier Maybe) - return true;
//   - if the key is present holding the free marker, attempt a
//     version-conditional takeover;
//   - if the key is present holding any other owner-id, it is held by
//     someone else - wait and retry;
//   - a Maybe from either the create or takeover PUT is resolved by
//     re-reading the key and comparing its value to this instance's
//     owner-id.
//
// Under no contention, Acquire terminates within two round trips (one
// read, one create-or-takeover). Under contention, it terminates when
// timeout elapses, returning false.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.tryAcquireOnce(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		if err := sleepUntil(ctx, l.retryInterval); err != nil {
			return false, err
		}
	}
}

func (l *Lock) tryAcquireOnce(ctx context.Context) (bool, error) {
	value, version, err := l.clerk.Get(ctx, l.key)
	switch {
	case errors.Is(err, kverr.ErrNoKey):
		return l.tryCreate(ctx)

	case errors.Is(err, kverr.ErrTimeout):
		// GET never returns Maybe; a Timeout here just means no answer
		// was received in time. The store is unchanged (GET is
		// read-only) - let the caller's retry loop try again.
		return false, nil

	case err != nil:
		// A genuine cancellation (ctx deadline/cancel) should stop the
		// Acquire loop rather than spin.
		return false, err

	case bytes.Equal(value, l.ownerID):
		// Already held, e.g. recovered after the creating/taking-over PUT
		// previously returned Maybe.
		return true, nil

	case bytes.Equal(value, l.freeMarker):
		return l.tryTakeover(ctx, version)

	default:
		// Held by some other owner-id.
		return false, nil
	}
}

func (l *Lock) tryCreate(ctx context.Context) (bool, error) {
	_, err := l.clerk.Put(ctx, l.key, l.ownerID, 0)
	switch {
	case err == nil:
		l.log.Debug().Str("owner_id", l.OwnerID()).Log("lock: created")
		return true, nil
	case errors.Is(err, kverr.ErrVersionMismatch), errors.Is(err, kverr.ErrNoKey):
		// Someone else beat us to creation; let the caller retry the loop.
		return false, nil
	case errors.Is(err, kverr.ErrMaybe):
		return l.resolveAmbiguous(ctx)
	default:
		return false, err
	}
}

func (l *Lock) tryTakeover(ctx context.Context, observedVersion uint64) (bool, error) {
	_, err := l.clerk.Put(ctx, l.key, l.ownerID, observedVersion)
	switch {
	case err == nil:
		l.log.Debug().Str("owner_id", l.OwnerID()).Log("lock: took over")
		return true, nil
	case errors.Is(err, kverr.ErrVersionMismatch):
		// Lost the race; let the caller retry the loop.
		return false, nil
	case errors.Is(err, kverr.ErrMaybe):
		return l.resolveAmbiguous(ctx)
	default:
		return false, err
	}
}

// resolveAmbiguous re-reads the lock key to disambiguate a Maybe: the
// write is considered to have succeeded iff the key's current value is
// this instance's own owner-id.
func (l *Lock) resolveAmbiguous(ctx context.Context) (bool, error) {
	value, _, err := l.clerk.Get(ctx, l.key)
	if err != nil {
		// A failed re-read (including NoKey, Timeout, or any other error)
		// leaves us unable to confirm ownership; the caller's retry loop
		// will simply try again.
		return false, nil
	}
	return bytes.Equal(value, l.ownerID), nil
}

// Release gives up ownership of the lock, if this instance currently holds
// it. Releasing a lock this instance does not own is a silent no-op: it is
// the caller's bug, but must not corrupt state.
//
// A Maybe on the releasing PUT is treated as success iff a subsequent read
// shows the value is no longer this instance's owner-id; otherwise Release
// retries once more before giving up.
func (l *Lock) Release(ctx context.Context) error {
	value, version, err := l.clerk.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, kverr.ErrNoKey) {
			return nil
		}
		return err
	}
	if !bytes.Equal(value, l.ownerID) {
		return nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, err := l.clerk.Put(ctx, l.key, l.freeMarker, version)
		switch {
		case err == nil:
			l.log.Debug().Str("owner_id", l.OwnerID()).Log("lock: released")
			return nil

		case errors.Is(err, kverr.ErrVersionMismatch), errors.Is(err, kverr.ErrNoKey):
			// Someone else already mutated the key; we no longer hold it,
			// under any interpretation that matters for Release.
			return nil

		case errors.Is(err, kverr.ErrMaybe):
			rvalue, rversion, rerr := l.clerk.Get(ctx, l.key)
			if rerr == nil && !bytes.Equal(rvalue, l.ownerID) {
				return nil
			}
			if rerr != nil && errors.Is(rerr, kverr.ErrNoKey) {
				return nil
			}
			if rerr != nil {
				return rerr
			}
			// Still observed as ours: retry the release once more with
			// the freshly observed version.
			version = rversion
			continue

		default:
			return err
		}
	}
	return kverr.New(kverr.Maybe, "release: could not confirm after retry")
}

// WithLock runs fn while holding the lock, guaranteeing Release is called
// on every exit path. Returns false, nil if the lock could not be acquired
// within timeout; fn is not invoked in that case.
func WithLock(ctx context.Context, l *Lock, timeout time.Duration, fn func() error) (bool, error) {
	ok, err := l.Acquire(ctx, timeout)
	if err != nil || !ok {
		return ok, err
	}
	defer l.Release(ctx)
	return true, fn()
}

func sleepUntil(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
