// Package transport models the unreliable, function-call-shaped request path
// between a clerk and the key-value store. There is no wire protocol and no
// network: a "dropped" message is simulated by declining to deliver the
// request to, or the reply back from, an in-process call.
//
// The call boundary is modeled after inprocgrpc's Channel.Invoke: a
// synchronous, in-process RPC-shaped call that reports failure using
// [google.golang.org/grpc/codes] and [google.golang.org/grpc/status],
// even though nothing here touches a network.
package transport

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math/bits"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config configures a [Simulator]. The zero value is reliable (Unreliable
// is false), matching spec default behavior.
type Config struct {
	// Unreliable enables drop simulation at all. If false, DropRate is
	// ignored and no message is ever dropped.
	Unreliable bool

	// DropRate is the independent Bernoulli(p) probability, in [0, 1],
	// applied separately to the request direction and the reply
	// direction of each call. Values outside [0, 1] are clamped.
	DropRate float64
}

// Simulator draws independent request/reply drop decisions for each call
// made through [Call]. It is safe for concurrent use; it holds no mutable
// state beyond the atomically advanced state of its random source.
type Simulator struct {
	cfg Config

	// randFloat64 returns a uniform value in [0, 1). Overridable for tests;
	// defaults to a source seeded from crypto/rand, mirroring catrate's
	// var-level indirection (timeNow/timeNewTicker) for deterministic
	// testing without a global RNG.
	randFloat64 func() float64
}

// NewSimulator constructs a Simulator with the given configuration.
func NewSimulator(cfg Config) *Simulator {
	if cfg.DropRate < 0 {
		cfg.DropRate = 0
	} else if cfg.DropRate > 1 {
		cfg.DropRate = 1
	}
	return &Simulator{
		cfg:         cfg,
		randFloat64: newSeededFloat64Source(),
	}
}

// dropped draws one Bernoulli(p) variable.
func (s *Simulator) dropped() bool {
	if !s.cfg.Unreliable || s.cfg.DropRate <= 0 {
		return false
	}
	if s.cfg.DropRate >= 1 {
		return true
	}
	return s.randFloat64() < s.cfg.DropRate
}

// droppedErr builds the "dropped" failure: a dropped request or reply is reported the
// same way, since the caller cannot distinguish "never arrived" from
// "arrived and executed, but the reply never came back."
func droppedErr() error {
	return status.Error(codes.Unavailable, "transport: message dropped")
}

// IsDropped reports whether err is the "dropped" signal produced by [Call].
func IsDropped(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// Call delivers req to handler through the simulated unreliable transport.
//
// Three outcomes are possible:
//
//  1. The request is dropped: handler is never invoked; Call returns the
//     zero Rep and a "dropped" error.
//  2. The request arrives but the reply is dropped: handler runs to
//     completion (its side effects, if any, are real), but Call still
//     returns the zero Rep and a "dropped" error.
//  3. Neither is dropped: Call returns exactly what handler returned.
//
// Call also returns ctx.Err() without invoking handler if ctx is already
// done, so a canceled/expired caller never triggers server-side work.
func Call[Req, Rep any](ctx context.Context, s *Simulator, req Req, handler func(context.Context, Req) (Rep, error)) (Rep, error) {
	var zero Rep

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if s.dropped() {
		return zero, droppedErr()
	}

	rep, err := handler(ctx, req)

	if s.dropped() {
		return zero, droppedErr()
	}

	return rep, err
}

// newSeededFloat64Source returns a float64 generator seeded from
// crypto/rand, avoiding a dependency on math/rand's global, lock-guarded
// source for a component that is invoked on every single RPC.
func newSeededFloat64Source() func() float64 {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed seed rather than panicking a library constructor.
		seed = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	}
	var state atomic.Uint64
	state.Store(binary.BigEndian.Uint64(seed[:]))
	if state.Load() == 0 {
		state.Store(0x9E3779B97F4A7C15)
	}
	return func() float64 {
		// splitmix64, sufficient for drop-probability sampling; this is
		// not a cryptographic or statistical-quality requirement. The
		// state is advanced atomically so concurrent calls do not race.
		z := state.Add(0x9E3779B97F4A7C15)
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z = z ^ (z >> 31)
		return float64(bits.RotateLeft64(z, 0)>>11) / (1 << 53)
	}
}
