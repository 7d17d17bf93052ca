// Package telemetry provides the package-level structured logger shared by
// kvstore, clerk, and distlock. It instantiates
// [github.com/joeycumines/logiface] using the
// [github.com/joeycumines/stumpy] backend, following exactly the
// construction idiom shown in that package's own example:
//
//	stumpy.L.New(stumpy.L.WithStumpy())
//
// A package-level default logger is exposed via [Default] and may be
// replaced with [SetDefault], guarded the same way
// eventloop.SetStructuredLogger/getGlobalLogger guard their (hand-rolled)
// global logger elsewhere in this module's lineage - except here the
// logger itself is a real structured-logging library, rather than a
// bespoke interface.
package telemetry

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type used throughout distkv.
type Logger = logiface.Logger[*stumpy.Event]

var global struct {
	sync.RWMutex
	logger *Logger
}

func init() {
	global.logger = newDefault()
}

func newDefault() *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy())
}

// Default returns the current package-level logger. Safe for concurrent
// use alongside [SetDefault].
func Default() *Logger {
	global.RLock()
	defer global.RUnlock()
	return global.logger
}

// SetDefault replaces the package-level logger used by components
// constructed without an explicit WithLogger option. Passing nil restores
// the default stumpy-backed logger.
func SetDefault(l *Logger) {
	global.Lock()
	defer global.Unlock()
	if l == nil {
		l = newDefault()
	}
	global.logger = l
}

// Noop returns a logger with logging disabled entirely, for use in tests
// that want to assert behavior without log output. logiface gates all
// field-building work behind the configured level, so a disabled logger is
// effectively free.
func Noop() *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](logiface.LevelDisabled),
	)
}
