package distlock

import (
	"time"

	"github.com/joeycumines/distkv/telemetry"
)

// Option configures a [Lock] at construction time.
type Option func(*config)

type config struct {
	// retryInterval is how long Acquire waits between contention rounds.
	// Defaults to defaultRetryInterval, if 0.
	retryInterval time.Duration
	log           *telemetry.Logger
}

func resolveOptions(opts []Option) config {
	cfg := config{log: telemetry.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.retryInterval == 0 {
		cfg.retryInterval = defaultRetryInterval
	}
	return cfg
}

// WithRetryInterval overrides how long Acquire sleeps between contention
// rounds. Defaults to 10ms, if unset.
func WithRetryInterval(d time.Duration) Option {
	return func(c *config) { c.retryInterval = d }
}

// WithLogger overrides the logger used for this Lock's structured log
// output. Defaults to telemetry.Default().
func WithLogger(l *telemetry.Logger) Option {
	return func(c *config) { c.log = l }
}
