package clerk

import "github.com/joeycumines/distkv/telemetry"

// Option configures a [Clerk] at construction time.
type Option func(*config)

type config struct {
	retry RetryPolicy
	log   *telemetry.Logger
}

func resolveOptions(opts []Option) config {
	cfg := config{log: telemetry.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithRetryPolicy overrides the default [RetryPolicy].
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *config) { c.retry = p }
}

// WithLogger overrides the logger used for this Clerk's structured log
// output. Defaults to telemetry.Default().
func WithLogger(l *telemetry.Logger) Option {
	return func(c *config) { c.log = l }
}
