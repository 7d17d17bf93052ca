package kvstore

import "github.com/joeycumines/distkv/telemetry"

// Option configures a [Service] at construction time, following the
// functional-options idiom used throughout the corpus (e.g.
// inprocgrpc.NewChannel, logiface-stumpy's LoggerFactory options).
type Option func(*config)

type config struct {
	log *telemetry.Logger
}

func resolveOptions(opts []Option) config {
	cfg := config{log: telemetry.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithLogger overrides the logger used for this Service's structured log
// output. Defaults to telemetry.Default().
func WithLogger(l *telemetry.Logger) Option {
	return func(c *config) { c.log = l }
}
