package kernels

// Option customises a Multiply call.
type Option interface {
	apply(*Config)
}

// Config describes the kernel configuration derived from options.
type Config struct {
	// Unroll is the number of columns accumulated per block.
	Unroll int
	// Workers is the number of goroutines the row range may be split across.
	// Values below 2 keep the call on the calling goroutine.
	Workers int
}

// DefaultConfig is used when no options are given. The unroll factor is fixed
// rather than CPU dependent so that results are reproducible across machines.
var DefaultConfig = Config{
	Unroll:  8,
	Workers: 1,
}

// ApplyOptions builds a configuration by applying the provided options on top
// of DefaultConfig.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	return cfg
}

type optionFunc func(*Config)

func (fn optionFunc) apply(cfg *Config) { fn(cfg) }

// WithUnroll sets the unroll factor. Zero selects DefaultUnroll(); anything
// not accepted by SupportedUnroll makes Multiply fail with ErrInvalidArgument.
func WithUnroll(u int) Option {
	return optionFunc(func(cfg *Config) {
		if u == 0 {
			u = DefaultUnroll()
		}
		cfg.Unroll = u
	})
}

// WithWorkers allows the rows to be split across up to k goroutines.
func WithWorkers(k int) Option {
	return optionFunc(func(cfg *Config) {
		if k > 0 {
			cfg.Workers = k
		}
	})
}
