package kernel

import "time"

const (
	defaultMaxIterations    = 10
	defaultIterationTimeout = 60 * time.Second
)

// Config holds kernel tuning parameters. IterationTimeout bounds one full
// request/respond/tool-execute cycle so an unresponsive counterpart cannot
// hang a run indefinitely; zero disables the deadline.
type Config struct {
	MaxIterations    int           `json:"max_iterations,omitempty"`
	IterationTimeout time.Duration `json:"iteration_timeout,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    defaultMaxIterations,
		IterationTimeout: defaultIterationTimeout,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}
	if source.IterationTimeout > 0 {
		c.IterationTimeout = source.IterationTimeout
	}
}
