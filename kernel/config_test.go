package kernel_test

import (
	"testing"
	"time"

	"github.com/tailored-agentic-units/conduit/kernel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := kernel.DefaultConfig()

	if cfg.MaxIterations != 10 {
		t.Errorf("got MaxIterations %d, want 10", cfg.MaxIterations)
	}
	if cfg.IterationTimeout != 60*time.Second {
		t.Errorf("got IterationTimeout %v, want 60s", cfg.IterationTimeout)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := kernel.DefaultConfig()

	source := &kernel.Config{
		MaxIterations:    20,
		IterationTimeout: 5 * time.Second,
	}

	cfg.Merge(source)

	if cfg.MaxIterations != 20 {
		t.Errorf("got MaxIterations %d, want 20", cfg.MaxIterations)
	}
	if cfg.IterationTimeout != 5*time.Second {
		t.Errorf("got IterationTimeout %v, want 5s", cfg.IterationTimeout)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := kernel.DefaultConfig()
	original := cfg

	cfg.Merge(&kernel.Config{})

	if cfg != original {
		t.Errorf("got %+v, want defaults preserved %+v", cfg, original)
	}
}
