package mongoq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddConfig_EffectiveDelay(t *testing.T) {
	tests := []struct {
		name     string
		opts     []AddOption
		fallback time.Duration
		expected time.Duration
	}{
		{
			name:     "no option uses queue default",
			fallback: 3 * time.Second,
			expected: 3 * time.Second,
		},
		{
			name:     "explicit zero overrides queue default",
			opts:     []AddOption{WithDelay(0)},
			fallback: 3 * time.Second,
			expected: 0,
		},
		{
			name:     "explicit delay wins",
			opts:     []AddOption{WithDelay(10 * time.Second)},
			fallback: 3 * time.Second,
			expected: 10 * time.Second,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := addConfig{}
			for _, opt := range tc.opts {
				opt(&cfg)
			}
			assert.Equal(t, tc.expected, cfg.effectiveDelay(tc.fallback))
		})
	}
}

func TestWithDebounce(t *testing.T) {
	cfg := addConfig{}
	WithDebounce("greetings")(&cfg)

	assert.Equal(t, "greetings", cfg.debounce)
}

func TestLeaseConfig_EffectiveVisibility(t *testing.T) {
	cfg := leaseConfig{}
	assert.Equal(t, 30*time.Second, cfg.effectiveVisibility(30*time.Second))

	WithVisibility(time.Second)(&cfg)
	assert.Equal(t, time.Second, cfg.effectiveVisibility(30*time.Second))
}
