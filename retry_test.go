package mongoq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryForever(t *testing.T) {
	policy := RetryForever()

	assert.False(t, policy.Exceeded(0))
	assert.False(t, policy.Exceeded(1_000_000))
	assert.Nil(t, policy.DeadQueue())
}

func TestDiscardAfter(t *testing.T) {
	policy := DiscardAfter(2)

	assert.False(t, policy.Exceeded(1))
	assert.False(t, policy.Exceeded(2))
	assert.True(t, policy.Exceeded(3))
	assert.Nil(t, policy.DeadQueue())
}

func TestDeadLetterAfter(t *testing.T) {
	dead := &queue{}

	policy := DeadLetterAfter(2, dead)

	assert.False(t, policy.Exceeded(2))
	assert.True(t, policy.Exceeded(3))
	assert.Same(t, dead, policy.DeadQueue())
}

func TestDeadLetterAfter_DefaultBudget(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
	}{
		{name: "zero falls back to five", maxRetries: 0},
		{name: "negative falls back to five", maxRetries: -3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			policy := DeadLetterAfter(tc.maxRetries, &queue{})

			assert.False(t, policy.Exceeded(5))
			assert.True(t, policy.Exceeded(6))
		})
	}
}
