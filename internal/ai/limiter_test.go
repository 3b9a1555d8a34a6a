package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBudget(t *testing.T) {
	l := NewLimiter(2)

	require.NoError(t, l.Acquire())
	assert.Equal(t, 1, l.Remaining())
	require.NoError(t, l.Acquire())
	assert.Equal(t, 0, l.Remaining())

	assert.ErrorIs(t, l.Acquire(), ErrBudgetExhausted)
}

func TestLimiterResetsAtMidnight(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 50, 0, 0, time.UTC)
	l := NewLimiter(1)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Acquire())
	assert.ErrorIs(t, l.Acquire(), ErrBudgetExhausted)

	// Cross the UTC day boundary.
	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, l.Remaining())
	require.NoError(t, l.Acquire())
}

func TestParseJSONExtraction(t *testing.T) {
	var out struct {
		Valid bool `json:"valid"`
	}
	err := parseJSON("Here is my answer:\n```json\n{\"valid\": true}\n```", &out)
	require.NoError(t, err)
	assert.True(t, out.Valid)

	assert.Error(t, parseJSON("no json here", &out))
	assert.Error(t, parseJSON("} backwards {", &out))
}
