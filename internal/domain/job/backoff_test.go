package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"fixed zero base retries next tick", Backoff{Strategy: BackoffFixed}, 3, 0},
		{"fixed base", Backoff{Strategy: BackoffFixed, Base: 30 * time.Second}, 4, 30 * time.Second},
		{"exponential first", Backoff{Strategy: BackoffExponential, Base: time.Second, Max: time.Minute}, 1, time.Second},
		{"exponential third", Backoff{Strategy: BackoffExponential, Base: time.Second, Max: time.Minute}, 3, 4 * time.Second},
		{"exponential capped", Backoff{Strategy: BackoffExponential, Base: time.Second, Max: 10 * time.Second}, 8, 10 * time.Second},
		{"exponential uncapped huge attempt", Backoff{Strategy: BackoffExponential, Base: time.Second}, 200, DefaultMaxBackoff},
		{"attempt zero", Backoff{Strategy: BackoffExponential, Base: time.Second}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backoff.Delay(tt.attempt))
		})
	}
}

func TestBackoff_NextAttemptAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := Backoff{Strategy: BackoffExponential, Base: 10 * time.Second, Max: time.Hour}
	assert.Equal(t, now.Add(20*time.Second), b.NextAttemptAt(now, 2))
}

func TestBackoffStrategy_UnmarshalText(t *testing.T) {
	var s BackoffStrategy
	require.NoError(t, s.UnmarshalText([]byte("Exponential")))
	assert.Equal(t, BackoffExponential, s)
	require.Error(t, s.UnmarshalText([]byte("linear")))
}
