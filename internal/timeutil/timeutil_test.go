package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"15s": 15 * time.Second,
		"1h":  time.Hour,
		"1d":  24 * time.Hour,
		" 2w": 14 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "d", "xd", "3y"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "00:01:05", FormatClock(65*time.Second))
	assert.Equal(t, "26:00:01", FormatClock(26*time.Hour+time.Second))
	assert.Equal(t, "00:00:00", FormatClock(-time.Minute))
}

func TestAgo(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}
	assert.Equal(t, "never", Ago(nil, now))
	assert.Equal(t, "just now", Ago(at(10*time.Second), now))
	assert.Equal(t, "5m ago", Ago(at(5*time.Minute), now))
	assert.Equal(t, "30h ago", Ago(at(30*time.Hour), now))
	assert.Equal(t, "3d ago", Ago(at(72*time.Hour), now))
}
