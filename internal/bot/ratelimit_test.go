package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbot/bilbot/internal/common"
)

func newTestLimiter(perUser time.Duration, globalPerMinute int) (*RateLimiter, *time.Time) {
	r := NewRateLimiter(common.RateLimitConfig{
		Enabled:         true,
		PerUserInterval: perUser,
		GlobalPerMinute: globalPerMinute,
	})
	clock := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, &clock
}

func TestRateLimiterPerUserCooldown(t *testing.T) {
	r, clock := newTestLimiter(10*time.Second, 60)

	ok, _ := r.Allow(1)
	require.True(t, ok)

	ok, wait := r.Allow(1)
	assert.False(t, ok)
	assert.Equal(t, 10*time.Second, wait)

	// A different user is unaffected.
	ok, _ = r.Allow(2)
	assert.True(t, ok)

	// Cooldown elapses.
	*clock = clock.Add(10 * time.Second)
	ok, _ = r.Allow(1)
	assert.True(t, ok)
}

func TestRateLimiterGlobalWindow(t *testing.T) {
	r, clock := newTestLimiter(time.Nanosecond, 3)

	for i := int64(1); i <= 3; i++ {
		ok, _ := r.Allow(i)
		require.True(t, ok, "submission %d", i)
		*clock = clock.Add(time.Second)
	}

	ok, wait := r.Allow(4)
	assert.False(t, ok)
	assert.Equal(t, 57*time.Second, wait)

	// The window slides: a minute after the first submission, room opens.
	*clock = clock.Add(57 * time.Second)
	ok, _ = r.Allow(4)
	assert.True(t, ok)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := NewRateLimiter(common.RateLimitConfig{Enabled: false, PerUserInterval: time.Hour, GlobalPerMinute: 1})
	for i := 0; i < 10; i++ {
		ok, _ := r.Allow(1)
		require.True(t, ok)
	}
}
