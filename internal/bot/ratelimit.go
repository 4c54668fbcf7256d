package bot

import (
	"sync"
	"time"

	"github.com/bilbot/bilbot/internal/common"
)

const globalWindow = time.Minute

// RateLimiter throttles photo submissions two ways: a per-user cooldown
// between receipts, and a global sliding-window cap protecting the
// extraction backend from a busy group chat.
type RateLimiter struct {
	mu       sync.Mutex
	enabled  bool
	perUser  time.Duration
	globalN  int
	lastSeen map[int64]time.Time
	window   []time.Time
	now      func() time.Time
}

func NewRateLimiter(cfg common.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		enabled:  cfg.Enabled,
		perUser:  cfg.PerUserInterval,
		globalN:  cfg.GlobalPerMinute,
		lastSeen: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the user may submit now. When denied, the returned
// duration says how long to wait; it is surfaced to the user verbatim.
func (r *RateLimiter) Allow(userID int64) (bool, time.Duration) {
	if !r.enabled {
		return true, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if last, ok := r.lastSeen[userID]; ok {
		if since := now.Sub(last); since < r.perUser {
			return false, r.perUser - since
		}
	}

	// Drop window entries older than a minute.
	cut := 0
	for cut < len(r.window) && now.Sub(r.window[cut]) >= globalWindow {
		cut++
	}
	r.window = r.window[cut:]

	if r.globalN > 0 && len(r.window) >= r.globalN {
		return false, r.window[0].Add(globalWindow).Sub(now)
	}

	r.lastSeen[userID] = now
	r.window = append(r.window, now)
	return true, 0
}
