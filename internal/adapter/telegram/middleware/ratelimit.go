package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"dynsched/internal/adapter/telegram"
)

// RateLimiter restricts request frequency per user.
type RateLimiter struct {
	mu    sync.Mutex
	last  map[int64]time.Time
	rate  time.Duration
	clock clockwork.Clock
}

// NewRateLimiter creates limiter with given rate. A nil clock means the real one.
func NewRateLimiter(rate time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{last: make(map[int64]time.Time), rate: rate, clock: clock}
}

// Allow returns false if user hits the limit.
func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if t, ok := r.last[userID]; ok && now.Sub(t) < r.rate {
		return false
	}
	r.last[userID] = now
	r.gcLocked(now)
	return true
}

// gcLocked drops stale entries once the map grows.
func (r *RateLimiter) gcLocked(now time.Time) {
	if len(r.last) < 1024 {
		return
	}
	for id, t := range r.last {
		if now.Sub(t) >= r.rate {
			delete(r.last, id)
		}
	}
}

// Middleware checks rate limit before calling next handler.
func (r *RateLimiter) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, s telegram.Sender, upd *models.Update) {
		uid, chat := sender(upd)
		if uid != 0 && !r.Allow(uid) {
			reply(ctx, s, chat, "слишком часто")
			return
		}
		next(ctx, s, upd)
	}
}
