package client

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing API calls. It halves the rate when the backend
// answers 429 and steps back towards the base rate on successful calls.
type RateLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	logger   *logrus.Logger
	baseRate rate.Limit
	minRate  rate.Limit
	step     float64

	requestCount  int64
	successCount  int64
	throttleCount int64
	lastThrottled time.Time
}

func NewRateLimiter(perSecond float64, burst int, logger *logrus.Logger) *RateLimiter {
	if logger == nil {
		logger = logrus.New()
	}
	base := rate.Limit(perSecond)
	if perSecond <= 0 {
		base = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(base, burst),
		logger:   logger,
		baseRate: base,
		minRate:  rate.Limit(0.2),
		step:     0.25,
	}
}

func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.requestCount++
	rl.mu.Unlock()
	return rl.limiter.Wait(ctx)
}

func (rl *RateLimiter) RecordSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.successCount++

	current := rl.limiter.Limit()
	if current >= rl.baseRate {
		return
	}
	next := current * rate.Limit(1+rl.step)
	if next > rl.baseRate {
		next = rl.baseRate
	}
	rl.limiter.SetLimit(next)
}

// Throttle reacts to a 429 from the backend.
func (rl *RateLimiter) Throttle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.throttleCount++
	rl.lastThrottled = time.Now()

	current := rl.limiter.Limit()
	if current == rate.Inf {
		current = rate.Limit(10)
	}
	next := current / 2
	if next < rl.minRate {
		next = rl.minRate
	}
	if next != rl.limiter.Limit() {
		rl.limiter.SetLimit(next)
		rl.logger.Infof("Backend is throttling, lowered request rate to %.2f/s", float64(next))
	}
}

func (rl *RateLimiter) Limit() rate.Limit {
	return rl.limiter.Limit()
}

func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return map[string]interface{}{
		"current_rate":   float64(rl.limiter.Limit()),
		"base_rate":      float64(rl.baseRate),
		"request_count":  rl.requestCount,
		"success_count":  rl.successCount,
		"throttle_count": rl.throttleCount,
		"last_throttled": rl.lastThrottled,
	}
}
