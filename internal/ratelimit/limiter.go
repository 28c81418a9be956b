// Package ratelimit provides per-client token bucket rate limiting for
// engine operations exposed over HTTP and MCP.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by CheckLimit when a request is rejected.
var ErrRateLimited = errors.New("rate limit exceeded")

// Operation names shared by the HTTP and MCP surfaces.
const (
	OpLearn     = "learn"
	OpRecall    = "recall"
	OpRecallAll = "recall_all"
	OpPatterns  = "patterns"
	OpReset     = "reset"
	OpHistory   = "history"
	OpNoise     = "noise"
)

// Limiter implements a per-key token bucket rate limiter.
// Each key (a client identity) gets its own bucket with the configured
// rate and burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:    float64(l.burst),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += l.rate * elapsed
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastCheck = now
	}

	if b.tokens < 1.0 {
		return false
	}

	b.tokens--
	return true
}

// OperationLimiters maps operation names to their rate limiters.
// A nil map disables limiting.
type OperationLimiters map[string]*Limiter

// NewOperationLimiters creates the default per-operation limiters.
// Learn and recall are O(N^2) per call on a 1225-neuron grid, so they get
// tighter budgets than the read-only listing operations.
func NewOperationLimiters() OperationLimiters {
	return OperationLimiters{
		OpLearn:     NewLimiter(2.0, 10), // 120/minute, burst 10
		OpRecall:    NewLimiter(2.0, 10), // 120/minute, burst 10
		OpRecallAll: NewLimiter(1.0, 5),  // 60/minute, burst 5
		OpPatterns:  NewLimiter(5.0, 20), // 300/minute, burst 20
		OpReset:     NewLimiter(0.5, 2),  // 30/minute, burst 2
		OpHistory:   NewLimiter(1.0, 10), // 60/minute, burst 10
		OpNoise:     NewLimiter(2.0, 10), // 120/minute, burst 10
	}
}

// CheckLimit checks the limit for op on behalf of client.
// Returns nil if allowed, or an error wrapping ErrRateLimited.
// Operations without a configured limiter are always allowed.
func CheckLimit(limiters OperationLimiters, op, client string) error {
	limiter, ok := limiters[op]
	if !ok {
		return nil
	}

	if !limiter.Allow(client) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, op)
	}

	return nil
}
