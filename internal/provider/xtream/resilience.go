package xtream

import (
	"context"
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/metrics"
)

// resilience guards every outbound call with a per-(accountKey, action)
// circuit breaker and a per-accountKey rate limiter. One instance is
// shared by a Client across all accounts it serves.
type resilience struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	limiters map[string]*rate.Limiter

	limiterRate  rate.Limit
	limiterBurst int
}

func newResilience(requestsPerSecond float64, burst int) *resilience {
	return &resilience{
		breakers:     make(map[string]*gobreaker.CircuitBreaker[any]),
		limiters:     make(map[string]*rate.Limiter),
		limiterRate:  rate.Limit(requestsPerSecond),
		limiterBurst: burst,
	}
}

func (r *resilience) breakerFor(accountKey, action string) *gobreaker.CircuitBreaker[any] {
	key := accountKey + "|" + action

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        key,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("xtream circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})
	r.breakers[key] = cb
	return cb
}

func (r *resilience) limiterFor(accountKey string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[accountKey]; ok {
		return l
	}
	l := rate.NewLimiter(r.limiterRate, r.limiterBurst)
	r.limiters[accountKey] = l
	return l
}

// call runs fn through accountKey's rate limiter and the
// (accountKey, action) circuit breaker. It waits for a rate-limit token
// (honoring ctx cancellation), then executes fn via the breaker.
func (r *resilience) call(ctx context.Context, accountKey, action string, fn func() (any, error)) (any, error) {
	limiter := r.limiterFor(accountKey)
	if err := limiter.Wait(ctx); err != nil {
		metrics.RecordRateLimiterWait("xtream")
		return nil, err
	}

	cb := r.breakerFor(accountKey, action)
	result, err := cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(accountKey+"|"+action, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(accountKey+"|"+action, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(accountKey+"|"+action, "success").Inc()
	return result, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
