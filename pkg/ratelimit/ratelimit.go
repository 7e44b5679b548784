// Package ratelimit throttles requests per key, either in process or across
// replicas through Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result is the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether another request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

var decisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate limiter decisions by backend and result",
	},
	[]string{"backend", "result"},
)

func record(backend string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	decisions.WithLabelValues(backend, result).Inc()
}
