package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mvelkov/inkpost/internal/telemetry/metrics"

	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeRateLimiter struct {
	allowed int
	calls   int
}

func (f *fakeRateLimiter) Allow(_ context.Context, _ string, _ redis_rate.Limit) (*redis_rate.Result, error) {
	f.calls++
	return &redis_rate.Result{
		Allowed:    f.allowed,
		RetryAfter: 30 * time.Second,
	}, nil
}

func TestRateLimit_allowed(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	limiter := &fakeRateLimiter{allowed: 1}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	handler := RateLimit(limiter, "upload", 5, metricsManager)(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/upload-image", nil))

	assert.True(t, nextCalled)
	assert.Equal(t, 1, limiter.calls)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterRateLimitedRequests))
}

func TestRateLimit_limited(t *testing.T) {
	metricsManager := metrics.NewTestManager()
	limiter := &fakeRateLimiter{allowed: 0}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not be called")
	})

	handler := RateLimit(limiter, "upload", 5, metricsManager)(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/upload-image", nil))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "retry after")
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterRateLimitedRequests))
}
