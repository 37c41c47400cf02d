package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned by probes for optional dependencies that are switched off.
var ErrNotConfigured = errors.New("not configured")

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness, typically to false while the server drains on shutdown.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// RedisChecker probes an optional Redis client.
type RedisChecker struct {
	Client *redis.Client
}

// PingRedis pings the client within timeout.
func (c RedisChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Client == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	RedisTimeout time.Duration
	// CouponCount reports the loaded catalog size; nil skips the field.
	CouponCount func() int
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. Redis is optional and reported as
// "disabled" when no client is configured.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	healthy := ready.Load()
	if !healthy {
		status["status"] = "draining"
	}

	redisStatus := "disabled"
	if h.Checker != nil {
		switch err := h.Checker.PingRedis(r.Context(), h.redisTimeout()); {
		case err == nil:
			redisStatus = "ok"
		case errors.Is(err, ErrNotConfigured):
		default:
			redisStatus = err.Error()
			healthy = false
		}
	}
	status["redis"] = redisStatus
	if h.CouponCount != nil {
		status["coupons"] = strconv.Itoa(h.CouponCount())
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		if status["status"] == "ok" {
			status["status"] = "degraded"
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
