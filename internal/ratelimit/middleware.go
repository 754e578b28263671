// Package ratelimit provides layered request throttling: a global cap, a
// per-wallet cap keyed by the claimed wallet in the Authorization header, and
// a per-IP fallback for unauthenticated traffic.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ragpay/server/internal/auth"
	"github.com/ragpay/server/internal/config"
	"github.com/ragpay/server/internal/metrics"
)

// Config holds rate limiting configuration.
type Config struct {
	GlobalEnabled bool
	GlobalLimit   int
	GlobalWindow  time.Duration

	PerWalletEnabled bool
	PerWalletLimit   int
	PerWalletWindow  time.Duration

	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	Metrics *metrics.Metrics
}

// FromAppConfig converts application configuration into limiter settings.
func FromAppConfig(cfg config.RateLimitConfig, m *metrics.Metrics) Config {
	return Config{
		GlobalEnabled:    cfg.GlobalEnabled,
		GlobalLimit:      cfg.GlobalLimit,
		GlobalWindow:     cfg.GlobalWindow.Duration,
		PerWalletEnabled: cfg.PerWalletEnabled,
		PerWalletLimit:   cfg.PerWalletLimit,
		PerWalletWindow:  cfg.PerWalletWindow.Duration,
		PerIPEnabled:     cfg.PerIPEnabled,
		PerIPLimit:       cfg.PerIPLimit,
		PerIPWindow:      cfg.PerIPWindow.Duration,
		Metrics:          m,
	}
}

// rateLimitResponse is the JSON body returned on 429.
type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

func limitHandler(limiter string, windowSeconds int, m *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if m != nil {
			m.RateLimitHitsTotal.WithLabelValues(limiter).Inc()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(rateLimitResponse{
			Error:             "rate_limit_exceeded",
			Message:           "Rate limit exceeded. Please try again later.",
			RetryAfterSeconds: windowSeconds,
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// GlobalLimiter caps total request throughput across all callers.
func GlobalLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return passthrough
	}
	return httprate.Limit(
		cfg.GlobalLimit,
		cfg.GlobalWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) { return "global", nil }),
		httprate.WithLimitHandler(limitHandler("global", int(cfg.GlobalWindow.Seconds()), cfg.Metrics)),
	)
}

// WalletLimiter caps request rate per claimed wallet. The wallet is read from
// the Authorization token without signature verification; a forged address
// only throttles the forger. Requests without a wallet fall back to IP keying.
func WalletLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerWalletEnabled {
		return passthrough
	}
	return httprate.Limit(
		cfg.PerWalletLimit,
		cfg.PerWalletWindow,
		httprate.WithKeyFuncs(walletKey),
		httprate.WithLimitHandler(limitHandler("per_wallet", int(cfg.PerWalletWindow.Seconds()), cfg.Metrics)),
	)
}

// IPLimiter caps request rate per client IP.
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return passthrough
	}
	return httprate.Limit(
		cfg.PerIPLimit,
		cfg.PerIPWindow,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(limitHandler("per_ip", int(cfg.PerIPWindow.Seconds()), cfg.Metrics)),
	)
}

func walletKey(r *http.Request) (string, error) {
	if wallet := auth.PeekAddress(r.Header.Get("Authorization")); wallet != "" {
		return "wallet:" + wallet, nil
	}
	return httprate.KeyByIP(r)
}
