// Package middleware translates limiter decisions into HTTP responses: the
// X-RateLimit-* header convention, a JSON 429 body on denial, and an explicit
// fail-open/fail-closed policy for store outages.
package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codetesla51/rategate/limiter"
)

// KeyFunc extracts the rate limit identifier from a request.
type KeyFunc func(r *http.Request) string

type options struct {
	keyFunc  KeyFunc
	failOpen bool
}

type Option func(*options)

// WithKeyFunc overrides how the identifier is derived. Default is ClientIP.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) { o.keyFunc = fn }
}

// WithFailOpen admits requests when the store is unavailable instead of the
// default fail-closed 429. Fail-closed preserves the abuse protection but
// turns a store outage into a write outage; pick per deployment.
func WithFailOpen() Option {
	return func(o *options) { o.failOpen = true }
}

type errorBody struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// RateLimit enforces the strategy's decision for every request passing
// through it.
func RateLimit(strategy limiter.Strategy, opts ...Option) func(http.Handler) http.Handler {
	o := options{keyFunc: ClientIP}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := o.keyFunc(r)

			decision, err := strategy.Check(r.Context(), identifier, time.Now())
			if err != nil {
				handleCheckError(w, r, err, o.failOpen, next)
				return
			}

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				checksTotal.WithLabelValues(outcomeDenied).Inc()
				retryAfter := retryAfterSeconds(decision.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				slog.Warn("rate limit exceeded",
					"identifier", identifier,
					"limit", decision.Limit,
					"retry_after", retryAfter,
				)
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error:      "Rate limit exceeded",
					Detail:     "Too many requests. Please try again later.",
					RetryAfter: retryAfter,
				})
				return
			}

			checksTotal.WithLabelValues(outcomeAllowed).Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func handleCheckError(w http.ResponseWriter, r *http.Request, err error, failOpen bool, next http.Handler) {
	checksTotal.WithLabelValues(outcomeError).Inc()

	switch {
	case errors.Is(err, limiter.ErrInvalidIdentifier):
		slog.Error("rate limit identifier missing", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:  "Internal server error",
			Detail: "Could not identify the client.",
		})
	case errors.Is(err, limiter.ErrStoreUnavailable) && failOpen:
		slog.Warn("rate limit store unavailable, failing open", "error", err)
		next.ServeHTTP(w, r)
	case errors.Is(err, limiter.ErrStoreUnavailable):
		slog.Warn("rate limit store unavailable, failing closed", "error", err)
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:  "Rate limit exceeded",
			Detail: "Rate limiting is temporarily degraded. Please try again later.",
		})
	default:
		slog.Error("rate limit check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:  "Internal server error",
			Detail: "Rate limit check failed.",
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, d limiter.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(d.WindowReset.Seconds())))
}

// retryAfterSeconds rounds up so a denied client never retries inside the
// same window.
func retryAfterSeconds(d time.Duration) int {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
