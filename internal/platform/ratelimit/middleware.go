package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"crossledger/internal/platform/middleware"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/httputil"
)

// PerCaller limits requests by capability subject, falling back to the
// client address for requests that carry none.
func PerCaller(w *Window, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := callerKey(r)
			res := w.Allow(key, now)

			rw.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			rw.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			rw.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				logger.WarnContext(r.Context(), "rate limit exceeded", "caller", key, "path", r.URL.Path)
				rw.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(now)))
				httputil.WriteError(rw, dErrors.Newf(dErrors.CodeRateLimited, "more than %d requests in window", res.Limit))
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if c := middleware.GetCapability(r.Context()); !c.Subject.IsZero() {
		return "wallet:" + c.Subject.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
