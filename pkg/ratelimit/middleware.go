package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	apperrors "github.com/lMazer/pocket-finance-dashboard/pkg/errors"
	"github.com/lMazer/pocket-finance-dashboard/pkg/httputil"
	"github.com/lMazer/pocket-finance-dashboard/pkg/logger"
)

// KeyFunc derives the throttling key for a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the remote address without its port. Forwarding
// headers are ignored; a trusted proxy should rewrite RemoteAddr instead.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Limiter errors are logged and the request is let through.
func Middleware(l Limiter, key KeyFunc, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := r.URL.Path + ":" + key(r)
			res, err := l.Allow(r.Context(), k)
			if err != nil {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many attempts, try again later"), fallback)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
