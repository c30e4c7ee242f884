package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
)

func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []observe.Field{
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("status", status),
				observe.F("duration_ms", time.Since(start).Milliseconds()),
				observe.F("request_id", chimw.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "http request", fields...)
				return
			}
			logger.Debug(r.Context(), "http request", fields...)
		})
	}
}

// rateLimit answers 429 in the ajax envelope once rl runs dry.
func rateLimit(rl *resilience.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(rl.RetryAfter().Seconds())))))
				writeAjax(w, http.StatusTooManyRequests, resilience.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
