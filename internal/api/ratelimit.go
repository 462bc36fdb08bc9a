package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	"github.com/listenupapp/readalong/internal/ratelimit"
)

// rateLimited returns a huma middleware that rejects requests once the
// client's bucket in limiter is empty. A nil limiter allows everything.
func (s *Server) rateLimited(limiter *ratelimit.KeyedRateLimiter) huma.Middlewares {
	if limiter == nil {
		return nil
	}
	return huma.Middlewares{func(ctx huma.Context, next func(huma.Context)) {
		r, _ := humachi.Unwrap(ctx)
		key := ctx.RemoteAddr()
		if r != nil {
			key = clientIP(r)
		}

		if !limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded", "ip", key, "path", ctx.URL().Path)
			_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		next(ctx)
	}}
}

// clientIP returns the request's client address without the port.
// middleware.RealIP has already applied X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
