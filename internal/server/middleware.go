package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs each request and counts it by route pattern. The raw
// URL is never logged since query parameters carry remote commands.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		s.metrics.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
		s.logger.Debug("%s %s %d %s id=%s", r.Method, route, code, time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}
