package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"trackmybus/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument wraps the mux with request logging and Prometheus counters.
// Websocket upgrades bypass the recorder because hijacking needs the raw
// ResponseWriter.
func (s *Server) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		s.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", dur).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// normalizePath collapses resource ids so metric labels stay bounded.
func normalizePath(p string) string {
	parts := strings.Split(p, "/")
	if len(parts) > 3 && parts[1] == "v1" {
		switch parts[2] {
		case "routes", "updates":
			parts[3] = ":id"
			return strings.Join(parts, "/")
		}
	}
	return p
}
