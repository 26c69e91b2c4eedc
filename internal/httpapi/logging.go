package httpapi

import (
	"bufio"
	"errors"
	"expvar"
	"log/slog"
	"net"
	"net/http"
	"time"
)

var (
	requestsTotal  = expvar.NewInt("requests_total")
	requestsErrors = expvar.NewInt("requests_errors_total")
	scanResults    = expvar.NewMap("checkin_results_total")
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack and Flush keep the sockjs websocket and streaming transports
// working behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		requestsTotal.Add(1)
		if writer.status >= http.StatusBadRequest {
			requestsErrors.Add(1)
		}
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", duration.Milliseconds(),
			"terminal", r.Header.Get("X-Terminal-ID"),
			"request_id", r.Header.Get("X-Request-ID"),
		)
	})
}
