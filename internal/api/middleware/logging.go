package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/pkg/logger"
)

// Logging scopes a logger to the request id for downstream handlers and
// logs one line per request once it completes.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := recorder(w)
		l := logger.L().With(zap.String("request_id", GetRequestID(r.Context())))
		next.ServeHTTP(rw, r.WithContext(logger.WithContext(r.Context(), l)))

		level := zap.InfoLevel
		if rw.status >= http.StatusInternalServerError {
			level = zap.WarnLevel
		}
		l.Log(level, "request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Int("bytes", rw.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// recorder reuses an outer recorder so stacked middleware see one status.
func recorder(w http.ResponseWriter) *statusRecorder {
	if rw, ok := w.(*statusRecorder); ok {
		return rw
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
