package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// statusRecorder captures the status written by the next handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logging logs every request and its response status
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.Int("status_code", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(startTime)),
				zap.Any("headers", maskSensitiveHeaders(r.Header)),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Error("request failed", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

// maskSensitiveHeaders masks sensitive headers
func maskSensitiveHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for k := range headers {
		masked[k] = headers.Get(k)
	}

	for _, header := range []string{"Authorization", "X-Api-Key", "Cookie"} {
		if _, ok := masked[header]; ok {
			masked[header] = "***"
		}
	}
	return masked
}
