package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/api/response"
	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// Recovery turns a panicking handler into a 500 error envelope
func Recovery(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("handler panicked",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					response.Error(w, errors.NewInternalError("An unexpected error occurred", fmt.Errorf("panic: %v", rec)), RequestIDFrom(r.Context()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
