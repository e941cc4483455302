package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/worksync/internal/server/handlers"
	"github.com/iudanet/worksync/pkg/api"
)

// RecoveryMiddleware перехватывает panic, логирует стек и отвечает 500 в формате api.ErrorResponse
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("Panic recovered",
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"stack", string(debug.Stack()),
					)

					// Детали паники клиенту не раскрываются
					handlers.WriteError(w, http.StatusInternalServerError, api.ErrCodeInternal, "")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
