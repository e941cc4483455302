package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/worksync/internal/server/handlers"
	"github.com/iudanet/worksync/internal/server/jwt"
	"github.com/iudanet/worksync/pkg/api"
)

// AuthMiddleware проверяет Bearer токен и право доступа к рабочему
// пространству из пути ({key}). Claims кладутся в контекст запроса.
func AuthMiddleware(logger *slog.Logger, tokens *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				handlers.WriteError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.Warn("Invalid Authorization header format", "path", r.URL.Path)
				handlers.WriteError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "invalid token format")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				handlers.WriteError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "invalid token")
				return
			}

			if key := r.PathValue("key"); key != "" && !claims.Allows(key) {
				logger.Warn("Workspace access denied",
					"workspace", key,
					"token_workspace", claims.Workspace,
					"subject", claims.Subject)
				handlers.WriteError(w, http.StatusForbidden, api.ErrCodeForbidden, "token does not grant access to this workspace")
				return
			}

			logger.Debug("Request authenticated", "workspace", claims.Workspace, "subject", claims.Subject)

			next.ServeHTTP(w, r.WithContext(jwt.WithClaims(r.Context(), claims)))
		})
	}
}
