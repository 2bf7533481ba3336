package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-officiating/services"
)

type contextKey string

const judgeContextKey contextKey = "judge"

// TokenParser validates a session token.
type TokenParser interface {
	ParseToken(token string) (*services.JudgeClaims, error)
}

// Authenticate requires a valid bearer token. Websocket clients that cannot set headers
// may pass it as the token query parameter.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := parser.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired session token")
				return
			}
			ctx := context.WithValue(r.Context(), judgeContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize allows only the listed roles. It must run after Authenticate.
func Authorize(roles ...services.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := GetJudgeFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if role == claims.Role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, services.ErrForbiddenOperation.Error())
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": "auth"})
}
