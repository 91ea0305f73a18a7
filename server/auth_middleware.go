package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-clinic-auth/token"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyToken stores the introspected access token
	ContextKeyToken ContextKey = "token"
)

const msgInvalidToken = "Invalid or expired token"

// RequireAuth is middleware that validates a Bearer access token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			introspection, err := s.tokens.Introspection(raw)
			if err != nil || !introspection.Active || introspection.Sub == nil {
				if err != nil {
					log.Debug().Err(err).Msg("access token rejected")
				}
				writeJSONError(w, msgInvalidToken, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, *introspection.Sub)
			ctx = context.WithValue(ctx, ContextKeyToken, introspection)
			next(w, r.WithContext(ctx))
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyUserID).(string)
	return id
}

func tokenFromContext(ctx context.Context) *token.TokenIntrospection {
	t, _ := ctx.Value(ContextKeyToken).(*token.TokenIntrospection)
	return t
}
