package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"moneta/internal/auth"
	"moneta/internal/domain/user"
)

type ContextKey string

const (
	OwnerIDKey ContextKey = "owner_id"
	ClaimsKey  ContextKey = "claims"
)

// OwnerID extracts the authenticated owner id from a request context.
func OwnerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(OwnerIDKey).(string)
	return id, ok
}

// Auth verifies the bearer token and loads the owner id into the
// request context. The user row is upserted on every authenticated
// request; there is no signup flow.
func Auth(verifier *auth.Verifier, users user.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeAuthError(w, r, "NO_TOKEN", "Authentication required")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				code := "INVALID_TOKEN"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					code = "TOKEN_EXPIRED"
				case errors.Is(err, auth.ErrAudienceMismatch):
					code = "AUDIENCE_MISMATCH"
				case errors.Is(err, auth.ErrSignatureInvalid):
					code = "SIGNATURE_INVALID"
				}
				writeAuthError(w, r, code, "Invalid or expired token")
				return
			}

			if _, err := users.Upsert(r.Context(), user.UpsertUserParams{
				ID:    claims.Subject,
				Email: claims.Email,
				Name:  claims.Name,
			}); err != nil {
				log.Printf("Failed to upsert user %s: %v", claims.Subject, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", auth.ErrTokenMalformed
	}
	return parts[1], nil
}

func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	body := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		body["traceId"] = sc.TraceID().String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(body)
}
