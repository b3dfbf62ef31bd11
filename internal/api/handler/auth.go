package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/priceguard/server/internal/api/respond"
)

type contextKey int

const userIDKey contextKey = iota

// AuthMiddleware validates the Authorization bearer token (HS256) and puts
// the user ID claim in the request context. Token issuance and renewal live
// in the auth service; this server only verifies.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			userID := userIDClaim(claims)
			if userID == "" {
				respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token has no user id")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userIDClaim reads the user ID from the "id" claim, falling back to "sub".
func userIDClaim(claims jwt.MapClaims) string {
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}

// UserID returns the authenticated user ID from the request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
