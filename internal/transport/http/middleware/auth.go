package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quill/internal/httputil"
	"quill/internal/model"
)

// contextKey is a private type so context values can't collide with other
// packages.
type contextKey string

const actorKey contextKey = "actor"

// extractToken pulls the bearer token from the Authorization header, falling
// back to the access_token cookie for browser sessions.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// parseActorID validates the token and returns the actor id claim.
func parseActorID(tokenString, secret string) (int64, bool) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	id, ok := claims["actor_id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(id), true
}

// Auth requires a valid token and rejects the request otherwise.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}
			actorID, ok := parseActorID(tokenString, jwtSecret)
			if !ok {
				httputil.WriteUnauthorized(w, "Invalid authentication token")
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, &model.Actor{ID: actorID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the viewer when a valid token is present and treats
// the request as anonymous otherwise. Read surfaces use it so public posts
// stay reachable without a session.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := extractToken(r); tokenString != "" {
				if actorID, ok := parseActorID(tokenString, jwtSecret); ok {
					ctx := context.WithValue(r.Context(), actorKey, &model.Actor{ID: actorID})
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorFromContext returns the authenticated actor, or nil for anonymous
// requests.
func ActorFromContext(ctx context.Context) *model.Actor {
	actor, _ := ctx.Value(actorKey).(*model.Actor)
	return actor
}
