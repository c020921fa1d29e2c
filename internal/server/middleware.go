package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskboard-app/taskboard/internal/model"
)

type identityKey struct{}

// Identity is the authenticated caller attached to the request context.
// Token issuance happens elsewhere; this service only verifies.
type Identity struct {
	Username string
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

type Authenticator struct {
	secret []byte
	users  model.UserRepository
}

func NewAuthenticator(secret []byte, users model.UserRepository) *Authenticator {
	return &Authenticator{secret: secret, users: users}
}

// Middleware verifies the bearer token (or the legacy token cookie),
// checks the user still exists and is active, and attaches the identity
// to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "authentication required"})
			return
		}

		username, err := a.verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "authentication failed"})
			return
		}

		user, err := a.users.GetUserByUsername(r.Context(), username)
		if err != nil || !user.IsActive {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "authentication failed"})
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, Identity{Username: user.Username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return "", fmt.Errorf("token has no username claim")
	}
	return username, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
