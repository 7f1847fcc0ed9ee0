package middlewares

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/liquidtune/tunevault/server/config"
)

const TOKEN_COOKIE_NAME = "jwt-tunevault"

// Authenticated lets through requests carrying a valid token, either as a
// bearer header, the cookie set at login or the "token" query parameter
// used by websocket clients.
func Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		if err := Verify(raw); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(TOKEN_COOKIE_NAME); err == nil {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// Issue signs a token for username valid for ttl.
func Issue(username string, ttl time.Duration) (string, error) {
	secret := config.Instance().Authentication.JWTSecret
	if secret == "" {
		return "", errors.New("jwt secret not configured")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	})

	return token.SignedString([]byte(secret))
}

func Verify(raw string) error {
	secret := config.Instance().Authentication.JWTSecret
	if secret == "" {
		return errors.New("jwt secret not configured")
	}

	token, err := jwt.Parse(
		raw,
		func(t *jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}

	return nil
}
