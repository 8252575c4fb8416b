package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/catalyst/userkey/internal/api/presenter"
)

// Capabilities a caller's bearer token may carry.
const (
	CapGenerateKey = "userkey:generatekey"
	CapAdmin       = "userkey:admin"
)

// CapabilityAuth checks that the caller's HMAC-signed bearer token
// carries the named capability. The external system calling the web
// service authenticates this way; end-user browsers never do.
func CapabilityAuth(signingKey []byte, capability string) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			tokenStr := strings.TrimPrefix(auth, "Bearer ")

			if tokenStr == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				presenter.Error(w, r, "invalid session token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				presenter.Error(w, r, "invalid claims", http.StatusUnauthorized)
				return
			}

			caps, ok := claims["capabilities"].([]any)
			if !ok {
				presenter.Error(w, r, "invalid claims", http.StatusUnauthorized)
				return
			}

			hasCapability := false
			for _, capAny := range caps {
				capStr, ok := capAny.(string)
				if !ok {
					continue
				}
				if capStr == capability {
					hasCapability = true
					break
				}
			}
			if !hasCapability {
				presenter.Error(w, r, "insufficient privileges", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
