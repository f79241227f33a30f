/*
auth.go - Caller identity

PURPOSE:
  The engine never authenticates; it trusts the caller address it is given.
  This middleware is where that address comes from:

    1. Authorization: Bearer <jwt>   HS256, subject = caller address
    2. X-Caller-Address: <address>   development only

  A request with neither is anonymous (empty address). Anonymous callers can
  use the public reads (doctor directory, day index, note index); everything
  else is rejected by the engine's role checks or by requireCaller.

SEE ALSO:
  - cmd/server/main.go: "token" command mints development tokens
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/gp-ledger/generic"
)

type contextKey string

const callerKey contextKey = "caller"

// HeaderCallerAddress carries the caller in development mode.
const HeaderCallerAddress = "X-Caller-Address"

const tokenIssuer = "gp-ledger"

// Auth resolves the caller of each request.
type Auth struct {
	// SigningKey verifies bearer tokens. Empty disables bearer tokens.
	SigningKey []byte
	// AllowHeader honours X-Caller-Address. Development only.
	AllowHeader bool
}

// Middleware puts the caller address on the request context.
func (a Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := generic.NoAddress

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization format", nil)
				return
			}
			addr, err := a.parse(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token", err)
				return
			}
			caller = addr
		} else if a.AllowHeader {
			caller = generic.Address(strings.TrimSpace(r.Header.Get(HeaderCallerAddress)))
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a Auth) parse(tokenStr string) (generic.Address, error) {
	if len(a.SigningKey) == 0 {
		return generic.NoAddress, errors.New("bearer tokens are not enabled")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.SigningKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return generic.NoAddress, err
	}
	if !token.Valid || claims.Subject == "" {
		return generic.NoAddress, errors.New("token has no subject")
	}
	return generic.Address(claims.Subject), nil
}

// IssueToken mints a bearer token for address.
func IssueToken(signingKey []byte, address generic.Address, ttl time.Duration) (string, error) {
	if len(signingKey) == 0 {
		return "", errors.New("signing key is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   address.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

// CallerFrom returns the caller address resolved by Auth.Middleware.
func CallerFrom(ctx context.Context) generic.Address {
	addr, _ := ctx.Value(callerKey).(generic.Address)
	return addr
}
