// Package middleware provides HTTP middlewares for bearer authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int
	Parent bool
}

// Claims is the JWT payload of an access token.
type Claims struct {
	Parent bool `json:"parent"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token for userID valid for ttl.
func IssueToken(secret []byte, userID int, parent bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Parent: parent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an access token and returns its principal.
func ParseToken(secret []byte, token string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return Principal{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return Principal{}, errors.New("invalid subject")
	}
	return Principal{UserID: id, Parent: claims.Parent}, nil
}

// Verifier resolves a raw bearer token to its principal.
type Verifier func(ctx context.Context, token string) (Principal, error)

// BearerAuth rejects requests without a valid "Authorization: Bearer" header
// with 401 and a FastAPI-style {"detail": ...} body. On success the
// principal is stored in the request context.
func BearerAuth(verify Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "Not authenticated")
				return
			}
			p, err := verify(r.Context(), raw)
			if err != nil {
				unauthorized(w, "Could not validate credentials")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal stored by BearerAuth.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
