// Package auth authenticates callers of the ledger API. A caller presents a
// Bearer JWT whose subject claim is its ledger address; the middleware
// verifies the signature and injects the address into the request context as
// the acting caller for role checks and audit trails.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "custodia/pkg/domain"
	request "custodia/pkg/platform/middleware/request"
	"custodia/pkg/requestcontext"
)

// Claims are the JWT claims the ledger expects.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator verifies caller tokens.
type Validator struct {
	signingKey []byte
}

// NewValidator constructs a Validator with an HMAC signing key.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the caller address
// from the subject claim.
func (v *Validator) ValidateToken(tokenString string) (id.Address, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return id.Address{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return id.Address{}, fmt.Errorf("token is not valid")
	}
	caller, err := id.ParseAddress(claims.Subject)
	if err != nil {
		return id.Address{}, fmt.Errorf("subject is not a ledger address: %w", err)
	}
	return caller, nil
}

// IssueToken mints a caller token. Used by operational tooling and tests;
// the ledger itself only verifies.
func (v *Validator) IssueToken(caller id.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.signingKey)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireCaller rejects requests without a valid caller token and stores
// the authenticated address in the request context.
func RequireCaller(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			caller, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}
