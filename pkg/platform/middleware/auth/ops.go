package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	id "custodia/pkg/domain"
)

type opsTokenRequest struct {
	Secret  string `json:"secret"`
	Address string `json:"address"`
}

type opsTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// OpsTokenHandler exchanges the operator secret for a caller token. The
// secret is checked against a bcrypt hash from configuration; whoever holds
// it can mint tokens for any address, so it is the deployment's root
// credential and is expected to live in a secret manager.
func OpsTokenHandler(validator *Validator, secretHash []byte, ttl time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req opsTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
			return
		}
		if req.Secret == "" || req.Address == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "secret and address are required")
			return
		}

		if err := bcrypt.CompareHashAndPassword(secretHash, []byte(req.Secret)); err != nil {
			logger.WarnContext(r.Context(), "operator token request with wrong secret")
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid operator secret")
			return
		}

		caller, err := id.ParseAddress(req.Address)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "address is not a ledger address")
			return
		}

		token, err := validator.IssueToken(caller, ttl)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to issue operator token", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal", "failed to issue token")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(opsTokenResponse{
			Token:     token,
			ExpiresIn: int64(ttl.Seconds()),
		})
	}
}

// HashOpsSecret produces the bcrypt hash stored in configuration. Exposed for
// operational tooling.
func HashOpsSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
