package testutil

import (
	"net/http"

	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

// WithCaller adds an acting address to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the address is not valid hex, it is not added to the context.
func WithCaller(req *http.Request, caller string) *http.Request {
	parsed, err := id.ParseAddress(caller)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), parsed))
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
