package testutil

import (
	"net/http"

	id "vitae/pkg/domain"
	"vitae/pkg/requestcontext"
)

// WithAccount stamps an authenticated account onto the request context,
// simulating what RequireAuth does for a valid bearer token.
func WithAccount(req *http.Request, account id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithAccount(req.Context(), account))
}

// WithAccountString parses s as an account ID and stamps it onto the
// request context. Invalid IDs are silently ignored so tests can probe
// unauthenticated paths with the same helper.
func WithAccountString(req *http.Request, s string) *http.Request {
	account, err := id.ParseAccountID(s)
	if err != nil {
		return req
	}
	return WithAccount(req, account)
}

// WithRequestID pins a request ID onto the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
