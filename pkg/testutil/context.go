package testutil

import (
	"net/http"

	id "persona-gateway/pkg/domain"
	"persona-gateway/pkg/requestcontext"
)

// WithAccount adds an authenticated wallet address to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithAccount(req *http.Request, account id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithAccount(req.Context(), account))
}
