package identity

import (
	"net/http"

	"github.com/markato-labs/markato/internal/platform/httpx"
)

// Require rejects requests that arrive without the trust header set and
// attaches the parsed identity to the request context.
//
// The status is 403, not 401: the gateway already answered 401 for missing
// or invalid credentials, so absent headers here mean a deployment fault,
// not a user error.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := FromHeaders(r)
		if err != nil {
			httpx.Error(w, http.StatusForbidden, "user information not provided")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWith(r.Context(), id)))
	})
}
