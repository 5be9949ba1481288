package http

import (
	"crypto/subtle"
	stdhttp "net/http"
	"strings"

	perr "devlog/internal/platform/errors"
)

// TokenAuth guards the repository management routes with a static
// bearer token compared in constant time
type TokenAuth struct {
	Token string
}

// Parse implements middleware.AuthPort
func (t TokenAuth) Parse(r *stdhttp.Request) (string, error) {
	const scheme = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
		if subtle.ConstantTimeCompare([]byte(h[len(scheme):]), []byte(t.Token)) == 1 {
			return "operator", nil
		}
	}
	return "", perr.Unauthorizedf("invalid or missing api token")
}
