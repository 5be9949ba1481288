package middleware

import (
	"net/http"

	pnet "devlog/internal/platform/net"
)

// AuthPort is the seam management-route guards implement
type AuthPort interface {
	// Parse returns the caller identity from the request or an error
	Parse(r *http.Request) (userID string, err error)
}

// Auth rejects requests the port cannot identify. A nil port passes
// everything through
func Auth(p AuthPort, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			uid, err := p.Parse(r)
			if err != nil {
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithUser(r.Context(), uid)))
		})
	}
}
