package httpkit

import (
	"net/http"

	phttp "devlog/internal/platform/net/http"
	"devlog/internal/platform/net/middleware"
)

// Auth wires the auth middleware to the platform JSON writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	// middleware expects write func(w http.ResponseWriter, status int, body any)
	// use phttp.JSON which matches that signature
	return middleware.Auth(p, phttp.JSON)
}
