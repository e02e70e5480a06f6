package api

import (
	"net/http"

	"github.com/mattjoyce/wsclean/internal/auth"
)

// authMiddleware authenticates the bearer token and stores its grant on the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grant, err := s.keys.Authenticate(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithGrant(r.Context(), grant)))
	})
}

// allow rejects requests whose grant does not cover action.
func (s *Server) allow(action auth.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, ok := auth.GrantFromContext(r.Context())
			if !ok || !grant.Allows(action) {
				s.writeError(w, http.StatusForbidden, "token may not "+string(action))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
