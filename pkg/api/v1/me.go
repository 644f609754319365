package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runfororg/runorg/pkg/auth"
)

// MeRouter creates the router for the authenticated-user endpoint. It must
// be mounted behind the authentication middleware.
func MeRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getMe)
	return r
}

// getMe
//
//	@Summary		Current user
//	@Description	Return the user bound to the presented credential
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	users.User
//	@Failure		401	{string}	string	"Unauthorized"
//	@Router			/api/me [get]
func getMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Only reachable if the route was mounted without the middleware.
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(user); err != nil {
		http.Error(w, "Failed to encode user", http.StatusInternalServerError)
	}
}
