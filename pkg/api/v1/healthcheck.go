package v1

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthcheckRouter sets up the healthcheck route.
func HealthcheckRouter(db *sql.DB) http.Handler {
	routes := &healthcheckRoutes{db: db}
	r := chi.NewRouter()
	r.Get("/", routes.getHealthcheck)
	return r
}

type healthcheckRoutes struct {
	db *sql.DB
}

// getHealthcheck
//
//	@Summary		Health check
//	@Description	Check if the API and its database are healthy
//	@Tags			system
//	@Success		204	{string}	string	"No Content"
//	@Router			/health [get]
func (h *healthcheckRoutes) getHealthcheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
