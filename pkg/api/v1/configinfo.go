package v1

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/runfororg/runorg/pkg/auth"
	"github.com/runfororg/runorg/pkg/config"
	"github.com/runfororg/runorg/pkg/logger"
)

// ConfigRouter creates the router for the public configuration endpoint.
func ConfigRouter(cfg *config.Config, resolver *auth.DiscoveryResolver) http.Handler {
	routes := &configRoutes{cfg: cfg, resolver: resolver}
	r := chi.NewRouter()
	r.Get("/", routes.getConfig)
	return r
}

type configRoutes struct {
	cfg      *config.Config
	resolver *auth.DiscoveryResolver
}

// configResponse is the public event configuration. It carries only values
// a browser client needs; secrets are never part of it.
type configResponse struct {
	StartDate     string      `json:"start_date"`
	EndDate       string      `json:"end_date"`
	TotalStepGoal int         `json:"total_step_goal"`
	StepPerKM     int         `json:"step_per_km"`
	TopUserLimit  int         `json:"top_user_limit"`
	Auth          *authConfig `json:"auth,omitempty"`
}

type authConfig struct {
	Issuer      string `json:"issuer"`
	ClientID    string `json:"client_id"`
	CallbackURL string `json:"callback_url"`
	LoginURL    string `json:"login_url,omitempty"`
}

// getConfig
//
//	@Summary		Public configuration
//	@Description	Event parameters and the non-secret login settings
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	configResponse
//	@Router			/api/config [get]
func (c *configRoutes) getConfig(w http.ResponseWriter, r *http.Request) {
	resp := configResponse{
		StartDate:     c.cfg.Event.StartDate,
		EndDate:       c.cfg.Event.EndDate,
		TotalStepGoal: c.cfg.Event.TotalStepGoal,
		StepPerKM:     c.cfg.Event.StepPerKM,
		TopUserLimit:  c.cfg.Event.TopUserLimit,
	}

	if c.cfg.OIDC.Configured() {
		resp.Auth = &authConfig{
			Issuer:      c.cfg.OIDC.Issuer,
			ClientID:    c.cfg.OIDC.ClientID,
			CallbackURL: c.cfg.OIDC.CallbackURL,
			LoginURL:    c.loginURL(r),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode configuration", http.StatusInternalServerError)
	}
}

// loginURL builds the provider authorization URL from discovery metadata.
// The endpoint stays usable when the provider is unreachable; the login URL
// is simply omitted.
func (c *configRoutes) loginURL(r *http.Request) string {
	doc, err := c.resolver.Resolve(r.Context(), c.cfg.OIDC.Issuer)
	if err != nil {
		logger.Warnw("could not resolve authorization endpoint", "error", err)
		return ""
	}
	if doc.AuthorizationEndpoint == "" {
		return ""
	}

	query := url.Values{
		"response_type": {"code"},
		"client_id":     {c.cfg.OIDC.ClientID},
		"redirect_uri":  {c.cfg.OIDC.CallbackURL},
		"scope":         {"openid email profile"},
	}

	separator := "?"
	if strings.Contains(doc.AuthorizationEndpoint, "?") {
		separator = "&"
	}
	return doc.AuthorizationEndpoint + separator + query.Encode()
}
