// Package config loads the runorg configuration from the environment.
//
// Every value is sourced from RUNORG_-prefixed environment variables with
// sensible defaults, constructed once at startup and passed explicitly into
// each component's constructor.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SessionAlgorithm is the only accepted signing algorithm for the internal
// session credential. It is fixed: the session codec never negotiates an
// algorithm with the token it is handed.
const SessionAlgorithm = "HS256"

// OIDC holds the identity-provider settings for login.
// The client secret never leaves the server.
type OIDC struct {
	// Issuer is the IdP issuer URL (e.g. https://accounts.google.com).
	Issuer string

	// Audience is the expected audience of identity tokens. Defaults to
	// the client ID, which is what OIDC providers put in `aud`.
	Audience string

	// Algorithms is the allow-list of identity-token signature algorithms.
	Algorithms []string

	// ClientID and ClientSecret identify this service to the IdP.
	ClientID     string
	ClientSecret string

	// CallbackURL is the redirect URI registered with the IdP.
	CallbackURL string
}

// Configured reports whether enough OIDC settings are present to log in.
func (o OIDC) Configured() bool {
	return o.Issuer != "" && o.ClientID != "" && o.ClientSecret != ""
}

// Event holds the public "Run for Organization" event parameters.
type Event struct {
	StartDate     string
	EndDate       string
	TotalStepGoal int
	StepPerKM     int
	TopUserLimit  int
}

// Config is the full runorg configuration.
type Config struct {
	ServerAddress string
	DatabasePath  string

	OIDC OIDC

	// SessionSecret signs the internal session credential.
	SessionSecret string
	// SessionTTL is the lifetime of an issued session credential.
	SessionTTL time.Duration

	Event Event
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUNORG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_address", ":8080")
	v.SetDefault("database_path", "runorg.db")
	v.SetDefault("oidc_algorithms", "RS256")
	v.SetDefault("session_algorithm", SessionAlgorithm)
	v.SetDefault("session_ttl", "60m")
	v.SetDefault("start_date", "2023-01-01")
	v.SetDefault("end_date", "2023-12-31")
	v.SetDefault("total_step_goal", 1000000)
	v.SetDefault("step_per_km", 1500)
	v.SetDefault("top_user_limit", 5)

	sessionTTL, err := time.ParseDuration(v.GetString("session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUNORG_SESSION_TTL: %w", err)
	}

	cfg := &Config{
		ServerAddress: v.GetString("server_address"),
		DatabasePath:  v.GetString("database_path"),
		OIDC: OIDC{
			Issuer:       strings.TrimSuffix(v.GetString("oidc_issuer"), "/"),
			Audience:     v.GetString("oidc_audience"),
			Algorithms:   splitList(v.GetString("oidc_algorithms")),
			ClientID:     v.GetString("oidc_client_id"),
			ClientSecret: v.GetString("oidc_client_secret"),
			CallbackURL:  v.GetString("oidc_callback_url"),
		},
		SessionSecret: v.GetString("session_secret"),
		SessionTTL:    sessionTTL,
		Event: Event{
			StartDate:     v.GetString("start_date"),
			EndDate:       v.GetString("end_date"),
			TotalStepGoal: v.GetInt("total_step_goal"),
			StepPerKM:     v.GetInt("step_per_km"),
			TopUserLimit:  v.GetInt("top_user_limit"),
		},
	}

	if cfg.OIDC.Audience == "" {
		cfg.OIDC.Audience = cfg.OIDC.ClientID
	}

	if alg := v.GetString("session_algorithm"); alg != SessionAlgorithm {
		return nil, fmt.Errorf("unsupported RUNORG_SESSION_ALGORITHM %q: only %s is supported", alg, SessionAlgorithm)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would weaken authentication. In
// particular the service refuses to start without a session secret: there is
// no mode in which tokens are accepted without signature verification.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("RUNORG_SESSION_SECRET must be set; refusing to run without signed session credentials")
	}
	if c.SessionTTL <= 0 {
		return errors.New("RUNORG_SESSION_TTL must be positive")
	}

	// OIDC is optional as a whole but must not be half-configured.
	o := c.OIDC
	anySet := o.Issuer != "" || o.ClientID != "" || o.ClientSecret != "" || o.CallbackURL != ""
	if anySet && !(o.Issuer != "" && o.ClientID != "" && o.ClientSecret != "" && o.CallbackURL != "") {
		return errors.New("partial OIDC configuration: set all of RUNORG_OIDC_ISSUER, RUNORG_OIDC_CLIENT_ID, RUNORG_OIDC_CLIENT_SECRET, RUNORG_OIDC_CALLBACK_URL or none")
	}
	if anySet && len(o.Algorithms) == 0 {
		return errors.New("RUNORG_OIDC_ALGORITHMS must list at least one algorithm")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
