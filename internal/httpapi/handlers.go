package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"tiergate.org/internal/groups"
	"tiergate.org/internal/obs"
	"tiergate.org/internal/profile"
	"tiergate.org/internal/signup"
)

// ReadyProbe reports whether the API's backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services bundles the domain services the API fronts.
type Services struct {
	Linker    *signup.Linker
	Confirmer *signup.PostConfirmation
	Tiers     *groups.Updater
	Profiles  profile.Store
}

// Options holds deployment knobs.
type Options struct {
	// WebhookSecret authenticates the trigger endpoints. Empty disables them.
	WebhookSecret string
	// RequireAdmin restricts tier updates to callers holding the admin role.
	RequireAdmin bool
	RateBurst    int
	RatePerSec   int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	linker    *signup.Linker
	confirmer *signup.PostConfirmation
	tiers     *groups.Updater
	profiles  profile.Store

	webhookSecret string
	requireAdmin  bool
	rateBurst     int
	ratePerSec    int
}

func New(rp ReadyProbe, version string, svc Services, opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    rp,
		version:       version,
		linker:        svc.Linker,
		confirmer:     svc.Confirmer,
		tiers:         svc.Tiers,
		profiles:      svc.Profiles,
		webhookSecret: opts.WebhookSecret,
		requireAdmin:  opts.RequireAdmin,
		rateBurst:     opts.RateBurst,
		ratePerSec:    opts.RatePerSec,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/triggers/pre-signup", a.handlePreSignup)
	a.mux.HandleFunc("/v1/triggers/post-confirmation", a.handlePostConfirmation)

	a.mux.HandleFunc("/v1/users/tier", a.handleTierUpdate)
	a.mux.HandleFunc("/v1/profiles", a.handleProfilesCollection)
	a.mux.HandleFunc("/v1/profiles/", a.handleProfileResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tiergate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tiergate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
