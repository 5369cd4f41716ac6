package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"hashvest.io/internal/audit"
	"hashvest.io/internal/auth"
	"hashvest.io/internal/obs"
)

// ReadyProbe reports readiness, pinging the database when one is attached.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the transport-level behavior of the API.
type Options struct {
	CORSOrigin          string
	RequestsPerMinute   int
	CredentialPerMinute int
	MaxBodyBytes        int64
}

func (o Options) withDefaults() Options {
	if o.RequestsPerMinute <= 0 {
		o.RequestsPerMinute = 120
	}
	if o.CredentialPerMinute <= 0 {
		o.CredentialPerMinute = 10
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	return o
}

// API is the HTTP layer over the auth service.
type API struct {
	mux      *http.ServeMux
	svc      *auth.Service
	resolver *auth.Resolver
	ready    ReadyProbe
	version  string
	settings *settingsStore
	opts     Options
}

func New(svc *auth.Service, store auth.Store, rp ReadyProbe, version string, opts Options) (*API, error) {
	resolver, err := auth.NewResolver(svc.Verifier(), store)
	if err != nil {
		return nil, err
	}
	a := &API{
		mux:      http.NewServeMux(),
		svc:      svc,
		resolver: resolver,
		ready:    rp,
		version:  version,
		settings: newSettingsStore(),
		opts:     opts.withDefaults(),
	}
	a.routes()
	return a, nil
}

func (a *API) routes() {
	credential := newLimiterCache(a.opts.CredentialPerMinute)

	// service endpoints
	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.HandleFunc("/v1/info", a.handleInfo)
	a.mux.Handle("/metrics", obs.Handler())

	// user surface; credential endpoints share the tighter bucket
	a.mux.HandleFunc("/v1/auth/login", a.credentialLimited(credential, a.handleLogin))
	a.mux.HandleFunc("/v1/auth/register", a.credentialLimited(credential, a.handleRegister))
	a.mux.HandleFunc("/v1/auth/refresh", a.credentialLimited(credential, a.handleRefresh))
	a.mux.HandleFunc("/v1/auth/logout", a.requireAudience(auth.AudienceUser, a.handleLogout))
	a.mux.HandleFunc("/v1/auth/password", a.requireAudience(auth.AudienceUser, a.handleChangePassword))
	a.mux.HandleFunc("/v1/auth/me", a.requireAudience(auth.AudienceUser, a.handleMe))

	// admin surface
	adminOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return a.requireAudience(auth.AudienceAdmin, a.requireRole(auth.RoleAdmin, h))
	}
	a.mux.HandleFunc("/v1/admin/login", a.credentialLimited(credential, a.handleAdminLogin))
	a.mux.HandleFunc("/v1/admin/me", adminOnly(a.handleAdminMe))
	a.mux.HandleFunc("/v1/admin/users", adminOnly(a.handleAdminUsers))
	a.mux.HandleFunc("/v1/admin/users/", adminOnly(a.handleAdminUserActive))
	a.mux.HandleFunc("/v1/admin/audit", adminOnly(a.handleAdminAudit))
	a.mux.HandleFunc("/v1/admin/sessions", adminOnly(a.handleAdminSessions))
	a.mux.HandleFunc("/v1/admin/settings", adminOnly(a.handleAdminSettings))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", codeNotFound)
	})
}

func (a *API) credentialLimited(lc *limiterCache, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !lc.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many attempts, slow down", codeRateLimited)
			return
		}
		next(w, r)
	}
}

// Handler returns the fully wrapped handler chain for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = RateLimit(h, a.opts.RequestsPerMinute)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(h, a.opts.CORSOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

// auditEvent persists an audit entry and mirrors it to the JSON log. Audit
// failures are logged, never surfaced to the caller.
func (a *API) auditEvent(r *http.Request, action, principalID string, fields map[string]any) {
	entry := &auth.AuditEntry{
		Action:      action,
		PrincipalID: principalID,
		Resource:    "auth",
		IPAddress:   clientIP(r),
	}
	if err := a.svc.AppendAudit(r.Context(), entry); err != nil {
		obs.LogError("audit_append_failed", err)
	}
	_ = audit.LogEvent(r.Context(), action, fields)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "hashvest-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "hashvest-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
