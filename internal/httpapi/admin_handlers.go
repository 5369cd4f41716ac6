package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"hashvest.io/internal/audit"
	"hashvest.io/internal/auth"
	"hashvest.io/internal/obs"
)

// PlatformSettings is the mutable operator configuration. Writes are gated
// on SUPER_ADMIN; reads on ADMIN.
type PlatformSettings struct {
	MaintenanceMode  bool    `json:"maintenanceMode"`
	RegistrationOpen bool    `json:"registrationOpen"`
	MiningRewardRate float64 `json:"miningRewardRate"`
}

type settingsStore struct {
	mu      sync.RWMutex
	current PlatformSettings
}

func newSettingsStore() *settingsStore {
	return &settingsStore{current: PlatformSettings{
		RegistrationOpen: true,
		MiningRewardRate: 0.05,
	}}
}

func (s *settingsStore) Get() PlatformSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *settingsStore) Put(next PlatformSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
}

// handleAdminLogin authenticates against the same credential set but only
// admits ADMIN and SUPER_ADMIN accounts. A valid non-admin credential fails
// exactly like a wrong password.
func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, "validation failed", err)
		return
	}
	pair, principal, err := a.svc.LoginForAudience(r.Context(), req.Email, req.Password, auth.AudienceAdmin)
	if err != nil {
		obs.ObserveLogin(string(auth.AudienceAdmin), false)
		a.auditEvent(r, audit.ActionLoginFailed, "", map[string]any{"email": req.Email, "surface": "admin"})
		writeError(w, http.StatusUnauthorized, "invalid credentials", codeInvalidCredentials)
		return
	}
	obs.ObserveLogin(string(auth.AudienceAdmin), true)
	a.auditEvent(r, audit.ActionLoginSuccess, principal.ID, map[string]any{"surface": "admin"})
	setTokenCookie(w, pair, auth.AudienceAdmin)
	writeData(w, http.StatusOK, map[string]any{
		"tokens": pair,
		"user":   principal,
	})
}

func (a *API) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	writeData(w, http.StatusOK, map[string]any{"user": principal})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, offset := pageParams(r)
	users, err := a.svc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing users failed", codeInternal)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// handleAdminUserActive serves PUT /v1/admin/users/{id}/active.
func (a *API) handleAdminUserActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	id, ok := strings.CutSuffix(rest, "/active")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found", codeNotFound)
		return
	}
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		return
	}
	if err := a.svc.SetUserActive(r.Context(), id, req.Active); err != nil {
		writeError(w, http.StatusNotFound, "user not found", codeNotFound)
		return
	}
	if !req.Active {
		a.auditEvent(r, audit.ActionUserDisabled, id, nil)
	}
	writeData(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}

func (a *API) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, offset := pageParams(r)
	entries, err := a.svc.AuditEntries(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing audit entries failed", codeInternal)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

func (a *API) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	count, err := a.svc.ActiveSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "counting sessions failed", codeInternal)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"activeSessions": count})
}

func (a *API) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeData(w, http.StatusOK, map[string]any{"settings": a.settings.Get()})
	case http.MethodPut:
		// The write path carries its own gate on top of the admin gate.
		a.requireRole(auth.RoleSuperAdmin, a.putSettings)(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) putSettings(w http.ResponseWriter, r *http.Request) {
	var req PlatformSettings
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		return
	}
	a.settings.Put(req)
	principal, _ := auth.PrincipalFromContext(r.Context())
	a.auditEvent(r, audit.ActionSettingsChanged, principal.ID, map[string]any{
		"maintenanceMode":  req.MaintenanceMode,
		"registrationOpen": req.RegistrationOpen,
	})
	writeData(w, http.StatusOK, map[string]any{"settings": a.settings.Get()})
}
