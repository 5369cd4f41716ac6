package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hashvest.io/internal/auth"
)

// memStore is an in-memory auth.Store for transport tests.
type memStore struct {
	users   map[string]*auth.Principal
	byEmail map[string]string
	entries []*auth.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*auth.Principal{}, byEmail: map[string]string{}}
}

func (m *memStore) Users(context.Context) auth.UserStore  { return (*memUsers)(m) }
func (m *memStore) Audit(context.Context) auth.AuditStore { return (*memAudit)(m) }

type memUsers memStore

func (m *memUsers) Create(_ context.Context, p *auth.Principal) error {
	if _, ok := m.byEmail[p.Email]; ok {
		return auth.ErrAlreadyExists
	}
	cp := *p
	m.users[p.ID] = &cp
	m.byEmail[p.Email] = p.ID
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*auth.Principal, error) {
	p, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.Principal, error) {
	id, ok := m.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return m.Find(context.Background(), id)
}

func (m *memUsers) List(_ context.Context, limit, offset int) ([]*auth.Principal, error) {
	var res []*auth.Principal
	for _, p := range m.users {
		cp := *p
		res = append(res, &cp)
	}
	return res, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	p, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	p.PasswordHash = hash
	return nil
}

func (m *memUsers) SetActive(_ context.Context, id string, active bool) error {
	p, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	p.Active = active
	return nil
}

type memAudit memStore

func (m *memAudit) Append(_ context.Context, e *auth.AuditEntry) error {
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memAudit) List(_ context.Context, limit, offset int) ([]*auth.AuditEntry, error) {
	res := make([]*auth.AuditEntry, len(m.entries))
	copy(res, m.entries)
	return res, nil
}

const testPassword = "Tr0ub4dor&3"

func seedPrincipal(t *testing.T, store *memStore, id, email string, role auth.Role) {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, auth.MinBcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = store.Users(context.Background()).Create(context.Background(), &auth.Principal{
		ID:           id,
		Email:        email,
		Username:     id,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func newTestAPI(t *testing.T, opts Options) (*API, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := auth.NewService(store, auth.TokenConfig{
		Keys:   auth.Keys{User: []byte("user-secret-0123456789"), Admin: []byte("admin-secret-0123456789")},
		Issuer: "hashvest-test",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api, err := New(svc, store, ReadyProbe{}, "test", opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return api, store
}

type apiError struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, resp
}

type tokenPayload struct {
	Tokens auth.TokenPair `json:"tokens"`
	User   auth.Principal `json:"user"`
}

func login(t *testing.T, h http.Handler, path, email string) tokenPayload {
	t.Helper()
	code, resp := doJSON(t, h, http.MethodPost, path, "", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("login %s via %s: %d %+v", email, path, code, resp.Error)
	}
	var payload tokenPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("decode login payload: %v", err)
	}
	return payload
}

func TestAuthLifecycle(t *testing.T) {
	api, store := newTestAPI(t, Options{})
	h := api.Handler()

	seedPrincipal(t, store, "admin-1", "admin@hashvest.io", auth.RoleAdmin)
	seedPrincipal(t, store, "root-1", "root@hashvest.io", auth.RoleSuperAdmin)

	// Register a new investor account.
	code, resp := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":    "miner@example.com",
		"username": "miner",
		"password": testPassword,
	})
	if code != http.StatusCreated || !resp.Success {
		t.Fatalf("register: %d %+v", code, resp.Error)
	}

	// Log in and hit the profile endpoint with the bearer token.
	session := login(t, h, "/v1/auth/login", "miner@example.com")
	if session.User.Role != auth.RoleUser {
		t.Fatalf("registered role: %s", session.User.Role)
	}
	code, resp = doJSON(t, h, http.MethodGet, "/v1/auth/me", session.Tokens.AccessToken, nil)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("me: %d %+v", code, resp.Error)
	}

	// A user token does not open the admin surface.
	code, resp = doJSON(t, h, http.MethodGet, "/v1/admin/me", session.Tokens.AccessToken, nil)
	if code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeInvalidToken {
		t.Fatalf("user token on admin surface: %d %+v", code, resp.Error)
	}

	// Refresh rotates the pair.
	code, resp = doJSON(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refreshToken": session.Tokens.RefreshToken,
	})
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("refresh: %d %+v", code, resp.Error)
	}
	var rotated tokenPayload
	if err := json.Unmarshal(resp.Data, &rotated); err != nil {
		t.Fatalf("decode refresh payload: %v", err)
	}
	code, resp = doJSON(t, h, http.MethodGet, "/v1/auth/me", rotated.Tokens.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("me after refresh: %d %+v", code, resp.Error)
	}

	// An access token is not accepted as a refresh token.
	code, resp = doJSON(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refreshToken": rotated.Tokens.AccessToken,
	})
	if code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeInvalidToken {
		t.Fatalf("access token accepted for refresh: %d %+v", code, resp.Error)
	}

	// Admin disables the account; the still-valid token stops working.
	admin := login(t, h, "/v1/admin/login", "admin@hashvest.io")
	code, resp = doJSON(t, h, http.MethodPut,
		fmt.Sprintf("/v1/admin/users/%s/active", session.User.ID),
		admin.Tokens.AccessToken, map[string]bool{"active": false})
	if code != http.StatusOK {
		t.Fatalf("disable user: %d %+v", code, resp.Error)
	}
	code, resp = doJSON(t, h, http.MethodGet, "/v1/auth/me", rotated.Tokens.AccessToken, nil)
	if code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeInvalidToken {
		t.Fatalf("disabled account still resolves: %d %+v", code, resp.Error)
	}
	code, resp = doJSON(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refreshToken": rotated.Tokens.RefreshToken,
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("disabled account refreshed: %d %+v", code, resp.Error)
	}

	// The audit trail saw the lifecycle.
	code, resp = doJSON(t, h, http.MethodGet, "/v1/admin/audit", admin.Tokens.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("audit list: %d %+v", code, resp.Error)
	}
	var auditPage struct {
		Entries []*auth.AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(resp.Data, &auditPage); err != nil {
		t.Fatalf("decode audit page: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range auditPage.Entries {
		seen[e.Action] = true
	}
	for _, want := range []string{"REGISTER", "LOGIN_SUCCESS", "TOKEN_REFRESHED", "USER_DISABLED"} {
		if !seen[want] {
			t.Fatalf("audit trail missing %s: %v", want, seen)
		}
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	api, store := newTestAPI(t, Options{})
	h := api.Handler()
	seedPrincipal(t, store, "u-1", "user@hashvest.io", auth.RoleUser)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"unknown account", map[string]string{"email": "ghost@hashvest.io", "password": testPassword}},
		{"wrong password", map[string]string{"email": "user@hashvest.io", "password": "wrong-password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", tc.body)
			if code != http.StatusUnauthorized || resp.Error == nil {
				t.Fatalf("got %d %+v", code, resp.Error)
			}
			if resp.Error.Code != codeInvalidCredentials || resp.Error.Message != "invalid credentials" {
				t.Fatalf("failure not uniform: %+v", resp.Error)
			}
		})
	}

	t.Run("non-admin on admin login", func(t *testing.T) {
		code, resp := doJSON(t, h, http.MethodPost, "/v1/admin/login", "", map[string]string{
			"email": "user@hashvest.io", "password": testPassword,
		})
		if code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeInvalidCredentials {
			t.Fatalf("valid user credential leaked on admin surface: %d %+v", code, resp.Error)
		}
	})
}

func TestRegisterValidation(t *testing.T) {
	api, _ := newTestAPI(t, Options{})
	h := api.Handler()

	t.Run("bad email", func(t *testing.T) {
		code, resp := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email": "not-an-email", "username": "miner", "password": testPassword,
		})
		if code != http.StatusUnprocessableEntity || resp.Error == nil || resp.Error.Code != codeValidationFailed {
			t.Fatalf("got %d %+v", code, resp.Error)
		}
	})

	t.Run("weak password carries report", func(t *testing.T) {
		code, resp := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email": "miner@example.com", "username": "miner", "password": "password",
		})
		if code != http.StatusUnprocessableEntity || resp.Error == nil || resp.Error.Code != codeValidationFailed {
			t.Fatalf("got %d %+v", code, resp.Error)
		}
		var report auth.StrengthReport
		if err := json.Unmarshal(resp.Error.Details, &report); err != nil {
			t.Fatalf("details are not a strength report: %v", err)
		}
		if report.Valid || len(report.Violations) == 0 {
			t.Fatalf("report: %+v", report)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		code, resp := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
			"email": "miner@example.com", "username": "miner", "password": testPassword, "role": "ADMIN",
		})
		if code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeBadRequest {
			t.Fatalf("role injection not rejected: %d %+v", code, resp.Error)
		}
	})
}

func TestSettingsGate(t *testing.T) {
	api, store := newTestAPI(t, Options{})
	h := api.Handler()
	seedPrincipal(t, store, "admin-1", "admin@hashvest.io", auth.RoleAdmin)
	seedPrincipal(t, store, "root-1", "root@hashvest.io", auth.RoleSuperAdmin)

	admin := login(t, h, "/v1/admin/login", "admin@hashvest.io")
	root := login(t, h, "/v1/admin/login", "root@hashvest.io")

	code, resp := doJSON(t, h, http.MethodGet, "/v1/admin/settings", admin.Tokens.AccessToken, nil)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("admin read: %d %+v", code, resp.Error)
	}

	update := map[string]any{"maintenanceMode": true, "registrationOpen": false, "miningRewardRate": 0.07}

	code, resp = doJSON(t, h, http.MethodPut, "/v1/admin/settings", admin.Tokens.AccessToken, update)
	if code != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeSuperAdminRequired {
		t.Fatalf("admin write allowed: %d %+v", code, resp.Error)
	}

	code, resp = doJSON(t, h, http.MethodPut, "/v1/admin/settings", root.Tokens.AccessToken, update)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("super admin write: %d %+v", code, resp.Error)
	}
	var payload struct {
		Settings PlatformSettings `json:"settings"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if !payload.Settings.MaintenanceMode || payload.Settings.RegistrationOpen {
		t.Fatalf("settings not applied: %+v", payload.Settings)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	api, store := newTestAPI(t, Options{})
	h := api.Handler()
	seedPrincipal(t, store, "admin-1", "admin@hashvest.io", auth.RoleAdmin)
	seedPrincipal(t, store, "u-1", "user@hashvest.io", auth.RoleUser)

	admin := login(t, h, "/v1/admin/login", "admin@hashvest.io")
	user := login(t, h, "/v1/auth/login", "user@hashvest.io")

	code, resp := doJSON(t, h, http.MethodGet, "/v1/admin/sessions", admin.Tokens.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("sessions: %d %+v", code, resp.Error)
	}
	var payload struct {
		ActiveSessions int `json:"activeSessions"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if payload.ActiveSessions != 2 {
		t.Fatalf("want 2 active sessions, got %d", payload.ActiveSessions)
	}

	// A valid USER credential rejected at the admin surface records nothing.
	code, resp = doJSON(t, h, http.MethodPost, "/v1/admin/login", "", map[string]string{
		"email":    "user@hashvest.io",
		"password": testPassword,
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("user credential on admin login: %d %+v", code, resp.Error)
	}
	code, resp = doJSON(t, h, http.MethodGet, "/v1/admin/sessions", admin.Tokens.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("sessions: %d %+v", code, resp.Error)
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if payload.ActiveSessions != 2 {
		t.Fatalf("rejected admin login tracked a session: %d", payload.ActiveSessions)
	}

	// Logout removes the user's session records.
	code, resp = doJSON(t, h, http.MethodPost, "/v1/auth/logout", user.Tokens.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("logout: %d %+v", code, resp.Error)
	}
	code, resp = doJSON(t, h, http.MethodGet, "/v1/admin/sessions", admin.Tokens.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("sessions after logout: %d %+v", code, resp.Error)
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if payload.ActiveSessions != 1 {
		t.Fatalf("want 1 active session after logout, got %d", payload.ActiveSessions)
	}
}

func TestHealthEndpoints(t *testing.T) {
	api, _ := newTestAPI(t, Options{})
	h := api.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
}
