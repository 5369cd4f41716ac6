package httpapi

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"hashvest.io/internal/audit"
	"hashvest.io/internal/auth"
	"hashvest.io/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 32)),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// setTokenCookie mirrors the access token into the audience cookie so
// browser clients work without an Authorization header.
func setTokenCookie(w http.ResponseWriter, pair auth.TokenPair, audience auth.Audience) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieForAudience(audience),
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearTokenCookie(w http.ResponseWriter, audience auth.Audience) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieForAudience(audience),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
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
	pair, principal, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.ObserveLogin(string(auth.AudienceUser), false)
		a.auditEvent(r, audit.ActionLoginFailed, "", map[string]any{"email": req.Email})
		writeError(w, http.StatusUnauthorized, "invalid credentials", codeInvalidCredentials)
		return
	}
	aud := auth.AudienceForRole(principal.Role)
	obs.ObserveLogin(string(aud), true)
	a.auditEvent(r, audit.ActionLoginSuccess, principal.ID, nil)
	setTokenCookie(w, pair, aud)
	writeData(w, http.StatusOK, map[string]any{
		"tokens": pair,
		"user":   principal,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, "validation failed", err)
		return
	}
	principal, err := a.svc.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, "password does not meet requirements", verr.Report)
		case errors.Is(err, auth.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "account already exists", codeConflict)
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		default:
			writeError(w, http.StatusInternalServerError, "registration failed", codeInternal)
		}
		return
	}
	a.auditEvent(r, audit.ActionRegister, principal.ID, nil)
	writeData(w, http.StatusCreated, map[string]any{"user": principal})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, "validation failed", err)
		return
	}
	pair, principal, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.ObserveRefresh(false)
		writeError(w, http.StatusUnauthorized, "invalid or expired token", codeInvalidToken)
		return
	}
	aud := auth.AudienceForRole(principal.Role)
	obs.ObserveRefresh(true)
	a.auditEvent(r, audit.ActionTokenRefreshed, principal.ID, nil)
	setTokenCookie(w, pair, aud)
	writeData(w, http.StatusOK, map[string]any{
		"tokens": pair,
		"user":   principal,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := a.svc.Logout(r.Context(), principal.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed", codeInternal)
		return
	}
	a.auditEvent(r, audit.ActionLogout, principal.ID, nil)
	clearTokenCookie(w, auth.AudienceForRole(principal.Role))
	writeData(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), codeBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, "validation failed", err)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	err := a.svc.ChangePassword(r.Context(), principal.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, "password does not meet requirements", verr.Report)
		case errors.Is(err, auth.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid credentials", codeInvalidCredentials)
		default:
			writeError(w, http.StatusInternalServerError, "password change failed", codeInternal)
		}
		return
	}
	a.auditEvent(r, audit.ActionPasswordChanged, principal.ID, nil)
	writeData(w, http.StatusOK, map[string]any{"changed": true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	writeData(w, http.StatusOK, map[string]any{"user": principal})
}
