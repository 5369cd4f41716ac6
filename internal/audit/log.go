// Package audit emits append-only records of security-relevant events. Every
// event is mirrored as a structured JSON log line; persistence of the entry
// itself goes through the auth store's AuditStore.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"hashvest.io/internal/auth"
	"hashvest.io/internal/obs"
)

// Audit actions recorded by the auth subsystem.
const (
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionTokenRefreshed  = "TOKEN_REFRESHED"
	ActionTokenRejected   = "TOKEN_REJECTED"
	ActionLogout          = "LOGOUT"
	ActionRegister        = "REGISTER"
	ActionPasswordChanged = "PASSWORD_CHANGED"
	ActionUserDisabled    = "USER_DISABLED"
	ActionSettingsChanged = "SETTINGS_CHANGED"
)

// SystemPrincipal names the actor when no authenticated principal is known.
const SystemPrincipal = "System"

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes a structured audit line enriched with request and principal
// context. Ordering between entries is by timestamp only.
func LogEvent(ctx context.Context, action string, fields map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return errors.New("audit: action is required")
	}
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"action": action,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	actor := SystemPrincipal
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		actor = principal.ID
	}
	entry["principal_id"] = actor
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
