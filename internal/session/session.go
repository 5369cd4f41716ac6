// Package session tracks server-side session records. A record associates an
// opaque session identifier with its principal and expiry; it is authoritative
// for session liveness independent of token expiry, and is what the admin
// dashboard counts as "active sessions".
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the session id is unknown or expired.
var ErrNotFound = errors.New("session: not found")

// Record is one live session.
type Record struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store is the session persistence collaborator.
type Store interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Revoke deletes one session. Revoking an unknown id is not an error.
	Revoke(ctx context.Context, id string) error
	// RevokeAll deletes every session belonging to a principal.
	RevokeAll(ctx context.Context, principalID string) error
	// Count returns the number of live (unexpired) sessions.
	Count(ctx context.Context) (int, error)
}
