package auth

import "time"

// Principal is an authenticated identity: an ordinary user, or an admin when
// its role is ADMIN or SUPER_ADMIN. The password digest never serializes.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenPair is what login and refresh hand back. Tokens are self-contained;
// nothing here is persisted.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuditEntry is an append-only record of a security-relevant event.
// PrincipalID is "System" when no actor is known.
type AuditEntry struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	PrincipalID string    `json:"principal_id"`
	Resource    string    `json:"resource"`
	IPAddress   string    `json:"ip_address"`
	OccurredAt  time.Time `json:"occurred_at"`
}
