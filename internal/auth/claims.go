package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience pins a token to one consumer population. A token issued for one
// audience must never validate against another.
type Audience string

const (
	AudienceUser    Audience = "user-app"
	AudienceAdmin   Audience = "admin-app"
	AudienceRefresh Audience = "refresh-token"
)

// AudienceForRole derives the access-token audience at issuance time:
// ADMIN and SUPER_ADMIN principals get admin-app tokens, everyone else user-app.
func AudienceForRole(r Role) Audience {
	if r.AdminLevel() {
		return AudienceAdmin
	}
	return AudienceUser
}

// Claims is the signed token payload shared by issuer and verifier.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalID returns the token subject.
func (c *Claims) PrincipalID() string { return c.Subject }

// AudienceType returns the single audience the token was issued for.
func (c *Claims) AudienceType() Audience {
	if len(c.Audience) != 1 {
		return ""
	}
	return Audience(c.Audience[0])
}

// Keys holds the two HMAC signing secrets, one per audience.
type Keys struct {
	User  []byte
	Admin []byte
}

// secretFor selects the signing secret for an audience. Refresh tokens are
// always signed with the admin secret regardless of the principal's role;
// the asymmetry is load-bearing for existing clients, do not "fix" it here.
func (k Keys) secretFor(aud Audience) []byte {
	if aud == AudienceUser {
		return k.User
	}
	return k.Admin
}

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenConfig is the construction-time configuration shared by Issuer and
// Verifier. Secrets and TTLs are loaded once at process start; both sides of
// the token lifecycle must see the same values.
type TokenConfig struct {
	Keys       Keys
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = defaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = defaultRefreshTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
