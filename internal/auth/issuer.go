package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints signed, time-bounded tokens. Pure computation: no I/O, no
// shared mutable state, safe for concurrent use.
type Issuer struct {
	cfg TokenConfig
}

// NewIssuer constructs an Issuer. Both secrets must be configured.
func NewIssuer(cfg TokenConfig) (*Issuer, error) {
	if len(cfg.Keys.User) == 0 || len(cfg.Keys.Admin) == 0 {
		return nil, errors.New("auth: both user and admin signing secrets are required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	return &Issuer{cfg: cfg.withDefaults()}, nil
}

// IssueAccessToken signs an access token for the given audience with that
// audience's secret. aud must be user-app or admin-app.
func (i *Issuer) IssueAccessToken(p Principal, aud Audience) (string, time.Time, error) {
	if aud != AudienceUser && aud != AudienceAdmin {
		return "", time.Time{}, fmt.Errorf("%w: audience %q is not an access audience", ErrInvalidInput, aud)
	}
	return i.sign(p, aud, i.cfg.AccessTTL)
}

// IssueRefreshToken signs a refresh token. Audience is fixed to refresh-token
// and the signing secret is always the admin secret (see Keys.secretFor).
func (i *Issuer) IssueRefreshToken(p Principal) (string, time.Time, error) {
	return i.sign(p, AudienceRefresh, i.cfg.RefreshTTL)
}

// IssueTokenPair derives the access audience from the principal's role and
// mints both tokens. This is the sole entry point for login and refresh.
func (i *Issuer) IssueTokenPair(p Principal) (TokenPair, error) {
	aud := AudienceForRole(p.Role)
	access, accessExp, err := i.IssueAccessToken(p, aud)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.IssueRefreshToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(p Principal, aud Audience, ttl time.Duration) (string, time.Time, error) {
	if p.ID == "" {
		return "", time.Time{}, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	if !p.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: role %q", ErrInvalidInput, p.Role)
	}
	now := i.cfg.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   p.ID,
			Audience:  jwt.ClaimStrings{string(aud)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.Keys.secretFor(aud))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}
