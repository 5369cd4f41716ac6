package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates tokens against the secret of the audience the caller
// expects. Every failure collapses into ErrInvalidToken so callers cannot
// probe which check tripped.
type Verifier struct {
	cfg    TokenConfig
	parser *jwt.Parser
}

// NewVerifier constructs a Verifier sharing the issuer's configuration.
func NewVerifier(cfg TokenConfig) (*Verifier, error) {
	if len(cfg.Keys.User) == 0 || len(cfg.Keys.Admin) == 0 {
		return nil, errors.New("auth: both user and admin signing secrets are required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	cfg = cfg.withDefaults()
	return &Verifier{
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(cfg.Now),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Verify checks signature, issuer, exact audience and expiry, returning the
// claims on success. The secret is selected from the expected audience, so an
// admin-app token checked against user-app fails on signature and a
// refresh-token checked against admin-app fails on the audience claim.
func (v *Verifier) Verify(token string, expected Audience) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secret := v.cfg.Keys.secretFor(expected)
	parsed, err := v.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := v.validate(claims, expected); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken verifies against the refresh audience; by construction
// that means the admin secret.
func (v *Verifier) VerifyRefreshToken(token string) (*Claims, error) {
	return v.Verify(token, AudienceRefresh)
}

func (v *Verifier) validate(claims *Claims, expected Audience) error {
	if claims.Issuer != v.cfg.Issuer {
		return errors.New("unexpected issuer")
	}
	if claims.AudienceType() != expected {
		return errors.New("audience mismatch")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if !claims.Role.Valid() {
		return errors.New("unknown role claim")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := v.cfg.Now().UTC()
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
