package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// CookieUserToken and CookieAdminToken are the fallback credential
	// cookies, one per audience.
	CookieUserToken  = "user_token"
	CookieAdminToken = "admin_token"
)

// CookieForAudience maps an access audience to its credential cookie name.
func CookieForAudience(aud Audience) string {
	if aud == AudienceAdmin {
		return CookieAdminToken
	}
	return CookieUserToken
}

// ExtractToken pulls the raw bearer token for the expected audience. The
// Authorization header (case-sensitive "Bearer " prefix) always wins over the
// cookie; a present-but-malformed header is a presented credential and fails
// with ErrInvalidToken, never falling through to the cookie. Only a request
// with neither header nor cookie yields ErrNoCredential.
func ExtractToken(r *http.Request, aud Audience) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authorizationHeader)); header != "" {
		if !strings.HasPrefix(header, bearerPrefix) {
			return "", ErrInvalidToken
		}
		token := strings.TrimSpace(header[len(bearerPrefix):])
		if token == "" {
			return "", ErrInvalidToken
		}
		return token, nil
	}
	if c, err := r.Cookie(CookieForAudience(aud)); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	return "", ErrNoCredential
}

// Resolver walks a request through CredentialExtracted -> Verified ->
// Resolved, rejecting at the first failed step. It performs no logging;
// audit decisions belong to the calling handler, which has the route context.
type Resolver struct {
	verifier *Verifier
	store    Store
}

// NewResolver constructs a Resolver.
func NewResolver(verifier *Verifier, store Store) (*Resolver, error) {
	if verifier == nil {
		return nil, errors.New("auth: verifier is required")
	}
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &Resolver{verifier: verifier, store: store}, nil
}

// Resolve extracts and verifies the request credential for the expected
// audience and loads the principal record. A valid signature does not
// guarantee the account still exists: deleted and deactivated subjects fail
// with ErrPrincipalNotFound.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, aud Audience) (Principal, string, error) {
	token, err := ExtractToken(req, aud)
	if err != nil {
		return Principal{}, "", err
	}
	claims, err := r.verifier.Verify(token, aud)
	if err != nil {
		return Principal{}, "", err
	}
	principal, err := r.store.Users(ctx).Find(ctx, claims.PrincipalID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, "", ErrPrincipalNotFound
		}
		return Principal{}, "", fmt.Errorf("resolve principal: %w", err)
	}
	if !principal.Active {
		return Principal{}, "", ErrPrincipalNotFound
	}
	return *principal, token, nil
}
