package auth

import (
	"errors"
	"testing"
	"time"
)

func testTokenConfig(now func() time.Time) TokenConfig {
	return TokenConfig{
		Keys: Keys{
			User:  []byte("user-secret-for-tests"),
			Admin: []byte("admin-secret-for-tests"),
		},
		Issuer:     "hashvest-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        now,
	}
}

func newIssuerVerifier(t *testing.T, cfg TokenConfig) (*Issuer, *Verifier) {
	t.Helper()
	issuer, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return issuer, verifier
}

func TestIssueTokenPairAudienceFollowsRole(t *testing.T) {
	issuer, verifier := newIssuerVerifier(t, testTokenConfig(nil))

	cases := []struct {
		role Role
		want Audience
	}{
		{RoleUser, AudienceUser},
		{RoleAdmin, AudienceAdmin},
		{RoleSuperAdmin, AudienceAdmin},
	}
	for _, tc := range cases {
		pair, err := issuer.IssueTokenPair(Principal{ID: "p-1", Email: "p@example.com", Role: tc.role})
		if err != nil {
			t.Fatalf("IssueTokenPair(%s): %v", tc.role, err)
		}
		claims, err := verifier.Verify(pair.AccessToken, tc.want)
		if err != nil {
			t.Fatalf("verify access token for %s: %v", tc.role, err)
		}
		if claims.AudienceType() != tc.want {
			t.Fatalf("role %s: audience = %s, want %s", tc.role, claims.AudienceType(), tc.want)
		}
		refreshClaims, err := verifier.VerifyRefreshToken(pair.RefreshToken)
		if err != nil {
			t.Fatalf("verify refresh token for %s: %v", tc.role, err)
		}
		if refreshClaims.AudienceType() != AudienceRefresh {
			t.Fatalf("refresh audience = %s, want %s", refreshClaims.AudienceType(), AudienceRefresh)
		}
	}
}

func TestVerifyRoundTripPreservesClaims(t *testing.T) {
	issuer, verifier := newIssuerVerifier(t, testTokenConfig(nil))

	principal := Principal{ID: "p-42", Email: "miner@example.com", Role: RoleUser}
	token, _, err := issuer.IssueAccessToken(principal, AudienceUser)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	claims, err := verifier.Verify(token, AudienceUser)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PrincipalID() != principal.ID {
		t.Fatalf("subject = %s, want %s", claims.PrincipalID(), principal.ID)
	}
	if claims.Email != principal.Email {
		t.Fatalf("email = %s, want %s", claims.Email, principal.Email)
	}
	if claims.Role != principal.Role {
		t.Fatalf("role = %s, want %s", claims.Role, principal.Role)
	}
	if claims.Issuer != "hashvest-test" {
		t.Fatalf("issuer = %s", claims.Issuer)
	}
}

func TestVerifyRejectsCrossAudience(t *testing.T) {
	issuer, verifier := newIssuerVerifier(t, testTokenConfig(nil))

	userToken, _, err := issuer.IssueAccessToken(Principal{ID: "u-1", Role: RoleUser}, AudienceUser)
	if err != nil {
		t.Fatalf("issue user token: %v", err)
	}
	adminToken, _, err := issuer.IssueAccessToken(Principal{ID: "a-1", Role: RoleAdmin}, AudienceAdmin)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}

	// Different secret entirely: signature fails before the audience check.
	if _, err := verifier.Verify(userToken, AudienceAdmin); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("user token accepted for admin audience: %v", err)
	}
	if _, err := verifier.Verify(adminToken, AudienceUser); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("admin token accepted for user audience: %v", err)
	}

	// Same secret, wrong expected-audience string: refresh and admin tokens
	// share the admin secret, so only the audience claim separates them.
	refreshToken, _, err := issuer.IssueRefreshToken(Principal{ID: "a-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}
	if _, err := verifier.Verify(refreshToken, AudienceAdmin); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as admin access token: %v", err)
	}
	if _, err := verifier.Verify(adminToken, AudienceRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("admin access token accepted as refresh token: %v", err)
	}
}

func TestRefreshTokenSignedWithAdminSecret(t *testing.T) {
	cfg := testTokenConfig(nil)
	issuer, _ := newIssuerVerifier(t, cfg)

	// Refresh token for a plain USER principal.
	token, _, err := issuer.IssueRefreshToken(Principal{ID: "u-1", Role: RoleUser})
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	// Changing the user secret must not matter; changing the admin secret must.
	userSwapped := cfg
	userSwapped.Keys = Keys{User: []byte("completely-different"), Admin: cfg.Keys.Admin}
	v1, err := NewVerifier(userSwapped)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := v1.VerifyRefreshToken(token); err != nil {
		t.Fatalf("refresh token should not depend on the user secret: %v", err)
	}

	adminSwapped := cfg
	adminSwapped.Keys = Keys{User: cfg.Keys.User, Admin: []byte("completely-different")}
	v2, err := NewVerifier(adminSwapped)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := v2.VerifyRefreshToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token verified without the admin secret: %v", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	issueCfg := testTokenConfig(func() time.Time { return base })
	issueCfg.AccessTTL = time.Second
	issuer, err := NewIssuer(issueCfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, _, err := issuer.IssueAccessToken(Principal{ID: "u-1", Role: RoleUser}, AudienceUser)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	// One second before expiry the token is still good.
	okCfg := testTokenConfig(func() time.Time { return base })
	okVerifier, err := NewVerifier(okCfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := okVerifier.Verify(token, AudienceUser); err != nil {
		t.Fatalf("token expiring in 1s rejected: %v", err)
	}

	// Past expiry it must fail.
	lateCfg := testTokenConfig(func() time.Time { return base.Add(2 * time.Second) })
	lateVerifier, err := NewVerifier(lateCfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := lateVerifier.Verify(token, AudienceUser); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestVerifyRejectsWrongIssuerAndGarbage(t *testing.T) {
	cfg := testTokenConfig(nil)
	_, verifier := newIssuerVerifier(t, cfg)

	otherCfg := cfg
	otherCfg.Issuer = "someone-else"
	otherIssuer, err := NewIssuer(otherCfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, _, err := otherIssuer.IssueAccessToken(Principal{ID: "u-1", Role: RoleUser}, AudienceUser)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := verifier.Verify(token, AudienceUser); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer accepted: %v", err)
	}

	for _, raw := range []string{"", "   ", "not-a-token", "a.b", "a.b.c"} {
		if _, err := verifier.Verify(raw, AudienceUser); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("garbage %q accepted: %v", raw, err)
		}
	}
}

func TestIssueAccessTokenRejectsRefreshAudience(t *testing.T) {
	issuer, _ := newIssuerVerifier(t, testTokenConfig(nil))
	if _, _, err := issuer.IssueAccessToken(Principal{ID: "u-1", Role: RoleUser}, AudienceRefresh); err == nil {
		t.Fatal("expected error issuing access token with refresh audience")
	}
}
