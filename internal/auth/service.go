package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hashvest.io/internal/ids"
	"hashvest.io/internal/session"
)

// Service composes the credential hasher, token issuer/verifier and the
// persistence collaborator into the login/refresh/logout lifecycle. All
// configuration is injected at construction; there is no package-level state.
type Service struct {
	store      Store
	sessions   session.Store
	issuer     *Issuer
	verifier   *Verifier
	bcryptCost int
	sessionTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSessions wires the session-record store used for liveness tracking.
func WithSessions(store session.Store) ServiceOption {
	return func(s *Service) error {
		if store != nil {
			s.sessions = store
		}
		return nil
	}
}

// WithBcryptCost overrides the credential hashing cost factor.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost > 0 {
			s.bcryptCost = cost
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the auth service. The token configuration is shared
// verbatim between issuer and verifier so both sides agree on secrets, issuer
// string and TTLs.
func NewService(store Store, tokens TokenConfig, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	issuer, err := NewIssuer(tokens)
	if err != nil {
		return nil, err
	}
	verifier, err := NewVerifier(tokens)
	if err != nil {
		return nil, err
	}
	tokens = tokens.withDefaults()
	svc := &Service{
		store:      store,
		sessions:   session.NewMemory(0),
		issuer:     issuer,
		verifier:   verifier,
		bcryptCost: MinBcryptCost,
		sessionTTL: tokens.RefreshTTL,
		now:        tokens.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Issuer exposes the token issuer.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Verifier exposes the token verifier for resolvers and middleware.
func (s *Service) Verifier() *Verifier { return s.verifier }

// ValidationError carries the itemized strength report back to the caller so
// the user can retry with a stronger password.
type ValidationError struct {
	Report StrengthReport
}

func (e *ValidationError) Error() string { return "password does not meet requirements" }

// RegisterInput is the signup payload after transport-level validation.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates a new USER principal. The strength check runs before
// hashing and is itemized; the submitted password is never weakened.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Principal, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return Principal{}, fmt.Errorf("%w: email and username are required", ErrInvalidInput)
	}
	if report := ScorePassword(in.Password); !report.Valid {
		return Principal{}, &ValidationError{Report: report}
	}
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return Principal{}, err
	}
	now := s.now().UTC()
	principal := Principal{
		ID:           ids.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users(ctx).Create(ctx, &principal); err != nil {
		return Principal{}, err
	}
	return principal, nil
}

// Login authenticates credentials and mints a token pair. Unknown account,
// wrong password and disabled account all fail with ErrUnauthorized; callers
// must not be able to tell them apart.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Principal, error) {
	return s.login(ctx, email, password, "")
}

// LoginForAudience is Login restricted to one surface: the credential must
// resolve to a principal whose role derives the given audience. A mismatch
// fails with the same ErrUnauthorized before any token is minted or any
// session recorded.
func (s *Service) LoginForAudience(ctx context.Context, email, password string, aud Audience) (TokenPair, Principal, error) {
	return s.login(ctx, email, password, aud)
}

func (s *Service) login(ctx context.Context, email, password string, aud Audience) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	principal, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if !principal.Active {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if !VerifyPassword(password, principal.PasswordHash) {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if aud != "" && AudienceForRole(principal.Role) != aud {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	pair, err := s.issuer.IssueTokenPair(*principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	s.trackSession(ctx, principal.ID)
	return pair, *principal, nil
}

// Refresh exchanges a refresh token for a fresh pair. The access audience is
// re-derived from the principal's current role, so promotions and demotions
// take effect at the next exchange.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	claims, err := s.verifier.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	principal, err := s.store.Users(ctx).Find(ctx, claims.PrincipalID())
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	if !principal.Active {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	pair, err := s.issuer.IssueTokenPair(*principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, *principal, nil
}

// Logout revokes every session record for the principal. Tokens themselves
// are stateless and expire naturally.
func (s *Service) Logout(ctx context.Context, principalID string) error {
	if strings.TrimSpace(principalID) == "" {
		return fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	return s.sessions.RevokeAll(ctx, principalID)
}

// ChangePassword rotates the credential digest after re-verifying the
// current password, and revokes existing sessions.
func (s *Service) ChangePassword(ctx context.Context, principalID, current, next string) error {
	principal, err := s.store.Users(ctx).Find(ctx, principalID)
	if err != nil {
		return err
	}
	if !VerifyPassword(current, principal.PasswordHash) {
		return ErrUnauthorized
	}
	if report := ScorePassword(next); !report.Valid {
		return &ValidationError{Report: report}
	}
	hash, err := HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.Users(ctx).UpdatePassword(ctx, principalID, hash); err != nil {
		return err
	}
	return s.sessions.RevokeAll(ctx, principalID)
}

// Principal loads a principal by id.
func (s *Service) Principal(ctx context.Context, id string) (Principal, error) {
	principal, err := s.store.Users(ctx).Find(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	return *principal, nil
}

// ListUsers pages through principals for the admin surface.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*Principal, error) {
	return s.store.Users(ctx).List(ctx, limit, offset)
}

// SetUserActive flips the active flag; a deactivated principal fails
// resolution on its next request even with a still-valid token.
func (s *Service) SetUserActive(ctx context.Context, id string, active bool) error {
	if err := s.store.Users(ctx).SetActive(ctx, id, active); err != nil {
		return err
	}
	if !active {
		return s.sessions.RevokeAll(ctx, id)
	}
	return nil
}

// ActiveSessions returns the live session count.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	return s.sessions.Count(ctx)
}

// AppendAudit records an action in the append-only log, defaulting the actor
// to "System" and stamping id and time when absent.
func (s *Service) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	if entry.ID == "" {
		entry.ID = ids.NewAt(entry.OccurredAt)
	}
	if entry.PrincipalID == "" {
		entry.PrincipalID = "System"
	}
	return s.store.Audit(ctx).Append(ctx, entry)
}

// AuditEntries pages through the audit log for the admin surface.
func (s *Service) AuditEntries(ctx context.Context, limit, offset int) ([]*AuditEntry, error) {
	return s.store.Audit(ctx).List(ctx, limit, offset)
}

func (s *Service) trackSession(ctx context.Context, principalID string) {
	now := s.now().UTC()
	rec := session.Record{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	// Session tracking is advisory; a failed write must not block login.
	_ = s.sessions.Create(ctx, rec)
}
