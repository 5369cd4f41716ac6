package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Session owns the client-resident auth state. It has an explicit
// Init/Teardown lifecycle; nothing lives at package level.
type Session struct {
	client *Client
	store  Store

	mu           sync.RWMutex
	snap         Snapshot
	lastActivity time.Time

	group singleflight.Group
	sched *scheduler
	now   func() time.Time

	lead           time.Duration
	activityWindow time.Duration
	checkInterval  time.Duration

	// onExpired fires when housekeeping finds a dead session, after local
	// state has been cleared. The UI layer redirects to login from here.
	onExpired func()
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRefreshLead sets how far before expiry refreshes are triggered.
func WithRefreshLead(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.lead = d
		}
	}
}

// WithActivityWindow sets how recent activity must be for proactive refresh.
func WithActivityWindow(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.activityWindow = d
		}
	}
}

// WithCheckInterval sets the housekeeping tick interval.
func WithCheckInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithExpiredHandler registers the forced re-authentication callback.
func WithExpiredHandler(fn func()) SessionOption {
	return func(s *Session) { s.onExpired = fn }
}

// NewSession builds a Session over an API client and a token store.
func NewSession(api *Client, store Store, opts ...SessionOption) *Session {
	s := &Session{
		client:         api,
		store:          store,
		now:            time.Now,
		lead:           DefaultRefreshLead,
		activityWindow: DefaultActivityWindow,
		checkInterval:  time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the stored session and re-validates it with a profile round
// trip. Client-cached principal data is never trusted without one. A failed
// validation falls back to one refresh attempt, then clears everything.
// Init also starts the housekeeping timer; pair it with Teardown.
func (s *Session) Init(ctx context.Context) error {
	snap, err := s.store.Load()
	if err != nil {
		return err
	}
	if !snap.Empty() {
		user, err := s.client.Profile(ctx, snap.Tokens.AccessToken)
		switch {
		case err == nil:
			snap.User = user
			s.setSnapshot(snap)
			_ = s.store.Save(snap)
		case IsAuthError(err):
			if refreshed, rerr := s.client.Refresh(ctx, snap.Tokens.RefreshToken); rerr == nil {
				next := Snapshot{Tokens: refreshed.Tokens, User: refreshed.User}
				s.setSnapshot(next)
				_ = s.store.Save(next)
			} else {
				s.clear()
			}
		default:
			// Network trouble: keep the stored session, stay pessimistic
			// about authenticated state until a later check succeeds.
			return err
		}
	}
	s.sched = newScheduler(s.checkInterval, s.housekeep)
	s.sched.Start()
	return nil
}

// Teardown stops the housekeeping timer. State is left intact.
func (s *Session) Teardown() {
	if s.sched != nil {
		s.sched.Stop()
		s.sched = nil
	}
}

// Login authenticates and stores the resulting session. Credential failures
// surface as ErrInvalidCredentials with no further detail.
func (s *Session) Login(ctx context.Context, email, password string) error {
	creds, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	snap := Snapshot{Tokens: creds.Tokens, User: creds.User}
	s.setSnapshot(snap)
	return s.store.Save(snap)
}

// Logout tells the server best-effort, then unconditionally clears local
// state. The clearing never depends on the network call's outcome.
func (s *Session) Logout(ctx context.Context) error {
	token := s.AccessToken()
	if token != "" {
		_ = s.client.Logout(ctx, token)
	}
	s.clear()
	return nil
}

// Refresh exchanges the refresh token, collapsing concurrent callers into a
// single network call. A rejected refresh token ends the session.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		s.mu.RLock()
		refreshToken := s.snap.Tokens.RefreshToken
		s.mu.RUnlock()
		if refreshToken == "" {
			return nil, ErrSessionExpired
		}
		creds, err := s.client.Refresh(ctx, refreshToken)
		if err != nil {
			if IsAuthError(err) {
				s.clear()
				return nil, ErrSessionExpired
			}
			return nil, err
		}
		snap := Snapshot{Tokens: creds.Tokens, User: creds.User}
		s.setSnapshot(snap)
		_ = s.store.Save(snap)
		return nil, nil
	})
	return err
}

// Touch records user activity; the proactive refresh only runs for sessions
// that are actually in use.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

// Authenticated reports whether a live session is held.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.snap.Empty() && s.snap.Tokens.AccessExpiresAt.After(s.now())
}

// AccessToken returns the current bearer token, empty when logged out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Tokens.AccessToken
}

// User returns the cached principal projection.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.Empty() {
		return User{}, false
	}
	return s.snap.User, true
}

func (s *Session) setSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Session) clear() {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.mu.Unlock()
	_ = s.store.Clear()
}

// housekeep is the periodic check behind proactive refresh.
func (s *Session) housekeep() {
	s.mu.RLock()
	snap := s.snap
	lastActivity := s.lastActivity
	s.mu.RUnlock()
	if snap.Empty() {
		return
	}
	switch Decide(s.now(), snap.Tokens.AccessExpiresAt, lastActivity, s.lead, s.activityWindow) {
	case DecisionRefresh:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = s.Refresh(ctx)
	case DecisionExpired:
		s.clear()
		if s.onExpired != nil {
			s.onExpired()
		}
	}
}
