package client

import "net/url"

// GuardResult is the synchronous routing decision for a protected view.
type GuardResult struct {
	Allowed bool
	// Redirect is the login route carrying the originally requested route,
	// plus expired=true when a previously live session lapsed.
	Redirect string
}

// Guard checks local state only; it never performs network I/O. An absent
// session and an expired one both redirect to login, but only the expired
// case carries the flag that drives the "session expired" message.
func (s *Session) Guard(route string) GuardResult {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap.Empty() {
		return GuardResult{Redirect: loginRedirect(route, false)}
	}
	if !snap.Tokens.AccessExpiresAt.After(s.now()) {
		s.clear()
		return GuardResult{Redirect: loginRedirect(route, true)}
	}
	return GuardResult{Allowed: true}
}

func loginRedirect(route string, expired bool) string {
	q := url.Values{}
	q.Set("redirect", route)
	if expired {
		q.Set("expired", "true")
	}
	return "/login?" + q.Encode()
}
