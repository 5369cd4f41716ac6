package client

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRedirect(t *testing.T, redirect string) url.Values {
	t.Helper()
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "/login", u.Path)
	return u.Query()
}

func TestGuard(t *testing.T) {
	_, api := newFakeAPI(t)
	store := NewMemoryStore()
	now := time.Now()
	sess := NewSession(api, store, WithClock(func() time.Time { return now }))

	t.Run("no session redirects without expired flag", func(t *testing.T) {
		res := sess.Guard("/portfolio/mining")
		assert.False(t, res.Allowed)
		q := parseRedirect(t, res.Redirect)
		assert.Equal(t, "/portfolio/mining", q.Get("redirect"))
		assert.Empty(t, q.Get("expired"))
	})

	t.Run("live session passes", func(t *testing.T) {
		sess.setSnapshot(Snapshot{Tokens: TokenPair{
			AccessToken:     "access-1",
			RefreshToken:    "refresh-1",
			AccessExpiresAt: now.Add(time.Hour),
		}})
		res := sess.Guard("/portfolio/mining")
		assert.True(t, res.Allowed)
		assert.Empty(t, res.Redirect)
	})

	t.Run("expired session redirects with flag and clears state", func(t *testing.T) {
		sess.setSnapshot(Snapshot{Tokens: TokenPair{
			AccessToken:     "access-1",
			RefreshToken:    "refresh-1",
			AccessExpiresAt: now.Add(-time.Minute),
		}})
		res := sess.Guard("/portfolio/mining")
		assert.False(t, res.Allowed)
		q := parseRedirect(t, res.Redirect)
		assert.Equal(t, "/portfolio/mining", q.Get("redirect"))
		assert.Equal(t, "true", q.Get("expired"))
		assert.False(t, sess.Authenticated())
	})
}
