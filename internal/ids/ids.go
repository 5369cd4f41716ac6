// Package ids generates the identifiers used for accounts, sessions and
// audit entries. ULIDs sort by creation time, which keeps index pages dense
// and lets the audit log page in chronological order on the id alone.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns an identifier carrying the given timestamp. Audit entries use
// the event time so their ids sort by when the event happened.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
