package auth

import "context"

// Store describes the persistence operations the auth subsystem needs. The
// relational schema itself is owned elsewhere; only the fields auth reads and
// writes are modeled here.
type Store interface {
	Users(ctx context.Context) UserStore
	Audit(ctx context.Context) AuditStore
}

// UserStore manages principal records.
type UserStore interface {
	Create(ctx context.Context, p *Principal) error
	Find(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	List(ctx context.Context, limit, offset int) ([]*Principal, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// AuditStore appends immutable entries. Nothing in this subsystem ever
// mutates or deletes them.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]*AuditEntry, error)
}
