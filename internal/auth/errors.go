package auth

import "errors"

var (
	// ErrInvalidToken covers every verification failure: bad signature, wrong
	// audience, wrong issuer, expired. Callers never learn which check failed.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrPrincipalNotFound means the token verified but its subject no longer
	// exists (or was deactivated). The HTTP boundary reports it exactly like
	// ErrInvalidToken so account existence does not leak.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrNoCredential means the request carried no bearer header and no token
	// cookie at all. Distinguished internally so handlers only audit
	// presented-but-invalid credentials, never absent ones.
	ErrNoCredential = errors.New("no credential presented")

	// ErrUnauthorized is the uniform login failure: unknown account, wrong
	// password and disabled account are indistinguishable.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrForbidden means the principal resolved but lacks the required role.
	ErrForbidden = errors.New("insufficient permission")

	// ErrHashing means the password transform itself failed, not a mismatch.
	ErrHashing = errors.New("password hashing failed")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
