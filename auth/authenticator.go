package auth

import (
	"context"
	"errors"
	"net/http"
)

// Authenticator resolves the operator behind an admin request.
//
// Authenticate returns ErrMissingCredentials when the request carries no
// credential it understands, and an error matching ErrInvalidCredentials,
// ErrTokenExpired or ErrTokenMalformed when it rejects one. Implementations
// must be safe for concurrent use.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// Chain tries each authenticator in order and returns the first identity.
// Authenticators reporting ErrMissingCredentials are skipped; otherwise the
// first rejection is returned once every authenticator has had its turn.
type Chain []Authenticator

func (c Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	var rejected error
	for _, a := range c {
		id, err := a.Authenticate(ctx, r)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, ErrMissingCredentials):
		case rejected == nil:
			rejected = err
		}
	}
	if rejected != nil {
		return nil, rejected
	}
	return nil, ErrMissingCredentials
}

var _ Authenticator = Chain(nil)
