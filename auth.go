package scree

import "context"

// Credentials is an unverified username/password pair as presented in an
// HTTP Basic Authorization header.
type Credentials struct {
	Username string
	Password string
}

// Authenticator decides whether a set of presented credentials grants access
// to the registry. It is consulted once per request on every route; requests
// carrying no Authorization header at all are rejected before the
// authenticator is asked.
//
// Implementations must not mutate registry state and must be safe for
// concurrent use. The auth package provides ready-made implementations.
type Authenticator interface {
	Authorized(ctx context.Context, creds Credentials) bool
}
