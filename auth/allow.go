// Package auth provides Authenticator implementations for the registry:
// an allow-all policy for development, a single static credential pair, and
// bcrypt htpasswd files.
package auth

import (
	"context"

	"github.com/screelabs/scree"
)

// AllowAll returns an authenticator that accepts every credential pair.
// It is intended for development and tests; the registry still requires
// that some credentials be presented.
func AllowAll() scree.Authenticator {
	return allowAll{}
}

type allowAll struct{}

func (allowAll) Authorized(ctx context.Context, creds scree.Credentials) bool {
	return true
}
