package auth

import (
	"context"
	"crypto/subtle"

	"github.com/screelabs/scree"
)

// Static returns an authenticator that accepts exactly one
// username/password pair. Comparison is constant time.
func Static(username, password string) scree.Authenticator {
	return &static{username: username, password: password}
}

type static struct {
	username string
	password string
}

func (s *static) Authorized(ctx context.Context, creds scree.Credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(s.username))
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(s.password))
	return userOK&passOK == 1
}
