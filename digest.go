// Package scree implements the push/pull subset of the OCI distribution
// protocol over a pluggable storage backend.
//
// The core entry point is [New], which returns an http.Handler serving the
// /v2/ endpoint tree against a [Storage] implementation. Authentication and
// post-push notification are injected through the [Authenticator] and
// [Hooks] interfaces; see the auth and webhook packages for concrete
// implementations and the storage package for the filesystem backend.
package scree

import (
	"github.com/opencontainers/go-digest"
)

// Digest is the content address of a blob or manifest: the "sha256:" prefix
// followed by 64 lowercase hex characters. It aliases the go-digest type so
// values interoperate with the wider OCI ecosystem, but everything in this
// module only ever constructs SHA-256 digests.
type Digest = digest.Digest

const (
	digestPrefix = "sha256:"
	digestHexLen = 64
	digestLen    = len(digestPrefix) + digestHexLen
)

// The ways a wire digest can be malformed. All three map to DIGEST_INVALID
// on the wire.
var (
	ErrDigestWrongLength = NewError("wrong length", CodeDigestInvalid)
	ErrDigestWrongPrefix = NewError("wrong prefix", CodeDigestInvalid)
	ErrDigestInvalidHex  = NewError("hex decoding error", CodeDigestInvalid)
)

// ParseDigest parses s as a canonical SHA-256 digest.
//
// It is deliberately stricter than digest.Parse: the only accepted algorithm
// is sha256 and the hex must be lowercase, so that a parsed digest is usable
// verbatim as a storage address. Other algorithms permitted by the OCI spec
// are not supported.
func ParseDigest(s string) (Digest, error) {
	if len(s) != digestLen {
		return "", ErrDigestWrongLength
	}
	if s[:len(digestPrefix)] != digestPrefix {
		return "", ErrDigestWrongPrefix
	}
	for _, c := range s[len(digestPrefix):] {
		if !isLowerHex(c) {
			return "", ErrDigestInvalidHex
		}
	}
	return Digest(s), nil
}

func isLowerHex(c rune) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f'
}
