package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/screelabs/scree"
)

// Entries are user:hash, one per line; only bcrypt hashes (htpasswd -B)
// are honored, since the other htpasswd schemes are too weak for
// credentials that travel with every request.
var bcryptPrefix = regexp.MustCompile(`^\$2[aby]?\$`)

// HTPasswd is an authenticator backed by an Apache htpasswd file.
type HTPasswd struct {
	entries map[string][]byte
}

// NewHTPasswd parses the htpasswd file at path. Blank lines and lines
// starting with '#' are skipped; a malformed or non-bcrypt entry is an
// error, so a misconfigured file cannot silently lock users out.
func NewHTPasswd(path string) (*HTPasswd, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open htpasswd file: %w", err)
	}
	defer f.Close()

	entries := make(map[string][]byte)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		user, hash, ok := strings.Cut(text, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("htpasswd: malformed entry on line %d", line)
		}
		if !bcryptPrefix.MatchString(hash) {
			return nil, fmt.Errorf("htpasswd: entry for %q on line %d is not a bcrypt hash", user, line)
		}
		entries[user] = []byte(hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read htpasswd file: %w", err)
	}
	return &HTPasswd{entries: entries}, nil
}

func (h *HTPasswd) Authorized(ctx context.Context, creds scree.Credentials) bool {
	hash, ok := h.entries[creds.Username]
	if !ok {
		// Burn a comparison anyway so unknown users cost the same as
		// wrong passwords.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)) == nil
}

// dummyHash is a bcrypt hash of an unguessable value, used to equalize
// timing for unknown users.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("scree-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

var _ scree.Authenticator = (*HTPasswd)(nil)
