package scree_test

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/opencontainers/go-digest"

	"github.com/screelabs/scree"
)

var parseDigestTests = []struct {
	testName  string
	in        string
	wantError error
}{{
	testName: "canonical",
	in:       "sha256:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae",
}, {
	testName: "allHexCharacters",
	in:       "sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
}, {
	testName:  "empty",
	in:        "",
	wantError: scree.ErrDigestWrongLength,
}, {
	testName:  "hexTooShort",
	in:        "sha256:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7a",
	wantError: scree.ErrDigestWrongLength,
}, {
	testName:  "hexTooLong",
	in:        "sha256:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7aef",
	wantError: scree.ErrDigestWrongLength,
}, {
	testName:  "noPrefix",
	in:        strings.Repeat("a", 71),
	wantError: scree.ErrDigestWrongPrefix,
}, {
	testName:  "otherAlgorithm",
	in:        "sha257:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae",
	wantError: scree.ErrDigestWrongPrefix,
}, {
	testName:  "uppercaseHex",
	in:        "sha256:2C26B46B68FFC68FF99B453C1D30413413422D706483BFA0F98A5E886266E7AE",
	wantError: scree.ErrDigestInvalidHex,
}, {
	testName:  "nonHexCharacters",
	in:        "sha256:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7zz",
	wantError: scree.ErrDigestInvalidHex,
}}

func TestParseDigest(t *testing.T) {
	for _, test := range parseDigestTests {
		t.Run(test.testName, func(t *testing.T) {
			dgst, err := scree.ParseDigest(test.in)
			if test.wantError != nil {
				qt.Assert(t, qt.ErrorIs(err, test.wantError))
				qt.Assert(t, qt.Equals(dgst, scree.Digest("")))
				return
			}
			qt.Assert(t, qt.IsNil(err))
			// Parsing and formatting are inverses on valid input.
			qt.Assert(t, qt.Equals(dgst.String(), test.in))
		})
	}
}

func TestParseDigestRoundTrip(t *testing.T) {
	for _, content := range []string{"", "x", "some blob content"} {
		dgst := digest.FromBytes([]byte(content))
		parsed, err := scree.ParseDigest(dgst.String())
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.Equals(parsed, dgst))
	}
}
