package scree_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/screelabs/scree"
)

var sampleLocation = scree.ImageLocation{Repository: "tests", Image: "sample"}

func TestParseManifestReference(t *testing.T) {
	ref, err := scree.ParseManifestReference(sampleLocation, "latest")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ref, scree.ManifestReference{Location: sampleLocation, Tag: "latest"}))
	qt.Assert(t, qt.Equals(ref.Reference(), "latest"))
	qt.Assert(t, qt.Equals(ref.String(), "tests/sample:latest"))

	ref, err = scree.ParseManifestReference(sampleLocation, missingDigest)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ref, scree.ManifestReference{
		Location: sampleLocation,
		Digest:   scree.Digest(missingDigest),
	}))
	qt.Assert(t, qt.Equals(ref.Reference(), missingDigest))
	qt.Assert(t, qt.Equals(ref.String(), "tests/sample@"+missingDigest))

	// A colon commits the reference to being a digest.
	_, err = scree.ParseManifestReference(sampleLocation, "sha256:nope")
	qt.Assert(t, qt.ErrorIs(err, scree.ErrDigestWrongLength))
	_, err = scree.ParseManifestReference(sampleLocation, "v1.0:beta")
	qt.Assert(t, qt.ErrorIs(err, scree.ErrDigestWrongLength))
}
