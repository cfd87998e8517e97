package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/opencontainers/go-digest"

	"github.com/screelabs/scree"
	"github.com/screelabs/scree/internal/fixtures"
	"github.com/screelabs/scree/storage"
)

var ctx = context.Background()

func newStore(t *testing.T) (*storage.Filesystem, string) {
	t.Helper()
	root := t.TempDir()
	s, err := storage.NewFilesystem(root)
	qt.Assert(t, qt.IsNil(err))
	return s, root
}

func uploadBlob(t *testing.T, s *storage.Filesystem, contents []byte) string {
	t.Helper()
	uploadID, err := s.BeginUpload(ctx)
	qt.Assert(t, qt.IsNil(err))
	w, err := s.UploadWriter(ctx, uploadID, 0)
	qt.Assert(t, qt.IsNil(err))
	_, err = w.Write(contents)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(w.Close()))
	return uploadID
}

func TestUploadLifecycle(t *testing.T) {
	s, root := newStore(t)

	uploadID := uploadBlob(t, s, fixtures.Blob)
	// The staged bytes live under uploads/ until finalized.
	_, err := os.Stat(filepath.Join(root, "uploads", uploadID))
	qt.Assert(t, qt.IsNil(err))

	err = s.FinalizeUpload(ctx, uploadID, fixtures.BlobDigest)
	qt.Assert(t, qt.IsNil(err))

	// Finalize moves the staging file into blobs/<hex>.
	_, err = os.Stat(filepath.Join(root, "uploads", uploadID))
	qt.Assert(t, qt.IsTrue(os.IsNotExist(err)))
	onDisk, err := os.ReadFile(filepath.Join(root, "blobs", fixtures.BlobDigest.Encoded()))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(onDisk, fixtures.Blob))

	info, err := s.BlobStat(ctx, fixtures.BlobDigest)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(info.Size, int64(len(fixtures.Blob))))

	r, err := s.BlobReader(ctx, fixtures.BlobDigest)
	qt.Assert(t, qt.IsNil(err))
	got, err := io.ReadAll(r)
	r.Close()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, fixtures.Blob))
}

func TestUploadAppendAcrossWriters(t *testing.T) {
	s, _ := newStore(t)

	uploadID, err := s.BeginUpload(ctx)
	qt.Assert(t, qt.IsNil(err))
	for i := 0; i < len(fixtures.Blob); i += 32 {
		end := i + 32
		if end > len(fixtures.Blob) {
			end = len(fixtures.Blob)
		}
		w, err := s.UploadWriter(ctx, uploadID, 0)
		qt.Assert(t, qt.IsNil(err))
		_, err = w.Write(fixtures.Blob[i:end])
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.IsNil(w.Close()))
	}
	qt.Assert(t, qt.IsNil(s.FinalizeUpload(ctx, uploadID, fixtures.BlobDigest)))
}

func TestFinalizeDigestMismatch(t *testing.T) {
	s, root := newStore(t)

	uploadID := uploadBlob(t, s, []byte("not the fixture"))
	err := s.FinalizeUpload(ctx, uploadID, fixtures.BlobDigest)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrDigestMismatch))

	// The mismatching staging file is discarded, so the upload cannot be
	// finalized again and no blob appears under either digest.
	err = s.FinalizeUpload(ctx, uploadID, fixtures.BlobDigest)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
	entries, err := os.ReadDir(filepath.Join(root, "blobs"))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(len(entries), 0))
}

func TestFinalizeIdempotent(t *testing.T) {
	s, _ := newStore(t)

	for i := 0; i < 2; i++ {
		uploadID := uploadBlob(t, s, fixtures.Blob)
		qt.Assert(t, qt.IsNil(s.FinalizeUpload(ctx, uploadID, fixtures.BlobDigest)))
	}
	r, err := s.BlobReader(ctx, fixtures.BlobDigest)
	qt.Assert(t, qt.IsNil(err))
	got, err := io.ReadAll(r)
	r.Close()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, fixtures.Blob))
}

func TestUploadWriterErrors(t *testing.T) {
	s, _ := newStore(t)

	uploadID, err := s.BeginUpload(ctx)
	qt.Assert(t, qt.IsNil(err))

	_, err = s.UploadWriter(ctx, uploadID, 42)
	qt.Assert(t, qt.ErrorMatches(err, "feature not supported: resumed upload"))

	// A well-formed ID that was never issued.
	_, err = s.UploadWriter(ctx, "0b5cc06a-1a25-4f34-9b4c-9babcf2b5b86", 0)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))

	// IDs this store did not generate never reach the filesystem.
	for _, id := range []string{"..", "../blobs/x", "not-a-uuid"} {
		_, err = s.UploadWriter(ctx, id, 0)
		qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
		err = s.FinalizeUpload(ctx, id, fixtures.BlobDigest)
		qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
	}
}

func TestBlobMissing(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.BlobReader(ctx, fixtures.BlobDigest)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
	_, err = s.BlobStat(ctx, fixtures.BlobDigest)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
}

var sampleLocation = scree.ImageLocation{Repository: "tests", Image: "sample"}

func TestManifestRoundTrip(t *testing.T) {
	s, root := newStore(t)

	dgst, err := s.PutManifest(ctx, scree.ManifestReference{
		Location: sampleLocation,
		Tag:      "latest",
	}, fixtures.Manifest)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(dgst, fixtures.ManifestDigest))

	imageDir := filepath.Join(root, "manifests", "tests", "sample")
	onDisk, err := os.ReadFile(filepath.Join(imageDir, "revisions", dgst.Encoded()))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(onDisk, fixtures.Manifest))
	pointer, err := os.ReadFile(filepath.Join(imageDir, "tags", "latest"))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(strings.TrimSpace(string(pointer)), dgst.Encoded()))

	for _, ref := range []scree.ManifestReference{
		{Location: sampleLocation, Tag: "latest"},
		{Location: sampleLocation, Digest: dgst},
	} {
		got, err := s.GetManifest(ctx, ref)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.DeepEquals(got, fixtures.Manifest))
	}
}

func TestPutManifestByDigest(t *testing.T) {
	s, _ := newStore(t)

	// Pushing by digest records no tag.
	_, err := s.PutManifest(ctx, scree.ManifestReference{
		Location: sampleLocation,
		Digest:   fixtures.ManifestDigest,
	}, fixtures.Manifest)
	qt.Assert(t, qt.IsNil(err))

	got, err := s.GetManifest(ctx, scree.ManifestReference{
		Location: sampleLocation,
		Digest:   fixtures.ManifestDigest,
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, fixtures.Manifest))

	_, err = s.GetManifest(ctx, scree.ManifestReference{Location: sampleLocation, Tag: "latest"})
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
}

func TestPutManifestDigestMismatch(t *testing.T) {
	s, _ := newStore(t)

	wrong := digest.FromString("something else")
	_, err := s.PutManifest(ctx, scree.ManifestReference{
		Location: sampleLocation,
		Digest:   wrong,
	}, fixtures.Manifest)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrDigestMismatch))

	// Nothing was stored.
	_, err = s.GetManifest(ctx, scree.ManifestReference{Location: sampleLocation, Digest: wrong})
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
	_, err = s.GetManifest(ctx, scree.ManifestReference{Location: sampleLocation, Digest: fixtures.ManifestDigest})
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))
}

func TestTagRepointing(t *testing.T) {
	s, _ := newStore(t)

	first := []byte(`{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json"}`)
	_, err := s.PutManifest(ctx, scree.ManifestReference{Location: sampleLocation, Tag: "latest"}, first)
	qt.Assert(t, qt.IsNil(err))
	_, err = s.PutManifest(ctx, scree.ManifestReference{Location: sampleLocation, Tag: "latest"}, fixtures.Manifest)
	qt.Assert(t, qt.IsNil(err))

	got, err := s.GetManifest(ctx, scree.ManifestReference{Location: sampleLocation, Tag: "latest"})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, fixtures.Manifest))

	// The old revision stays addressable by digest.
	got, err = s.GetManifest(ctx, scree.ManifestReference{
		Location: sampleLocation,
		Digest:   digest.FromBytes(first),
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, first))
}

func TestPathElementValidation(t *testing.T) {
	s, root := newStore(t)

	bad := []scree.ImageLocation{
		{Repository: "..", Image: "sample"},
		{Repository: "tests", Image: ".."},
		{Repository: ".", Image: "sample"},
		{Repository: "", Image: "sample"},
		{Repository: "tests", Image: "a/b"},
		{Repository: `a\b`, Image: "sample"},
	}
	for _, loc := range bad {
		_, err := s.PutManifest(ctx, scree.ManifestReference{Location: loc, Tag: "latest"}, fixtures.Manifest)
		qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound), qt.Commentf("location %v", loc))
		_, err = s.GetManifest(ctx, scree.ManifestReference{Location: loc, Tag: "latest"})
		qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound), qt.Commentf("location %v", loc))
	}

	_, err := s.PutManifest(ctx, scree.ManifestReference{
		Location: sampleLocation,
		Tag:      "../escape",
	}, fixtures.Manifest)
	qt.Assert(t, qt.ErrorIs(err, scree.ErrNotFound))

	// None of the rejected names left anything outside manifests/.
	entries, err := os.ReadDir(root)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(len(entries), 3))
}

func TestCorruptTagPointer(t *testing.T) {
	s, root := newStore(t)

	_, err := s.PutManifest(ctx, scree.ManifestReference{Location: sampleLocation, Tag: "latest"}, fixtures.Manifest)
	qt.Assert(t, qt.IsNil(err))

	tagPath := filepath.Join(root, "manifests", "tests", "sample", "tags", "latest")
	qt.Assert(t, qt.IsNil(os.WriteFile(tagPath, []byte("not a digest"), 0o666)))

	_, err = s.GetManifest(ctx, scree.ManifestReference{Location: sampleLocation, Tag: "latest"})
	qt.Assert(t, qt.ErrorMatches(err, "corrupt tag pointer: .*"))
}
