package scree

import (
	"context"
	"io"
	"strings"
)

// ImageLocation identifies the two-level namespace that manifests and their
// tags live under. Both elements arrive as URL path segments and are passed
// through to storage without further grammar checks; the storage backend is
// responsible for rejecting anything it cannot represent safely.
type ImageLocation struct {
	Repository string
	Image      string
}

func (loc ImageLocation) String() string {
	return loc.Repository + "/" + loc.Image
}

// ManifestReference identifies a manifest within an image location, either
// by tag or by digest. Exactly one of Tag and Digest is set.
type ManifestReference struct {
	Location ImageLocation
	Tag      string
	Digest   Digest
}

// ParseManifestReference interprets the reference segment of a manifest URL.
// Anything containing a colon must be a well-formed digest; everything else
// is a tag.
func ParseManifestReference(loc ImageLocation, reference string) (ManifestReference, error) {
	if strings.Contains(reference, ":") {
		dgst, err := ParseDigest(reference)
		if err != nil {
			return ManifestReference{}, err
		}
		return ManifestReference{Location: loc, Digest: dgst}, nil
	}
	return ManifestReference{Location: loc, Tag: reference}, nil
}

// Reference returns the tag or digest as it appears in URLs.
func (ref ManifestReference) Reference() string {
	if ref.Tag != "" {
		return ref.Tag
	}
	return ref.Digest.String()
}

func (ref ManifestReference) String() string {
	if ref.Tag != "" {
		return ref.Location.String() + ":" + ref.Tag
	}
	return ref.Location.String() + "@" + ref.Digest.String()
}

// BlobInfo holds metadata about a committed blob.
type BlobInfo struct {
	// Size holds the size of the blob in bytes.
	Size int64
}

// Storage is the persistence backend consumed by the protocol handler.
//
// Implementations must be safe for concurrent use. Absent blobs, manifests,
// tags and uploads are reported as errors wrapping [ErrNotFound]; a failed
// digest check is reported wrapping [ErrDigestMismatch]. Any other error is
// treated as an internal I/O failure.
//
// Readers and writers returned from Storage are scoped to a single request
// and must be closed by the caller on every path.
type Storage interface {
	// BeginUpload allocates a fresh upload ID and creates an empty
	// staging area for it.
	BeginUpload(ctx context.Context) (string, error)

	// UploadWriter returns an append-only writer into the staging area
	// for the given upload, positioned at offset. Implementations may
	// reject non-zero offsets as unsupported; the handler always passes
	// zero.
	UploadWriter(ctx context.Context, uploadID string, offset int64) (io.WriteCloser, error)

	// FinalizeUpload closes the staging area for the given upload,
	// verifies that its contents hash to dgst and commits them as an
	// immutable blob. Committing bytes whose digest is already present
	// succeeds as a no-op. On digest mismatch the staged bytes are
	// discarded and no blob becomes observable.
	FinalizeUpload(ctx context.Context, uploadID string, dgst Digest) error

	// BlobReader returns a streaming reader over the blob with the given
	// digest.
	BlobReader(ctx context.Context, dgst Digest) (io.ReadCloser, error)

	// BlobStat returns metadata for the blob with the given digest
	// without opening its contents.
	BlobStat(ctx context.Context, dgst Digest) (BlobInfo, error)

	// PutManifest stores contents as a manifest addressed by ref,
	// returning the computed digest of contents. When ref carries a tag,
	// the tag is atomically repointed at the new manifest; when it
	// carries a digest, the digest must match the computed one.
	PutManifest(ctx context.Context, ref ManifestReference, contents []byte) (Digest, error)

	// GetManifest returns the exact stored bytes of the manifest
	// addressed by ref, resolving the tag first if necessary.
	GetManifest(ctx context.Context, ref ManifestReference) ([]byte, error)
}
