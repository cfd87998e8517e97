// Package storage provides the filesystem-backed implementation of the
// registry's storage interface.
//
// The layout under the root is:
//
//	uploads/<uuid>                              staged, uncommitted uploads
//	blobs/<hex>                                 committed blobs
//	manifests/<repo>/<image>/revisions/<hex>    manifests by digest
//	manifests/<repo>/<image>/tags/<tag>         tag pointers (hex digest)
//
// All commits are rename-based so that concurrent readers never observe a
// torn write; the filesystem itself is the index and the layout survives
// restarts with no in-memory state.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/screelabs/scree"
)

// Filesystem implements [scree.Storage] on a local directory tree.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at root, creating the top-level
// directories if necessary.
func NewFilesystem(root string) (*Filesystem, error) {
	s := &Filesystem{root: root}
	for _, dir := range []string{s.uploadsDir(), s.blobsDir(), s.manifestsDir()} {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return nil, fmt.Errorf("cannot initialize storage: %w", err)
		}
	}
	return s, nil
}

func (s *Filesystem) BeginUpload(ctx context.Context) (string, error) {
	uploadID := uuid.NewString()
	f, err := os.OpenFile(s.uploadPath(uploadID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		return "", fmt.Errorf("cannot create upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("cannot create upload: %w", err)
	}
	return uploadID, nil
}

func (s *Filesystem) UploadWriter(ctx context.Context, uploadID string, offset int64) (io.WriteCloser, error) {
	if offset != 0 {
		return nil, scree.NotSupported("resumed upload")
	}
	if err := checkUploadID(uploadID); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(s.uploadPath(uploadID), os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("upload %s: %w", uploadID, scree.ErrNotFound)
		}
		return nil, fmt.Errorf("cannot open upload: %w", err)
	}
	return f, nil
}

func (s *Filesystem) FinalizeUpload(ctx context.Context, uploadID string, dgst scree.Digest) error {
	if err := checkUploadID(uploadID); err != nil {
		return err
	}
	staging := s.uploadPath(uploadID)
	f, err := os.Open(staging)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("upload %s: %w", uploadID, scree.ErrNotFound)
		}
		return fmt.Errorf("cannot open upload: %w", err)
	}
	digester := digest.Canonical.Digester()
	_, err = io.Copy(digester.Hash(), f)
	f.Close()
	if err != nil {
		return fmt.Errorf("cannot hash upload: %w", err)
	}
	if got := digester.Digest(); got != dgst {
		// The staged bytes are not what the client claimed; discard
		// them so the upload cannot be re-finalized.
		os.Remove(staging)
		return fmt.Errorf("got digest %s: %w", got, scree.ErrDigestMismatch)
	}
	// Rename is atomic, and content addressing makes replacing an
	// existing blob with freshly verified bytes a no-op.
	if err := os.Rename(staging, s.blobPath(dgst)); err != nil {
		return fmt.Errorf("cannot commit blob: %w", err)
	}
	return nil
}

func (s *Filesystem) BlobReader(ctx context.Context, dgst scree.Digest) (io.ReadCloser, error) {
	f, err := os.Open(s.blobPath(dgst))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", dgst, scree.ErrNotFound)
		}
		return nil, fmt.Errorf("cannot open blob: %w", err)
	}
	return f, nil
}

func (s *Filesystem) BlobStat(ctx context.Context, dgst scree.Digest) (scree.BlobInfo, error) {
	info, err := os.Stat(s.blobPath(dgst))
	if err != nil {
		if os.IsNotExist(err) {
			return scree.BlobInfo{}, fmt.Errorf("blob %s: %w", dgst, scree.ErrNotFound)
		}
		return scree.BlobInfo{}, fmt.Errorf("cannot stat blob: %w", err)
	}
	return scree.BlobInfo{Size: info.Size()}, nil
}

func (s *Filesystem) PutManifest(ctx context.Context, ref scree.ManifestReference, contents []byte) (scree.Digest, error) {
	dgst := digest.FromBytes(contents)
	if ref.Digest != "" && ref.Digest != dgst {
		return "", fmt.Errorf("got digest %s: %w", dgst, scree.ErrDigestMismatch)
	}
	revision, err := s.revisionPath(ref.Location, dgst)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(revision, contents); err != nil {
		return "", fmt.Errorf("cannot store manifest: %w", err)
	}
	if ref.Tag != "" {
		tag, err := s.tagPath(ref.Location, ref.Tag)
		if err != nil {
			return "", err
		}
		// The tag pointer is replaced by rename, so two concurrent
		// writers leave it at one of the two manifests, never a mix.
		if err := writeFileAtomic(tag, []byte(dgst.Encoded())); err != nil {
			return "", fmt.Errorf("cannot store tag: %w", err)
		}
	}
	return dgst, nil
}

func (s *Filesystem) GetManifest(ctx context.Context, ref scree.ManifestReference) ([]byte, error) {
	dgst := ref.Digest
	if ref.Tag != "" {
		tag, err := s.tagPath(ref.Location, ref.Tag)
		if err != nil {
			return nil, err
		}
		pointer, err := os.ReadFile(tag)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("tag %s: %w", ref.Tag, scree.ErrNotFound)
			}
			return nil, fmt.Errorf("cannot read tag: %w", err)
		}
		dgst, err = scree.ParseDigest("sha256:" + strings.TrimSpace(string(pointer)))
		if err != nil {
			return nil, fmt.Errorf("corrupt tag pointer: %w", err)
		}
	}
	revision, err := s.revisionPath(ref.Location, dgst)
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(revision)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest %s: %w", dgst, scree.ErrNotFound)
		}
		return nil, fmt.Errorf("cannot read manifest: %w", err)
	}
	return contents, nil
}

// checkUploadID rejects upload IDs that this store did not generate, so an
// ID taken from the URL can never address anything outside uploads/.
func checkUploadID(uploadID string) error {
	if _, err := uuid.Parse(uploadID); err != nil {
		return fmt.Errorf("upload %q: %w", uploadID, scree.ErrNotFound)
	}
	return nil
}

// writeFileAtomic writes data to path by way of a temporary file in the
// same directory and a rename, creating parent directories as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

var _ scree.Storage = (*Filesystem)(nil)
