package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/screelabs/scree"
)

func (s *Filesystem) uploadsDir() string   { return filepath.Join(s.root, "uploads") }
func (s *Filesystem) blobsDir() string     { return filepath.Join(s.root, "blobs") }
func (s *Filesystem) manifestsDir() string { return filepath.Join(s.root, "manifests") }

func (s *Filesystem) uploadPath(uploadID string) string {
	return filepath.Join(s.uploadsDir(), uploadID)
}

func (s *Filesystem) blobPath(dgst scree.Digest) string {
	return filepath.Join(s.blobsDir(), dgst.Encoded())
}

func (s *Filesystem) revisionPath(loc scree.ImageLocation, dgst scree.Digest) (string, error) {
	dir, err := s.imageDir(loc)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "revisions", dgst.Encoded()), nil
}

func (s *Filesystem) tagPath(loc scree.ImageLocation, tag string) (string, error) {
	dir, err := s.imageDir(loc)
	if err != nil {
		return "", err
	}
	if err := checkPathElement(tag); err != nil {
		return "", err
	}
	return filepath.Join(dir, "tags", tag), nil
}

func (s *Filesystem) imageDir(loc scree.ImageLocation) (string, error) {
	if err := checkPathElement(loc.Repository); err != nil {
		return "", err
	}
	if err := checkPathElement(loc.Image); err != nil {
		return "", err
	}
	return filepath.Join(s.manifestsDir(), loc.Repository, loc.Image), nil
}

// checkPathElement rejects names that would escape their directory when
// used as a path component. The protocol layer passes repository, image and
// tag names through unvalidated, so containment is enforced here.
func checkPathElement(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q: %w", name, scree.ErrNotFound)
	}
	return nil
}
