// Package fixtures holds a small image layer and a manifest referencing it,
// shared by the test suites. Digests are computed at init so the fixtures
// can never drift from their addresses.
package fixtures

import (
	"bytes"
	"encoding/json"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Blob is a stand-in layer. It is longer than any chunk size the tests
// split it into.
var Blob = bytes.Repeat([]byte("scree layer fixture data 0123456789abcdef\n"), 8)

// BlobDigest is the content address of Blob.
var BlobDigest = digest.FromBytes(Blob)

// Manifest is an OCI image manifest referencing Blob as both config and
// single layer.
var Manifest = func() []byte {
	m := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageConfig,
			Digest:    BlobDigest,
			Size:      int64(len(Blob)),
		},
		Layers: []ocispec.Descriptor{{
			MediaType: ocispec.MediaTypeImageLayerGzip,
			Digest:    BlobDigest,
			Size:      int64(len(Blob)),
		}},
	}
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return data
}()

// ManifestDigest is the content address of Manifest.
var ManifestDigest = digest.FromBytes(Manifest)

// ManifestMediaType is the media type declared inside Manifest.
const ManifestMediaType = ocispec.MediaTypeImageManifest
