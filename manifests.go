package scree

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func (r *registry) handleManifestPut(w http.ResponseWriter, req *http.Request) error {
	ref, err := ParseManifestReference(requestLocation(req), mux.Vars(req)["reference"])
	if err != nil {
		return err
	}
	// Manifests are small JSON documents; unlike blobs they are handled
	// in memory.
	contents, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncomingRead, err)
	}
	dgst, err := r.store.PutManifest(req.Context(), ref, contents)
	if err != nil {
		return err
	}
	r.opts.Logger.WithFields(logrus.Fields{
		"reference": ref.String(),
		"digest":    dgst,
	}).Info("new manifest received")

	// The manifest is durable at this point; notify the hooks. Hook
	// failures are logged but never surfaced to the client.
	if err := r.opts.Hooks.ManifestUploaded(req.Context(), ref); err != nil {
		r.opts.Logger.WithError(err).WithField("reference", ref.String()).
			Warn("manifest upload hook failed")
	}

	w.Header().Set("Location", manifestLocation(ref))
	w.Header().Set("Content-Length", "0")
	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (r *registry) handleManifestGet(w http.ResponseWriter, req *http.Request) error {
	ref, err := ParseManifestReference(requestLocation(req), mux.Vars(req)["reference"])
	if err != nil {
		return err
	}
	contents, err := r.store.GetManifest(req.Context(), ref)
	if err != nil {
		return err
	}
	mediaType, err := manifestMediaType(contents)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", fmt.Sprint(len(contents)))
	w.WriteHeader(http.StatusOK)
	w.Write(contents)
	return nil
}

// manifestMediaType extracts the declared media type from manifest bytes.
// The rest of the document is treated as opaque.
func manifestMediaType(contents []byte) (string, error) {
	var m struct {
		MediaType string `json:"mediaType"`
	}
	if err := json.Unmarshal(contents, &m); err != nil {
		return "", ManifestParseError(err)
	}
	if m.MediaType == "" {
		return "", ManifestParseError(fmt.Errorf("missing mediaType field"))
	}
	return m.MediaType, nil
}
