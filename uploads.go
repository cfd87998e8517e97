package scree

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func (r *registry) handleUploadStart(w http.ResponseWriter, req *http.Request) error {
	loc := requestLocation(req)
	uploadID, err := r.store.BeginUpload(req.Context())
	if err != nil {
		return err
	}
	w.Header().Set("Location", uploadLocation(loc, uploadID))
	w.Header().Set("Content-Length", "0")
	w.Header().Set("Docker-Upload-UUID", uploadID)
	w.WriteHeader(http.StatusAccepted)
	return nil
}

func (r *registry) handleUploadChunk(w http.ResponseWriter, req *http.Request) error {
	loc := requestLocation(req)
	uploadID := mux.Vars(req)["upload"]

	// A Range header would mean the client is attempting a chunked
	// upload; only monolithic PATCH bodies are supported.
	if req.Header.Get("Range") != "" {
		return NotSupported("chunked uploads")
	}

	dst, err := r.store.UploadWriter(req.Context(), uploadID, 0)
	if err != nil {
		return err
	}
	src := &errTrackingReader{r: req.Body}
	completed, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		if src.failed {
			return fmt.Errorf("%w: %v", ErrIncomingRead, err)
		}
		return fmt.Errorf("%w: %v", ErrLocalWrite, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrLocalWrite, err)
	}

	w.Header().Set("Location", uploadLocation(loc, uploadID))
	w.Header().Set("Range", fmt.Sprintf("0-%d", completed))
	w.Header().Set("Content-Length", "0")
	w.Header().Set("Docker-Upload-UUID", uploadID)
	// The distribution spec says to respond 201 here, but only 202 works
	// with real clients. Do not reconcile without testing against docker
	// and podman pushes.
	w.WriteHeader(http.StatusAccepted)
	return nil
}

func (r *registry) handleUploadFinalize(w http.ResponseWriter, req *http.Request) error {
	loc := requestLocation(req)
	uploadID := mux.Vars(req)["upload"]

	// Uploading the final chunk in the closing PUT is not supported, so
	// the body must be empty. An absent Content-Length is fine, it
	// indicates no body.
	if v := req.Header.Get("Content-Length"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ContentLengthError(err)
		}
		if n != 0 {
			return NotSupported("upload of final chunk in PUT")
		}
	}

	dgst, err := ParseDigest(req.URL.Query().Get("digest"))
	if err != nil {
		return err
	}
	if err := r.store.FinalizeUpload(req.Context(), uploadID, dgst); err != nil {
		return err
	}
	r.opts.Logger.WithFields(logrus.Fields{
		"upload": uploadID,
		"digest": dgst,
	}).Info("new image uploaded")

	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.Header().Set("Location", uploadLocation(loc, uploadID))
	w.WriteHeader(http.StatusCreated)
	return nil
}

// errTrackingReader records whether a read from the underlying reader
// failed, so that a failed io.Copy can be attributed to the incoming stream
// rather than the local writer.
type errTrackingReader struct {
	r      io.Reader
	failed bool
}

func (t *errTrackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.failed = true
	}
	return n, err
}
