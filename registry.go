package scree

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Options holds options for the registry handler.
type Options struct {
	// Auth gates every route. When nil, any syntactically valid set of
	// Basic credentials is accepted; requests without credentials are
	// still rejected.
	Auth Authenticator

	// Hooks receives post-push notifications. When nil, [NopHooks] is
	// used.
	Hooks Hooks

	// Logger is used for request-scoped logging. When nil, the standard
	// logrus logger is used.
	Logger *logrus.Logger

	// WriteError is used to write error responses. It is passed the
	// writer to write the error response to, the request that the error
	// is in response to, and the error itself.
	//
	// If WriteError is nil, [WriteError] is used.
	WriteError func(w http.ResponseWriter, req *http.Request, err error)
}

// New returns a handler implementing the push/pull subset of the OCI
// distribution protocol, with store as its persistence backend.
//
// If opts is nil, it's equivalent to passing new(Options).
//
// The returned handler should be registered at the site root.
func New(store Storage, opts *Options) http.Handler {
	if opts == nil {
		opts = new(Options)
	}
	r := &registry{
		opts:  *opts,
		store: store,
	}
	if r.opts.Hooks == nil {
		r.opts.Hooks = NopHooks{}
	}
	if r.opts.Logger == nil {
		r.opts.Logger = logrus.StandardLogger()
	}
	if r.opts.WriteError == nil {
		r.opts.WriteError = func(w http.ResponseWriter, _ *http.Request, err error) {
			WriteError(w, err)
		}
	}

	m := mux.NewRouter()
	m.Handle("/v2/", r.handler((*registry).handleIndex)).Methods("GET")
	m.Handle("/v2/{repository}/{image}/blobs/{digest}", r.gated((*registry).handleBlobHead)).Methods("HEAD")
	m.Handle("/v2/{repository}/{image}/blobs/{digest}", r.gated((*registry).handleBlobGet)).Methods("GET")
	m.Handle("/v2/{repository}/{image}/blobs/uploads/", r.gated((*registry).handleUploadStart)).Methods("POST")
	m.Handle("/v2/{repository}/{image}/uploads/{upload}", r.gated((*registry).handleUploadChunk)).Methods("PATCH")
	m.Handle("/v2/{repository}/{image}/uploads/{upload}", r.gated((*registry).handleUploadFinalize)).Methods("PUT")
	m.Handle("/v2/{repository}/{image}/manifests/{reference}", r.gated((*registry).handleManifestPut)).Methods("PUT")
	m.Handle("/v2/{repository}/{image}/manifests/{reference}", r.gated((*registry).handleManifestGet)).Methods("GET", "HEAD")
	return m
}

type registry struct {
	opts  Options
	store Storage
}

type handlerFunc func(r *registry, w http.ResponseWriter, req *http.Request) error

// handler adapts h into an http.Handler without an auth gate. Only the
// index route uses it; the index implements the probe semantics itself.
func (r *registry) handler(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := h(r, w, req); err != nil {
			r.writeError(w, req, err)
		}
	})
}

// gated adapts h into an http.Handler that performs the auth gate before
// any other work.
func (r *registry) gated(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.authorized(req) {
			r.writeError(w, req, ErrAuthRequired)
			return
		}
		if err := h(r, w, req); err != nil {
			r.writeError(w, req, err)
		}
	})
}

func (r *registry) writeError(w http.ResponseWriter, req *http.Request, err error) {
	if statusForError(err) >= http.StatusInternalServerError {
		r.opts.Logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		}).WithError(err).Error("request failed")
	}
	r.opts.WriteError(w, req, err)
}

func statusForError(err error) int {
	var e Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if status, ok := errorStatuses[e.Code()]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// authorized reports whether the request carries credentials accepted by
// the configured authenticator. A missing or non-Basic Authorization header
// always fails; a nil authenticator accepts everything else.
func (r *registry) authorized(req *http.Request) bool {
	username, password, ok := req.BasicAuth()
	if !ok {
		return false
	}
	if r.opts.Auth == nil {
		return true
	}
	return r.opts.Auth.Authorized(req.Context(), Credentials{
		Username: username,
		Password: password,
	})
}

// handleIndex serves the liveness and auth probe. It is the only endpoint
// reachable anonymously, with a 401 outcome; the challenge header is echoed
// on success as well so clients can discover the auth scheme.
func (r *registry) handleIndex(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	if !r.authorized(req) {
		w.WriteHeader(http.StatusUnauthorized)
		return nil
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func requestLocation(req *http.Request) ImageLocation {
	vars := mux.Vars(req)
	return ImageLocation{
		Repository: vars["repository"],
		Image:      vars["image"],
	}
}

func uploadLocation(loc ImageLocation, uploadID string) string {
	return fmt.Sprintf("/v2/%s/%s/uploads/%s", loc.Repository, loc.Image, uploadID)
}

func manifestLocation(ref ManifestReference) string {
	return fmt.Sprintf("/v2/%s/%s/manifests/%s", ref.Location.Repository, ref.Location.Image, ref.Reference())
}
