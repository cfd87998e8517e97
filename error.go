package scree

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes used on the wire. They are a subset of the codes defined by
// the OCI distribution spec error model.
const (
	CodeBlobUnknown       = "BLOB_UNKNOWN"
	CodeBlobUploadInvalid = "BLOB_UPLOAD_INVALID"
	CodeDigestInvalid     = "DIGEST_INVALID"
	CodeManifestInvalid   = "MANIFEST_INVALID"
	CodeSizeInvalid       = "SIZE_INVALID"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeUnsupported       = "UNSUPPORTED"
	CodeUnknown           = "UNKNOWN"
)

// Error is implemented by all errors that originate inside the registry
// itself, as opposed to errors bubbling up from the storage backend's
// environment. The code determines the HTTP response status.
type Error interface {
	error
	// Code returns the error code for the error.
	Code() string
}

type registryError struct {
	message string
	code    string
}

func (e *registryError) Error() string { return e.message }
func (e *registryError) Code() string  { return e.code }

// NewError returns a new error with the given message and code.
func NewError(msg string, code string) Error {
	return &registryError{message: msg, code: code}
}

// NotSupported returns the error reported when a client exercises a part of
// the protocol this registry deliberately does not implement, such as
// chunked uploads.
func NotSupported(feature string) Error {
	return NewError("feature not supported: "+feature, CodeUnsupported)
}

// Errors distinguished by the storage and protocol layers. Anything else
// reaching the handler boundary is treated as an internal storage failure
// and reported opaquely.
var (
	ErrNotFound       = NewError("missing item", CodeBlobUnknown)
	ErrDigestMismatch = NewError("provided digest did not match uploaded content", CodeDigestInvalid)
	ErrAuthRequired   = NewError("authentication required", CodeUnauthorized)
	ErrIncomingRead   = NewError("could not read input stream", CodeBlobUploadInvalid)
	ErrLocalWrite     = NewError("could not write upload locally", CodeBlobUploadInvalid)
)

// ContentLengthError returns the error reported for a Content-Length header
// that does not parse as a non-negative integer.
func ContentLengthError(err error) Error {
	return NewError(fmt.Sprintf("invalid content length value: %v", err), CodeSizeInvalid)
}

// ManifestParseError returns the error reported when stored or uploaded
// manifest bytes are not usable as a manifest.
func ManifestParseError(err error) Error {
	return NewError(fmt.Sprintf("could not parse manifest: %v", err), CodeManifestInvalid)
}

// WireError is a single error as represented in the OCI error envelope.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Detail is always null in the envelopes this registry produces, but
	// the field itself is part of the wire contract.
	Detail any `json:"detail"`
}

// WireErrors is the OCI error envelope.
type WireErrors struct {
	Errors []WireError `json:"errors"`
}

var errorStatuses = map[string]int{
	CodeBlobUnknown:       http.StatusNotFound,
	CodeBlobUploadInvalid: http.StatusInternalServerError,
	CodeDigestInvalid:     http.StatusBadRequest,
	CodeManifestInvalid:   http.StatusBadRequest,
	CodeSizeInvalid:       http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeUnsupported:       http.StatusInternalServerError,
}

// realm is the fixed HTTP Basic auth realm presented in WWW-Authenticate
// challenges.
const realm = "ContainerRegistry"

// WriteError writes err to w as an HTTP response.
//
// Not-found errors get the JSON error envelope, since clients inspect those
// on the pull path. Auth failures carry the Basic challenge. Everything else
// is plain text; the status code is the contract. Errors without a
// recognized code are reported with a fixed message so that filesystem
// paths and other internals never reach the client.
func WriteError(w http.ResponseWriter, err error) {
	code := CodeUnknown
	msg := "internal server error"
	var e Error
	if errors.As(err, &e) {
		code = e.Code()
		msg = e.Error()
	}
	status, ok := errorStatuses[code]
	if !ok {
		status = http.StatusInternalServerError
		msg = "internal server error"
	}
	switch {
	case code == CodeUnauthorized:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
		http.Error(w, msg, status)
	case status == http.StatusNotFound:
		data, merr := json.Marshal(WireErrors{
			Errors: []WireError{{Code: code, Message: msg}},
		})
		if merr != nil {
			http.Error(w, msg, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(data)
	default:
		http.Error(w, msg, status)
	}
}
