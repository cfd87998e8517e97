// Package webhook delivers registry push notifications to an HTTP endpoint.
//
// It implements the registry's Hooks interface: each successful manifest
// push becomes an Event, queued in process and POSTed to the configured
// endpoint with retries, so a slow or flapping receiver never blocks a
// client's push.
package webhook

import (
	"time"

	"github.com/screelabs/scree"
)

// EventsMediaType is the Content-Type used for event envelopes.
const EventsMediaType = "application/vnd.scree.events.v1+json"

// ActionManifestUploaded is the action recorded for a completed manifest
// push.
const ActionManifestUploaded = "manifest-uploaded"

// Event describes a single registry action.
type Event struct {
	// ID is a unique identifier for the event, chosen by the sender.
	ID string `json:"id"`

	// Timestamp records when the event was generated.
	Timestamp time.Time `json:"timestamp"`

	// Action names what happened; currently always
	// [ActionManifestUploaded].
	Action string `json:"action"`

	// Target identifies what the action happened to.
	Target Target `json:"target"`
}

// Target identifies the manifest an event refers to, by the same reference
// the client used: tag or digest, never both.
type Target struct {
	Repository string       `json:"repository"`
	Image      string       `json:"image"`
	Tag        string       `json:"tag,omitempty"`
	Digest     scree.Digest `json:"digest,omitempty"`
}

// Envelope is the JSON body POSTed to the endpoint.
type Envelope struct {
	Events []Event `json:"events"`
}
