package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	events "github.com/docker/go-events"
	"github.com/google/uuid"

	"github.com/screelabs/scree"
)

// SinkConfig tunes a webhook sink. The zero value is usable.
type SinkConfig struct {
	// Name labels the endpoint in metrics. Defaults to "webhook".
	Name string

	// Threshold is the number of consecutive delivery failures before
	// the circuit breaker trips. Defaults to 10.
	Threshold int

	// Backoff is how long delivery pauses once the breaker has tripped.
	// Defaults to one second.
	Backoff time.Duration

	// Timeout bounds each delivery attempt. Defaults to one minute.
	Timeout time.Duration

	// Headers are added to every delivery request, e.g. for bearer
	// tokens.
	Headers http.Header
}

// Sink queues manifest-upload events and POSTs them to url as they drain.
// It implements [scree.Hooks].
//
// Delivery is asynchronous: ManifestUploaded only enqueues, and a retrying
// sink with a circuit breaker drives the actual HTTP calls, so endpoint
// outages cost pushes nothing but memory.
type Sink struct {
	queue   *eventQueue
	metrics *safeMetrics
}

// NewSink returns a sink delivering to url. If config is nil, it's
// equivalent to passing new(SinkConfig).
func NewSink(url string, config *SinkConfig) *Sink {
	if config == nil {
		config = new(SinkConfig)
	}
	name := config.Name
	if name == "" {
		name = "webhook"
	}
	threshold := config.Threshold
	if threshold <= 0 {
		threshold = 10
	}
	backoff := config.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	sm := newSafeMetrics(name)
	hs := &httpSink{
		url:     url,
		headers: config.Headers,
		client:  &http.Client{Timeout: timeout},
		metrics: sm,
	}
	retrying := events.NewRetryingSink(hs, events.NewBreaker(threshold, backoff))
	return &Sink{
		queue:   newEventQueue(retrying, sm.eventQueueListener()),
		metrics: sm,
	}
}

// ManifestUploaded enqueues an event for the pushed manifest. It never
// blocks on the endpoint.
func (s *Sink) ManifestUploaded(ctx context.Context, ref scree.ManifestReference) error {
	return s.queue.Write(Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    ActionManifestUploaded,
		Target: Target{
			Repository: ref.Location.Repository,
			Image:      ref.Location.Image,
			Tag:        ref.Tag,
			Digest:     ref.Digest,
		},
	})
}

// Close flushes queued events and shuts the sink down. Events accepted
// before Close are delivered (or retried until the breaker gives up on the
// process exiting); events submitted after Close are refused.
func (s *Sink) Close() error {
	return s.queue.Close()
}

// ReadMetrics returns a snapshot of the sink's delivery counters.
func (s *Sink) ReadMetrics() EndpointMetrics {
	return s.metrics.read()
}

var _ scree.Hooks = (*Sink)(nil)

// httpSink POSTs one envelope per event. Any response outside 200-399 is a
// failure, making the enclosing retrying sink try again.
type httpSink struct {
	url     string
	headers http.Header
	client  *http.Client
	metrics *safeMetrics
}

func (hs *httpSink) Write(event events.Event) error {
	e, ok := event.(Event)
	if !ok {
		return fmt.Errorf("webhook: unexpected event type %T", event)
	}
	body, err := json.Marshal(Envelope{Events: []Event{e}})
	if err != nil {
		hs.metrics.err()
		return fmt.Errorf("webhook: cannot marshal envelope: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, hs.url, bytes.NewReader(body))
	if err != nil {
		hs.metrics.err()
		return fmt.Errorf("webhook: cannot build request: %v", err)
	}
	for k, vv := range hs.headers {
		req.Header[k] = append(req.Header[k], vv...)
	}
	req.Header.Set("Content-Type", EventsMediaType)

	resp, err := hs.client.Do(req)
	if err != nil {
		hs.metrics.err()
		return fmt.Errorf("webhook: delivery failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		hs.metrics.success(resp.StatusCode)
		return nil
	}
	hs.metrics.failure(resp.StatusCode)
	return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
}

func (hs *httpSink) Close() error {
	hs.client.CloseIdleConnections()
	return nil
}
