package webhook

import (
	"fmt"
	"net/http"
	"sync"

	events "github.com/docker/go-events"
	metrics "github.com/docker/go-metrics"
)

var (
	ns = metrics.NewNamespace("scree", "notifications", nil)

	// eventsCounter counts events by disposition per endpoint.
	eventsCounter = ns.NewLabeledCounter("events", "The number of total events", "type", "endpoint")
	// pendingGauge measures the pending queue size per endpoint.
	pendingGauge = ns.NewLabeledGauge("pending", "The gauge of pending events in queue", metrics.Total, "endpoint")
	// statusCounter counts delivery attempts per HTTP status per endpoint.
	statusCounter = ns.NewLabeledCounter("status", "The number of status code", "code", "endpoint")
)

func init() {
	metrics.Register(ns)
}

// EndpointMetrics is a point-in-time snapshot of a sink's delivery
// counters, as exposed by [Sink.ReadMetrics].
type EndpointMetrics struct {
	Pending   int            // events pending in queue
	Events    int            // total events submitted
	Successes int            // total events delivered
	Failures  int            // total events rejected by the endpoint
	Errors    int            // total events errored before a response
	Statuses  map[string]int // status line histogram per delivery attempt
}

// safeMetrics guards the counters with a lock and mirrors them into the
// prometheus collectors above.
type safeMetrics struct {
	endpoint string
	mu       sync.Mutex
	EndpointMetrics
}

func newSafeMetrics(endpoint string) *safeMetrics {
	return &safeMetrics{
		endpoint: endpoint,
		EndpointMetrics: EndpointMetrics{
			Statuses: make(map[string]int),
		},
	}
}

func (sm *safeMetrics) read() EndpointMetrics {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	snapshot := sm.EndpointMetrics
	snapshot.Statuses = make(map[string]int, len(sm.Statuses))
	for status, count := range sm.Statuses {
		snapshot.Statuses[status] = count
	}
	return snapshot
}

func (sm *safeMetrics) success(status int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	line := fmt.Sprintf("%d %s", status, http.StatusText(status))
	sm.Statuses[line]++
	sm.Successes++

	statusCounter.WithValues(line, sm.endpoint).Inc(1)
	eventsCounter.WithValues("Successes", sm.endpoint).Inc(1)
}

func (sm *safeMetrics) failure(status int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	line := fmt.Sprintf("%d %s", status, http.StatusText(status))
	sm.Statuses[line]++
	sm.Failures++

	statusCounter.WithValues(line, sm.endpoint).Inc(1)
	eventsCounter.WithValues("Failures", sm.endpoint).Inc(1)
}

func (sm *safeMetrics) err() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.Errors++

	eventsCounter.WithValues("Errors", sm.endpoint).Inc(1)
}

// eventQueueListener returns a listener maintaining the queue counters.
func (sm *safeMetrics) eventQueueListener() eventQueueListener {
	return &metricsQueueListener{sm}
}

type metricsQueueListener struct {
	*safeMetrics
}

func (l *metricsQueueListener) ingress(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Events++
	l.Pending++

	eventsCounter.WithValues("Events", l.endpoint).Inc(1)
	pendingGauge.WithValues(l.endpoint).Inc(1)
}

func (l *metricsQueueListener) egress(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Pending--

	pendingGauge.WithValues(l.endpoint).Dec(1)
}
