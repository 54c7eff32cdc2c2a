// Package telemetry exposes the process metrics on the default prometheus
// registry. Helpers are cheap enough to call from hot paths.
package telemetry

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatterbox"

var (
	messagesAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_appended_total",
		Help:      "Messages appended to a channel view, by source.",
	}, []string{"source"})

	reactionsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reactions_recorded_total",
		Help:      "Reactions counted by an aggregator, by kind.",
	}, []string{"kind"})

	eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_events_dropped_total",
		Help:      "Live events that were not applied, by reason.",
	}, []string{"reason"})

	subscriptionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_transitions_total",
		Help:      "Subscription state transitions, by target state.",
	}, []string{"state"})

	historyFetch = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "history_fetch_seconds",
		Help:      "Latency of the history plus reaction fetch when a channel opens.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})

	ingestRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rejected_total",
		Help:      "Ingest operations rejected at enqueue, by reason.",
	}, []string{"reason"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "op_seconds",
		Help:      "Duration of traced operations, by operation and step.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"op", "step"})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_queue_depth",
		Help:      "Operations currently buffered in the ingest queue.",
	})

	heapAlloc = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_alloc_bytes",
		Help:      "Current heap allocation in bytes.",
	}, func() float64 {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		return float64(stats.HeapAlloc)
	})
)

func init() {
	prometheus.MustRegister(
		messagesAppended,
		reactionsRecorded,
		eventsDropped,
		subscriptionTransitions,
		historyFetch,
		ingestRejected,
		opDuration,
		queueDepth,
		heapAlloc,
	)
}

func MessageAppended(source string) { messagesAppended.WithLabelValues(source).Inc() }

func ReactionRecorded(kind string) { reactionsRecorded.WithLabelValues(kind).Inc() }

func EventDropped(reason string) { eventsDropped.WithLabelValues(reason).Inc() }

func SubscriptionTransition(state string) { subscriptionTransitions.WithLabelValues(state).Inc() }

func IngestRejected(reason string) { ingestRejected.WithLabelValues(reason).Inc() }

func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

func ObserveFetch(d time.Duration, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	historyFetch.WithLabelValues(res).Observe(d.Seconds())
}

// Trace times an operation and its named steps.
type Trace struct {
	name     string
	start    time.Time
	lastMark time.Time
}

// Track starts a trace for op.
func Track(op string) *Trace {
	now := time.Now()
	return &Trace{name: op, start: now, lastMark: now}
}

// Mark records the time since the previous mark (or the start) as step.
func (tr *Trace) Mark(step string) {
	now := time.Now()
	opDuration.WithLabelValues(tr.name, step).Observe(now.Sub(tr.lastMark).Seconds())
	tr.lastMark = now
}

// Finish records the total duration of the trace.
func (tr *Trace) Finish() {
	opDuration.WithLabelValues(tr.name, "total").Observe(time.Since(tr.start).Seconds())
}
