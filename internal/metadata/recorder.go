package metadata

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "dnscache"

/*
Recorder captures structured cache events.
It must not:
  - perform I/O decisions
  - affect control flow

Metadata is write-only: no component may read it to decide what to do.
Stats exists for end-of-run reporting.

Every Recorder owns its own prometheus registry so that several sessions
in one process (or one test binary) never collide.
*/
type Recorder struct {
	sessionID string
	logger    *slog.Logger
	registry  *prometheus.Registry

	lookups      *prometheus.CounterVec
	stores       *prometheus.CounterVec
	lockTimeouts *prometheus.CounterVec
}

func NewRecorder(logger *slog.Logger) *Recorder {
	sessionID := uuid.NewString()
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	constLabels := prometheus.Labels{"session": sessionID}

	return &Recorder{
		sessionID: sessionID,
		logger:    logger.With("session", sessionID),
		registry:  registry,
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "lookups_total",
			Help:        "Domain lookups by result (hit, miss, error)",
			ConstLabels: constLabels,
		}, []string{"result"}),
		stores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "stores_total",
			Help:        "Domain record upserts by result (ok, error)",
			ConstLabels: constLabels,
		}, []string{"result"}),
		lockTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "lock_timeouts_total",
			Help:        "Lock acquisitions that ran out of budget, per attempt",
			ConstLabels: constLabels,
		}, []string{"op"}),
	}
}

func (r *Recorder) SessionID() string {
	return r.sessionID
}

func (r *Recorder) RecordLookup(domain string, hit bool, attempts int) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.lookups.WithLabelValues(result).Inc()
	r.logger.Debug("lookup", "domain", domain, "result", result, "attempts", attempts)
}

func (r *Recorder) RecordStore(domain string, attempts int) {
	r.stores.WithLabelValues("ok").Inc()
	r.logger.Debug("store", "domain", domain, "attempts", attempts)
}

func (r *Recorder) RecordLockTimeout(op Operation, domain string, attempt int) {
	r.lockTimeouts.WithLabelValues(string(op)).Inc()
	r.logger.Debug("lock timeout", "op", op, "domain", domain, "attempt", attempt)
}

func (r *Recorder) RecordError(op Operation, domain string, cause ErrorCause, details string) {
	switch op {
	case OpStore:
		r.stores.WithLabelValues("error").Inc()
	case OpLookup:
		r.lookups.WithLabelValues("error").Inc()
	}
	r.logger.Warn("cache operation failed",
		"op", op,
		"domain", domain,
		"cause", cause.String(),
		"error", details,
	)
}

// Stats sums the recorder's counters.
func (r *Recorder) Stats() Stats {
	var stats Stats

	families, err := r.registry.Gather()
	if err != nil {
		r.logger.Warn("gather metrics", "error", err)
		return stats
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := int(metric.GetCounter().GetValue())
			switch family.GetName() {
			case namespace + "_lookups_total":
				switch labelValue(metric, "result") {
				case "hit":
					stats.Hits += value
				case "miss":
					stats.Misses += value
				}
			case namespace + "_stores_total":
				switch labelValue(metric, "result") {
				case "ok":
					stats.Stores += value
				case "error":
					stats.StoreErrors += value
				}
			case namespace + "_lock_timeouts_total":
				stats.LockTimeouts += value
			}
		}
	}
	return stats
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

type MetadataSink interface {
	RecordLookup(domain string, hit bool, attempts int)
	RecordStore(domain string, attempts int)
	RecordLockTimeout(op Operation, domain string, attempt int)
	RecordError(op Operation, domain string, cause ErrorCause, details string)
}

// NoopSink implements MetadataSink but does nothing.
// Callers (or tests) decide whether to inject a Recorder or a NoopSink.
type NoopSink struct{}

func (n *NoopSink) RecordLookup(domain string, hit bool, attempts int) {}

func (n *NoopSink) RecordStore(domain string, attempts int) {}

func (n *NoopSink) RecordLockTimeout(op Operation, domain string, attempt int) {}

func (n *NoopSink) RecordError(op Operation, domain string, cause ErrorCause, details string) {}
