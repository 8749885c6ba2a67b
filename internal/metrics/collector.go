package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	webhookEvents   *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	duplicateEvents prometheus.Counter
	busyRejections  prometheus.Counter

	cacheLookups  *prometheus.CounterVec
	cacheLatency  prometheus.Histogram
	invalidations prometheus.Counter

	stateTransitions *prometheus.CounterVec
	temperatures     *prometheus.CounterVec

	handoffs *prometheus.CounterVec

	complianceActions *prometheus.CounterVec

	deferredSends prometheus.Counter

	sideEffects    *prometheus.CounterVec
	sideEffectLoad prometheus.Gauge
}

// NewCollector registers the engine instruments under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{}

	c.webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by final outcome",
		},
		[]string{"outcome"},
	)

	c.turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn processing duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	c.duplicateEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_events_total",
		Help:      "Webhook deliveries dropped by the dedup guard",
	})

	c.busyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contact_busy_total",
		Help:      "Turns rejected because the contact lease was held",
	})

	c.cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_cache_lookups_total",
			Help:      "Tiered cache lookups by serving tier (miss = no tier hit)",
		},
		[]string{"tier"},
	)

	c.cacheLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conversation_cache_lookup_seconds",
		Help:      "Total tiered cache lookup latency",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25},
	})

	c.invalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversation_cache_invalidations_total",
		Help:      "Explicit cache invalidations (corrections, overrides)",
	})

	c.stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualification_transitions_total",
			Help:      "Qualification state transitions",
		},
		[]string{"agent", "phase"},
	)

	c.temperatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_temperatures_total",
			Help:      "Temperatures assigned at classification",
		},
		[]string{"agent", "temperature"},
	)

	c.handoffs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Handoff evaluations by result",
		},
		[]string{"result"},
	)

	c.complianceActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compliance_actions_total",
			Help:      "Compliance filter actions on messages",
		},
		[]string{"action"},
	)

	c.deferredSends = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deferred_sends_total",
		Help:      "Outbound messages deferred by the rate/quiet-hours gate",
	})

	c.sideEffects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Side-effect tasks by result",
		},
		[]string{"kind", "result"},
	)

	c.sideEffectLoad = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "side_effect_queue_depth",
		Help:      "Pending side-effect tasks",
	})

	return c
}

// RecordWebhookEvent counts a processed webhook by outcome.
func (c *Collector) RecordWebhookEvent(outcome string) {
	c.webhookEvents.WithLabelValues(outcome).Inc()
}

// RecordTurn observes a completed turn for an agent.
func (c *Collector) RecordTurn(agent string, d time.Duration) {
	c.turnDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// RecordDuplicate counts a dropped duplicate delivery.
func (c *Collector) RecordDuplicate() { c.duplicateEvents.Inc() }

// RecordBusy counts a lease rejection.
func (c *Collector) RecordBusy() { c.busyRejections.Inc() }

// RecordCacheLookup counts a lookup served by tier ("l1", "l2", "l3", "miss").
func (c *Collector) RecordCacheLookup(tier string, d time.Duration) {
	c.cacheLookups.WithLabelValues(tier).Inc()
	c.cacheLatency.Observe(d.Seconds())
}

// RecordInvalidation counts an explicit cache invalidation.
func (c *Collector) RecordInvalidation() { c.invalidations.Inc() }

// RecordTransition counts a state machine transition.
func (c *Collector) RecordTransition(agent, phase string) {
	c.stateTransitions.WithLabelValues(agent, phase).Inc()
}

// RecordTemperature counts a classification result.
func (c *Collector) RecordTemperature(agent, temperature string) {
	c.temperatures.WithLabelValues(agent, temperature).Inc()
}

// RecordHandoff counts a handoff evaluation result
// ("accepted", "rejected_cycle", "rejected_confidence", "rejected_cap").
func (c *Collector) RecordHandoff(result string) {
	c.handoffs.WithLabelValues(result).Inc()
}

// RecordComplianceAction counts a filter action
// ("pass", "suppressed", "replaced", "truncated", "disclosure").
func (c *Collector) RecordComplianceAction(action string) {
	c.complianceActions.WithLabelValues(action).Inc()
}

// RecordDeferred counts a rate-limited deferred send.
func (c *Collector) RecordDeferred() { c.deferredSends.Inc() }

// RecordSideEffect counts a side-effect task result ("ok", "retried", "failed").
func (c *Collector) RecordSideEffect(kind, result string) {
	c.sideEffects.WithLabelValues(kind, result).Inc()
}

// SetQueueDepth publishes the side-effect queue depth.
func (c *Collector) SetQueueDepth(n int) {
	c.sideEffectLoad.Set(float64(n))
}
