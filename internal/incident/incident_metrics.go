package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the incident pipeline.
type Metrics struct {
	MatchesTotal       prometheus.Counter
	IncidentsTotal     *prometheus.CounterVec
	IncidentDuration   prometheus.Histogram
	EnrichmentsTotal   *prometheus.CounterVec
	EnrichmentDuration prometheus.Histogram
	DispatchesTotal    *prometheus.CounterVec
	DispatchDuration   prometheus.Histogram
}

// NewMetrics registers and returns incident metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbugger_keyword_matches_total",
			Help: "Total log lines that matched an error keyword.",
		}),
		IncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbugger_incidents_total",
			Help: "Total pipeline runs by outcome.",
		}, []string{"outcome"}),
		IncidentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbugger_incident_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}),
		EnrichmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbugger_enrichments_total",
			Help: "Total AI enrichment attempts by outcome.",
		}, []string{"outcome"}),
		EnrichmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbugger_enrichment_duration_seconds",
			Help:    "Duration of AI analysis calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbugger_dispatches_total",
			Help: "Total notification deliveries by outcome.",
		}, []string{"outcome"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbugger_dispatch_duration_seconds",
			Help:    "Duration of notification deliveries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms .. ~6.4s
		}),
	}

	reg.MustRegister(
		m.MatchesTotal,
		m.IncidentsTotal,
		m.IncidentDuration,
		m.EnrichmentsTotal,
		m.EnrichmentDuration,
		m.DispatchesTotal,
		m.DispatchDuration,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnEnrich: func(outcome string, duration float64) {
			m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
			if outcome == EnrichSuccess || outcome == EnrichError {
				m.EnrichmentDuration.Observe(duration)
			}
		},
		OnDispatch: func(ok bool, duration float64) {
			m.DispatchesTotal.WithLabelValues(outcomeLabel(ok)).Inc()
			m.DispatchDuration.Observe(duration)
		},
		OnComplete: func(ok bool, duration float64) {
			m.IncidentsTotal.WithLabelValues(outcomeLabel(ok)).Inc()
			m.IncidentDuration.Observe(duration)
		},
	}
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
