package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/homepage-tone/internal/progress"
)

// PrometheusSink turns progress events into harvest metrics.
type PrometheusSink struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runSucceeded  *prometheus.GaugeVec

	pagesFetched  *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	wordsTotal    prometheus.Counter
	fetchDuration *prometheus.HistogramVec

	verdicts         *prometheus.CounterVec
	classifyFailures prometheus.Counter
	classifyDuration prometheus.Histogram
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Runs started per command.",
		}, []string{"command"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Runs completed per command.",
		}, []string{"command"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"command"}),
		runSucceeded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harvest_last_run_succeeded_items",
			Help: "Items that succeeded in the most recent run per command.",
		}, []string{"command"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_pages_fetched_total",
			Help: "Pages rendered and recorded, by site and status class.",
		}, []string{"site", "status_class"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_fetch_failures_total",
			Help: "Pages that could not be rendered, by site.",
		}, []string{"site"}),
		wordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_words_extracted_total",
			Help: "Words extracted across all recorded pages.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_fetch_duration_seconds",
			Help:    "Render plus extract time per page.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"status_class"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_verdicts_total",
			Help: "Classification verdicts by label.",
		}, []string{"label"}),
		classifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_classify_failures_total",
			Help: "Records whose classification request failed.",
		}),
		classifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_classify_duration_seconds",
			Help:    "Model round trip per record.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.runSucceeded,
		s.pagesFetched,
		s.fetchFailures,
		s.wordsTotal,
		s.fetchDuration,
		s.verdicts,
		s.classifyFailures,
		s.classifyDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.WithLabelValues(string(evt.Command)).Inc()
	case progress.StageRunDone:
		cmd := string(evt.Command)
		s.runsCompleted.WithLabelValues(cmd).Inc()
		s.runSucceeded.WithLabelValues(cmd).Set(float64(evt.OK))
		if evt.Dur > 0 {
			s.runDuration.WithLabelValues(cmd).Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchDone:
		class := string(evt.StatusClass)
		s.pagesFetched.WithLabelValues(site(evt), class).Inc()
		if evt.Words > 0 {
			s.wordsTotal.Add(float64(evt.Words))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(class).Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchError:
		s.fetchFailures.WithLabelValues(site(evt)).Inc()
	case progress.StageClassifyDone:
		s.verdicts.WithLabelValues(evt.Label).Inc()
		if evt.Dur > 0 {
			s.classifyDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageClassifyError:
		s.classifyFailures.Inc()
	}
}

func site(evt progress.Event) string {
	if evt.Site != "" {
		return evt.Site
	}
	return progress.SiteOf(evt.URL)
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
