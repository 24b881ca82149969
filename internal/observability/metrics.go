// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faculty_papers"

// Metrics holds the counters and histograms for one process. Metrics are
// registered on a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// LookupAttempts counts record source calls, labeled by operation.
	LookupAttempts *prometheus.CounterVec

	// LookupEmpty counts calls that came back empty, labeled by operation.
	LookupEmpty *prometheus.CounterVec

	// RetriesExhausted counts lookups that used every attempt, labeled by operation.
	RetriesExhausted *prometheus.CounterVec

	// RouteAcquisitions counts egress route acquisitions, labeled by outcome.
	RouteAcquisitions *prometheus.CounterVec

	SubjectsProcessed   prometheus.Counter
	SubjectsFailed      prometheus.Counter
	PublicationsEmitted prometheus.Counter
	PublicationsFailed  prometheus.Counter
	DegradedDates       prometheus.Counter

	// GroupDuration observes worker group wall time in seconds.
	GroupDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		LookupAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_attempts_total",
			Help:      "Record source calls by operation",
		}, []string{"operation"}),
		LookupEmpty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_empty_total",
			Help:      "Record source calls that returned no result",
		}, []string{"operation"}),
		RetriesExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_exhausted_total",
			Help:      "Lookups that failed after every attempt",
		}, []string{"operation"}),
		RouteAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_acquisitions_total",
			Help:      "Egress route acquisitions by outcome",
		}, []string{"outcome"}),
		SubjectsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subjects_processed_total",
			Help:      "Subjects dispatched to a batch",
		}),
		SubjectsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subjects_failed_total",
			Help:      "Subjects that could not be resolved",
		}),
		PublicationsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_emitted_total",
			Help:      "Output rows produced",
		}),
		PublicationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_failed_total",
			Help:      "Publications missing a title or abstract",
		}),
		DegradedDates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_dates_total",
			Help:      "Publications exported with the fallback date",
		}),
		GroupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "group_duration_seconds",
			Help:      "Wall time of one worker group",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
	}
	reg.MustRegister(
		m.LookupAttempts, m.LookupEmpty, m.RetriesExhausted, m.RouteAcquisitions,
		m.SubjectsProcessed, m.SubjectsFailed, m.PublicationsEmitted,
		m.PublicationsFailed, m.DegradedDates, m.GroupDuration,
	)
	return m
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
