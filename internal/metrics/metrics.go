// Package metrics exposes Prometheus counters for the crawl and enrichment processes.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newspipe"

// Metrics holds all pipeline counters on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CrawlRuns       *prometheus.CounterVec
	ArticlesStored  *prometheus.CounterVec
	ArticlesSkipped *prometheus.CounterVec
	URLFailures     *prometheus.CounterVec

	ArticlesEnriched   prometheus.Counter
	EnrichmentFailures prometheus.Counter
	FactsWritten       prometheus.Counter
	FactFailures       prometheus.Counter
	TokenResets        prometheus.Counter
	EventsSkipped      prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CrawlRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_runs_total",
			Help:      "Completed crawl runs per source and status.",
		}, []string{"source", "status"}),
		ArticlesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_stored_total",
			Help:      "Articles written through the dedup gate.",
		}, []string{"source"}),
		ArticlesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_skipped_total",
			Help:      "URLs skipped because they were already stored.",
		}, []string{"source"}),
		URLFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_url_failures_total",
			Help:      "URLs dropped by a failing crawl stage.",
		}, []string{"source", "stage"}),
		ArticlesEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_enriched_total",
			Help:      "Articles marked analyzed.",
		}),
		EnrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Articles whose enrichment failed and will be retried.",
		}),
		FactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_facts_written_total",
			Help:      "Sentiment rows appended to the fact store.",
		}),
		FactFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_fact_failures_total",
			Help:      "Sentiment rows that could not be written.",
		}),
		TokenResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resume_token_resets_total",
			Help:      "Change feed restarts caused by an unusable resume token.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_skipped_total",
			Help:      "Change events whose token was saved after repeated processing failures.",
		}),
	}

	m.registry.MustRegister(
		m.CrawlRuns, m.ArticlesStored, m.ArticlesSkipped, m.URLFailures,
		m.ArticlesEnriched, m.EnrichmentFailures, m.FactsWritten, m.FactFailures, m.TokenResets,
		m.EventsSkipped,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CrawlFinished records one crawl run outcome.
func (m *Metrics) CrawlFinished(source string, stored int, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "failed"
	}
	m.CrawlRuns.WithLabelValues(source, status).Inc()
	m.ArticlesStored.WithLabelValues(source).Add(float64(stored))
}

// Skipped counts a URL refused by the dedup gate.
func (m *Metrics) Skipped(source string) {
	if m == nil {
		return
	}
	m.ArticlesSkipped.WithLabelValues(source).Inc()
}

// StageFailed counts a URL dropped at the given stage.
func (m *Metrics) StageFailed(source, stage string) {
	if m == nil {
		return
	}
	m.URLFailures.WithLabelValues(source, stage).Inc()
}

// Enriched counts an article marked analyzed.
func (m *Metrics) Enriched() {
	if m == nil {
		return
	}
	m.ArticlesEnriched.Inc()
}

// EnrichmentFailed counts an article left for retry.
func (m *Metrics) EnrichmentFailed() {
	if m == nil {
		return
	}
	m.EnrichmentFailures.Inc()
}

// FactWritten counts a sentiment row outcome.
func (m *Metrics) FactWritten(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.FactsWritten.Inc()
		return
	}
	m.FactFailures.Inc()
}

// TokenReset counts a change feed restart without a usable token.
func (m *Metrics) TokenReset() {
	if m == nil {
		return
	}
	m.TokenResets.Inc()
}

// EventSkipped counts a change event given up on after repeated failures.
func (m *Metrics) EventSkipped() {
	if m == nil {
		return
	}
	m.EventsSkipped.Inc()
}

const shutdownTimeout = 5 * time.Second

// Serve runs the /metrics listener until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("metrics listener started", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
