// Package metrics exposes langsync counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	scanRuns    *prometheus.CounterVec
	scanRecords *prometheus.CounterVec
	aiRequests  *prometheus.CounterVec
	jobs        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		scanRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "langsync_scan_runs_total",
			Help: "Scan-and-reconcile runs by result.",
		}, []string{"result"}),
		scanRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "langsync_scan_records_total",
			Help: "Records touched by scans by outcome (created, restored, stale, skipped_array, excluded).",
		}, []string{"outcome"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "langsync_ai_requests_total",
			Help: "Structured-output AI requests by provider and result.",
		}, []string{"provider", "result"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "langsync_jobs_total",
			Help: "Background jobs processed by kind and result.",
		}, []string{"kind", "result"}),
	}
	m.Registry.MustRegister(m.scanRuns, m.scanRecords, m.aiRequests, m.jobs)
	m.Registry.MustRegister(prometheus.NewGoCollector())
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ScanRun counts one scan run.
func (m *Metrics) ScanRun(err error) {
	if m == nil {
		return
	}
	m.scanRuns.WithLabelValues(result(err)).Inc()
}

// ScanRecords adds n records for outcome.
func (m *Metrics) ScanRecords(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scanRecords.WithLabelValues(outcome).Add(float64(n))
}

// AIRequest counts one provider call.
func (m *Metrics) AIRequest(provider string, err error) {
	if m == nil {
		return
	}
	m.aiRequests.WithLabelValues(provider, result(err)).Inc()
}

// Job counts one processed job.
func (m *Metrics) Job(kind string, err error) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, result(err)).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
