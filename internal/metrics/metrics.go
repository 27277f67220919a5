// Package metrics exposes task lifecycle and input delivery counters in
// Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/task"
)

const namespace = "winpilot"

// Input results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry    *prom.Registry
	taskEvents  *prom.CounterVec
	running     prom.Gauge
	runDuration *prom.HistogramVec
	inputOps    *prom.CounterVec

	mu     sync.Mutex
	starts map[string]time.Time // keyed by run id
}

// New creates and registers every collector
func New() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		taskEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_events_total",
			Help:      "Task lifecycle events by type.",
		}, []string{"event"}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Number of task bodies currently running.",
		}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_run_seconds",
			Help:      "How long task runs lasted, by how they ended.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400},
		}, []string{"event"}),
		inputOps: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "input_operations_total",
			Help:      "Synthetic input operations by operation and result.",
		}, []string{"op", "result"}),
		starts: make(map[string]time.Time),
	}

	m.registry.MustRegister(
		m.taskEvents,
		m.running,
		m.runDuration,
		m.inputOps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

// Observer returns a task event observer for Manager.Subscribe
func (m *Metrics) Observer() task.Observer {
	return m.observe
}

func (m *Metrics) observe(ev task.Event) {
	m.taskEvents.WithLabelValues(string(ev.Type)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case task.EventStarted:
		if _, ok := m.starts[ev.RunID]; !ok {
			m.starts[ev.RunID] = ev.At
			m.running.Inc()
		}

	case task.EventStopped, task.EventError:
		started, ok := m.starts[ev.RunID]
		if !ok {
			return
		}

		delete(m.starts, ev.RunID)
		m.running.Dec()
		if !ev.At.IsZero() && !started.IsZero() {
			m.runDuration.WithLabelValues(string(ev.Type)).Observe(ev.At.Sub(started).Seconds())
		}
	}
}

// RecordInput counts one input facade operation
func (m *Metrics) RecordInput(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}

	m.inputOps.WithLabelValues(op, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log logger.LoggerInterface) error {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", slog.String("addr", listener.Addr().String()))

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}

	return nil
}
