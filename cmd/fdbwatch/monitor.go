package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/HatiCode/fdbwatch/cmd/fdbwatch/metrics"
	"github.com/HatiCode/fdbwatch/pkg/archive"
	"github.com/HatiCode/fdbwatch/pkg/storage"
)

// Monitor checks a set of models on a fixed interval: check → store →
// publish (metrics, gRPC health). Each tick rebuilds every report from the
// index; nothing carries over between ticks except the stored reports.
type Monitor struct {
	checker *archive.Checker
	models  []string
	store   storage.Store
	health  *health.Server
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
}

// NewMonitor creates a Monitor. healthServer and m may be nil.
func NewMonitor(
	checker *archive.Checker,
	models []string,
	store storage.Store,
	healthServer *health.Server,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		checker: checker,
		models:  models,
		store:   store,
		health:  healthServer,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run checks all models immediately and then every interval.
// Blocks until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.logger.Info("starting archive monitor", "interval", interval, "models", m.models)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := m.Tick(ctx); err != nil {
		m.logger.Error("initial check failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("archive monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				m.logger.Error("check failed", "error", err)
			}
		}
	}
}

// Tick checks every model once. A failing model does not stop the others;
// all failures are returned joined.
func (m *Monitor) Tick(ctx context.Context) error {
	var errs []error
	for _, model := range m.models {
		if err := m.checkModel(ctx, model); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
		}
	}
	if len(errs) == 0 {
		m.mu.Lock()
		m.lastSuccess = m.now()
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (m *Monitor) checkModel(ctx context.Context, model string) error {
	start := time.Now()
	report, err := m.checker.Check(ctx, model, m.now())
	if m.metrics != nil {
		m.metrics.RecordCheck(model, time.Since(start))
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordError("checker", "check_failed")
		}
		m.setServing(model, false)
		return fmt.Errorf("check: %w", err)
	}

	if !report.OK() {
		m.logger.Warn("archive incomplete",
			"model", model,
			"run", report.Label,
			"status", report.Summary.String(),
			"missing_runs", report.MissingRuns(),
			"failed_files", report.FailedFiles,
		)
	}

	if err := m.store.Put(ctx, *report); err != nil {
		if m.metrics != nil {
			m.metrics.RecordError("store", "put_failed")
		}
		return fmt.Errorf("store: %w", err)
	}

	if m.metrics != nil {
		m.metrics.ObserveReport(report)
	}
	m.setServing(model, report.OK())
	return nil
}

func (m *Monitor) setServing(model string, ok bool) {
	if m.health == nil {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	m.health.SetServingStatus(model, status)
}

// Healthy returns an error when no tick has fully succeeded within maxAge.
func (m *Monitor) Healthy(maxAge time.Duration) error {
	m.mu.Lock()
	last := m.lastSuccess
	m.mu.Unlock()

	if last.IsZero() {
		return errors.New("no successful check yet")
	}
	if age := m.now().Sub(last); age > maxAge {
		return fmt.Errorf("last successful check %s ago", age.Round(time.Second))
	}
	return nil
}
