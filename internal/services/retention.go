package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soochol/platescan/internal/metrics"
	"github.com/soochol/platescan/internal/storage"
)

// NamedStore pairs a store with the label used in logs and metrics.
type NamedStore struct {
	Name  string
	Store storage.Storage
}

// RetentionService periodically removes old uploads and results.
type RetentionService struct {
	stores  []NamedStore
	maxAge  time.Duration
	cron    *cron.Cron
	metrics *metrics.Metrics
}

func NewRetentionService(maxAge time.Duration, stores ...NamedStore) *RetentionService {
	return &RetentionService{
		stores: stores,
		maxAge: maxAge,
		cron:   cron.New(),
	}
}

// SetMetrics configures Prometheus instrumentation.
func (r *RetentionService) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// parseCronExpr tries 6-field (with seconds) then 5-field (standard) parsing.
// Descriptors such as "@hourly" are accepted by both.
func parseCronExpr(expr string) (cron.Schedule, error) {
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser6.Parse(expr)
	if err == nil {
		return sched, nil
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser5.Parse(expr)
}

// Start schedules the sweep. A zero max age disables retention.
func (r *RetentionService) Start(schedule string) error {
	if r.maxAge <= 0 {
		slog.Info("retention: disabled")
		return nil
	}
	sched, err := parseCronExpr(schedule)
	if err != nil {
		return err
	}
	r.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			slog.Error("retention: sweep failed", "err", err)
		}
	}))
	r.cron.Start()
	slog.Info("retention: scheduled sweep", "cron", schedule, "max_age", r.maxAge)
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (r *RetentionService) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep removes files older than the max age from every store.
func (r *RetentionService) Sweep(ctx context.Context) (int, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}
	var (
		total int
		errs  []error
	)
	for _, ns := range r.stores {
		n, err := ns.Store.Sweep(ctx, r.maxAge)
		total += n
		r.metrics.Swept(ns.Name, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if n > 0 {
			slog.Info("retention: removed old files", "store", ns.Name, "count", n)
		}
	}
	return total, errors.Join(errs...)
}
