package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/carepulse/backend/internal/pharmacy"
	"github.com/carepulse/backend/internal/services"
	"github.com/carepulse/backend/pkg/logger"
)

const (
	defaultAuditRetentionDays   = 90
	defaultHistoryRetentionDays = 30
	defaultAuditSpec            = "@daily"
	defaultHistorySpec          = "@daily"
	defaultStockSpec            = "@every 30m"
	defaultExpirySpec           = "@daily"
)

// Cleaner coordinates background maintenance: pruning stale audit logs and
// notification history, and running the periodic pharmacy inventory checks.
type Cleaner struct {
	audit    *services.AuditService
	history  *services.HistoryService
	pharmacy *pharmacy.Service
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool

	auditRetention   int
	historyRetention int
	expiryWindowDays int

	auditSchedule   string
	historySchedule string
	stockSchedule   string
	expirySchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetention = days
		}
	}
}

// WithHistoryRetentionDays adjusts how long durable notification rows are retained.
func WithHistoryRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.historyRetention = days
		}
	}
}

// WithExpiryWindowDays adjusts how far ahead the medication expiry check looks.
func WithExpiryWindowDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.expiryWindowDays = days
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithHistorySchedule overrides the cron specification for history retention enforcement.
func WithHistorySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.historySchedule = spec
		}
	}
}

// WithStockSchedule overrides the cron specification for the low-stock check.
func WithStockSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.stockSchedule = spec
		}
	}
}

// WithExpirySchedule overrides the cron specification for the medication expiry check.
func WithExpirySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.expirySchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding job being skipped.
func NewCleaner(audit *services.AuditService, history *services.HistoryService, pharmacySvc *pharmacy.Service, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		audit:            audit,
		history:          history,
		pharmacy:         pharmacySvc,
		now:              time.Now,
		auditRetention:   defaultAuditRetentionDays,
		historyRetention: defaultHistoryRetentionDays,
		expiryWindowDays: pharmacy.DefaultExpiryWindowDays,
		auditSchedule:    defaultAuditSpec,
		historySchedule:  defaultHistorySpec,
		stockSchedule:    defaultStockSpec,
		expirySchedule:   defaultExpirySpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.audit != nil || cleaner.history != nil || cleaner.pharmacy != nil

	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it if at
// least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.audit != nil && c.auditRetention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if _, err := c.audit.CleanupOlderThan(context.Background(), c.auditRetention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.history != nil && c.historyRetention > 0 {
		if _, err := c.cron.AddFunc(c.historySchedule, func() {
			if _, err := c.history.CleanupOlderThan(context.Background(), c.historyRetention); err != nil {
				c.log.Warn("history cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.pharmacy != nil {
		if _, err := c.cron.AddFunc(c.stockSchedule, func() {
			if _, err := c.pharmacy.CheckLowStock(context.Background()); err != nil {
				c.log.Warn("low stock check failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}

		if _, err := c.cron.AddFunc(c.expirySchedule, func() {
			if _, err := c.pharmacy.CheckExpiringMedications(context.Background(), c.expiryWindowDays); err != nil {
				c.log.Warn("medication expiry check failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Primarily used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.audit != nil && c.auditRetention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.auditRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.history != nil && c.historyRetention > 0 {
		if _, err := c.history.CleanupOlderThan(ctx, c.historyRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.pharmacy != nil {
		if _, err := c.pharmacy.CheckLowStock(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := c.pharmacy.CheckExpiringMedications(ctx, c.expiryWindowDays); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
