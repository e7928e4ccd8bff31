package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nova-ops/account-sweeper/internal/models"
	"github.com/nova-ops/account-sweeper/internal/repository"
	"github.com/nova-ops/account-sweeper/pkg/config"
	"github.com/nova-ops/account-sweeper/pkg/fanout"
)

type sampleLoader interface {
	LoadSample(ctx context.Context, windowDays, limit int) (repository.SampleResult, error)
}

type accountChecker interface {
	Check(ctx context.Context, account models.Account, now time.Time) models.CheckResult
}

type reportStore interface {
	StoreLastReport(ctx context.Context, report models.SweepReport) error
}

// SweeperService owns the sweep lifecycle: an initial-delay one-shot trigger,
// a fixed-interval repeating trigger, and a non-blocking reentrancy guard
// shared by timer and manual triggers. At most one sweep runs process-wide;
// overlapping triggers are dropped, never queued.
type SweeperService struct {
	cfg     config.SweeperConfig
	repo    sampleLoader
	checker accountChecker
	reports reportStore
	metrics *MetricsService
	logger  *zap.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeperService constructs the sweeper with floors applied to the timing
// configuration.
func NewSweeperService(cfg config.SweeperConfig, repo sampleLoader, checker accountChecker, reports reportStore, metrics *MetricsService, logger *zap.Logger) *SweeperService {
	if cfg.Interval <= 0 {
		cfg.Interval = 1800 * time.Second
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 20 * time.Second
	}
	if cfg.MaxAccounts <= 0 {
		cfg.MaxAccounts = 300
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > 10 {
		cfg.Concurrency = 10
	}
	if cfg.RangeDays != 7 && cfg.RangeDays != 15 && cfg.RangeDays != 30 {
		cfg.RangeDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SweeperService{
		cfg:     cfg,
		repo:    repo,
		checker: checker,
		reports: reports,
		metrics: metrics,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Start arms the timers and returns immediately. When the sweeper is disabled
// by configuration it logs and leaves the service inert; Stop stays safe to
// call either way.
func (s *SweeperService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("sweeper disabled")
		return
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("sweeper started",
		zap.Int("range_days", s.cfg.RangeDays),
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("initial_delay", s.cfg.InitialDelay),
		zap.Int("concurrency", s.cfg.Concurrency),
		zap.Int("max_accounts", s.cfg.MaxAccounts),
	)
}

// Stop cancels future triggers. An in-flight run is not interrupted; it drains
// its sample and releases the guard on its own.
func (s *SweeperService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

// TriggerNow attempts to start a sweep outside the schedule. It reports false
// without blocking when a run is already in progress.
func (s *SweeperService) TriggerNow(ctx context.Context) bool {
	if !s.tryAcquire() {
		s.metrics.TriggerSkipped()
		return false
	}
	// Runs always drain their sample; the caller's cancellation (for example
	// an HTTP request context) must not abort the sweep mid-flight.
	detached := context.WithoutCancel(ctx)
	go func() {
		defer s.release()
		s.sweep(detached)
	}()
	return true
}

func (s *SweeperService) loop(ctx context.Context) {
	defer s.wg.Done()

	initial := time.NewTimer(s.cfg.InitialDelay)
	defer initial.Stop()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-initial.C:
			go s.runOnce(ctx)
		case <-ticker.C:
			go s.runOnce(ctx)
		}
	}
}

// runOnce is the guard-protected entry shared by both timers. A trigger that
// finds the guard held is dropped silently.
func (s *SweeperService) runOnce(ctx context.Context) {
	if !s.tryAcquire() {
		s.metrics.TriggerSkipped()
		s.logger.Debug("sweep trigger dropped, run in progress")
		return
	}
	defer s.release()
	s.sweep(ctx)
}

func (s *SweeperService) tryAcquire() bool {
	return s.running.CompareAndSwap(false, true)
}

func (s *SweeperService) release() {
	s.running.Store(false)
}

// sweep executes a single run: load the sample, fan the checks out at the
// configured concurrency, aggregate, publish, log. Run-level errors abort this
// run only.
func (s *SweeperService) sweep(ctx context.Context) {
	start := time.Now()
	runID := uuid.NewString()
	s.metrics.RunStarted()

	sample, err := s.repo.LoadSample(ctx, s.cfg.RangeDays, s.cfg.MaxAccounts)
	if err != nil {
		s.metrics.RunFailed()
		s.logger.Error("sweep run failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return
	}

	var mu sync.Mutex
	var summary models.SweepSummary
	refreshedCount := 0
	now := time.Now()

	fanout.ForEach(ctx, len(sample.Accounts), s.cfg.Concurrency, func(ctx context.Context, index int) {
		item := s.checker.Check(ctx, sample.Accounts[index], now)
		s.metrics.AccountChecked(item.Status, item.Refreshed)

		mu.Lock()
		summary.Add(item.Status)
		if item.Refreshed {
			refreshedCount++
		}
		mu.Unlock()
	})

	report := models.SweepReport{
		RunID:          runID,
		RangeDays:      s.cfg.RangeDays,
		TotalEligible:  sample.TotalEligible,
		Checked:        len(sample.Accounts),
		Summary:        summary,
		RefreshedCount: refreshedCount,
		Truncated:      sample.Truncated,
		Skipped:        sample.Skipped,
		StartedAt:      start.UTC(),
		Duration:       time.Since(start),
	}

	if s.reports != nil {
		if err := s.reports.StoreLastReport(ctx, report); err != nil {
			s.logger.Warn("store sweep report failed",
				zap.String("run_id", runID),
				zap.Error(err),
			)
		}
	}

	s.metrics.RunCompleted(report.Duration)
	s.logger.Info("sweep run completed",
		zap.String("run_id", runID),
		zap.Int("range_days", report.RangeDays),
		zap.Int("total_eligible", report.TotalEligible),
		zap.Int("checked_total", report.Checked),
		zap.Int("normal", summary.Normal),
		zap.Int("expired", summary.Expired),
		zap.Int("banned", summary.Banned),
		zap.Int("failed", summary.Failed),
		zap.Int("refreshed_count", refreshedCount),
		zap.Bool("truncated", report.Truncated),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	)
}
