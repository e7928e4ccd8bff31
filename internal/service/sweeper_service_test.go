package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nova-ops/account-sweeper/internal/models"
	"github.com/nova-ops/account-sweeper/internal/repository"
	"github.com/nova-ops/account-sweeper/pkg/config"
)

type loaderStub struct {
	result repository.SampleResult
	err    error
	calls  int64
}

func (l *loaderStub) LoadSample(ctx context.Context, windowDays, limit int) (repository.SampleResult, error) {
	atomic.AddInt64(&l.calls, 1)
	if l.err != nil {
		return repository.SampleResult{}, l.err
	}
	return l.result, nil
}

type checkerStub struct {
	mu       sync.Mutex
	results  map[string]models.CheckResult
	inFlight int64
	peak     int64
	block    chan struct{}
}

func (c *checkerStub) Check(ctx context.Context, account models.Account, now time.Time) models.CheckResult {
	current := atomic.AddInt64(&c.inFlight, 1)
	for {
		observed := atomic.LoadInt64(&c.peak)
		if current <= observed || atomic.CompareAndSwapInt64(&c.peak, observed, current) {
			break
		}
	}
	if c.block != nil {
		<-c.block
	}
	defer atomic.AddInt64(&c.inFlight, -1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if result, ok := c.results[account.ID]; ok {
		return result
	}
	return models.CheckResult{ID: account.ID, Status: models.CheckStatusNormal}
}

type reportStoreStub struct {
	mu      sync.Mutex
	reports []models.SweepReport
	err     error
}

func (r *reportStoreStub) StoreLastReport(ctx context.Context, report models.SweepReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *reportStoreStub) stored() []models.SweepReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SweepReport, len(r.reports))
	copy(out, r.reports)
	return out
}

func sweepAccounts(n int) []models.Account {
	accounts := make([]models.Account, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, models.Account{ID: fmt.Sprintf("acct-%03d", i), Email: "x@example.com"})
	}
	return accounts
}

func sweeperConfig() config.SweeperConfig {
	return config.SweeperConfig{
		Enabled:      true,
		Interval:     time.Hour,
		InitialDelay: time.Hour,
		MaxAccounts:  300,
		Concurrency:  3,
		RangeDays:    30,
	}
}

func TestSweepAggregatesSummary(t *testing.T) {
	accounts := []models.Account{
		{ID: "n1"}, {ID: "n2"}, {ID: "e1"}, {ID: "b1"}, {ID: "f1"}, {ID: "r1"},
	}
	loader := &loaderStub{result: repository.SampleResult{
		TotalEligible: 10,
		Accounts:      accounts,
		Truncated:     true,
		Skipped:       4,
	}}
	checker := &checkerStub{results: map[string]models.CheckResult{
		"n1": {ID: "n1", Status: models.CheckStatusNormal},
		"n2": {ID: "n2", Status: models.CheckStatusNormal},
		"e1": {ID: "e1", Status: models.CheckStatusExpired},
		"b1": {ID: "b1", Status: models.CheckStatusBanned},
		"f1": {ID: "f1", Status: models.CheckStatusFailed},
		"r1": {ID: "r1", Status: models.CheckStatusNormal, Refreshed: true},
	}}
	reports := &reportStoreStub{}

	s := NewSweeperService(sweeperConfig(), loader, checker, reports, NewMetricsService(), zap.NewNop())
	s.sweep(context.Background())

	stored := reports.stored()
	require.Len(t, stored, 1)
	report := stored[0]

	assert.Equal(t, 10, report.TotalEligible)
	assert.Equal(t, 6, report.Checked)
	assert.Equal(t, 3, report.Summary.Normal)
	assert.Equal(t, 1, report.Summary.Expired)
	assert.Equal(t, 1, report.Summary.Banned)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 1, report.RefreshedCount)
	assert.True(t, report.Truncated)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 30, report.RangeDays)
	assert.NotEmpty(t, report.RunID)
}

func TestSweepConcurrencyBound(t *testing.T) {
	loader := &loaderStub{result: repository.SampleResult{
		TotalEligible: 50,
		Accounts:      sweepAccounts(50),
	}}
	checker := &checkerStub{}
	reports := &reportStoreStub{}

	cfg := sweeperConfig()
	cfg.Concurrency = 3

	s := NewSweeperService(cfg, loader, checker, reports, NewMetricsService(), zap.NewNop())
	s.sweep(context.Background())

	assert.LessOrEqual(t, atomic.LoadInt64(&checker.peak), int64(3))
	assert.Positive(t, atomic.LoadInt64(&checker.peak))
}

func TestSweepLoadFailureAbortsRunOnly(t *testing.T) {
	loader := &loaderStub{err: errors.New("store unreachable")}
	checker := &checkerStub{}
	reports := &reportStoreStub{}

	s := NewSweeperService(sweeperConfig(), loader, checker, reports, NewMetricsService(), zap.NewNop())
	s.sweep(context.Background())

	assert.Empty(t, reports.stored())
	assert.False(t, s.running.Load())

	// The guard is free, a later trigger proceeds.
	loader.err = nil
	loader.result = repository.SampleResult{Accounts: sweepAccounts(1), TotalEligible: 1}
	require.True(t, s.TriggerNow(context.Background()))
	waitFor(t, func() bool { return len(reports.stored()) == 1 })
}

func TestSweepReportStoreFailureIsNonFatal(t *testing.T) {
	loader := &loaderStub{result: repository.SampleResult{Accounts: sweepAccounts(1), TotalEligible: 1}}
	checker := &checkerStub{}
	reports := &reportStoreStub{err: errors.New("redis down")}

	s := NewSweeperService(sweeperConfig(), loader, checker, reports, NewMetricsService(), zap.NewNop())
	s.sweep(context.Background())

	assert.False(t, s.running.Load())
}

func TestTriggerNowDropsOverlappingRuns(t *testing.T) {
	block := make(chan struct{})
	loader := &loaderStub{result: repository.SampleResult{Accounts: sweepAccounts(1), TotalEligible: 1}}
	checker := &checkerStub{block: block}
	reports := &reportStoreStub{}

	s := NewSweeperService(sweeperConfig(), loader, checker, reports, NewMetricsService(), zap.NewNop())

	require.True(t, s.TriggerNow(context.Background()))

	// Wait until the first run actually holds the guard.
	waitFor(t, func() bool { return s.running.Load() })

	assert.False(t, s.TriggerNow(context.Background()))
	assert.False(t, s.TriggerNow(context.Background()))

	close(block)
	waitFor(t, func() bool { return !s.running.Load() })

	assert.Len(t, reports.stored(), 1)
	assert.Equal(t, int64(1), atomic.LoadInt64(&loader.calls))
}

func TestStartDisabledIsInert(t *testing.T) {
	loader := &loaderStub{}
	checker := &checkerStub{}

	cfg := sweeperConfig()
	cfg.Enabled = false

	s := NewSweeperService(cfg, loader, checker, &reportStoreStub{}, NewMetricsService(), zap.NewNop())
	s.Start(context.Background())
	s.Stop()

	assert.Zero(t, atomic.LoadInt64(&loader.calls))
}

func TestStartRunsAfterInitialDelay(t *testing.T) {
	loader := &loaderStub{result: repository.SampleResult{Accounts: sweepAccounts(1), TotalEligible: 1}}
	checker := &checkerStub{}
	reports := &reportStoreStub{}

	cfg := sweeperConfig()
	cfg.InitialDelay = 10 * time.Millisecond

	s := NewSweeperService(cfg, loader, checker, reports, NewMetricsService(), zap.NewNop())
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return len(reports.stored()) == 1 })
}

func TestNewSweeperServiceAppliesFloors(t *testing.T) {
	s := NewSweeperService(config.SweeperConfig{Enabled: true, Concurrency: 42, RangeDays: 9}, &loaderStub{}, &checkerStub{}, nil, nil, nil)

	assert.Equal(t, 10, s.cfg.Concurrency)
	assert.Equal(t, 30, s.cfg.RangeDays)
	assert.Equal(t, 1800*time.Second, s.cfg.Interval)
	assert.Equal(t, 20*time.Second, s.cfg.InitialDelay)
	assert.Equal(t, 300, s.cfg.MaxAccounts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
