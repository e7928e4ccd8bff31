package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nova-ops/account-sweeper/internal/models"
	appErrors "github.com/nova-ops/account-sweeper/pkg/errors"
)

const (
	lastReportKey = "sweeper:last_report"
	lastReportTTL = 24 * time.Hour
)

// RunCache stores the most recent sweep report in Redis so the ops API can
// serve it without touching the scheduler. A nil client degrades to misses.
type RunCache struct {
	client *redis.Client
}

// NewRunCache constructs a run cache.
func NewRunCache(client *redis.Client) *RunCache {
	return &RunCache{client: client}
}

// StoreLastReport persists the report for later retrieval.
func (c *RunCache) StoreLastReport(ctx context.Context, report models.SweepReport) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal sweep report: %w", err)
	}

	if err := c.client.Set(ctx, lastReportKey, payload, lastReportTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", lastReportKey, err)
	}
	return nil
}

// LastReport returns the most recently stored report.
func (c *RunCache) LastReport(ctx context.Context) (*models.SweepReport, error) {
	if c == nil || c.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, lastReportKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", lastReportKey, err)
	}

	var report models.SweepReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("unmarshal sweep report: %w", err)
	}
	return &report, nil
}
