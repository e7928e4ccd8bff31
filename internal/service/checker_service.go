package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nova-ops/account-sweeper/internal/models"
	appErrors "github.com/nova-ops/account-sweeper/pkg/errors"
	"github.com/nova-ops/account-sweeper/pkg/localtime"
)

type accountStore interface {
	UpdateTokens(ctx context.Context, id string, pair models.TokenPair) error
	MarkBanned(ctx context.Context, id string) error
}

type statusProber interface {
	Probe(ctx context.Context, account models.Account) error
}

type tokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// CheckerService resolves the live status of a single account. The cascade is
// evaluated in strict order: stored ban flag, date expiry, live probe, and on
// an unauthorized probe a single refresh followed by a single re-probe. The
// ordering keeps network calls away from already-known-bad records and bounds
// recovery to one refresh attempt per check.
type CheckerService struct {
	store     accountStore
	prober    statusProber
	refresher tokenRefresher
	logger    *zap.Logger
}

// NewCheckerService constructs the checker.
func NewCheckerService(store accountStore, prober statusProber, refresher tokenRefresher, logger *zap.Logger) *CheckerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckerService{store: store, prober: prober, refresher: refresher, logger: logger}
}

// Check classifies one account relative to the supplied reference time. The
// returned result always carries exactly one terminal status; collaborator
// failures never escape as errors.
func (s *CheckerService) Check(ctx context.Context, account models.Account, now time.Time) models.CheckResult {
	result := models.CheckResult{
		ID:        account.ID,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
		ExpireAt:  account.ExpireAtValue(),
	}

	if account.IsBanned {
		result.Status = models.CheckStatusBanned
		return result
	}

	if expireAt, ok := localtime.ParseExpireAt(account.ExpireAtValue()); ok && expireAt.Before(now) {
		result.Status = models.CheckStatusExpired
		result.Reason = "expiry date passed"
		return result
	}

	probeErr := s.prober.Probe(ctx, account)
	if probeErr == nil {
		result.Status = models.CheckStatusNormal
		return result
	}

	message := errorMessage(probeErr)

	switch {
	case errors.Is(probeErr, appErrors.ErrProbeDeactivated):
		s.markBannedBestEffort(ctx, account.ID, "")
		result.Status = models.CheckStatusBanned
		result.Reason = message
		return result

	case errors.Is(probeErr, appErrors.ErrProbeUnauthorized):
		refreshToken := account.RefreshTokenValue()
		if refreshToken == "" {
			result.Status = models.CheckStatusExpired
			result.Reason = fallback(message, "access token invalid and no refresh token is stored")
			return result
		}
		return s.refreshAndRecheck(ctx, account, refreshToken, result)

	default:
		result.Status = models.CheckStatusFailed
		result.Reason = fallback(message, "status check failed")
		return result
	}
}

// refreshAndRecheck runs the recovery sub-flow: exchange the refresh token,
// persist the rotated pair, and re-probe once. It never loops back into a
// second refresh regardless of the re-probe outcome.
func (s *CheckerService) refreshAndRecheck(ctx context.Context, account models.Account, refreshToken string, result models.CheckResult) models.CheckResult {
	pair, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		result.Status = models.CheckStatusExpired
		if msg := errorMessage(err); msg != "" {
			result.Reason = fmt.Sprintf("access token expired; refresh attempt failed: %s", msg)
		} else {
			result.Reason = "access token expired; refresh attempt failed"
		}
		return result
	}

	if err := s.store.UpdateTokens(ctx, account.ID, pair); err != nil {
		// The remote already accepted the rotation; losing the local write is
		// logged and the re-probe proceeds with the rotated credentials.
		s.logger.Warn("persist refreshed tokens failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	result.Refreshed = true

	recheck := account
	recheck.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		recheck.RefreshToken.String = pair.RefreshToken
		recheck.RefreshToken.Valid = true
	}

	reErr := s.prober.Probe(ctx, recheck)
	if reErr == nil {
		result.Status = models.CheckStatusNormal
		result.Reason = "access token refreshed with stored refresh token"
		return result
	}

	message := errorMessage(reErr)

	switch {
	case errors.Is(reErr, appErrors.ErrProbeDeactivated):
		s.markBannedBestEffort(ctx, account.ID, "after refresh")
		result.Status = models.CheckStatusBanned
		result.Reason = message
	case errors.Is(reErr, appErrors.ErrProbeUnauthorized):
		result.Status = models.CheckStatusExpired
		result.Reason = fallback(message, "token still invalid after refresh")
	default:
		result.Status = models.CheckStatusFailed
		result.Reason = fallback(message, "refreshed but re-validation failed")
	}
	return result
}

// markBannedBestEffort persists the ban flag. A failed write is logged and the
// reported status stays banned; the record remains eligible so a later sweep
// retries the write.
func (s *CheckerService) markBannedBestEffort(ctx context.Context, id, stage string) {
	if err := s.store.MarkBanned(ctx, id); err != nil {
		fields := []zap.Field{
			zap.String("account_id", id),
			zap.Error(err),
		}
		if stage != "" {
			fields = append(fields, zap.String("stage", stage))
		}
		s.logger.Warn("mark banned failed", fields...)
	}
}

func errorMessage(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func fallback(message, def string) string {
	if message != "" {
		return message
	}
	return def
}
