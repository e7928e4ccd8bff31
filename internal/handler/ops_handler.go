package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nova-ops/account-sweeper/internal/dto"
	"github.com/nova-ops/account-sweeper/internal/models"
	appErrors "github.com/nova-ops/account-sweeper/pkg/errors"
	"github.com/nova-ops/account-sweeper/pkg/response"
)

type sweepTrigger interface {
	TriggerNow(ctx context.Context) bool
}

type reportSource interface {
	LastReport(ctx context.Context) (*models.SweepReport, error)
}

// OpsHandler exposes the operator surface for the sweeper.
type OpsHandler struct {
	sweeper sweepTrigger
	reports reportSource
	enabled bool
}

// NewOpsHandler builds a new handler.
func NewOpsHandler(sweeper sweepTrigger, reports reportSource, enabled bool) *OpsHandler {
	return &OpsHandler{sweeper: sweeper, reports: reports, enabled: enabled}
}

// Status returns the most recent sweep report.
func (h *OpsHandler) Status(c *gin.Context) {
	report, err := h.reports.LastReport(c.Request.Context())
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			response.Error(c, appErrors.WithMessage(appErrors.ErrNotFound, "no sweep has completed yet"))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SweepStatusResponse{Report: report})
}

// Trigger starts a sweep outside the schedule via the shared non-blocking
// guard. An in-flight run turns the request into a conflict, not a queue.
func (h *OpsHandler) Trigger(c *gin.Context) {
	if !h.enabled {
		response.Error(c, appErrors.WithMessage(appErrors.ErrConflict, "sweeper is disabled by configuration"))
		return
	}
	if !h.sweeper.TriggerNow(c.Request.Context()) {
		response.Error(c, appErrors.WithMessage(appErrors.ErrConflict, "a sweep is already running"))
		return
	}
	response.Accepted(c, dto.TriggerResponse{Started: true})
}
