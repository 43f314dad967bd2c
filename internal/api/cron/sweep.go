package cron

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/types"
)

// SweepHandler exposes run-now trigger endpoints for the scheduled sweeps.
// Triggers are idempotent: re-running a sweep never duplicates generated
// invoices or reminders, it only re-evaluates current state.
type SweepHandler struct {
	logger            *logger.Logger
	recurrenceService service.RecurrenceService
	dunningService    service.DunningService
}

func NewSweepHandler(logger *logger.Logger, recurrenceService service.RecurrenceService, dunningService service.DunningService) *SweepHandler {
	return &SweepHandler{
		logger:            logger,
		recurrenceService: recurrenceService,
		dunningService:    dunningService,
	}
}

// RunDaily godoc
// @Summary Run all daily billing tasks
// @Description Run the recurring invoice generation and payment reminder sweeps
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.SweepResponse
// @Failure 500 {object} dto.SweepResponse
// @Router /cron/billing/daily [post]
func (h *SweepHandler) RunDaily(c *gin.Context) {
	ctx := types.NewSystemContext(c.Request.Context())

	results := []*types.SweepRunResult{
		h.recurrenceService.RunSweep(ctx),
		h.dunningService.RunSweep(ctx),
	}
	h.respond(c, results...)
}

// RunRecurrence godoc
// @Summary Run the recurring invoice sweep
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.SweepResponse
// @Failure 500 {object} dto.SweepResponse
// @Router /cron/billing/recurrence [post]
func (h *SweepHandler) RunRecurrence(c *gin.Context) {
	ctx := types.NewSystemContext(c.Request.Context())
	h.respond(c, h.recurrenceService.RunSweep(ctx))
}

// RunDunning godoc
// @Summary Run the payment reminder sweep
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.SweepResponse
// @Failure 500 {object} dto.SweepResponse
// @Router /cron/billing/dunning [post]
func (h *SweepHandler) RunDunning(c *gin.Context) {
	ctx := types.NewSystemContext(c.Request.Context())
	h.respond(c, h.dunningService.RunSweep(ctx))
}

// RunScheduled executes both sweeps outside an HTTP request, for the
// in-process scheduler.
func (h *SweepHandler) RunScheduled(ctx context.Context) {
	ctx = types.NewSystemContext(ctx)
	h.recurrenceService.RunSweep(ctx)
	h.dunningService.RunSweep(ctx)
}

func (h *SweepHandler) respond(c *gin.Context, results ...*types.SweepRunResult) {
	response := dto.SweepResponse{Success: true}
	for _, r := range results {
		task := dto.SweepTaskResult{
			Name:      r.Task,
			Status:    dto.SweepTaskStatusCompleted,
			Processed: r.Processed,
			Succeeded: r.Succeeded,
			Failed:    r.Failed,
			Skipped:   r.Skipped,
		}
		if r.Failed > 0 {
			task.Status = dto.SweepTaskStatusFailed
			if len(r.Errors) > 0 {
				task.Error = r.Errors[0].Error
			}
			response.Success = false
		}
		response.Tasks = append(response.Tasks, task)
	}

	status := http.StatusOK
	if !response.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, response)
}
