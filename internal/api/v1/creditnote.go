package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/types"
)

type CreditNoteHandler struct {
	creditNoteService service.CreditNoteService
	logger            *logger.Logger
}

func NewCreditNoteHandler(creditNoteService service.CreditNoteService, logger *logger.Logger) *CreditNoteHandler {
	return &CreditNoteHandler{
		creditNoteService: creditNoteService,
		logger:            logger,
	}
}

// IssueCreditNote godoc
// @Summary Issue a credit note
// @Description Issue a new credit note with its full balance remaining
// @Tags CreditNotes
// @Accept json
// @Produce json
// @Param credit_note body dto.CreateCreditNoteRequest true "Credit note details"
// @Success 201 {object} dto.CreditNoteResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /credit-notes [post]
func (h *CreditNoteHandler) IssueCreditNote(c *gin.Context) {
	var req dto.CreateCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.creditNoteService.IssueCreditNote(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("failed to issue credit note", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetCreditNote godoc
// @Summary Get a credit note by ID
// @Tags CreditNotes
// @Produce json
// @Param id path string true "Credit note ID"
// @Success 200 {object} dto.CreditNoteResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /credit-notes/{id} [get]
func (h *CreditNoteHandler) GetCreditNote(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid credit note id").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.creditNoteService.GetCreditNote(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListCreditNotes godoc
// @Summary List credit notes
// @Tags CreditNotes
// @Produce json
// @Success 200 {object} dto.ListCreditNotesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /credit-notes [get]
func (h *CreditNoteHandler) ListCreditNotes(c *gin.Context) {
	var filter types.CreditNoteFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid filter parameters").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.creditNoteService.ListCreditNotes(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ApplyCreditNote godoc
// @Summary Apply a credit note against an invoice
// @Description Consume part of the note's balance as a payment on an invoice
// @Tags CreditNotes
// @Accept json
// @Produce json
// @Param id path string true "Credit note ID"
// @Param application body dto.ApplyCreditNoteRequest true "Application details"
// @Success 200 {object} dto.CreditNoteResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /credit-notes/{id}/apply [post]
func (h *CreditNoteHandler) ApplyCreditNote(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid credit note id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.ApplyCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.creditNoteService.ApplyCreditNote(c.Request.Context(), id, &req)
	if err != nil {
		h.logger.Errorw("failed to apply credit note", "credit_note_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefundCreditNote godoc
// @Summary Refund a credit note balance
// @Description Cash out part of the note's remaining balance
// @Tags CreditNotes
// @Accept json
// @Produce json
// @Param id path string true "Credit note ID"
// @Param refund body dto.RefundCreditNoteRequest true "Refund details"
// @Success 200 {object} dto.CreditNoteResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /credit-notes/{id}/refund [post]
func (h *CreditNoteHandler) RefundCreditNote(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid credit note id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.RefundCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.creditNoteService.RefundCreditNote(c.Request.Context(), id, &req)
	if err != nil {
		h.logger.Errorw("failed to refund credit note", "credit_note_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VoidCreditNote godoc
// @Summary Void a credit note
// @Description Cancel an unused credit note
// @Tags CreditNotes
// @Produce json
// @Param id path string true "Credit note ID"
// @Success 200 {object} dto.CreditNoteResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /credit-notes/{id}/void [post]
func (h *CreditNoteHandler) VoidCreditNote(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid credit note id").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.creditNoteService.VoidCreditNote(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorw("failed to void credit note", "credit_note_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
