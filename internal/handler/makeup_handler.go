package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
	"github.com/noah-isme/tutoring-center-api/pkg/response"
)

// MakeupHandler exposes the make-up proposal workflow endpoints.
type MakeupHandler struct {
	makeups *service.MakeupService
	metrics *service.MetricsService
}

// NewMakeupHandler constructs handler.
func NewMakeupHandler(makeups *service.MakeupService, metrics *service.MetricsService) *MakeupHandler {
	return &MakeupHandler{makeups: makeups, metrics: metrics}
}

func (h *MakeupHandler) requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// Create godoc
// @Summary Open a make-up proposal
// @Tags Makeups
// @Accept json
// @Produce json
// @Param payload body service.CreateProposalRequest true "Proposal"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeup-proposals [post]
func (h *MakeupHandler) Create(c *gin.Context) {
	var req service.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	detail, err := h.makeups.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List make-up proposals
// @Tags Makeups
// @Produce json
// @Param sessionId query string false "Original session ID"
// @Param tutorId query string false "Target tutor ID"
// @Param status query string false "Proposal status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals [get]
func (h *MakeupHandler) List(c *gin.Context) {
	filter := models.ProposalFilter{
		SessionID: c.Query("sessionId"),
		TutorID:   c.Query("tutorId"),
		Status:    models.ProposalStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
	}
	proposals, pagination, err := h.makeups.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposals, pagination)
}

// Get godoc
// @Summary Make-up proposal detail
// @Tags Makeups
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /makeup-proposals/{id} [get]
func (h *MakeupHandler) Get(c *gin.Context) {
	detail, err := h.makeups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ApproveSlot godoc
// @Summary Approve a proposal slot
// @Tags Makeups
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeup-proposals/slots/{id}/approve [patch]
func (h *MakeupHandler) ApproveSlot(c *gin.Context) {
	claims, ok := h.requireClaims(c)
	if !ok {
		return
	}
	decision, err := h.makeups.ApproveSlot(c.Request.Context(), c.Param("id"), *claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordWorkflowDecision("makeup_slot", "approved")
	response.JSON(c, http.StatusOK, decision, nil)
}

// RejectSlot godoc
// @Summary Reject a proposal slot
// @Tags Makeups
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.RejectSlotRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeup-proposals/slots/{id}/reject [patch]
func (h *MakeupHandler) RejectSlot(c *gin.Context) {
	claims, ok := h.requireClaims(c)
	if !ok {
		return
	}
	var req service.RejectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	decision, err := h.makeups.RejectSlot(c.Request.Context(), c.Param("id"), req, *claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordWorkflowDecision("makeup_slot", "rejected")
	response.JSON(c, http.StatusOK, decision, nil)
}

// Book godoc
// @Summary Resolve a needs-input proposal with a concrete booking
// @Tags Makeups
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body service.BookMakeupRequest true "Booking"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeup-proposals/{id}/book [post]
func (h *MakeupHandler) Book(c *gin.Context) {
	claims, ok := h.requireClaims(c)
	if !ok {
		return
	}
	var req service.BookMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	decision, err := h.makeups.Book(c.Request.Context(), c.Param("id"), req, *claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordWorkflowDecision("makeup_booking", "approved")
	response.JSON(c, http.StatusOK, decision, nil)
}
