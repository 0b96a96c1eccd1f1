package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
	"github.com/noah-isme/tutoring-center-api/pkg/response"
)

// ExtensionHandler exposes the deadline extension workflow endpoints.
type ExtensionHandler struct {
	extensions *service.ExtensionService
	metrics    *service.MetricsService
}

// NewExtensionHandler constructs handler.
func NewExtensionHandler(extensions *service.ExtensionService, metrics *service.MetricsService) *ExtensionHandler {
	return &ExtensionHandler{extensions: extensions, metrics: metrics}
}

// Create godoc
// @Summary Open an extension request
// @Tags Extensions
// @Accept json
// @Produce json
// @Param payload body service.CreateExtensionRequest true "Extension request"
// @Success 201 {object} response.Envelope
// @Router /extension-requests [post]
func (h *ExtensionHandler) Create(c *gin.Context) {
	var req service.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	created, err := h.extensions.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"policy_band": created.PolicyBand}
	if len(created.Warnings) > 0 {
		meta["warnings"] = created.Warnings
	}
	response.JSON(c, http.StatusCreated, created.Request, nil, meta)
}

// List godoc
// @Summary List extension requests
// @Tags Extensions
// @Produce json
// @Param enrollmentId query string false "Enrollment ID"
// @Param sessionId query string false "Session ID"
// @Param status query string false "Request status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /extension-requests [get]
func (h *ExtensionHandler) List(c *gin.Context) {
	filter := models.ExtensionFilter{
		EnrollmentID: c.Query("enrollmentId"),
		SessionID:    c.Query("sessionId"),
		Status:       models.ExtensionStatus(c.Query("status")),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "pageSize", 20),
	}
	requests, pagination, err := h.extensions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Approve godoc
// @Summary Approve an extension request
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ApproveExtensionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /extension-requests/{id}/approve [patch]
func (h *ExtensionHandler) Approve(c *gin.Context) {
	var req service.ApproveExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	decision, err := h.extensions.Approve(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordWorkflowDecision("extension", "approved")
	response.JSON(c, http.StatusOK, decision, nil)
}

// Reject godoc
// @Summary Reject an extension request
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.RejectExtensionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /extension-requests/{id}/reject [patch]
func (h *ExtensionHandler) Reject(c *gin.Context) {
	var req service.RejectExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	request, err := h.extensions.Reject(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordWorkflowDecision("extension", "rejected")
	response.JSON(c, http.StatusOK, request, nil)
}
