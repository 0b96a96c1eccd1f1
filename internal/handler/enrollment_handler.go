package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
	"github.com/noah-isme/tutoring-center-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics}
}

func enrollmentMeta(result *service.EnrollmentResult) map[string]interface{} {
	if len(result.Warnings) == 0 {
		return nil
	}
	return map[string]interface{}{"warnings": result.Warnings}
}

func (h *EnrollmentHandler) recordGeneration(planned []models.PlannedSession) {
	deferred := 0
	for _, p := range planned {
		if p.Deferred {
			deferred++
		}
	}
	h.metrics.RecordSessionsGenerated(len(planned), deferred)
}

// Create godoc
// @Summary Create an enrollment and its sessions
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	result, err := h.enrollments.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.recordGeneration(result.Planned)
	response.JSON(c, http.StatusCreated, result, nil, enrollmentMeta(result))
}

// Preview godoc
// @Summary Preview an enrollment expansion without writing
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment"
// @Success 200 {object} response.Envelope
// @Router /enrollments/preview [post]
func (h *EnrollmentHandler) Preview(c *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	result, err := h.enrollments.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if len(result.Warnings) > 0 {
		meta = map[string]interface{}{"warnings": result.Warnings}
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Student ID"
// @Param tutorId query string false "Tutor ID"
// @Param kind query string false "Enrollment kind"
// @Param paymentStatus query string false "Payment status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID:     c.Query("studentId"),
		TutorID:       c.Query("tutorId"),
		Kind:          models.EnrollmentKind(c.Query("kind")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "pageSize", 20),
	}
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ConfirmPayment godoc
// @Summary Confirm an enrollment's payment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/confirm-payment [post]
func (h *EnrollmentHandler) ConfirmPayment(c *gin.Context) {
	enrollment, err := h.enrollments.ConfirmPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Cancel godoc
// @Summary Cancel an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	enrollment, err := h.enrollments.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Renew godoc
// @Summary Create a successor enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Predecessor enrollment ID"
// @Param payload body service.RenewEnrollmentRequest true "Renewal"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/renew [post]
func (h *EnrollmentHandler) Renew(c *gin.Context) {
	var req service.RenewEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	result, err := h.enrollments.Renew(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.recordGeneration(result.Planned)
	response.JSON(c, http.StatusCreated, result, nil, enrollmentMeta(result))
}
