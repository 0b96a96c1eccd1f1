package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
	"github.com/noah-isme/tutoring-center-api/pkg/response"
)

// HolidayHandler exposes the holiday calendar endpoints.
type HolidayHandler struct {
	calendars *service.CalendarService
}

// NewHolidayHandler constructs handler.
func NewHolidayHandler(calendars *service.CalendarService) *HolidayHandler {
	return &HolidayHandler{calendars: calendars}
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be formatted YYYY-MM-DD")
	}
	return &date, nil
}

// List godoc
// @Summary List holidays
// @Tags Holidays
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /holidays [get]
func (h *HolidayHandler) List(c *gin.Context) {
	from, err := parseDateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	holidays, err := h.calendars.List(c.Request.Context(), models.HolidayFilter{From: from, To: to})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, nil)
}

// Create godoc
// @Summary Add a holiday
// @Tags Holidays
// @Accept json
// @Produce json
// @Param payload body service.CreateHolidayRequest true "Holiday"
// @Success 201 {object} response.Envelope
// @Router /holidays [post]
func (h *HolidayHandler) Create(c *gin.Context) {
	var req service.CreateHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	holiday, err := h.calendars.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// Delete godoc
// @Summary Remove a holiday
// @Tags Holidays
// @Param id path string true "Holiday ID"
// @Success 204
// @Router /holidays/{id} [delete]
func (h *HolidayHandler) Delete(c *gin.Context) {
	if err := h.calendars.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
