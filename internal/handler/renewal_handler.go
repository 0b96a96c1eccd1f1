package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-center-api/internal/models"
	"github.com/noah-isme/tutoring-center-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-center-api/pkg/errors"
	"github.com/noah-isme/tutoring-center-api/pkg/response"
)

// RenewalHandler exposes the renewal tracker report and its downloads.
type RenewalHandler struct {
	renewals       *service.RenewalService
	exportsEnabled bool
}

// NewRenewalHandler constructs handler.
func NewRenewalHandler(renewals *service.RenewalService, exportsEnabled bool) *RenewalHandler {
	return &RenewalHandler{renewals: renewals, exportsEnabled: exportsEnabled}
}

func windowFromQuery(c *gin.Context) models.RenewalWindow {
	return models.RenewalWindow{
		LookbackDays:  queryInt(c, "lookbackDays", 0),
		LookaheadDays: queryInt(c, "lookaheadDays", 0),
	}
}

// Report godoc
// @Summary Renewal tracker report
// @Tags Renewals
// @Produce json
// @Param lookbackDays query int false "Lookback window in days"
// @Param lookaheadDays query int false "Lookahead window in days"
// @Success 200 {object} response.Envelope
// @Router /renewals [get]
func (h *RenewalHandler) Report(c *gin.Context) {
	entries, err := h.renewals.Report(c.Request.Context(), windowFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Download the renewal tracker report
// @Tags Renewals
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param lookbackDays query int false "Lookback window in days"
// @Param lookaheadDays query int false "Lookahead window in days"
// @Success 200 {file} file
// @Router /renewals/export [get]
func (h *RenewalHandler) Export(c *gin.Context) {
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "report exports are disabled"))
		return
	}
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.renewals.Export(c.Request.Context(), windowFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("renewals-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
