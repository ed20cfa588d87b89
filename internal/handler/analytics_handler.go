package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gpalytics/gpalytics-api/internal/middleware"
	"github.com/gpalytics/gpalytics-api/internal/service"
	appErrors "github.com/gpalytics/gpalytics-api/pkg/errors"
	"github.com/gpalytics/gpalytics-api/pkg/response"
)

// AnalyticsHandler exposes GPA analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Cgpa godoc
// @Summary Overall CGPA
// @Description Credit-weighted CGPA across all stored grades with per-semester breakdown
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/cgpa [get]
func (h *AnalyticsHandler) Cgpa(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, cacheHit, err := h.analytics.CgpaSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Semester godoc
// @Summary Semester SGPA
// @Description Credit-weighted SGPA for one semester; SGPA is null for an empty semester
// @Tags Analytics
// @Produce json
// @Param semester path int true "Semester number"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/semester/{semester} [get]
func (h *AnalyticsHandler) Semester(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	semester, err := strconv.Atoi(c.Param("semester"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be a number"))
		return
	}

	summary, cacheHit, err := h.analytics.SemesterSummary(c.Request.Context(), claims.UserID, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Semesters godoc
// @Summary All semester summaries
// @Description Per-semester SGPA overview across every recorded semester
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/semester [get]
func (h *AnalyticsHandler) Semesters(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summaries, cacheHit, err := h.analytics.SemesterOverview(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summaries, middleware.ExtractMeta(c))
}

// Performance godoc
// @Summary Performance report
// @Description SGPA extremes and trend plus letter grade distribution
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/performance [get]
func (h *AnalyticsHandler) Performance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, cacheHit, err := h.analytics.Performance(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, report, middleware.ExtractMeta(c))
}
