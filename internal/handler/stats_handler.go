package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crewsync-api/internal/middleware"
	"github.com/noah-isme/crewsync-api/internal/models"
	"github.com/noah-isme/crewsync-api/pkg/response"
)

type statsService interface {
	EventStats(ctx context.Context, eventID string) (*models.EventStats, error)
	AdminSummary(ctx context.Context) (*models.AdminSummary, error)
}

// StatsHandler exposes staffing statistics.
type StatsHandler struct {
	service statsService
	access  accessPolicy
}

// NewStatsHandler builds a new handler.
func NewStatsHandler(service statsService, access accessPolicy) *StatsHandler {
	return &StatsHandler{service: service, access: access}
}

// EventStats godoc
// @Summary Staffing statistics for an event
// @Tags Stats
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/stats [get]
func (h *StatsHandler) EventStats(c *gin.Context) {
	eventID := c.Param("id")
	if err := h.access.CanManageEvent(c.Request.Context(), claimsFromContext(c), eventID); err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.service.EventStats(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// AdminSummary godoc
// @Summary Platform statistics for administrators
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *StatsHandler) AdminSummary(c *gin.Context) {
	summary, err := h.service.AdminSummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
