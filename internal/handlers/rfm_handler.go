package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/services"
)

// RFMHandler handles segmentation requests.
type RFMHandler struct {
	rfmService services.RFMServicer
}

// NewRFMHandler creates a new RFMHandler.
func NewRFMHandler(rfmService services.RFMServicer) *RFMHandler {
	return &RFMHandler{rfmService: rfmService}
}

// GetUserRFM returns a member's segment, recomputing stale rows on demand.
// @Summary     Get member segment
// @Description Get a member's RFM scores and segment; recomputed transparently when stale
// @Tags        rfm
// @Produce     json
// @Security    BearerAuth
// @Param       external_id path string true "External ID"
// @Success     200 {object} map[string]any "Segment row"
// @Failure     404 {object} ErrorResponse "Member not found or not yet segmented"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rfm/users/{external_id} [get]
func (h *RFMHandler) GetUserRFM(c *gin.Context) {
	segment, err := h.rfmService.GetUserRFM(c.Param("external_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if segment == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrSegmentNotFound,
			"Member has no purchases and cannot be segmented"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"segment": segment})
}

// GetSegments returns the static segment catalog.
// @Summary     List segments
// @Description List all segment definitions with descriptions and strategies
// @Tags        rfm
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]any "Segment definitions"
// @Router      /rfm/segments [get]
func (h *RFMHandler) GetSegments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"segments": h.rfmService.GetAllSegments()})
}

// GetSummary aggregates segment populations over the reporting window.
// @Summary     Get segments summary
// @Description Get per-segment counts, metric averages, and population shares
// @Tags        rfm
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]any "Summary rows"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rfm/segments/summary [get]
func (h *RFMHandler) GetSummary(c *gin.Context) {
	summary, err := h.rfmService.GetSegmentsSummary()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetSegmentUsers returns the top members of a segment by monetary value.
// @Summary     Get segment members
// @Description Get the top members of a segment ordered by monetary value
// @Tags        rfm
// @Produce     json
// @Security    BearerAuth
// @Param       name  path  string true  "Segment name"
// @Param       limit query int    false "Max members (default 10, max 100)"
// @Success     200 {object} map[string]any "Segment members"
// @Failure     404 {object} ErrorResponse "Unknown segment"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rfm/segments/{name}/users [get]
func (h *RFMHandler) GetSegmentUsers(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid limit"))
			return
		}
		limit = parsed
	}

	users, err := h.rfmService.GetSegmentUsers(c.Param("name"), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Recalculate runs the all-users segmentation batch.
// @Summary     Recalculate segments
// @Description Recompute RFM segments for every member with at least one purchase
// @Tags        jobs
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} map[string]any "Batch result"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /jobs/rfm/recalculate [post]
func (h *RFMHandler) Recalculate(c *gin.Context) {
	result, err := h.rfmService.CalculateRFMForAllUsers()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
