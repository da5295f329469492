package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/services"
)

// StatusHandler handles loyalty tier requests.
type StatusHandler struct {
	statusService services.StatusServicer
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statusService services.StatusServicer) *StatusHandler {
	return &StatusHandler{statusService: statusService}
}

// pointsQuery binds the points query parameter shared by tier lookups.
type pointsQuery struct {
	Points int64 `form:"points" binding:"min=0"`
}

// ValidateUsageRequest represents the request payload for validating points
// usage at checkout.
type ValidateUsageRequest struct {
	UserPoints      int64 `json:"user_points" binding:"min=0"`
	RequestedPoints int64 `json:"requested_points" binding:"required,gt=0"`
	PurchaseAmount  int64 `json:"purchase_amount" binding:"required,gt=0"`
}

// PurchaseRequest represents the request payload for a purchase breakdown.
type PurchaseRequest struct {
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	PointsUsed int64  `json:"points_used" binding:"min=0"`
	Status     string `json:"status" binding:"required,loyalty_status"`
}

// RecommendationsQuery binds the inputs for member recommendations.
type RecommendationsQuery struct {
	Points       int64   `form:"points" binding:"min=0"`
	LastActivity *string `form:"last_activity"`
}

// GetStatus resolves the tier for a point balance.
// @Summary     Get tier for balance
// @Description Resolve the loyalty tier a point balance falls into
// @Tags        loyalty
// @Produce     json
// @Security    BearerAuth
// @Param       points query int true "Point balance"
// @Success     200 {object} map[string]any "Tier"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /loyalty/status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	var q pointsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tier := h.statusService.CalculateStatus(q.Points)
	c.JSON(http.StatusOK, gin.H{"status": tier})
}

// GetProgress reports where a balance sits within its tier band.
// @Summary     Get tier progress
// @Description Get the current tier, the next tier, and progress toward it
// @Tags        loyalty
// @Produce     json
// @Security    BearerAuth
// @Param       points query int true "Point balance"
// @Success     200 {object} map[string]any "Progress"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /loyalty/progress [get]
func (h *StatusHandler) GetProgress(c *gin.Context) {
	var q pointsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": h.statusService.GetStatusProgress(q.Points)})
}

// ValidateUsage validates a points-at-checkout request.
// @Summary     Validate points usage
// @Description Validate spending points against the balance and the per-purchase usage cap
// @Tags        loyalty
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ValidateUsageRequest true "Usage details"
// @Success     200 {object} map[string]any "Accepted usage"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Insufficient balance or usage cap exceeded"
// @Router      /loyalty/validate-usage [post]
func (h *StatusHandler) ValidateUsage(c *gin.Context) {
	var req ValidateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	usage, err := h.statusService.ValidatePointsUsage(req.UserPoints, req.RequestedPoints, req.PurchaseAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// CalculatePurchase computes the full breakdown of a purchase with points
// applied.
// @Summary     Calculate purchase breakdown
// @Description Compute discount, final amount, and cashback for a purchase with points applied
// @Tags        loyalty
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PurchaseRequest true "Purchase details"
// @Success     200 {object} map[string]any "Breakdown"
// @Failure     400 {object} ErrorResponse "Invalid input or unknown status"
// @Router      /loyalty/purchase [post]
func (h *StatusHandler) CalculatePurchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	details, err := h.statusService.CalculatePurchaseDetails(req.Amount, req.PointsUsed, req.Status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase": details})
}

// GetRecommendations suggests actions for a member.
// @Summary     Get recommendations
// @Description Get prioritized suggestions based on balance and recent activity
// @Tags        loyalty
// @Produce     json
// @Security    BearerAuth
// @Param       points        query int    true  "Point balance"
// @Param       last_activity query string false "Last activity timestamp (RFC 3339)"
// @Success     200 {object} map[string]any "Recommendations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /loyalty/recommendations [get]
func (h *StatusHandler) GetRecommendations(c *gin.Context) {
	var q RecommendationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var lastActivity *time.Time
	if q.LastActivity != nil && *q.LastActivity != "" {
		parsed, err := time.Parse(time.RFC3339, *q.LastActivity)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid last_activity format"))
			return
		}
		lastActivity = &parsed
	}

	recommendations := h.statusService.GetRecommendations(q.Points, lastActivity)
	c.JSON(http.StatusOK, gin.H{"recommendations": recommendations})
}

// GetTiers returns the full tier table.
// @Summary     Get tiers
// @Description Get the loyalty tier table in ascending order
// @Tags        loyalty
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]any "Tiers"
// @Router      /loyalty/tiers [get]
func (h *StatusHandler) GetTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": h.statusService.Tiers()})
}
