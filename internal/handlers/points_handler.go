package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/models"
	"bonuspark/internal/pagination"
	"bonuspark/internal/services"
)

// PointsHandler handles ledger requests.
type PointsHandler struct {
	pointsService services.PointsServicer
	auditService  services.AuditServicer
}

// NewPointsHandler creates a new PointsHandler.
func NewPointsHandler(pointsService services.PointsServicer, auditService services.AuditServicer) *PointsHandler {
	return &PointsHandler{pointsService: pointsService, auditService: auditService}
}

// MutationRequest represents the request payload for crediting or debiting
// points.
type MutationRequest struct {
	UserID   uint            `json:"user_id" binding:"required"`
	Amount   int64           `json:"amount" binding:"required,gt=0"`
	Reason   string          `json:"reason" binding:"required,min=1,max=255"`
	Metadata models.Metadata `json:"metadata"`
}

// TransferRequest represents the request payload for a peer-to-peer
// transfer.
type TransferRequest struct {
	FromUserID uint   `json:"from_user_id" binding:"required"`
	ToUserID   uint   `json:"to_user_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Reason     string `json:"reason" binding:"required,min=1,max=255"`
}

// ActivityRequest represents the request payload for awarding points for a
// recognized activity.
type ActivityRequest struct {
	UserID   uint            `json:"user_id" binding:"required"`
	Activity string          `json:"activity" binding:"required,activity_type"`
	Metadata models.Metadata `json:"metadata"`
}

// CreditPoints handles point credits.
// @Summary     Credit points
// @Description Credit points to a member's balance and record a ledger row
// @Tags        points
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body MutationRequest true "Credit details"
// @Success     200 {object} map[string]any "Mutation result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /points/credit [post]
func (h *PointsHandler) CreditPoints(c *gin.Context) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.pointsService.AddPoints(req.UserID, req.Amount, req.Reason, req.Metadata)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(req.UserID, "CREDIT_POINTS", "point_transaction", result.TransactionID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// DebitPoints handles point debits.
// @Summary     Debit points
// @Description Debit points from a member's balance; rejected when the balance is insufficient
// @Tags        points
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body MutationRequest true "Debit details"
// @Success     200 {object} map[string]any "Mutation result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     409 {object} ErrorResponse "Insufficient balance"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /points/debit [post]
func (h *PointsHandler) DebitPoints(c *gin.Context) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.pointsService.DeductPoints(req.UserID, req.Amount, req.Reason, req.Metadata)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(req.UserID, "DEBIT_POINTS", "point_transaction", result.TransactionID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// TransferPoints handles peer-to-peer transfers.
// @Summary     Transfer points
// @Description Move points between two members in one atomic unit
// @Tags        points
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TransferRequest true "Transfer details"
// @Success     200 {object} map[string]any "Transfer result"
// @Failure     400 {object} ErrorResponse "Invalid input or same-user transfer"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     409 {object} ErrorResponse "Insufficient balance"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /points/transfer [post]
func (h *PointsHandler) TransferPoints(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.pointsService.TransferPoints(req.FromUserID, req.ToUserID, req.Amount, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(req.FromUserID, "TRANSFER_POINTS", "point_transaction", result.DebitTransactionID, c.ClientIP(),
		map[string]interface{}{"to_user_id": req.ToUserID, "amount": req.Amount})

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// AwardActivity handles awarding points for a recognized activity.
// @Summary     Award activity points
// @Description Credit the configured reward for a recognized activity; purchase cashback is computed from the member's tier rate
// @Tags        points
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ActivityRequest true "Activity details"
// @Success     200 {object} map[string]any "Mutation result"
// @Failure     400 {object} ErrorResponse "Invalid input or unknown activity"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /points/activity [post]
func (h *PointsHandler) AwardActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.pointsService.AwardPointsForActivity(req.UserID, services.ActivityType(req.Activity), req.Metadata)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(req.UserID, "AWARD_ACTIVITY", "point_transaction", result.TransactionID, c.ClientIP(),
		map[string]interface{}{"activity": req.Activity})

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// GetBalance handles balance queries.
// @Summary     Get balance
// @Description Get a member's current point balance
// @Tags        points
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Success     200 {object} map[string]any "Balance"
// @Failure     400 {object} ErrorResponse "Invalid user ID"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/{id}/balance [get]
func (h *PointsHandler) GetBalance(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	balance, err := h.pointsService.GetBalance(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

// GetHistory handles transaction history queries.
// @Summary     Get transaction history
// @Description Get a member's ledger rows, newest first
// @Tags        points
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  int true  "User ID"
// @Param       limit  query int false "Rows per page (default 20, max 100)"
// @Param       offset query int false "Rows to skip"
// @Success     200 {object} map[string]any "Transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/{id}/history [get]
func (h *PointsHandler) GetHistory(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var window pagination.Window
	if err := c.ShouldBindQuery(&window); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transactions, err := h.pointsService.GetHistory(userID, window)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// GetStats handles ledger statistics queries.
// @Summary     Get ledger statistics
// @Description Get aggregate credit/debit totals and balance statistics
// @Tags        points
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]any "Statistics"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /points/stats [get]
func (h *PointsHandler) GetStats(c *gin.Context) {
	stats, err := h.pointsService.GetStats()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
