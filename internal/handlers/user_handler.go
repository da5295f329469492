package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "bonuspark/internal/errors"
	"bonuspark/internal/services"
)

// UserHandler handles member directory requests.
type UserHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, auditService: auditService}
}

// CreateUserRequest represents the request payload for registering a member.
type CreateUserRequest struct {
	ExternalID  string  `json:"external_id" binding:"required,min=1,max=100"`
	FirstName   string  `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string  `json:"last_name" binding:"max=100"`
	Username    string  `json:"username" binding:"max=100"`
	VKID        *string `json:"vk_id" binding:"omitempty,max=100"`
	InstagramID *string `json:"instagram_id" binding:"omitempty,max=100"`
	TelegramID  *string `json:"telegram_id" binding:"omitempty,max=100"`
}

// UpdateUserRequest represents the request payload for updating a member
// profile. Absent fields are left unchanged.
type UpdateUserRequest struct {
	Username    *string `json:"username" binding:"omitempty,max=100"`
	FirstName   *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,max=100"`
	VKID        *string `json:"vk_id" binding:"omitempty,max=100"`
	InstagramID *string `json:"instagram_id" binding:"omitempty,max=100"`
	TelegramID  *string `json:"telegram_id" binding:"omitempty,max=100"`
}

// ErrorDetail holds the code and message of an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// CreateUser handles member registration.
// @Summary     Register a member
// @Description Register a new loyalty member; the welcome bonus is credited atomically with the registration
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateUserRequest true "Member details"
// @Success     201 {object} map[string]any "Created member"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate external ID"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.Create(services.CreateUserData{
		ExternalID:  req.ExternalID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		VKID:        req.VKID,
		InstagramID: req.InstagramID,
		TelegramID:  req.TelegramID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, "CREATE_USER", "user", user.ID, c.ClientIP(),
		map[string]interface{}{"external_id": req.ExternalID})

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// GetUser handles member lookup by external ID.
// @Summary     Get member
// @Description Get a member by external ID
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "External ID"
// @Success     200 {object} map[string]any "Member details"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.FindByExternalID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if user == nil {
		respondWithError(c, apperrors.ErrUserNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UserExists reports whether a member with the external ID is registered.
// @Summary     Check member existence
// @Description Check whether a member with the external ID exists
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "External ID"
// @Success     200 {object} map[string]any "Existence flag"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/{id}/exists [get]
func (h *UserHandler) UserExists(c *gin.Context) {
	exists, err := h.userService.Exists(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// UpdateUser handles member profile updates.
// @Summary     Update member
// @Description Update a member's profile fields; absent fields are left unchanged
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "User ID"
// @Param       request body UpdateUserRequest true "Updated profile fields"
// @Success     200 {object} map[string]any "Updated member"
// @Failure     400 {object} ErrorResponse "Invalid input or user ID"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.Update(userID, services.UserUpdateFields{
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		VKID:        req.VKID,
		InstagramID: req.InstagramID,
		TelegramID:  req.TelegramID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_USER", "user", userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"user": user})
}
