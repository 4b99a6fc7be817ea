package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vitotech/website-api/internal/middleware"
	"github.com/vitotech/website-api/internal/services"
	"github.com/vitotech/website-api/pkg/response"
)

// UserHandler exposes self-service account operations and admin provisioning.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(db *gorm.DB) (*UserHandler, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &UserHandler{users: users}, nil
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type changeUsernameRequest struct {
	Username string `json:"username" validate:"required,max=150"`
}

type createAdminRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"omitempty,max=150"`
	LastName  string `json:"last_name" validate:"omitempty,max=150"`
	Password  string `json:"password" validate:"required,min=6"`
}

// ChangePassword swaps the caller's password after checking the current one.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.users.ChangePassword(requestContext(c), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"detail": "password updated"})
}

// ChangeUsername renames the caller's account.
func (h *UserHandler) ChangeUsername(c *gin.Context) {
	var req changeUsernameRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.ChangeUsername(requestContext(c), middleware.UserID(c), req.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserDTO(user))
}

// CreateAdmin provisions a new administrator account.
func (h *UserHandler) CreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.CreateAdmin(requestContext(c), services.CreateAdminInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toUserDTO(user))
}
