package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required,max=255"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body for POST /user/change-password and
// PUT /admin/profile/password.
type ChangePasswordRequest struct {
	CurrentPassword         string `json:"current_password" binding:"required"`
	NewPassword             string `json:"new_password" binding:"required,min=6,max=72"`
	NewPasswordConfirmation string `json:"new_password_confirmation" binding:"required,eqfield=NewPassword"`
}

// ProfileRequest is the body for PUT /admin/profile.
type ProfileRequest struct {
	Email    string  `json:"email" binding:"omitempty,email,max=255"`
	FullName string  `json:"full_name" binding:"omitempty,max=255"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	sess, err := h.svc.Register(c.Request.Context(), SignUp{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	h.login(c, false)
}

// AdminLogin handles POST /auth/admin/login.
func (h *Handler) AdminLogin(c *gin.Context) {
	h.login(c, true)
}

func (h *Handler) login(c *gin.Context, adminOnly bool) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, adminOnly)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// Me handles GET /auth/user.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, u)
}

// UpdateProfile handles PUT /admin/profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.ActorFrom(c), Profile{
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OKMessage(c, h.resp.T(c, "profile.updated"), u)
}

// ChangePassword handles POST /user/change-password and PUT /admin/profile/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	err := h.svc.ChangePassword(c.Request.Context(), middleware.ActorFrom(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OKMessage(c, h.resp.T(c, "password.changed"), nil)
}
