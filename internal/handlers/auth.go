package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/response"
)

type AuthHandler struct {
	auth     *services.AuthService
	settings *services.SystemSettingService
}

func NewAuthHandler(auth *services.AuthService, settings *services.SystemSettingService) *AuthHandler {
	return &AuthHandler{auth: auth, settings: settings}
}

// Login handles user login
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	res, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Login successful", gin.H{
		"token":     res.Token,
		"user":      res.User,
		"expire_at": res.ExpireAt,
	})
}

// Register creates a local user
// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}
	user, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Registration successful", gin.H{"user": user})
}

// LoginInfo returns the public login page toggles
// GET /api/login-info
func (h *AuthHandler) LoginInfo(c *gin.Context) {
	info := h.settings.LoginInfo(c.Request.Context())
	response.Raw(c, gin.H{
		"registration_enabled":    info.RegistrationEnabled,
		"show_default_login_info": info.ShowDefaultLoginInfo,
		"login_captcha_enabled":   info.LoginCaptchaEnabled,
		"ldap_enabled":            h.auth.IsLDAPEnabled(),
	})
}

// Me returns the current user
// GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, user)
}

// ChangeAdminPassword
// POST /api/change-admin-password
func (h *AuthHandler) ChangeAdminPassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "current_password and new_password are required")
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), middleware.GetUserID(c), &req); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Password changed")
}
