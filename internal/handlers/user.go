package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/pkg/response"
	"gorm.io/gorm"
)

// UserHandler is the admin view over user accounts.
type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// List pages through users, optionally filtered by username, role or auth type.
// GET /api/admin/users
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if username := c.Query("username"); username != "" {
		query = query.Where("username LIKE ?", "%"+username+"%")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if authType := c.Query("auth_type"); authType != "" {
		query = query.Where("auth_type = ?", authType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, err)
		return
	}
	var users []models.User
	if err := query.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, gin.H{
		"items":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type updateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Email    *string `json:"email"`
}

// Update changes another user's role, active flag or email.
// PUT /api/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	user, ok := h.target(c, "cannot modify your own account")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updates := map[string]interface{}{}
	if req.Role != nil {
		if *req.Role != models.RoleAdmin && *req.Role != models.RoleUser {
			response.BadRequest(c, "role must be 'admin' or 'user'")
			return
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if len(updates) == 0 {
		response.BadRequest(c, "no fields to update")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "User "+user.Username+" updated")
}

// Delete soft-deletes another user.
// DELETE /api/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	user, ok := h.target(c, "cannot delete your own account")
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(user).Error; err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "User "+user.Username+" deleted")
}

// target loads the :id user, refusing the caller's own account.
func (h *UserHandler) target(c *gin.Context, selfMsg string) (*models.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return nil, false
	}
	if uint(id) == middleware.GetUserID(c) {
		response.BadRequest(c, selfMsg)
		return nil, false
	}
	var user models.User
	err = h.db.WithContext(c.Request.Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c, "user not found")
		return nil, false
	}
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return &user, true
}
