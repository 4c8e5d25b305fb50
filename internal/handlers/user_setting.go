package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/response"
)

type UserSettingHandler struct {
	settings *services.UserSettingService
}

func NewUserSettingHandler(settings *services.UserSettingService) *UserSettingHandler {
	return &UserSettingHandler{settings: settings}
}

// GET /api/user-settings
func (h *UserSettingHandler) List(c *gin.Context) {
	values, err := h.settings.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, values)
}

// GET /api/user-settings/:key
func (h *UserSettingHandler) Get(c *gin.Context) {
	row, err := h.settings.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("key"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, gin.H{"key": row.Key, "value": row.Value, "description": row.Description})
}

type updateUserSettingRequest struct {
	Value       *string `json:"value"`
	Description string  `json:"description"`
}

// PUT /api/user-settings/:key
func (h *UserSettingHandler) Update(c *gin.Context) {
	var req updateUserSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		response.BadRequest(c, `body must be {"value": "<string>"}`)
		return
	}
	key := c.Param("key")
	if err := h.settings.Set(c.Request.Context(), middleware.GetUserID(c), key, *req.Value, req.Description); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Setting "+key+" updated")
}
