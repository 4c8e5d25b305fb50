package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/response"
)

type SystemSettingHandler struct {
	settings *services.SystemSettingService
}

func NewSystemSettingHandler(settings *services.SystemSettingService) *SystemSettingHandler {
	return &SystemSettingHandler{settings: settings}
}

// List returns every setting as key -> stored string
// GET /api/system-settings
func (h *SystemSettingHandler) List(c *gin.Context) {
	values, err := h.settings.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, values)
}

// Get
// GET /api/system-settings/:key
func (h *SystemSettingHandler) Get(c *gin.Context) {
	key := c.Param("key")
	value, err := h.settings.Get(c.Request.Context(), key)
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, gin.H{"key": key, "value": value})
}

type updateSettingRequest struct {
	Value *string `json:"value"`
}

// Update writes one setting. The body is {"value":"<string>"}; typed values
// are rejected so every client sends the same wire form.
// PUT /api/system-settings/:key
func (h *SystemSettingHandler) Update(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		response.BadRequest(c, `body must be {"value": "<string>"}`)
		return
	}
	key := c.Param("key")
	if err := h.settings.Set(c.Request.Context(), key, *req.Value); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Setting "+key+" updated")
}

// ReloadCache
// POST /api/admin/reload-cache
func (h *SystemSettingHandler) ReloadCache(c *gin.Context) {
	n, err := h.settings.Reload(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Settings cache reloaded", gin.H{"count": n, "cache": h.settings.CacheName()})
}
