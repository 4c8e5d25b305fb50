package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/response"
)

type SystemLogHandler struct {
	logs *services.SystemLogService
}

func NewSystemLogHandler(logs *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{logs: logs}
}

// GET /api/admin/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	resp, err := h.logs.List(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, resp)
}

// GET /api/admin/system-logs/modules
func (h *SystemLogHandler) Modules(c *gin.Context) {
	modules, err := h.logs.Modules(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, gin.H{"modules": modules})
}

// Cleanup removes entries older than log_retention_days.
// POST /api/admin/system-logs/cleanup
func (h *SystemLogHandler) Cleanup(c *gin.Context) {
	n, err := h.logs.Cleanup(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, fmt.Sprintf("Removed %d log entries", n), gin.H{"deleted": n})
}
