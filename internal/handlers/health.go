package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, settings cache and
// backup queue.
type HealthHandler struct {
	db       *gorm.DB
	settings *services.SystemSettingService
	queue    services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, settings *services.SystemSettingService, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, settings: settings, queue: queue}
}

// CheckHealth
// GET /api/health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "replydesk",
		"components": gin.H{
			"database":       dbStatus,
			"settings_cache": h.settings.CacheName(),
			"queue_mode":     queueMode,
		},
	})
}
