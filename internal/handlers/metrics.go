package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

type MetricsHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	backups *services.BackupService
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, backups *services.BackupService) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, backups: backups}
}

// Metrics writes gauges in the Prometheus text format.
// GET /api/metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeGauge(&b, "replydesk_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "replydesk_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "replydesk_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "replydesk_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "replydesk_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "replydesk_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
	}

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1
	}
	writeGauge(&b, "replydesk_queue_async_enabled", "Whether backups run on the Redis queue (1=yes, 0=no)", queueAsync)
	writeGauge(&b, "replydesk_event_clients", "Connected admin event streams", float64(services.GetEventHub().ClientCount()))

	db := h.db.WithContext(c.Request.Context())
	var users, accounts, aiEnabled, errors24h int64
	db.Model(&models.User{}).Where("is_active = ?", true).Count(&users)
	db.Model(&models.Account{}).Count(&accounts)
	db.Model(&models.AIReplySetting{}).Where("ai_enabled = ?", true).Count(&aiEnabled)
	db.Model(&models.SystemLog{}).Where("level = ? AND created_at >= ?", "error", time.Now().Add(-24*time.Hour)).Count(&errors24h)
	writeGauge(&b, "replydesk_users_active", "Number of active users", float64(users))
	writeGauge(&b, "replydesk_accounts_total", "Number of messaging accounts", float64(accounts))
	writeGauge(&b, "replydesk_accounts_ai_enabled", "Accounts with AI replies enabled", float64(aiEnabled))
	writeGauge(&b, "replydesk_system_errors_24h", "Error log entries in the last 24 hours", float64(errors24h))

	if files, err := h.backups.List(c.Request.Context()); err == nil {
		writeGauge(&b, "replydesk_backups_total", "Number of stored database backups", float64(len(files)))
		if len(files) > 0 {
			writeGauge(&b, "replydesk_backup_last_timestamp_seconds", "Modification time of the newest backup", float64(files[0].ModifiedTime.Unix()))
		}
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
