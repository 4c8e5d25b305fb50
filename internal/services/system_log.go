package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/pkg/logger"
	"gorm.io/gorm"
)

var auditDB *gorm.DB

// InitSystemLogger sets the database the package-level Log* helpers write to.
func InitSystemLogger(db *gorm.DB) {
	auditDB = db
}

type LogEntry struct {
	Module    string
	Action    string
	Message   string
	UserID    *uint
	IP        string
	RequestID string
	Extra     interface{}
}

func LogInfo(e LogEntry)    { writeLog("info", e) }
func LogWarning(e LogEntry) { writeLog("warning", e) }
func LogError(e LogEntry)   { writeLog("error", e) }

func writeLog(level string, e LogEntry) {
	if auditDB == nil {
		return
	}
	var extra string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}
	row := &models.SystemLog{
		Level:     level,
		Module:    e.Module,
		Action:    e.Action,
		Message:   e.Message,
		UserID:    e.UserID,
		IP:        e.IP,
		RequestID: e.RequestID,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if err := auditDB.Create(row).Error; err != nil {
		logger.Warn().Err(err).Str("module", e.Module).Str("action", e.Action).Msg("write system log")
	}
}

type SystemLogService struct {
	db       *gorm.DB
	settings *SystemSettingService
	fallback int
}

func NewSystemLogService(db *gorm.DB, settings *SystemSettingService, defaultRetentionDays int) *SystemLogService {
	return &SystemLogService{db: db, settings: settings, fallback: defaultRetentionDays}
}

type SystemLogListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Level    string `form:"level"`
	Module   string `form:"module"`
	Search   string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(ctx context.Context, req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.SystemLog
	if err := query.Order("created_at DESC").Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}
	return &SystemLogListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *SystemLogService) Modules(ctx context.Context) ([]string, error) {
	var modules []string
	err := s.db.WithContext(ctx).Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error
	return modules, err
}

// RetentionDays reads log_retention_days; 0 disables cleanup.
func (s *SystemLogService) RetentionDays(ctx context.Context) int {
	if s.settings == nil {
		return s.fallback
	}
	return s.settings.GetInt(ctx, "log_retention_days", s.fallback)
}

// Cleanup deletes logs older than the retention window and returns how many
// rows went away.
func (s *SystemLogService) Cleanup(ctx context.Context) (int64, error) {
	days := s.RetentionDays(ctx)
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info().Int64("deleted", res.RowsAffected).Int("retention_days", days).Msg("system logs cleaned up")
	}
	return res.RowsAffected, nil
}
