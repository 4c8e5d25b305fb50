package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/logger"
	"github.com/huangang/replydesk/pkg/response"
)

const maxUserBackupSize = 10 << 20

type BackupHandler struct {
	backups   *services.BackupService
	userData  *services.UserBackupService
	auth      *services.AuthService
	settings  *services.SystemSettingService
	maxUpload int64
}

// NewBackupHandler wires the backup endpoints. maxUploadMB caps database
// uploads; 0 leaves them unlimited.
func NewBackupHandler(backups *services.BackupService, userData *services.UserBackupService, auth *services.AuthService, settings *services.SystemSettingService, maxUploadMB int64) *BackupHandler {
	return &BackupHandler{
		backups:   backups,
		userData:  userData,
		auth:      auth,
		settings:  settings,
		maxUpload: maxUploadMB << 20,
	}
}

// List
// GET /api/admin/backup/list
func (h *BackupHandler) List(c *gin.Context) {
	files, err := h.backups.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, gin.H{"backups": files, "total": len(files)})
}

// Download streams a stored backup, or a fresh snapshot when no filename is
// given. The fresh snapshot is removed once it has been sent.
// GET /api/admin/backup/download
func (h *BackupHandler) Download(c *gin.Context) {
	filename := c.Query("filename")
	if filename == "" {
		path, name, cleanup, err := h.backups.TempSnapshot(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		defer cleanup()
		c.FileAttachment(path, name)
		return
	}
	path, err := h.backups.Path(filename)
	if err != nil {
		fail(c, err)
		return
	}
	c.FileAttachment(path, filename)
}

// Upload restores the database from a SQLite file.
// POST /api/admin/backup/upload
func (h *BackupHandler) Upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	fh, err := c.FormFile("backup_file")
	if err != nil {
		response.BadRequest(c, "backup_file is required")
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".db") {
		response.BadRequest(c, "backup file must be a .db file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	safety, err := h.backups.Restore(ctx, f)
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := h.settings.Reload(ctx); err != nil {
		logger.Warn().Err(err).Msg("reload settings after restore")
	}
	logger.Info().Str("file", filepath.Base(fh.Filename)).Str("user", middleware.GetUsername(c)).Msg("database restored")
	response.Success(c, "Database restored", gin.H{"safety_backup": safety.Filename})
}

// Export downloads the caller's settings, accounts and AI settings as JSON.
// GET /api/backup/export
func (h *BackupHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.auth.GetUserByID(ctx, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.userData.Export(ctx, user)
	if err != nil {
		fail(c, err)
		return
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fail(c, err)
		return
	}
	name := fmt.Sprintf("replydesk_%s_%s.json", user.Username, time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/json", body)
}

// Import merges a JSON export into the caller's data.
// POST /api/backup/import
func (h *BackupHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".json") {
		response.BadRequest(c, "backup file must be a .json file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	var data services.UserBackup
	if err := json.NewDecoder(io.LimitReader(f, maxUserBackupSize)).Decode(&data); err != nil {
		response.BadRequest(c, "backup file is not valid JSON")
		return
	}

	ctx := c.Request.Context()
	user, err := h.auth.GetUserByID(ctx, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.userData.Import(ctx, user, &data)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, fmt.Sprintf("Imported %d settings, %d accounts, %d AI settings", res.UserSettings, res.Accounts, res.AIReplySettings), gin.H{"result": res})
}
