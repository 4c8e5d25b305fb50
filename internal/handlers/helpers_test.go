package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handlers-test-secret")
}

type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	settings *services.SystemSettingService
	backups  *services.BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := models.SeedDefaultSettings(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := config.DefaultConfig()
	cfg.Backup.Dir = filepath.Join(dir, "backups")
	cfg.Backup.MaxUpload = 8
	cfg.OpenAI.APIKey = ""

	settings := services.NewSystemSettingService(db, services.NewMemorySettingsCache())
	auth := services.NewAuthService(db, cfg, settings)
	if err := auth.CreateAdminIfNotExists(t.Context()); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	accounts := services.NewAccountService(db)
	replies := services.NewAIReplyService(db)
	backups := services.NewBackupService(db, &cfg.Backup)
	queue := services.NewSyncQueue(backups.RunTask)
	t.Cleanup(func() { queue.Close() })

	authH := NewAuthHandler(auth, settings)
	settingH := NewSystemSettingHandler(settings)
	userSettingH := NewUserSettingHandler(services.NewUserSettingService(db))
	accountH := NewAccountHandler(accounts, replies, services.NewAIService(db, &cfg.OpenAI, settings))
	emailH := NewEmailHandler(services.NewEmailService(settings))
	backupH := NewBackupHandler(backups, services.NewUserBackupService(db), auth, settings, cfg.Backup.MaxUpload)
	logH := NewSystemLogHandler(services.NewSystemLogService(db, settings, cfg.Log.RetentionDays))
	userH := NewUserHandler(db)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/health", NewHealthHandler(db, settings, queue).CheckHealth)
	api.POST("/login", authH.Login)
	api.POST("/register", authH.Register)
	api.GET("/login-info", authH.LoginInfo)

	user := api.Group("", middleware.AuthRequired())
	user.GET("/me", authH.Me)
	user.GET("/accounts", accountH.List)
	user.GET("/ai-reply-settings", accountH.GetAISettings)
	user.PUT("/ai-reply-settings", accountH.UpdateAISettings)
	user.POST("/ai-reply-test/:accountId", accountH.TestReply)
	kbH := NewKnowledgeBaseHandler(accounts, services.NewKnowledgeBaseService(db))
	user.GET("/items/:accountId/:itemId/knowledge-base", kbH.Get)
	user.PUT("/items/:accountId/:itemId/knowledge-base", kbH.Update)
	user.GET("/user-settings", userSettingH.List)
	user.GET("/user-settings/:key", userSettingH.Get)
	user.PUT("/user-settings/:key", userSettingH.Update)
	user.GET("/backup/export", backupH.Export)
	user.POST("/backup/import", backupH.Import)

	admin := api.Group("", middleware.AuthRequired(), middleware.AdminRequired())
	admin.POST("/accounts", accountH.Create)
	admin.GET("/system-settings", settingH.List)
	admin.GET("/system-settings/:key", settingH.Get)
	admin.PUT("/system-settings/:key", settingH.Update)
	admin.POST("/test-email", emailH.SendTest)
	admin.POST("/change-admin-password", authH.ChangeAdminPassword)
	admin.POST("/admin/reload-cache", settingH.ReloadCache)
	admin.GET("/admin/backup/list", backupH.List)
	admin.GET("/admin/backup/download", backupH.Download)
	admin.POST("/admin/backup/upload", backupH.Upload)
	admin.GET("/admin/system-logs", logH.List)
	admin.GET("/admin/users", userH.List)
	admin.PUT("/admin/users/:id", userH.Update)
	admin.DELETE("/admin/users/:id", userH.Delete)
	admin.GET("/metrics", NewMetricsHandler(db, queue, backups).Metrics)
	admin.GET("/admin/events", NewEventHandler(services.GetEventHub()).Stream)

	return &testEnv{db: db, router: r, settings: settings, backups: backups}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			r = bytes.NewBufferString(raw)
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatal(err)
			}
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	return decode(t, w)["token"].(string)
}

func (e *testEnv) adminToken(t *testing.T) string {
	return e.login(t, services.DefaultAdminUsername, services.DefaultAdminPassword)
}

// userToken creates a plain user and returns its id and token.
func (e *testEnv) userToken(t *testing.T, username string) (uint, string) {
	t.Helper()
	hash, err := utils.HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{Username: username, Password: hash, Role: models.RoleUser, AuthType: models.AuthLocal, IsActive: true}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID, e.login(t, username, "secret123")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}
