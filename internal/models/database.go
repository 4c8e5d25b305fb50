package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/huangang/replydesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured database without touching the global.
func Open(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." && !strings.HasPrefix(cfg.DSN, "file:") && cfg.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig, debug bool) error {
	db, err := Open(cfg, debug)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// AllModels lists every persisted model in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&SystemSetting{},
		&UserSetting{},
		&Account{},
		&AIReplySetting{},
		&ItemKnowledgeBase{},
		&SystemLog{},
		&SchedulerLock{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultSetting is a seeded system setting.
type DefaultSetting struct {
	Key         string
	Value       string
	Type        string
	Description string
}

// DefaultSettings are inserted on first start. Existing values are kept.
var DefaultSettings = []DefaultSetting{
	{"registration_enabled", "true", "bool", "Allow new users to register"},
	{"show_default_login_info", "true", "bool", "Show the default admin credentials on the login page"},
	{"login_captcha_enabled", "false", "bool", "Require a captcha on login"},
	{"ai_api_url", "https://dashscope.aliyuncs.com/compatible-mode/v1", "string", "AI provider base URL"},
	{"ai_api_key", "", "string", "AI provider API key"},
	{"ai_model", "qwen-plus", "string", "AI model name"},
	{"smtp_server", "", "string", "SMTP server host"},
	{"smtp_port", "587", "int", "SMTP server port"},
	{"smtp_user", "", "string", "SMTP user name"},
	{"smtp_password", "", "string", "SMTP password"},
	{"smtp_from", "", "string", "Sender address"},
	{"smtp_use_tls", "true", "bool", "Upgrade the SMTP connection with STARTTLS"},
	{"smtp_use_ssl", "false", "bool", "Connect to SMTP over implicit TLS"},
	{"qq_reply_secret_key", "", "string", "Shared secret for the QQ reply webhook"},
	{"log_retention_days", "30", "int", "System log retention in days"},
}

func SeedDefaultSettings(db *gorm.DB) error {
	for _, d := range DefaultSettings {
		row := SystemSetting{Key: d.Key, Value: d.Value, Type: d.Type, Description: d.Description}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("seed %s: %w", d.Key, err)
		}
	}
	return nil
}

func SeedDefaultData() error {
	return SeedDefaultSettings(DB)
}

// SettingType returns the seeded type of key, "string" for unknown keys.
func SettingType(key string) string {
	for _, d := range DefaultSettings {
		if d.Key == key {
			return d.Type
		}
	}
	return "string"
}
