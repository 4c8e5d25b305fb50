package services

import (
	"path/filepath"
	"testing"

	"github.com/huangang/replydesk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
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
	t.Cleanup(func() { closeDB(db) })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Role: role, AuthType: models.AuthLocal, IsActive: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func createAccount(t *testing.T, db *gorm.DB, id string, userID uint) {
	t.Helper()
	if err := db.Create(&models.Account{ID: id, UserID: userID, Enabled: true}).Error; err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}
