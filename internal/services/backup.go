package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	BackupPrefixAuto       = "auto"
	BackupPrefixManual     = "backup"
	BackupPrefixPreRestore = "pre_restore"

	backupExt = ".db"
)

var sqliteHeader = []byte("SQLite format 3\x00")

var (
	ErrBackupNotFound    = errors.New("backup file not found")
	ErrInvalidBackupName = errors.New("invalid backup file name")
	ErrNotSQLiteFile     = errors.New("uploaded file is not a SQLite database")
)

type BackupFile struct {
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	SizeMB       float64   `json:"size_mb"`
	ModifiedTime time.Time `json:"modified_time"`
}

type BackupService struct {
	db  *gorm.DB
	cfg *config.BackupConfig
}

func NewBackupService(db *gorm.DB, cfg *config.BackupConfig) *BackupService {
	return &BackupService{db: db, cfg: cfg}
}

func (s *BackupService) Dir() string {
	if s.cfg.Dir == "" {
		return "backups"
	}
	return s.cfg.Dir
}

func (s *BackupService) List(ctx context.Context) ([]BackupFile, error) {
	entries, err := os.ReadDir(s.Dir())
	if errors.Is(err, os.ErrNotExist) {
		return []BackupFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	files := make([]BackupFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), backupExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, BackupFile{
			Filename:     e.Name(),
			Size:         info.Size(),
			SizeMB:       float64(info.Size()*100/(1024*1024)) / 100,
			ModifiedTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModifiedTime.After(files[j].ModifiedTime) })
	return files, nil
}

// Path resolves a listed backup name to a file path.
func (s *BackupService) Path(filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename || !strings.HasSuffix(filename, backupExt) {
		return "", ErrInvalidBackupName
	}
	p := filepath.Join(s.Dir(), filename)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrBackupNotFound
		}
		return "", err
	}
	return p, nil
}

func (s *BackupService) newPath(prefix string) (string, error) {
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s", prefix, time.Now().Format("20060102_150405"), backupExt)
	p := filepath.Join(s.Dir(), name)
	if _, err := os.Stat(p); err == nil {
		p = filepath.Join(s.Dir(), fmt.Sprintf("%s_%s_%s%s", prefix, time.Now().Format("20060102_150405"), uuid.NewString()[:8], backupExt))
	}
	return p, nil
}

// Snapshot writes a consistent SQLite copy of the live database. SQLite uses
// VACUUM INTO; other drivers have their tables copied into a fresh file.
func (s *BackupService) Snapshot(ctx context.Context, prefix string) (*BackupFile, error) {
	p, err := s.newPath(prefix)
	if err != nil {
		return nil, err
	}
	if err := s.writeSnapshot(ctx, p); err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("file", filepath.Base(p)).Int64("size", info.Size()).Msg("database snapshot written")
	return &BackupFile{
		Filename:     filepath.Base(p),
		Size:         info.Size(),
		SizeMB:       float64(info.Size()*100/(1024*1024)) / 100,
		ModifiedTime: info.ModTime(),
	}, nil
}

// TempSnapshot writes a snapshot outside the backup directory for a one-off
// download. It is never listed or pruned; the caller must run cleanup.
func (s *BackupService) TempSnapshot(ctx context.Context) (path, name string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "replydesk-snapshot-*")
	if err != nil {
		return "", "", nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	name = fmt.Sprintf("%s_%s%s", BackupPrefixManual, time.Now().Format("20060102_150405"), backupExt)
	path = filepath.Join(dir, name)
	if err := s.writeSnapshot(ctx, path); err != nil {
		cleanup()
		return "", "", nil, err
	}
	return path, name, cleanup, nil
}

func (s *BackupService) writeSnapshot(ctx context.Context, p string) error {
	if s.db.Dialector.Name() == "sqlite" {
		if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", p).Error; err != nil {
			return fmt.Errorf("vacuum into %s: %w", p, err)
		}
		return nil
	}
	if err := s.exportTables(ctx, p); err != nil {
		os.Remove(p)
		return err
	}
	return nil
}

func (s *BackupService) exportTables(ctx context.Context, path string) error {
	dst, err := openSQLiteFile(path)
	if err != nil {
		return err
	}
	defer closeDB(dst)

	if err := models.Migrate(dst); err != nil {
		return fmt.Errorf("prepare snapshot schema: %w", err)
	}
	return dst.Transaction(func(tx *gorm.DB) error {
		return copyTables(s.db.WithContext(ctx), tx)
	})
}

// Prune keeps the newest keep automatic snapshots and removes the rest.
func (s *BackupService) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	files, err := s.List(context.Background())
	if err != nil {
		return 0, err
	}
	removed, seen := 0, 0
	for _, f := range files {
		if !strings.HasPrefix(f.Filename, BackupPrefixAuto+"_") {
			continue
		}
		seen++
		if seen <= keep {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir(), f.Filename)); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		logger.Info().Int("removed", removed).Int("keep", keep).Msg("old automatic backups pruned")
	}
	return removed, nil
}

// Restore replaces every table with the contents of an uploaded SQLite file.
// A pre_restore snapshot is written first so the previous state can be
// recovered from the backup list.
func (s *BackupService) Restore(ctx context.Context, r io.Reader) (*BackupFile, error) {
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.Dir(), "upload-*.tmp")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := checkSQLiteHeader(tmpPath); err != nil {
		return nil, err
	}

	src, err := openSQLiteFile(tmpPath)
	if err != nil {
		return nil, err
	}
	defer closeDB(src)
	// older backups may lack newer columns
	if err := models.Migrate(src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSQLiteFile, err)
	}

	safety, err := s.Snapshot(ctx, BackupPrefixPreRestore)
	if err != nil {
		return nil, fmt.Errorf("safety snapshot: %w", err)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return copyTables(src.WithContext(ctx), tx)
	}); err != nil {
		return safety, fmt.Errorf("restore database: %w", err)
	}
	logger.Info().Str("safety_snapshot", safety.Filename).Msg("database restored from upload")
	PublishAdminEvent(EventRestoreCompleted, safety.Filename, "Database restored; previous data kept in "+safety.Filename, nil)
	return safety, nil
}

func checkSQLiteHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, sqliteHeader) {
		return ErrNotSQLiteFile
	}
	return nil
}

func openSQLiteFile(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// tableCopiers mirrors models.AllModels.
var tableCopiers = []func(src, dst *gorm.DB) error{
	copyTable[models.User],
	copyTable[models.SystemSetting],
	copyTable[models.UserSetting],
	copyTable[models.Account],
	copyTable[models.AIReplySetting],
	copyTable[models.ItemKnowledgeBase],
	copyTable[models.SystemLog],
	copyTable[models.SchedulerLock],
}

func copyTables(src, dst *gorm.DB) error {
	for _, cp := range tableCopiers {
		if err := cp(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// copyTable replaces every row of T in dst with the rows of T in src,
// soft-deleted rows included.
func copyTable[T any](src, dst *gorm.DB) error {
	var rows []T
	if err := src.Unscoped().Find(&rows).Error; err != nil {
		return fmt.Errorf("read %T: %w", *new(T), err)
	}
	if err := dst.Unscoped().Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(T)).Error; err != nil {
		return fmt.Errorf("clear %T: %w", *new(T), err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := dst.CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("write %T: %w", *new(T), err)
	}
	return nil
}

// RunTask is the TaskProcessor for backup tasks.
func (s *BackupService) RunTask(ctx context.Context, task *BackupTask) error {
	prefix := task.Prefix
	if prefix == "" {
		prefix = BackupPrefixAuto
	}
	snap, err := s.Snapshot(ctx, prefix)
	if err != nil {
		PublishAdminEvent(EventBackupFailed, "", "Backup failed", err)
		return err
	}
	PublishAdminEvent(EventBackupCompleted, snap.Filename, "Backup written", nil)
	keep := task.KeepLast
	if keep == 0 {
		keep = s.cfg.KeepLast
	}
	_, err = s.Prune(keep)
	return err
}
