package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	lockAutoBackup = "auto_backup"
	lockLogCleanup = "log_cleanup"

	logCleanupSpec = "30 4 * * *"
)

// Scheduler runs the periodic jobs. Each run takes a database lock keyed by
// its period so replicas sharing a database do not repeat it.
type Scheduler struct {
	cron     *cron.Cron
	db       *gorm.DB
	queue    TaskQueue
	logs     *SystemLogService
	cfg      *config.BackupConfig
	instance string
}

func NewScheduler(db *gorm.DB, queue TaskQueue, logs *SystemLogService, cfg *config.BackupConfig) *Scheduler {
	host, _ := os.Hostname()
	return &Scheduler{
		cron:     cron.New(),
		db:       db,
		queue:    queue,
		logs:     logs,
		cfg:      cfg,
		instance: fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
	}
}

func (s *Scheduler) Start() error {
	if s.cfg.Schedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.Schedule, s.runAutoBackup); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", s.cfg.Schedule, err)
		}
		logger.Info().Str("schedule", s.cfg.Schedule).Int("keep_last", s.cfg.KeepLast).Msg("automatic backups scheduled")
	}
	if _, err := s.cron.AddFunc(logCleanupSpec, s.runLogCleanup); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop prevents new runs and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runAutoBackup() {
	ctx := context.Background()
	now := time.Now()
	ok, err := s.TryLock(ctx, lockAutoBackup, now.Format("2006010215"), time.Hour)
	if err != nil || !ok {
		if err != nil {
			logger.Warn().Err(err).Msg("auto backup lock failed")
		}
		return
	}
	task := &BackupTask{JobID: uuid.NewString(), Prefix: BackupPrefixAuto, KeepLast: s.cfg.KeepLast}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		logger.Error().Err(err).Msg("enqueue auto backup")
	}
}

func (s *Scheduler) runLogCleanup() {
	ctx := context.Background()
	ok, err := s.TryLock(ctx, lockLogCleanup, time.Now().Format("20060102"), 12*time.Hour)
	if err != nil || !ok {
		return
	}
	if _, err := s.logs.Cleanup(ctx); err != nil {
		logger.Error().Err(err).Msg("system log cleanup failed")
	}
}

// TryLock claims name/key for ttl. It returns false when another holder has
// an unexpired claim.
func (s *Scheduler) TryLock(ctx context.Context, name, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	db := s.db.WithContext(ctx)
	if err := db.Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Delete(&models.SchedulerLock{}).Error; err != nil {
		return false, err
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
