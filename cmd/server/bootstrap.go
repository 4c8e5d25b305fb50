package main

import (
	"context"
	"io"

	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/handlers"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/internal/utils"
	"github.com/huangang/replydesk/pkg/logger"
)

// appServices holds the initialized services and handlers.
type appServices struct {
	cache     services.SettingsCache
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.Scheduler

	authHandler      *handlers.AuthHandler
	systemSettings   *handlers.SystemSettingHandler
	userSettings     *handlers.UserSettingHandler
	accountHandler   *handlers.AccountHandler
	knowledgeBase    *handlers.KnowledgeBaseHandler
	emailHandler     *handlers.EmailHandler
	backupHandler    *handlers.BackupHandler
	systemLogHandler *handlers.SystemLogHandler
	userHandler      *handlers.UserHandler
	healthHandler    *handlers.HealthHandler
	metricsHandler   *handlers.MetricsHandler
	eventHandler     *handlers.EventHandler
}

// bootstrap initializes the database, services, queue and schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default settings")
	}

	db := models.GetDB()
	services.InitSystemLogger(db)

	cache := services.NewSettingsCache(&cfg.Redis)
	settings := services.NewSystemSettingService(db, cache)
	auth := services.NewAuthService(db, cfg, settings)
	if err := auth.CreateAdminIfNotExists(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	accounts := services.NewAccountService(db)
	replies := services.NewAIReplyService(db)
	backups := services.NewBackupService(db, &cfg.Backup)
	logs := services.NewSystemLogService(db, settings, cfg.Log.RetentionDays)

	// Redis when enabled, otherwise backups run in-process
	taskQueue := services.NewTaskQueue(&cfg.Redis, backups.RunTask)
	worker := services.NewWorker(&cfg.Redis, backups.RunTask)
	if worker != nil {
		worker.Start()
	}

	scheduler := services.NewScheduler(db, taskQueue, logs, &cfg.Backup)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	return &appServices{
		cache:     cache,
		taskQueue: taskQueue,
		worker:    worker,
		scheduler: scheduler,

		authHandler:      handlers.NewAuthHandler(auth, settings),
		systemSettings:   handlers.NewSystemSettingHandler(settings),
		userSettings:     handlers.NewUserSettingHandler(services.NewUserSettingService(db)),
		accountHandler:   handlers.NewAccountHandler(accounts, replies, services.NewAIService(db, &cfg.OpenAI, settings)),
		knowledgeBase:    handlers.NewKnowledgeBaseHandler(accounts, services.NewKnowledgeBaseService(db)),
		emailHandler:     handlers.NewEmailHandler(services.NewEmailService(settings)),
		backupHandler:    handlers.NewBackupHandler(backups, services.NewUserBackupService(db), auth, settings, cfg.Backup.MaxUpload),
		systemLogHandler: handlers.NewSystemLogHandler(logs),
		userHandler:      handlers.NewUserHandler(db),
		healthHandler:    handlers.NewHealthHandler(db, settings, taskQueue),
		metricsHandler:   handlers.NewMetricsHandler(db, taskQueue, backups),
		eventHandler:     handlers.NewEventHandler(services.GetEventHub()),
	}
}

// shutdown stops the scheduler before the queue so no task is enqueued on a
// closed queue.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if c, ok := s.cache.(io.Closer); ok {
		c.Close()
	}
	if sqlDB, err := models.GetDB().DB(); err == nil {
		sqlDB.Close()
	}
}
