package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/pkg/logger"
)

// Worker consumes backup tasks from Redis.
type Worker struct {
	server    *asynq.Server
	processor TaskProcessor
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, processor TaskProcessor) *Worker {
	if !cfg.Enabled {
		return nil
	}
	server := asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
	})
	return &Worker{server: server, processor: processor}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeBackup, w.handleBackupTask)

	w.running = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		logger.Info().Msg("task worker started")
		if err := w.server.Run(mux); err != nil {
			logger.Error().Err(err).Msg("task worker stopped")
		}
	}()
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Info().Msg("task worker shut down")
}

func (w *Worker) handleBackupTask(ctx context.Context, t *asynq.Task) error {
	var task BackupTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode backup task: %v: %w", err, asynq.SkipRetry)
	}
	logger.Info().Str("job", task.JobID).Str("prefix", task.Prefix).Msg("processing backup task")
	return w.processor(ctx, &task)
}
