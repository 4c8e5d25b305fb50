package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/pkg/logger"
)

const TaskTypeBackup = "backup:snapshot"

// BackupTask asks a worker for one database snapshot followed by pruning.
type BackupTask struct {
	JobID    string `json:"job_id"`
	Prefix   string `json:"prefix"`
	KeepLast int    `json:"keep_last"`
}

type TaskProcessor func(context.Context, *BackupTask) error

// TaskQueue hands backup tasks to whoever runs them.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *BackupTask) error
	// IsAsync reports whether tasks run in a separate worker process.
	IsAsync() bool
	Close() error
}

// NewTaskQueue returns an asynq queue when Redis is enabled and reachable, and
// a SyncQueue running processor in-process otherwise.
func NewTaskQueue(cfg *config.RedisConfig, processor TaskProcessor) TaskQueue {
	if cfg.Enabled {
		q, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Info().Str("addr", cfg.Addr).Msg("async task queue initialized")
			return q
		}
		logger.Warn().Err(err).Msg("redis unavailable, falling back to sync task queue")
	}
	return NewSyncQueue(processor)
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisClientOpt(cfg)
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, err
	}
	return &AsyncQueue{client: asynq.NewClient(opt)}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, task *BackupTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue("default"), asynq.MaxRetry(2)}
	if task.JobID != "" {
		opts = append(opts, asynq.TaskID(task.JobID))
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeBackup, payload), opts...)
	if err != nil {
		return err
	}
	logger.Info().Str("id", info.ID).Str("queue", info.Queue).Msg("backup task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue runs each task in its own goroutine inside the server process.
type SyncQueue struct {
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue(processor TaskProcessor) *SyncQueue {
	return &SyncQueue{processor: processor}
}

func (q *SyncQueue) Enqueue(_ context.Context, task *BackupTask) error {
	if q.processor == nil {
		logger.Warn().Str("job", task.JobID).Msg("no task processor set, backup task dropped")
		return nil
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("job", task.JobID).Msg("backup task failed")
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

// Close waits for running tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
