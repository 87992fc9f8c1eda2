// Package queue provides background task processing using Asynq.
// It lets long-running generation work survive restarts when Redis is
// available; without it the in-process task runner is used instead.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"magic-workflow/config"
	"magic-workflow/log"
)

// Task type names
const (
	TypeScenesBootstrap = "scenes:bootstrap"
	TypeTitlesGenerate  = "titles:generate"
)

// BootstrapPayload asks for an initial scenes.json for a project.
type BootstrapPayload struct {
	Pid       string `json:"pid"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// TitlesPayload asks for title and tag candidates for a project.
type TitlesPayload struct {
	Pid string `json:"pid"`
}

// QueueConfig holds Redis configuration for Asynq
type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Queue manages task enqueueing and processing
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	config QueueConfig
}

// DefaultConfig returns default queue configuration
func DefaultConfig() QueueConfig {
	return QueueConfig{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		Concurrency: 3,
	}
}

// ConfigFrom maps the [queue] section of the application config.
func ConfigFrom(q config.Queue) QueueConfig {
	cfg := DefaultConfig()
	if q.RedisAddr != "" {
		cfg.RedisAddr = q.RedisAddr
	}
	cfg.RedisPassword = q.RedisPassword
	cfg.RedisDB = q.RedisDB
	if q.Concurrency > 0 {
		cfg.Concurrency = q.Concurrency
	}
	return cfg
}

// NewQueue creates a new Queue instance
func NewQueue(cfg QueueConfig) *Queue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.GetLogger().Error("[Queue] Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	return &Queue{
		client: client,
		server: server,
		config: cfg,
	}
}

// retryDelay backs off exponentially: 10s, 20s, 40s, ...
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return time.Duration(10<<uint(n)) * time.Second
}

// NewBootstrapTask builds the task without enqueueing it.
func NewBootstrapTask(payload BootstrapPayload) (*asynq.Task, error) {
	if payload.Pid == "" {
		return nil, fmt.Errorf("bootstrap task: pid is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeScenesBootstrap, data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewTitlesTask(payload TitlesPayload) (*asynq.Task, error) {
	if payload.Pid == "" {
		return nil, fmt.Errorf("titles task: pid is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeTitlesGenerate, data,
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("low"),
	), nil
}

// EnqueueBootstrap adds a scenes bootstrap task to the queue
func (q *Queue) EnqueueBootstrap(payload BootstrapPayload) error {
	task, err := NewBootstrapTask(payload)
	if err != nil {
		return err
	}
	return q.enqueue(task, payload.Pid)
}

// EnqueueTitles adds a title generation task to the queue
func (q *Queue) EnqueueTitles(payload TitlesPayload) error {
	task, err := NewTitlesTask(payload)
	if err != nil {
		return err
	}
	return q.enqueue(task, payload.Pid)
}

func (q *Queue) enqueue(task *asynq.Task, pid string) error {
	info, err := q.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.GetLogger().Info("[Queue] Task enqueued",
		zap.String("pid", pid),
		zap.String("type", task.Type()),
		zap.String("queue_id", info.ID),
		zap.String("queue", info.Queue))
	return nil
}

// Close gracefully shuts down the queue
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	q.server.Shutdown()
	return nil
}
