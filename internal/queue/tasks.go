// Package queue provides task handlers for Asynq background processing.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"magic-workflow/log"
)

// Generator is the text-generation side of the service the handlers drive.
type Generator interface {
	BootstrapScenes(ctx context.Context, pid string, overwrite bool) error
	GenerateTitleChoices(ctx context.Context, pid string) error
}

// TaskHandlers provides handlers for different task types
type TaskHandlers struct {
	generator Generator
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(gen Generator) *TaskHandlers {
	return &TaskHandlers{generator: gen}
}

// HandleBootstrap generates the initial scenes of a project
func (h *TaskHandlers) HandleBootstrap(ctx context.Context, t *asynq.Task) error {
	var payload BootstrapPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log.GetLogger().Info("[Queue] Processing bootstrap task", zap.String("pid", payload.Pid))
	if err := h.generator.BootstrapScenes(ctx, payload.Pid, payload.Overwrite); err != nil {
		return err
	}
	log.GetLogger().Info("[Queue] Bootstrap task completed", zap.String("pid", payload.Pid))
	return nil
}

// HandleTitles generates title and tag candidates
func (h *TaskHandlers) HandleTitles(ctx context.Context, t *asynq.Task) error {
	var payload TitlesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	log.GetLogger().Info("[Queue] Processing titles task", zap.String("pid", payload.Pid))
	if err := h.generator.GenerateTitleChoices(ctx, payload.Pid); err != nil {
		return err
	}
	log.GetLogger().Info("[Queue] Titles task completed", zap.String("pid", payload.Pid))
	return nil
}

// RegisterHandlers registers all task handlers with the Asynq server mux
func (h *TaskHandlers) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScenesBootstrap, h.HandleBootstrap)
	mux.HandleFunc(TypeTitlesGenerate, h.HandleTitles)
}

// StartWorker starts the Asynq worker with registered handlers. It blocks
// until the server stops.
func StartWorker(q *Queue, gen Generator) error {
	handlers := NewTaskHandlers(gen)

	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	log.GetLogger().Info("[Queue] Starting worker",
		zap.String("redis_addr", q.config.RedisAddr),
		zap.Int("concurrency", q.config.Concurrency))

	return q.server.Run(mux)
}
