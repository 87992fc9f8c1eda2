package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"magic-workflow/internal/appcore"
	"magic-workflow/internal/project"
	"magic-workflow/internal/queue"
	"magic-workflow/internal/types"
	"magic-workflow/log"
	apperrors "magic-workflow/pkg/errors"
	"magic-workflow/pkg/util"
)

// SettingScript is the project setting holding the narration script scenes
// are generated from.
const SettingScript = "script"

const generateAttempts = 3

// TaskQueue hands generation work to a durable queue.
type TaskQueue interface {
	EnqueueBootstrap(queue.BootstrapPayload) error
	EnqueueTitles(queue.TitlesPayload) error
}

var _ queue.Generator = (*Service)(nil)

func (s *Service) SetTaskQueue(q TaskQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskQueue = q
}

func (s *Service) currentQueue() TaskQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskQueue
}

// GenerateJSON asks the model and decodes the JSON found in its answer into
// v. Answers that do not decode are retried.
func (s *Service) GenerateJSON(systemPrompt, userPrompt string, v any) error {
	if s.ChatCompleter == nil {
		return apperrors.Newf(apperrors.CodeLLMFailed, "Text generation failed", "no llm configured")
	}
	var lastErr error
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		answer, err := s.ChatCompleter.ChatCompletion(systemPrompt, userPrompt)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeLLMFailed, "Text generation failed", err)
		}
		if lastErr = json.Unmarshal([]byte(util.ExtractJsonFromText(answer)), v); lastErr == nil {
			return nil
		}
		log.GetLogger().Warn("[Service] llm answer is not valid JSON",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return apperrors.WrapWithDetail(apperrors.CodeLLMFailed, "Text generation failed", "answer is not valid JSON", lastErr)
}

// BootstrapScenes generates scenes.json from the project's script. An
// existing non-empty collection is kept unless overwrite is set.
func (s *Service) BootstrapScenes(ctx context.Context, pid string, overwrite bool) error {
	p, err := s.OpenProject(pid)
	if err != nil {
		return err
	}
	if p.Scenes.Len() > 0 && !overwrite {
		log.GetLogger().Info("[Service] scenes already present, bootstrap skipped", zap.String("pid", pid))
		return nil
	}
	script, _ := p.Ctx.Setting(SettingScript)
	text, _ := script.(string)
	if strings.TrimSpace(text) == "" {
		return apperrors.Newf(apperrors.CodeInvalidParams, "Project has no script", "pid %s", pid)
	}

	var scenes []*types.Scene
	prompt := fmt.Sprintf(types.ScenesBootstrapPrompt, p.Scenes.GroupFactor(), languageOf(p.Ctx))
	if err = s.GenerateJSON(prompt, text, &scenes); err != nil {
		return err
	}
	if len(scenes) == 0 {
		return apperrors.Newf(apperrors.CodeLLMFailed, "Text generation failed", "no scenes generated")
	}

	_, err = s.mutate(ctx, p, "bootstrap", map[string]any{"count": len(scenes)}, func(context.Context) (any, error) {
		if p.Scenes.Len() > 0 && !overwrite {
			return nil, nil
		}
		return nil, p.Scenes.Replace(scenes, types.EditOpBootstrap)
	})
	return err
}

// GenerateTitleChoices asks the model for titles and tags for the narration
// and writes them to titles_choices.json.
func (s *Service) GenerateTitleChoices(ctx context.Context, pid string) error {
	p, err := s.OpenProject(pid)
	if err != nil {
		return err
	}
	narration := narrationOf(p.Scenes.Scenes())
	if narration == "" {
		return apperrors.Newf(apperrors.CodeInvalidParams, "Project has no narration", "pid %s", pid)
	}

	var choices types.TitleChoices
	if err = s.GenerateJSON(fmt.Sprintf(types.TitleChoicesPrompt, languageOf(p.Ctx)), narration, &choices); err != nil {
		return err
	}
	if err = p.Ctx.SaveTitleChoices(choices); err != nil {
		return err
	}
	s.notify(Event{Type: EventTitlesChanged, Pid: pid, SceneCount: p.Scenes.Len()})
	return nil
}

// RequestBootstrap queues scene generation and returns without waiting.
func (s *Service) RequestBootstrap(pid string, overwrite bool) error {
	if q := s.currentQueue(); q != nil {
		return q.EnqueueBootstrap(queue.BootstrapPayload{Pid: pid, Overwrite: overwrite})
	}
	return s.background(pid, "bootstrap", func(ctx context.Context) error {
		return s.BootstrapScenes(ctx, pid, overwrite)
	})
}

// RequestTitles queues title generation and returns without waiting.
func (s *Service) RequestTitles(pid string) error {
	if q := s.currentQueue(); q != nil {
		return q.EnqueueTitles(queue.TitlesPayload{Pid: pid})
	}
	return s.background(pid, "titles", func(ctx context.Context) error {
		return s.GenerateTitleChoices(ctx, pid)
	})
}

func (s *Service) background(pid, name string, fn func(context.Context) error) error {
	if s.Runner == nil {
		go func() {
			if err := fn(s.ctx); err != nil {
				log.GetLogger().Error("[Service] background job failed", zap.String("pid", pid), zap.String("name", name), zap.Error(err))
			}
		}()
		return nil
	}
	_, err := s.Runner.Submit(s.ctx, appcore.JobRequest{
		Kind:      appcore.JobKindBackground,
		Name:      name,
		ProjectID: pid,
		Run: func(ctx context.Context, _ appcore.ProgressFunc) (any, error) {
			return nil, fn(ctx)
		},
	})
	return err
}

func (s *Service) TitleChoices(pid string) (types.TitleChoices, error) {
	p, err := s.OpenProject(pid)
	if err != nil {
		return types.TitleChoices{}, err
	}
	return p.Ctx.TitleChoices()
}

// ApplyTitle stores the chosen title and tags in the project config.
func (s *Service) ApplyTitle(pid, title string, tags []string) error {
	p, err := s.OpenProject(pid)
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return apperrors.Newf(apperrors.CodeInvalidParams, "Title is required", "pid %s", pid)
	}
	_, err = s.mutate(context.Background(), p, "title", map[string]any{"title": title}, func(context.Context) (any, error) {
		return nil, p.Ctx.ApplyTitle(title, tags)
	})
	if err == nil {
		s.notify(Event{Type: EventTitlesChanged, Pid: pid, SceneCount: p.Scenes.Len()})
	}
	return err
}

func languageOf(pc *project.Context) string {
	if pc.Language == "" {
		return "English"
	}
	return pc.Language
}

func narrationOf(scenes []*types.Scene) string {
	parts := make([]string, 0, len(scenes))
	for _, sc := range scenes {
		if text := strings.TrimSpace(sc.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
