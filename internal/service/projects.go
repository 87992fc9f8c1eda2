package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"magic-workflow/internal/appcore"
	"magic-workflow/internal/project"
	"magic-workflow/internal/scene"
	"magic-workflow/internal/storage"
	"magic-workflow/internal/taskrunner"
	"magic-workflow/internal/types"
	"magic-workflow/log"
	apperrors "magic-workflow/pkg/errors"
)

// Project is an open project: its context and its scene collection.
type Project struct {
	Ctx    *project.Context
	Scenes *scene.Collection
	Media  types.MediaProcessor

	cancel context.CancelFunc
	done   chan struct{}
}

func (p *Project) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// CreateProject writes a new `<pid>.config`. script, when not empty, is kept
// in the project settings for scene bootstrap.
func (s *Service) CreateProject(pid, language, channel, projectPath, script string) (*project.Context, error) {
	if _, err := project.Load(s.Store, s.opts.Paths, pid); err == nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidParams, "Project already exists", "pid %s", pid)
	} else if !apperrors.Is(err, apperrors.CodeProjectNotFound) {
		return nil, err
	}

	pc, err := project.New(s.Store, s.opts.Paths, pid, language, channel, projectPath)
	if err != nil {
		return nil, err
	}
	if script != "" {
		pc.SetSetting(SettingScript, script)
	}
	if err = pc.Save(); err != nil {
		return nil, err
	}
	log.GetLogger().Info("[Service] project created", zap.String("pid", pid), zap.String("path", pc.ProjectPath))
	return pc, nil
}

// OpenProject returns the open project pid, opening it first if needed. A
// project without scenes.json starts with an empty collection.
func (s *Service) OpenProject(pid string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.projects[pid]; ok {
		return p, nil
	}

	pc, err := project.Load(s.Store, s.opts.Paths, pid)
	if err != nil {
		return nil, err
	}
	mp := s.newMedia(pc.MediaDir())
	collection, err := scene.Load(pc.ScenesPath(), s.Store, mp, s.opts.Scene)
	if apperrors.Is(err, apperrors.CodeFileNotFound) {
		collection, err = scene.New(pc.ScenesPath(), s.Store, mp, s.opts.Scene), nil
	}
	if err != nil {
		return nil, err
	}

	p := &Project{Ctx: pc, Scenes: collection, Media: mp}
	collection.OnMutation(func(ev scene.MutationEvent) { s.recordEdit(pid, ev) })
	s.startWatcher(p)
	s.projects[pid] = p

	s.indexProject(pc, collection.Len())
	log.GetLogger().Info("[Service] project opened",
		zap.String("pid", pid),
		zap.String("scenes", pc.ScenesPath()),
		zap.Int("scene_count", collection.Len()))
	go s.notify(Event{Type: EventProjectOpened, Pid: pid, SceneCount: collection.Len()})
	return p, nil
}

// CloseProject stops watching pid and drops it from the open set.
func (s *Service) CloseProject(pid string) {
	s.mu.Lock()
	p, ok := s.projects[pid]
	delete(s.projects, pid)
	s.mu.Unlock()
	if ok {
		p.stop()
	}
}

func (s *Service) startWatcher(p *Project) {
	ctx, cancel := context.WithCancel(s.ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	w := scene.NewWatcher(p.Scenes, s.opts.WatchInterval, func(ctx context.Context) error {
		// reloads go through the supervisor like every other write
		_, err := s.mutate(ctx, p, "reload", nil, func(context.Context) (any, error) {
			return nil, p.Scenes.Reload()
		})
		return err
	})
	go func() {
		defer close(p.done)
		w.Run(ctx)
	}()
}

func (s *Service) indexProject(pc *project.Context, sceneCount int) {
	if storage.DB == nil {
		return
	}
	record := &types.ProjectRecord{
		Pid:         pc.Pid,
		Title:       pc.Title,
		Language:    pc.Language,
		Channel:     pc.Channel,
		ProjectPath: pc.ProjectPath,
		SceneCount:  sceneCount,
		OpenedAt:    time.Now(),
	}
	if err := storage.SaveProject(record); err != nil {
		log.GetLogger().Warn("[Service] index project failed", zap.String("pid", pc.Pid), zap.Error(err))
	}
}

func (s *Service) recordEdit(pid string, ev scene.MutationEvent) {
	if storage.DB != nil {
		edit := &types.EditRecord{Pid: pid, Op: ev.Op, Detail: ev.Detail, SceneCount: ev.SceneCount}
		if err := storage.AppendEdit(edit); err != nil {
			log.GetLogger().Warn("[Service] record edit failed", zap.String("pid", pid), zap.Error(err))
		}
		if err := storage.TouchProject(pid, ev.SceneCount); err != nil {
			log.GetLogger().Warn("[Service] touch project failed", zap.String("pid", pid), zap.Error(err))
		}
	}
	s.notify(Event{Type: EventSceneChanged, Pid: pid, Op: ev.Op, Detail: ev.Detail, SceneCount: ev.SceneCount})
}

// RecentProjects lists indexed projects, most recently opened first.
func (s *Service) RecentProjects(limit int) ([]types.ProjectRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	projects, err := storage.RecentProjects(limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDBError, "Database error", err)
	}
	return projects, nil
}

// Edits lists the newest structural edits of pid.
func (s *Service) Edits(pid string, limit int) ([]types.EditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	edits, err := storage.ListEdits(pid, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDBError, "Database error", err)
	}
	return edits, nil
}

// mutate runs fn as a mutation job of p and waits for it. Mutations of all
// projects go through the same single supervisor.
func (s *Service) mutate(ctx context.Context, p *Project, name string, args map[string]any, fn func(context.Context) (any, error)) (any, error) {
	return s.run(ctx, appcore.JobKindMutation, p.Ctx.Pid, name, args, fn)
}

func (s *Service) run(ctx context.Context, kind appcore.JobKind, pid, name string, args map[string]any, fn func(context.Context) (any, error)) (any, error) {
	if s.Runner == nil {
		return fn(ctx)
	}
	h, err := s.Runner.Submit(ctx, appcore.JobRequest{
		Kind:      kind,
		Name:      name,
		ProjectID: pid,
		Args:      args,
		Run: func(ctx context.Context, _ appcore.ProgressFunc) (any, error) {
			return fn(ctx)
		},
	})
	if err != nil {
		return nil, err
	}
	res, err := taskrunner.Await(ctx, h)
	return res.Output, err
}
