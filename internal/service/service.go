package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"magic-workflow/config"
	"magic-workflow/internal/appcore"
	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/deps"
	"magic-workflow/internal/media"
	"magic-workflow/internal/scene"
	"magic-workflow/internal/types"
	"magic-workflow/log"
	"magic-workflow/pkg/openai"
)

// MediaFactory builds the media processor used by one project; dir is where
// its output files go.
type MediaFactory func(dir string) types.MediaProcessor

// Event is pushed to connected clients whenever something about a project
// changes.
type Event struct {
	Type       string       `json:"type"`
	Pid        string       `json:"pid"`
	Op         types.EditOp `json:"op,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	SceneCount int          `json:"scene_count"`
	Time       time.Time    `json:"time"`
}

const (
	EventSceneChanged  = "scenes.changed"
	EventTitlesChanged = "titles.changed"
	EventProjectOpened = "project.opened"
)

type Notifier interface {
	Broadcast(Event)
}

type Options struct {
	Paths         appdirs.Paths
	Scene         scene.Options
	SmartSection  float64
	WatchInterval time.Duration
}

// OptionsFromConfig maps the [workflow] section onto service options.
func OptionsFromConfig(cfg config.Config, paths appdirs.Paths) Options {
	return Options{
		Paths: paths,
		Scene: scene.Options{
			GroupFactor:         cfg.Workflow.GroupFactor,
			NormalizeRounds:     cfg.Workflow.NormalizeMaxRounds,
			DurationConcurrency: cfg.Workflow.DurationConcurrency,
		},
		SmartSection:  cfg.Workflow.SmartSectionSeconds,
		WatchInterval: time.Duration(cfg.Workflow.WatchIntervalSeconds) * time.Second,
	}
}

type Service struct {
	ChatCompleter types.ChatCompleter
	Store         types.ProjectStore
	Runner        appcore.Runner

	newMedia MediaFactory
	opts     Options

	mu        sync.Mutex
	projects  map[string]*Project
	notifier  Notifier
	taskQueue TaskQueue

	ctx    context.Context
	cancel context.CancelFunc
}

func New(chat types.ChatCompleter, store types.ProjectStore, runner appcore.Runner, newMedia MediaFactory, opts Options) *Service {
	if opts.SmartSection <= 0 {
		opts.SmartSection = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		ChatCompleter: chat,
		Store:         store,
		Runner:        runner,
		newMedia:      newMedia,
		opts:          opts,
		projects:      make(map[string]*Project),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// NewService wires the production collaborators from the loaded config.
func NewService(store types.ProjectStore, runner appcore.Runner, bins deps.Binaries, paths appdirs.Paths) *Service {
	chat := openai.NewClient(config.Conf.Llm.BaseUrl, config.Conf.Llm.ApiKey, config.Conf.Llm.Model, config.Conf.App.Proxy)
	log.GetLogger().Info("[Service] llm configured",
		zap.String("base_url", config.Conf.Llm.BaseUrl),
		zap.String("model", chat.Model()))

	newMedia := func(dir string) types.MediaProcessor {
		return media.NewFFmpeg(bins, dir)
	}
	return New(chat, store, runner, newMedia, OptionsFromConfig(config.Conf, paths))
}

func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Service) notify(ev Event) {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	n.Broadcast(ev)
}

// Close stops every project watcher.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	open := s.projects
	s.projects = make(map[string]*Project)
	s.mu.Unlock()
	for _, p := range open {
		p.stop()
	}
}
