package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"magic-workflow/internal/appdirs"
	"magic-workflow/log"
)

type App struct {
	Proxy       string   `toml:"proxy"`
	ParsedProxy *url.URL `toml:"-"`
	// WorkDir holds project directories for projects whose config does not
	// name a project_path.
	WorkDir string `toml:"work_dir"`
	// ConfigDir holds the `<pid>.config` project files.
	ConfigDir string `toml:"config_dir"`
}

type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type Llm struct {
	BaseUrl string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type Media struct {
	FfmpegPath  string `toml:"ffmpeg_path"`
	FfprobePath string `toml:"ffprobe_path"`
	TempDir     string `toml:"temp_dir"`
}

type Workflow struct {
	GroupFactor          int     `toml:"group_factor"`
	SmartSectionSeconds  float64 `toml:"smart_section_seconds"`
	NormalizeMaxRounds   int     `toml:"normalize_max_rounds"`
	WatchIntervalSeconds int     `toml:"watch_interval_seconds"`
	DurationConcurrency  int     `toml:"duration_concurrency"`
}

type Runner struct {
	QueueSize         int `toml:"queue_size"`
	BackgroundWorkers int `toml:"background_workers"`
}

type Queue struct {
	Enabled       bool   `toml:"enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Concurrency   int    `toml:"concurrency"`
}

type Config struct {
	App      App      `toml:"app"`
	Server   Server   `toml:"server"`
	Llm      Llm      `toml:"llm"`
	Media    Media    `toml:"media"`
	Workflow Workflow `toml:"workflow"`
	Runner   Runner   `toml:"runner"`
	Queue    Queue    `toml:"queue"`
}

var Conf = defaultConfig()

var resolveConfigPath = func() (string, error) {
	dirs, err := appdirs.Resolve()
	if err != nil {
		return "", err
	}
	return dirs.ConfigFile, nil
}

func defaultConfig() Config {
	return Config{
		Server: Server{
			Host: "127.0.0.1",
			Port: 8888,
		},
		Llm: Llm{
			Model: "gpt-4o-mini",
		},
		Media: Media{
			FfmpegPath:  "",
			FfprobePath: "",
		},
		Workflow: Workflow{
			GroupFactor:          10000,
			SmartSectionSeconds:  10,
			NormalizeMaxRounds:   20,
			WatchIntervalSeconds: 3,
			DurationConcurrency:  4,
		},
		Runner: Runner{
			QueueSize:         128,
			BackgroundWorkers: 2,
		},
		Queue: Queue{
			RedisAddr:   "localhost:6379",
			Concurrency: 3,
		},
	}
}

// ResolveConfigPath returns the location of config.toml for this installation.
func ResolveConfigPath() (string, error) {
	return resolveConfigPath()
}

// LoadOrCreateConfig reads config.toml into Conf, writing the defaults first
// when the file does not exist yet. created reports whether it was written.
func LoadOrCreateConfig() (created bool, err error) {
	configPath, err := resolveConfigPath()
	if err != nil {
		return false, err
	}

	if _, err = os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		Conf = defaultConfig()
		if err = SaveConfig(); err != nil {
			return false, err
		}
		log.GetLogger().Info("default config created", zap.String("path", configPath))
		return true, nil
	} else if err != nil {
		return false, err
	}

	loaded := defaultConfig()
	if _, err = toml.DecodeFile(configPath, &loaded); err != nil {
		return false, fmt.Errorf("decode config %s: %w", configPath, err)
	}
	Conf = loaded
	log.GetLogger().Info("config loaded", zap.String("path", configPath))
	return false, nil
}

// SaveConfig writes Conf to config.toml, creating parent directories.
func SaveConfig() error {
	configPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(Conf)
}

// CheckConfig validates Conf and fills zero values that have safe defaults.
func CheckConfig() error {
	defaults := defaultConfig()

	if strings.TrimSpace(Conf.App.Proxy) != "" {
		parsed, err := url.Parse(Conf.App.Proxy)
		if err != nil {
			return fmt.Errorf("invalid app.proxy %q: %w", Conf.App.Proxy, err)
		}
		Conf.App.ParsedProxy = parsed
	}

	if Conf.Server.Port < 0 || Conf.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", Conf.Server.Port)
	}
	if Conf.Server.Port == 0 {
		Conf.Server.Port = defaults.Server.Port
	}
	if strings.TrimSpace(Conf.Server.Host) == "" {
		Conf.Server.Host = defaults.Server.Host
	}

	if Conf.Workflow.GroupFactor < 0 {
		return fmt.Errorf("invalid workflow.group_factor %d", Conf.Workflow.GroupFactor)
	}
	if Conf.Workflow.GroupFactor == 0 {
		Conf.Workflow.GroupFactor = defaults.Workflow.GroupFactor
	}
	if Conf.Workflow.SmartSectionSeconds < 0 {
		return fmt.Errorf("invalid workflow.smart_section_seconds %v", Conf.Workflow.SmartSectionSeconds)
	}
	if Conf.Workflow.SmartSectionSeconds == 0 {
		Conf.Workflow.SmartSectionSeconds = defaults.Workflow.SmartSectionSeconds
	}
	if Conf.Workflow.NormalizeMaxRounds <= 0 {
		Conf.Workflow.NormalizeMaxRounds = defaults.Workflow.NormalizeMaxRounds
	}
	if Conf.Workflow.WatchIntervalSeconds <= 0 {
		Conf.Workflow.WatchIntervalSeconds = defaults.Workflow.WatchIntervalSeconds
	}
	if Conf.Workflow.DurationConcurrency <= 0 {
		Conf.Workflow.DurationConcurrency = defaults.Workflow.DurationConcurrency
	}

	if Conf.Runner.QueueSize <= 0 {
		Conf.Runner.QueueSize = defaults.Runner.QueueSize
	}
	if Conf.Runner.BackgroundWorkers <= 0 {
		Conf.Runner.BackgroundWorkers = defaults.Runner.BackgroundWorkers
	}

	if Conf.Queue.Enabled && strings.TrimSpace(Conf.Queue.RedisAddr) == "" {
		return errors.New("queue.enabled requires queue.redis_addr")
	}
	if Conf.Queue.Concurrency <= 0 {
		Conf.Queue.Concurrency = defaults.Queue.Concurrency
	}
	return nil
}
