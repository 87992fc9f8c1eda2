// Package project holds the per-project context threaded through the
// workflow: identity, output directory, and the free-form settings stored in
// `<config dir>/<pid>.config`.
package project

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"magic-workflow/internal/appdirs"
	"magic-workflow/internal/types"
	apperrors "magic-workflow/pkg/errors"
)

const (
	ScenesFileName       = "scenes.json"
	TitleChoicesFileName = "titles_choices.json"
	MediaDirName         = "media"
)

const (
	keyPid         = "pid"
	keyLanguage    = "language"
	keyChannel     = "channel"
	keyTitle       = "title"
	keyTags        = "tags"
	keyProjectPath = "project_path"
)

var knownKeys = []string{keyPid, keyLanguage, keyChannel, keyTitle, keyTags, keyProjectPath}

// Context is one open project. It is created when a project is opened and
// dropped when another one replaces it; nothing about it is global.
type Context struct {
	Pid         string
	Language    string
	Channel     string
	Title       string
	Tags        []string
	ProjectPath string

	// Settings keeps every other key of the config file as decoded JSON.
	Settings map[string]any

	configPath string
	store      types.ProjectStore
}

// New builds a context for a project that has no config file yet. An empty
// projectPath places the project under the installation's project root.
func New(store types.ProjectStore, paths appdirs.Paths, pid, language, channel, projectPath string) (*Context, error) {
	if err := validatePid(pid); err != nil {
		return nil, err
	}
	if projectPath == "" {
		projectPath = appdirs.ProjectDirFor(paths, pid)
	}
	return &Context{
		Pid:         pid,
		Language:    language,
		Channel:     channel,
		ProjectPath: projectPath,
		Settings:    map[string]any{},
		configPath:  appdirs.ProjectConfigPathFor(paths, pid),
		store:       store,
	}, nil
}

// Load reads `<config dir>/<pid>.config`.
func Load(store types.ProjectStore, paths appdirs.Paths, pid string) (*Context, error) {
	if err := validatePid(pid); err != nil {
		return nil, err
	}
	configPath := appdirs.ProjectConfigPathFor(paths, pid)

	var raw map[string]any
	if err := store.ReadJSON(configPath, &raw); err != nil {
		if apperrors.Is(err, apperrors.CodeFileNotFound) {
			return nil, apperrors.WrapWithDetail(apperrors.CodeProjectNotFound, "Project not found", pid, err)
		}
		return nil, err
	}
	if raw == nil {
		return nil, apperrors.Newf(apperrors.CodeProjectConfigInvalid, "Project config is invalid", "%s is not a JSON object", configPath)
	}

	c := &Context{
		Pid:         pid,
		Language:    stringOf(raw[keyLanguage]),
		Channel:     stringOf(raw[keyChannel]),
		Title:       stringOf(raw[keyTitle]),
		Tags:        tagsOf(raw[keyTags]),
		ProjectPath: stringOf(raw[keyProjectPath]),
		Settings:    lo.OmitByKeys(raw, knownKeys),
		configPath:  configPath,
		store:       store,
	}
	if c.ProjectPath == "" {
		c.ProjectPath = appdirs.ProjectDirFor(paths, pid)
	}
	return c, nil
}

// Save writes the context back as one flat JSON object.
func (c *Context) Save() error {
	return c.store.WriteJSON(c.configPath, c.document())
}

func (c *Context) document() map[string]any {
	doc := make(map[string]any, len(c.Settings)+len(knownKeys))
	for k, v := range c.Settings {
		doc[k] = v
	}
	doc[keyPid] = c.Pid
	doc[keyLanguage] = c.Language
	doc[keyChannel] = c.Channel
	doc[keyTitle] = c.Title
	doc[keyTags] = lo.Ternary(c.Tags == nil, []string{}, c.Tags)
	doc[keyProjectPath] = c.ProjectPath
	return doc
}

func (c *Context) ConfigPath() string {
	return c.configPath
}

func (c *Context) Store() types.ProjectStore {
	return c.store
}

func (c *Context) ScenesPath() string {
	return filepath.Join(c.ProjectPath, ScenesFileName)
}

func (c *Context) TitleChoicesPath() string {
	return filepath.Join(c.ProjectPath, TitleChoicesFileName)
}

// MediaDir is where edits write their output files.
func (c *Context) MediaDir() string {
	return filepath.Join(c.ProjectPath, MediaDirName)
}

// Setting returns a free-form setting.
func (c *Context) Setting(key string) (any, bool) {
	v, ok := c.Settings[key]
	return v, ok
}

func (c *Context) SetSetting(key string, value any) {
	if lo.Contains(knownKeys, key) {
		return
	}
	if c.Settings == nil {
		c.Settings = map[string]any{}
	}
	c.Settings[key] = value
}

// SettingKeys lists the free-form settings in sorted order.
func (c *Context) SettingKeys() []string {
	keys := lo.Keys(c.Settings)
	sort.Strings(keys)
	return keys
}

func validatePid(pid string) error {
	if strings.TrimSpace(pid) == "" || strings.ContainsAny(pid, `/\`) || pid == "." || pid == ".." {
		return apperrors.Newf(apperrors.CodeInvalidParams, "Invalid project id", "pid %q", pid)
	}
	return nil
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// tagsOf accepts a JSON list or a comma separated string.
func tagsOf(v any) []string {
	switch typed := v.(type) {
	case []any:
		return lo.FilterMap(typed, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			s = strings.TrimSpace(s)
			return s, ok && s != ""
		})
	case string:
		parts := lo.Map(strings.Split(typed, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
		return lo.Filter(parts, func(s string, _ int) bool { return s != "" })
	default:
		return nil
	}
}
