// internal/config/config.go
//
// This package handles the workspace layout and the .keywork directory.
// The workspace root holds agents/ (goals, repos, sandbox image) and
// workspace/ (checked-out repos); .keywork/ keeps keywork's own settings and
// logs next to them.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// KeyworkDir is the settings directory created in the workspace root.
	KeyworkDir = ".keywork"

	// RootEnv overrides the workspace root when no flag is given.
	RootEnv = "KEYWORK_ROOT"

	defaultImage         = "keywork-sandbox"
	defaultRuntime       = "docker"
	defaultCacheVolume   = "keywork-cache"
	defaultLookahead     = 9
	defaultTerminalTitle = "Keywork Agent"
	defaultActivityLines = 50
	defaultLogLevel      = "info"
	defaultLogFile       = "keywork.log"
)

// ErrInvalidSettings wraps every validation failure of config.yaml.
var ErrInvalidSettings = errors.New("invalid settings")

const defaultSettingsYAML = `# keywork settings
version: 1

# Sandbox image tag and the container runtime used to build and run it.
image: keywork-sandbox
runtime: docker
# Named volume shared by sandbox containers for the package cache.
cache_volume: keywork-cache

# How many lines after a [REVIEW: ...] task are searched for its Depends line.
review_lookahead: 9

terminal_title: Keywork Agent
# Lines of agents/goals/orchestrator.log shown by 'keywork log' and the board.
activity_lines: 50

log:
  level: info
  file: keywork.log
`

// LogSettings controls the diagnostic log under .keywork/logs.
type LogSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Settings models .keywork/config.yaml.
type Settings struct {
	Version         int         `yaml:"version"`
	Image           string      `yaml:"image"`
	Runtime         string      `yaml:"runtime"`
	CacheVolume     string      `yaml:"cache_volume"`
	ReviewLookahead int         `yaml:"review_lookahead"`
	TerminalTitle   string      `yaml:"terminal_title"`
	ActivityLines   int         `yaml:"activity_lines"`
	Log             LogSettings `yaml:"log"`
}

// Config holds the resolved workspace layout and settings.
type Config struct {
	// Root is the workspace root containing agents/ and workspace/.
	Root string

	// Dir is Root/.keywork
	Dir string

	Settings Settings
}

// ResolveRoot picks the workspace root: an explicit flag value, then
// $KEYWORK_ROOT, then the current directory. The result is absolute.
func ResolveRoot(flagValue string) (string, error) {
	root := strings.TrimSpace(flagValue)
	if root == "" {
		root = strings.TrimSpace(os.Getenv(RootEnv))
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("config: working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("config: resolve %s: %w", root, err)
	}
	return abs, nil
}

// Init creates the .keywork directory structure and a commented default
// config.yaml when none exists.
//
// Structure created:
// .keywork/
// ├── config.yaml
// └── logs/
func Init(root string) error {
	dir := filepath.Join(root, KeyworkDir)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	return ensureSettingsFile(filepath.Join(dir, "config.yaml"))
}

// Load reads root/.keywork/config.yaml. A missing file yields defaults.
func Load(root string) (*Config, error) {
	cfg := &Config{
		Root:     root,
		Dir:      filepath.Join(root, KeyworkDir),
		Settings: DefaultSettings(),
	}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultSettings returns the values used when config.yaml is absent.
func DefaultSettings() Settings {
	s := Settings{}
	s.applyDefaults()
	return s
}

// SettingsPath returns the on-disk location of config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, "config.yaml")
}

// LogsDir returns the path to keywork's own log directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.Dir, "logs")
}

// LogPath returns the diagnostic log file path
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), c.Settings.Log.File)
}

// AgentsDir returns Root/agents
func (c *Config) AgentsDir() string {
	return filepath.Join(c.Root, "agents")
}

// GoalsDir returns the directory holding one subdirectory per goal
func (c *Config) GoalsDir() string {
	return filepath.Join(c.AgentsDir(), "goals")
}

// GoalDir returns the state directory of one goal
func (c *Config) GoalDir(name string) string {
	return filepath.Join(c.GoalsDir(), name)
}

// ReposDir returns the directory of registered repo configs
func (c *Config) ReposDir() string {
	return filepath.Join(c.AgentsDir(), "repos")
}

// RepoConfigPath returns agents/repos/<name>/config.yaml
func (c *Config) RepoConfigPath(name string) string {
	return filepath.Join(c.ReposDir(), name, "config.yaml")
}

// WorkspaceDir returns the directory of checked-out repos
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.Root, "workspace")
}

// SandboxDir returns the sandbox image build context
func (c *Config) SandboxDir() string {
	return filepath.Join(c.AgentsDir(), "sandbox")
}

// DockerfilePath returns the sandbox Dockerfile
func (c *Config) DockerfilePath() string {
	return filepath.Join(c.SandboxDir(), "Dockerfile")
}

// EnvFilePath returns the sandbox's static env file
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.SandboxDir(), ".env")
}

// ActivityLogPath returns the orchestrator's activity log
func (c *Config) ActivityLogPath() string {
	return filepath.Join(c.GoalsDir(), "orchestrator.log")
}

func (c *Config) loadSettings() error {
	path := c.SettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed Settings
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w: %w", ErrInvalidSettings, err)
	}

	c.Settings = parsed
	return nil
}

func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if strings.TrimSpace(s.Image) == "" {
		s.Image = defaultImage
	}
	if strings.TrimSpace(s.Runtime) == "" {
		s.Runtime = defaultRuntime
	}
	if strings.TrimSpace(s.CacheVolume) == "" {
		s.CacheVolume = defaultCacheVolume
	}
	if s.ReviewLookahead == 0 {
		s.ReviewLookahead = defaultLookahead
	}
	if strings.TrimSpace(s.TerminalTitle) == "" {
		s.TerminalTitle = defaultTerminalTitle
	}
	if s.ActivityLines == 0 {
		s.ActivityLines = defaultActivityLines
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = defaultLogLevel
	}
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = defaultLogFile
	}
}

func (s *Settings) normalize() {
	s.Image = strings.TrimSpace(s.Image)
	s.Runtime = strings.TrimSpace(s.Runtime)
	s.CacheVolume = strings.TrimSpace(s.CacheVolume)
	s.TerminalTitle = strings.TrimSpace(s.TerminalTitle)
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	s.Log.File = filepath.Base(strings.TrimSpace(s.Log.File))
}

func (s *Settings) validate() error {
	if s.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if s.ReviewLookahead < 1 {
		return fmt.Errorf("review_lookahead must be >= 1, got %d", s.ReviewLookahead)
	}
	if s.ActivityLines < 1 {
		return fmt.Errorf("activity_lines must be >= 1, got %d", s.ActivityLines)
	}
	if strings.ContainsAny(s.Image, " \t") {
		return fmt.Errorf("image %q must not contain whitespace", s.Image)
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func ensureSettingsFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultSettingsYAML), 0o644)
}
