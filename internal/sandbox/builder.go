// Package sandbox turns a request to run an agent script into the exact
// container runtime command line, keeps the sandbox image current, and starts
// containers with their output streamed back to the caller.
package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kingrea/keywork/internal/config"
	"github.com/kingrea/keywork/internal/record"
)

// ErrNoScript is returned when a request names no script to run.
var ErrNoScript = errors.New("sandbox: script is required")

const (
	containerPrefix   = "keywork-agent-"
	macSSHSocket      = "/run/host-services/ssh-auth.sock"
	sandboxSSHSocket  = "/ssh-agent"
	containerHomeRoot = "/home/agent"
)

var identityVars = []string{"GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL"}

// Request describes one sandboxed script run.
type Request struct {
	Script       string
	Args         []string
	Repo         string
	Goal         string
	Interactive  bool
	ExtraPorts   []int
	EnvOverrides map[string]string
}

// Invocation is the synthesized command line. Args[0] is the runtime binary.
type Invocation struct {
	Args          []string
	ContainerName string
}

// Builder synthesizes container runtime invocations.
type Builder struct {
	cfg     *config.Config
	home    string
	goos    string
	lookup  func(string) (string, bool)
	newName func() string
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithHome overrides the host home directory mounted for credentials.
func WithHome(home string) BuilderOption {
	return func(b *Builder) { b.home = home }
}

// WithPlatform overrides runtime.GOOS for the SSH socket choice.
func WithPlatform(goos string) BuilderOption {
	return func(b *Builder) { b.goos = goos }
}

// WithLookup overrides the host environment lookup.
func WithLookup(lookup func(string) (string, bool)) BuilderOption {
	return func(b *Builder) { b.lookup = lookup }
}

// WithNamer overrides container name generation.
func WithNamer(newName func() string) BuilderOption {
	return func(b *Builder) { b.newName = newName }
}

// NewBuilder builds invocations for the workspace described by cfg.
func NewBuilder(cfg *config.Config, opts ...BuilderOption) *Builder {
	home, _ := os.UserHomeDir()
	b := &Builder{
		cfg:     cfg,
		home:    home,
		goos:    runtime.GOOS,
		lookup:  os.LookupEnv,
		newName: ContainerName,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ContainerName returns keywork-agent-<8 hex chars> from a random UUID.
func ContainerName() string {
	return containerPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Build assembles the full argv for req. Later -e flags override earlier
// ones, so the order encodes precedence: env file, core variables, git
// identity, caller overrides, then repo config.
func (b *Builder) Build(req Request) (Invocation, error) {
	if strings.TrimSpace(req.Script) == "" {
		return Invocation{}, ErrNoScript
	}
	s := b.cfg.Settings
	name := b.newName()
	args := []string{s.Runtime, "run", "--rm", "--name", name}
	if req.Interactive {
		args = append(args, "-it")
	}

	workspace := b.cfg.WorkspaceDir()
	if req.Repo != "" {
		workspace = filepath.Join(workspace, req.Repo)
	}
	args = append(args, "-v", workspace+":/workspace")
	if req.Goal != "" {
		args = append(args, "-v", b.cfg.GoalDir(req.Goal)+":/state")
	}
	args = append(args,
		"-v", b.cfg.AgentsDir()+":/agents:ro",
		"-v", filepath.Join(b.home, ".claude")+":"+containerHomeRoot+"/.claude-host:ro",
		"-v", s.CacheVolume+":"+containerHomeRoot+"/.cache/uv",
	)

	if sock, _ := b.lookup("SSH_AUTH_SOCK"); sock != "" {
		hostSock := sock
		if b.goos == "darwin" {
			hostSock = macSSHSocket
		}
		args = append(args,
			"-v", hostSock+":"+sandboxSSHSocket+":ro",
			"-e", "SSH_AUTH_SOCK="+sandboxSSHSocket,
		)
	}

	args = append(args, "-e", "KEYWORK_SANDBOX=1")
	if req.Repo != "" {
		args = append(args, "-e", "REPO_NAME="+req.Repo)
	}
	if req.Goal != "" {
		args = append(args, "-e", "GOAL_NAME="+req.Goal)
	}
	for _, key := range identityVars {
		if v, _ := b.lookup(key); v != "" {
			args = append(args, "-e", key+"="+v)
		}
	}

	if envFile := b.cfg.EnvFilePath(); fileExists(envFile) {
		args = append(args, "--env-file", envFile)
	}
	for _, port := range req.ExtraPorts {
		args = append(args, "-p", portMapping(port))
	}
	for _, key := range record.Keys(req.EnvOverrides) {
		args = append(args, "-e", key+"="+req.EnvOverrides[key])
	}

	if req.Repo != "" {
		repoCfg := ReadRepoConfig(b.cfg.RepoConfigPath(req.Repo))
		for _, key := range record.Keys(repoCfg.Env) {
			args = append(args, "-e", key+"="+repoCfg.Env[key])
		}
		for _, volume := range repoCfg.Volumes {
			args = append(args, "-v", volume)
		}
		for _, port := range repoCfg.Ports {
			args = append(args, "-p", portMapping(port))
		}
	}

	args = append(args, s.Image, "bash", req.Script)
	args = append(args, req.Args...)
	return Invocation{Args: args, ContainerName: name}, nil
}

func portMapping(port int) string {
	p := strconv.Itoa(port)
	return p + ":" + p
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
