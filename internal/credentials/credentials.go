// Package credentials decides whether the host can launch a sandbox: the
// container runtime answers, Claude credentials exist and have not expired,
// and an SSH agent is available for git.
//
// Checks run in a fixed order. The first fatal outcome stops the chain;
// non-fatal outcomes are warnings that accumulate.
package credentials

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/command"
)

// Outcome is the result of one check. An empty non-fatal Message means the
// check passed silently.
type Outcome struct {
	Fatal   bool
	Message string
}

func pass() Outcome            { return Outcome{} }
func warn(msg string) Outcome  { return Outcome{Message: msg} }
func fatal(msg string) Outcome { return Outcome{Fatal: true, Message: msg} }

func (o Outcome) describe() string {
	switch {
	case o.Fatal:
		return "fatal"
	case o.Message != "":
		return "warning"
	default:
		return "ok"
	}
}

// Check is one link of the validation chain.
type Check interface {
	Name() string
	Attempt(ctx context.Context) Outcome
}

// Host is what the checks observe about the machine. Fields are swapped in
// tests.
type Host struct {
	Run    command.Runner
	Lookup func(key string) (string, bool)
	Now    func() time.Time
	GOOS   string
	Home   string
	// Runtime is the container runtime binary, docker by default.
	Runtime string
}

// CredentialsPath is where the Claude CLI keeps its OAuth credentials.
func (h *Host) CredentialsPath() string {
	return filepath.Join(h.Home, ".claude", ".credentials.json")
}

// Gate runs the check chain.
type Gate struct {
	host   *Host
	checks []Check
	logger *zap.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

func WithRunner(run command.Runner) Option {
	return func(g *Gate) { g.host.Run = run }
}

func WithLookup(lookup func(string) (string, bool)) Option {
	return func(g *Gate) { g.host.Lookup = lookup }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.host.Now = now }
}

func WithPlatform(goos string) Option {
	return func(g *Gate) { g.host.GOOS = goos }
}

func WithHome(home string) Option {
	return func(g *Gate) { g.host.Home = home }
}

func WithRuntime(binary string) Option {
	return func(g *Gate) {
		if binary != "" {
			g.host.Runtime = binary
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithChecks replaces the default chain.
func WithChecks(build func(*Host) []Check) Option {
	return func(g *Gate) { g.checks = build(g.host) }
}

// New builds a Gate over the real host.
func New(opts ...Option) *Gate {
	home, _ := os.UserHomeDir()
	g := &Gate{
		host: &Host{
			Run:     command.Run,
			Lookup:  os.LookupEnv,
			Now:     time.Now,
			GOOS:    runtime.GOOS,
			Home:    home,
			Runtime: "docker",
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.checks == nil {
		g.checks = DefaultChecks(g.host)
	}
	return g
}

// DefaultChecks is the standard chain: runtime, keychain export (macOS only),
// credential file, token expiry, SSH agent.
func DefaultChecks(h *Host) []Check {
	return []Check{
		RuntimeCheck{host: h},
		KeychainExport{host: h},
		CredentialFile{host: h},
		TokenExpiry{host: h},
		SSHAgent{host: h},
	}
}

// Validate runs the chain. ok is false when a check failed fatally, in which
// case message is that check's explanation. Otherwise message joins any
// warnings with newlines.
func (g *Gate) Validate(ctx context.Context) (ok bool, message string) {
	var warnings []string
	for _, check := range g.checks {
		outcome := check.Attempt(ctx)
		g.logger.Debug("credential check",
			zap.String("check", check.Name()),
			zap.String("result", outcome.describe()),
			zap.String("message", outcome.Message),
		)
		if outcome.Fatal {
			return false, outcome.Message
		}
		if outcome.Message != "" {
			warnings = append(warnings, outcome.Message)
		}
	}
	return true, strings.Join(warnings, "\n")
}

