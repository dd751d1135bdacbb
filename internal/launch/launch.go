// Package launch opens interactive agent sessions: it builds the sandbox
// command for a goal action, turns it into one shell line and hands it to a
// terminal.
package launch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/registry"
	"github.com/kingrea/keywork/internal/sandbox"
	"github.com/kingrea/keywork/internal/terminal"
)

// Request names the script to run for one goal action.
type Request struct {
	Script     string
	Args       []string
	Goal       string
	Repo       string
	Action     string
	ExtraPorts []int
}

// Opener is the terminal side of a launch.
type Opener interface {
	Open(ctx context.Context, command, title, dir string) terminal.Result
}

// Launcher connects a sandbox builder to a terminal opener.
type Launcher struct {
	builder  *sandbox.Builder
	opener   Opener
	registry *registry.Registry
	dir      string
	logger   *zap.Logger
}

// Option customizes a Launcher.
type Option func(*Launcher)

// WithLogger sets the launch logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New builds a Launcher. Terminals open in dir; successful launches are
// recorded as sessions in reg.
func New(builder *sandbox.Builder, opener Opener, reg *registry.Registry, dir string, opts ...Option) *Launcher {
	l := &Launcher{
		builder:  builder,
		opener:   opener,
		registry: reg,
		dir:      dir,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AgentInTerminal opens req as an interactive sandbox session in a new
// terminal window. The container is owned by that terminal and is not
// stopped when keywork exits.
func (l *Launcher) AgentInTerminal(ctx context.Context, req Request) (terminal.Result, error) {
	inv, err := l.builder.Build(sandbox.Request{
		Script:      req.Script,
		Args:        req.Args,
		Repo:        req.Repo,
		Goal:        req.Goal,
		Interactive: true,
		ExtraPorts:  req.ExtraPorts,
	})
	if err != nil {
		return terminal.Result{}, fmt.Errorf("launch: %w", err)
	}
	cmdline := JoinQuoted(inv.Args)
	result := l.opener.Open(ctx, cmdline, Title(req.Action, req.Goal, req.Repo), l.dir)
	if !result.Success {
		l.logger.Warn("no terminal available", zap.String("goal", req.Goal), zap.String("action", req.Action))
		return result, nil
	}
	if l.registry != nil {
		l.registry.AddSession(registry.Session{
			Goal:    req.Goal,
			Repo:    req.Repo,
			Action:  req.Action,
			Command: cmdline,
			Method:  result.Method,
			PID:     result.PID,
		})
	}
	l.logger.Info("agent session opened",
		zap.String("goal", req.Goal),
		zap.String("action", req.Action),
		zap.String("method", result.Method),
		zap.String("container", inv.ContainerName),
	)
	return result, nil
}

// Title is the window title for an action on a goal.
func Title(action, goal, repo string) string {
	title := "Keywork: " + action + " — " + goal
	if repo != "" {
		title += " (" + repo + ")"
	}
	return title
}

// JoinQuoted renders argv as one shell command line.
func JoinQuoted(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = ShellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

// ShellQuote leaves words made of [A-Za-z0-9_-=/.:] alone and single-quotes
// everything else. The empty string becomes ''.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, unsafe) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func unsafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("_-=/.:", r)
}
