// Package terminal opens a command in a new terminal window, trying the
// emulators it knows in a fixed order and falling back to printing the
// command for the user to run by hand.
package terminal

import (
	"context"
	"os"
	"os/exec"
	"runtime"

	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/command"
)

// Method names reported in Result.
const (
	MethodITerm2            = "iterm2"
	MethodMacTerminal       = "macos_terminal"
	MethodGnomeTerminal     = "gnome_terminal"
	MethodXTerminalEmulator = "x_terminal_emulator"
	MethodTmux              = "tmux"
	MethodFallback          = "fallback"
)

// Request is what to run, under which window title, from which directory.
type Request struct {
	Command string
	Title   string
	Dir     string
}

// Result reports how (and whether) a terminal was opened. PID is zero when
// the method gives no process to track. FallbackCommand is set only for the
// fallback method.
type Result struct {
	Success         bool
	Method          string
	PID             int
	FallbackCommand string
}

// Strategy is one terminal emulator.
type Strategy interface {
	Name() string
	Available(ctx context.Context) bool
	Attempt(ctx context.Context, req Request) Result
}

// Starter launches a detached process and returns its PID.
type Starter func(name string, args ...string) (int, error)

// Host is the machine the strategies probe and launch on.
type Host struct {
	GOOS     string
	Run      command.Runner
	Start    Starter
	LookPath command.LookPath
	Lookup   func(key string) (string, bool)
	Logger   *zap.Logger
}

// Launcher walks its strategies in order.
type Launcher struct {
	host       *Host
	strategies []Strategy
	getwd      func() (string, error)
}

// Option customizes a Launcher.
type Option func(*Launcher)

func WithPlatform(goos string) Option {
	return func(l *Launcher) { l.host.GOOS = goos }
}

func WithRunner(run command.Runner) Option {
	return func(l *Launcher) { l.host.Run = run }
}

func WithStarter(start Starter) Option {
	return func(l *Launcher) { l.host.Start = start }
}

func WithLookPath(lookPath command.LookPath) Option {
	return func(l *Launcher) { l.host.LookPath = lookPath }
}

func WithLookup(lookup func(string) (string, bool)) Option {
	return func(l *Launcher) { l.host.Lookup = lookup }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.host.Logger = logger
		}
	}
}

// WithStrategies replaces the default cascade.
func WithStrategies(build func(*Host) []Strategy) Option {
	return func(l *Launcher) { l.strategies = build(l.host) }
}

// WithWorkingDir overrides how the default directory is found.
func WithWorkingDir(getwd func() (string, error)) Option {
	return func(l *Launcher) { l.getwd = getwd }
}

// New builds a Launcher for the current machine.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		host: &Host{
			GOOS:     runtime.GOOS,
			Run:      command.Run,
			Start:    startDetached,
			LookPath: exec.LookPath,
			Lookup:   os.LookupEnv,
			Logger:   zap.NewNop(),
		},
		getwd: os.Getwd,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.strategies == nil {
		l.strategies = DefaultStrategies(l.host)
	}
	return l
}

// DefaultStrategies is iTerm2, Terminal.app, gnome-terminal,
// x-terminal-emulator, then tmux.
func DefaultStrategies(h *Host) []Strategy {
	return []Strategy{
		ITerm2{host: h},
		MacTerminal{host: h},
		GnomeTerminal{host: h},
		XTerminalEmulator{host: h},
		Tmux{host: h},
	}
}

// Open runs command in the first terminal that accepts it. An empty dir means
// the current directory. Open never fails: when nothing works the result
// carries the command line to run by hand.
func (l *Launcher) Open(ctx context.Context, cmdline, title, dir string) Result {
	if dir == "" {
		if wd, err := l.getwd(); err == nil {
			dir = wd
		}
	}
	req := Request{Command: cmdline, Title: title, Dir: dir}
	for _, s := range l.strategies {
		if !s.Available(ctx) {
			continue
		}
		result := s.Attempt(ctx, req)
		if result.Success {
			l.host.Logger.Info("terminal opened", zap.String("method", result.Method), zap.Int("pid", result.PID))
			return result
		}
		l.host.Logger.Debug("terminal method failed", zap.String("method", s.Name()))
	}
	return Result{
		Method:          MethodFallback,
		FallbackCommand: "cd " + dir + " && " + cmdline,
	}
}

func startDetached(name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
