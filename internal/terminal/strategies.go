package terminal

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	probeTimeout  = 5 * time.Second
	scriptTimeout = 10 * time.Second
	closePrompt   = "; echo 'Press Enter to close'; read"
)

// ITerm2 opens a window in a running iTerm2 via AppleScript.
type ITerm2 struct{ host *Host }

func (ITerm2) Name() string { return MethodITerm2 }

func (s ITerm2) Available(ctx context.Context) bool {
	if s.host.GOOS != "darwin" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := s.host.Run(ctx, "osascript", "-e", `tell application "System Events" to get name of processes`)
	return err == nil && strings.Contains(string(out), "iTerm")
}

func (s ITerm2) Attempt(ctx context.Context, req Request) Result {
	script := "tell application \"iTerm2\"\n" +
		"    create window with default profile\n" +
		"    tell current session of current window\n" +
		"        set name to \"" + appleQuote(req.Title) + "\"\n" +
		"        write text \"cd " + appleQuote(req.Dir) + " && " + appleQuote(req.Command) + "\"\n" +
		"    end tell\n" +
		"end tell"
	return runScript(ctx, s.host, MethodITerm2, script)
}

// MacTerminal opens a Terminal.app window via AppleScript.
type MacTerminal struct{ host *Host }

func (MacTerminal) Name() string { return MethodMacTerminal }

func (s MacTerminal) Available(context.Context) bool { return s.host.GOOS == "darwin" }

func (s MacTerminal) Attempt(ctx context.Context, req Request) Result {
	script := "tell application \"Terminal\"\n" +
		"    do script \"cd " + appleQuote(req.Dir) + " && " + appleQuote(req.Command) + "\"\n" +
		"    set custom title of front window to \"" + appleQuote(req.Title) + "\"\n" +
		"end tell"
	return runScript(ctx, s.host, MethodMacTerminal, script)
}

// GnomeTerminal starts gnome-terminal detached and tracks its PID.
type GnomeTerminal struct{ host *Host }

func (GnomeTerminal) Name() string { return MethodGnomeTerminal }

func (s GnomeTerminal) Available(context.Context) bool {
	_, err := s.host.LookPath("gnome-terminal")
	return err == nil
}

func (s GnomeTerminal) Attempt(_ context.Context, req Request) Result {
	pid, err := s.host.Start("gnome-terminal",
		"--title="+req.Title,
		"--working-directory="+req.Dir,
		"--", "bash", "-c", req.Command+closePrompt,
	)
	if err != nil {
		s.host.Logger.Warn("gnome-terminal launch failed", zap.Error(err))
		return Result{Method: MethodGnomeTerminal}
	}
	return Result{Success: true, Method: MethodGnomeTerminal, PID: pid}
}

// XTerminalEmulator starts the Debian alternatives terminal detached.
type XTerminalEmulator struct{ host *Host }

func (XTerminalEmulator) Name() string { return MethodXTerminalEmulator }

func (s XTerminalEmulator) Available(context.Context) bool {
	_, err := s.host.LookPath("x-terminal-emulator")
	return err == nil
}

func (s XTerminalEmulator) Attempt(_ context.Context, req Request) Result {
	inner := "cd " + req.Dir + " && " + req.Command + closePrompt
	pid, err := s.host.Start("x-terminal-emulator", "-T", req.Title, "-e", "bash -c '"+inner+"'")
	if err != nil {
		s.host.Logger.Warn("x-terminal-emulator launch failed", zap.Error(err))
		return Result{Method: MethodXTerminalEmulator}
	}
	return Result{Success: true, Method: MethodXTerminalEmulator, PID: pid}
}

// Tmux opens a window in the enclosing tmux session.
type Tmux struct{ host *Host }

func (Tmux) Name() string { return MethodTmux }

func (s Tmux) Available(context.Context) bool {
	v, _ := s.host.Lookup("TMUX")
	return v != ""
}

func (s Tmux) Attempt(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := s.host.Run(ctx, "tmux", "new-window", "-n", req.Title, "cd "+req.Dir+" && "+req.Command); err != nil {
		s.host.Logger.Warn("tmux launch failed", zap.Error(err))
		return Result{Method: MethodTmux}
	}
	return Result{Success: true, Method: MethodTmux}
}

func runScript(ctx context.Context, h *Host, method, script string) Result {
	ctx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()
	if _, err := h.Run(ctx, "osascript", "-e", script); err != nil {
		h.Logger.Warn("AppleScript launch failed", zap.String("method", method), zap.Error(err))
		return Result{Method: method}
	}
	return Result{Success: true, Method: method}
}

// appleQuote escapes s for embedding in an AppleScript string literal.
func appleQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
