package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/command"
)

const stopTimeout = 30 * time.Second

// Tracker records started containers so they can be stopped on exit.
type Tracker interface {
	TrackContainer(name string)
}

// Process is a started container runtime client.
type Process struct {
	name string
	args []string
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// PID of the runtime client process.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ContainerName is the --name given to the container.
func (p *Process) ContainerName() string { return p.name }

// Args is the argv the process was started with.
func (p *Process) Args() []string { return append([]string(nil), p.args...) }

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether Done is closed.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until exit and returns the process error, if any.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Launcher starts sandboxed scripts. Starts are fire-and-forget: nothing is
// retried or supervised.
type Launcher struct {
	builder *Builder
	tracker Tracker
	factory command.Factory
	logger  *zap.Logger
}

// LauncherOption customizes a Launcher.
type LauncherOption func(*Launcher)

func WithFactory(factory command.Factory) LauncherOption {
	return func(l *Launcher) { l.factory = factory }
}

func WithLauncherLogger(logger *zap.Logger) LauncherOption {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLauncher starts containers built by b and registers them with tracker.
func NewLauncher(b *Builder, tracker Tracker, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		builder: b,
		tracker: tracker,
		factory: command.New,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts req. Interactive runs inherit the terminal; others have
// stdout and stderr merged and passed to onOutput line by line, in order,
// from a goroutine owned by the returned Process.
func (l *Launcher) Launch(ctx context.Context, req Request, onOutput func(string)) (*Process, error) {
	inv, err := l.builder.Build(req)
	if err != nil {
		return nil, err
	}
	if l.tracker != nil {
		l.tracker.TrackContainer(inv.ContainerName)
	}
	cmd := l.factory(ctx, inv.Args[0], inv.Args[1:]...)

	var proc *Process
	if req.Interactive {
		proc, err = startAttached(cmd)
	} else {
		proc, err = start(cmd, outputFunc(onOutput), l.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: start %s: %w", inv.ContainerName, err)
	}
	proc.name = inv.ContainerName
	proc.args = inv.Args
	l.logger.Info("sandbox started",
		zap.String("container", inv.ContainerName),
		zap.String("script", req.Script),
		zap.String("goal", req.Goal),
		zap.String("repo", req.Repo),
		zap.Bool("interactive", req.Interactive),
		zap.Int("pid", proc.PID()),
	)
	return proc, nil
}

func start(cmd *exec.Cmd, emit func(string), logger *zap.Logger) (*Process, error) {
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		stream(pipe, emit)
		p.err = cmd.Wait()
		if p.err != nil {
			logger.Debug("process exited", zap.Int("pid", p.PID()), zap.Error(p.err))
		}
	}()
	return p, nil
}

func startAttached(cmd *exec.Cmd) (*Process, error) {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = cmd.Wait()
	}()
	return p, nil
}

func stream(r io.Reader, emit func(string)) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			emit(strings.TrimRight(line, " \t\r\n"))
		}
		if err != nil {
			return
		}
	}
}

// ContainerStopper returns a stop hook bound to run and the runtime binary.
// Each stop gets its own 30s deadline.
func ContainerStopper(run command.Runner, runtime string) func(ctx context.Context, name string) error {
	return func(ctx context.Context, name string) error {
		ctx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()
		if _, err := run(ctx, runtime, "stop", name); err != nil {
			return fmt.Errorf("sandbox: stop %s: %w", name, err)
		}
		return nil
	}
}
