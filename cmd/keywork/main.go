// cmd/keywork/main.go
//
// Entry point for the keywork CLI. Every subcommand works against a
// workspace root (the directory holding agents/ and workspace/):
//
// 1. Resolve the root from --root, $KEYWORK_ROOT or the current directory
// 2. Load .keywork/config.yaml and open the diagnostic log
// 3. Run the subcommand
// 4. Stop any sandbox containers this process started, even on Ctrl-C

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/command"
	"github.com/kingrea/keywork/internal/config"
	"github.com/kingrea/keywork/internal/launch"
	"github.com/kingrea/keywork/internal/logbook"
	"github.com/kingrea/keywork/internal/logging"
	"github.com/kingrea/keywork/internal/registry"
	"github.com/kingrea/keywork/internal/sandbox"
	"github.com/kingrea/keywork/internal/terminal"
	"github.com/kingrea/keywork/internal/ui"
)

const shutdownTimeout = 45 * time.Second

// app is the state shared by every subcommand for one invocation.
type app struct {
	rootFlag string
	verbose  bool

	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	// Swappable for tests.
	runner  command.Runner
	factory command.Factory
	opener  launch.Opener
	lookup  func(string) (string, bool)

	cfg      *config.Config
	log      *logging.Logger
	registry *registry.Registry
	activity *logbook.Logbook
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:     out,
		errOut:  errOut,
		now:     time.Now,
		runner:  command.Run,
		factory: command.New,
		lookup:  os.LookupEnv,
	}
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	root := newRootCmd(a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	relaySignals(sigCh, cancel, os.Stderr)

	err := root.ExecuteContext(ctx)
	signal.Stop(sigCh)
	close(sigCh)
	a.shutdown()
	if err != nil {
		os.Exit(1)
	}
}

// relaySignals cancels the command context on the first signal and then
// unsubscribes, so a second Ctrl-C during container teardown terminates the
// process with the default handler.
func relaySignals(sigCh chan os.Signal, cancel context.CancelFunc, errOut io.Writer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := <-sigCh; ok {
			signal.Stop(sigCh)
			fmt.Fprintf(errOut, "\n%s\n", ui.Yellow("Received interrupt, stopping sandbox containers (Ctrl-C again to force quit)..."))
			cancel()
		}
	}()
	return done
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "keywork",
		Short: "Watch and drive autonomous build goals",
		Long: `keywork reads the goal directories under agents/goals, shows what needs a
human, and launches agent scripts inside the sandbox container, either
streamed here or in a new terminal window.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	rootCmd.PersistentFlags().StringVar(&a.rootFlag, "root", "", "Workspace root (default $"+config.RootEnv+" or the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Echo debug logs to stderr")

	rootCmd.AddCommand(
		statusCmd(a),
		goalCmd(a),
		attentionCmd(a),
		reposCmd(a),
		logCmd(a),
		initCmd(a),
		newGoalCmd(a),
		pauseCmd(a),
		resumeCmd(a),
		stopCmd(a),
		feedbackCmd(a),
		checkCmd(a),
		imageCmd(a),
		sandboxCmd(a),
		runCmd(a),
		buildCmd(a),
		openCmd(a),
		repoCmd(a),
		termCmd(a),
		watchCmd(a),
	)
	return rootCmd
}

// setup resolves the workspace and opens the loggers. It runs once per
// invocation, before the subcommand.
func (a *app) setup() error {
	root, err := config.ResolveRoot(a.rootFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg, logging.WithVerbose(a.verbose), logging.WithConsole(a.errOut))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger
	a.activity = logbook.Open(cfg.ActivityLogPath())
	a.registry = registry.New(
		sandbox.ContainerStopper(a.runner, cfg.Settings.Runtime),
		registry.WithLogger(logger.For("registry")),
	)
	logger.Debug("workspace resolved", zap.String("root", cfg.Root), zap.String("runtime", cfg.Settings.Runtime))
	return nil
}

// shutdown stops tracked containers and flushes the log. Safe to call when
// setup never ran.
func (a *app) shutdown() {
	if a.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.registry.Close(ctx)
		cancel()
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}

func (a *app) builder() *sandbox.Builder {
	return sandbox.NewBuilder(a.cfg, sandbox.WithLookup(a.lookup))
}

func (a *app) terminalOpener() launch.Opener {
	if a.opener != nil {
		return a.opener
	}
	return terminal.New(
		terminal.WithRunner(a.runner),
		terminal.WithLookup(a.lookup),
		terminal.WithLogger(a.log.For("terminal")),
	)
}

// note appends to the orchestrator activity log. Failures are logged only.
func (a *app) note(format string, args ...any) {
	if err := a.activity.Info(format, args...); err != nil {
		a.log.Warn("activity log append failed", zap.Error(err))
	}
}
