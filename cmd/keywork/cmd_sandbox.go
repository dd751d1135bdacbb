package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/keywork/internal/command"
	"github.com/kingrea/keywork/internal/credentials"
	"github.com/kingrea/keywork/internal/goals"
	"github.com/kingrea/keywork/internal/launch"
	"github.com/kingrea/keywork/internal/sandbox"
	"github.com/kingrea/keywork/internal/terminal"
	"github.com/kingrea/keywork/internal/ui"
)

const (
	loopScript     = "agents/loop.sh"
	repoInitScript = "agents/repo_init.sh"
)

// agentActions maps the interactive actions to their scripts.
var agentActions = map[string]string{
	"prd":       "agents/create_prd.sh",
	"questions": "agents/questions.sh",
	"feedback":  "agents/feedback.sh",
	"retro":     "agents/retro.sh",
	"complete":  "agents/complete_goal.sh",
}

// sandboxFlags are shared by every command that synthesizes a container run.
type sandboxFlags struct {
	repo       string
	goal       string
	ports      []int
	env        map[string]string
	skipChecks bool
}

func (f *sandboxFlags) register(cmd *cobra.Command, withTarget bool) {
	if withTarget {
		cmd.Flags().StringVar(&f.repo, "repo", "", "Mount workspace/<repo> as /workspace and apply its sandbox config")
		cmd.Flags().StringVar(&f.goal, "goal", "", "Mount agents/goals/<goal> as /state and set GOAL_NAME")
	}
	cmd.Flags().IntSliceVarP(&f.ports, "port", "p", nil, "Extra host port to publish (repeatable)")
	cmd.Flags().StringToStringVarP(&f.env, "env", "e", nil, "Extra environment for the container, KEY=VALUE")
}

func (f *sandboxFlags) registerChecks(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.skipChecks, "skip-checks", false, "Skip the credential gate and image check")
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify docker and Claude credentials before launching agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.checkCredentials(cmd.Context()); err != nil {
				return err
			}
			ui.Successf(a.out, "credentials OK")
			return nil
		},
	}
}

func imageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "image",
		Short: "Build the sandbox image when it is missing or out of date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ensureImage(cmd.Context())
		},
	}
}

func sandboxCmd(a *app) *cobra.Command {
	var (
		flags       sandboxFlags
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "sandbox <script> [args...]",
		Short: "Print the container command for a script without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.builder().Build(sandbox.Request{
				Script:       args[0],
				Args:         args[1:],
				Repo:         flags.repo,
				Goal:         flags.goal,
				Interactive:  interactive,
				ExtraPorts:   flags.ports,
				EnvOverrides: flags.env,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, launch.JoinQuoted(inv.Args))
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Allocate a TTY (-it)")
	return cmd
}

func runCmd(a *app) *cobra.Command {
	var (
		flags       sandboxFlags
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a script in the sandbox and stream its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSandbox(cmd.Context(), sandbox.Request{
				Script:       args[0],
				Args:         args[1:],
				Repo:         flags.repo,
				Goal:         flags.goal,
				Interactive:  interactive,
				ExtraPorts:   flags.ports,
				EnvOverrides: flags.env,
			}, flags.skipChecks)
		},
	}
	flags.register(cmd, true)
	flags.registerChecks(cmd)
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Attach this terminal to the container")
	return cmd
}

func buildCmd(a *app) *cobra.Command {
	var (
		flags    sandboxFlags
		flagPlan bool
		flagGate bool
	)

	cmd := &cobra.Command{
		Use:   "build <goal>",
		Short: "Run the build loop for a goal in the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagPlan && flagGate {
				return errors.New("--plan and --gate are mutually exclusive")
			}
			dir, err := a.goalDir(args[0])
			if err != nil {
				return err
			}
			g := goals.Load(dir)
			loopArgs := []string{g.Name}
			switch {
			case flagPlan:
				loopArgs = append(loopArgs, "plan")
			case flagGate:
				loopArgs = append(loopArgs, "final_gate")
			}
			return a.runSandbox(cmd.Context(), sandbox.Request{
				Script:       loopScript,
				Args:         loopArgs,
				Repo:         g.Repo,
				Goal:         g.Name,
				ExtraPorts:   flags.ports,
				EnvOverrides: flags.env,
			}, flags.skipChecks)
		},
	}
	flags.register(cmd, false)
	flags.registerChecks(cmd)
	cmd.Flags().BoolVar(&flagPlan, "plan", false, "Force a planning pass")
	cmd.Flags().BoolVar(&flagGate, "gate", false, "Force the final gate")
	return cmd
}

func openCmd(a *app) *cobra.Command {
	var flags sandboxFlags

	cmd := &cobra.Command{
		Use:   "open <action> <goal>",
		Short: "Open an interactive agent session for a goal in a new terminal",
		Long: `Open an interactive agent session for a goal in a new terminal window.

Actions: ` + strings.Join(actionNames(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			script, ok := agentActions[action]
			if !ok {
				return fmt.Errorf("unknown action %q (want one of %s)", action, strings.Join(actionNames(), ", "))
			}
			dir, err := a.goalDir(args[1])
			if err != nil {
				return err
			}
			if !flags.skipChecks {
				if err := a.checkCredentials(cmd.Context()); err != nil {
					return err
				}
			}
			g := goals.Load(dir)
			launcher := launch.New(a.builder(), a.terminalOpener(), a.registry, a.cfg.Root, launch.WithLogger(a.log.For("launch")))
			result, err := launcher.AgentInTerminal(cmd.Context(), launch.Request{
				Script:     script,
				Args:       []string{g.Name},
				Goal:       g.Name,
				Repo:       g.Repo,
				Action:     action,
				ExtraPorts: flags.ports,
			})
			if err != nil {
				return err
			}
			return a.reportTerminal(result, fmt.Sprintf("%s session opened for %s", titleWord(action), g.Name))
		},
	}
	cmd.Flags().IntSliceVarP(&flags.ports, "port", "p", nil, "Extra host port to publish (repeatable)")
	flags.registerChecks(cmd)
	return cmd
}

func repoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage one registered repository",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show a registered repo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Join(a.cfg.ReposDir(), args[0])
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("repo %q not registered under %s", args[0], a.cfg.ReposDir())
			}
			r := goals.LoadRepo(dir, a.cfg.WorkspaceDir(), a.cfg.GoalsDir())
			initialized := "no"
			if r.Initialized {
				initialized = "yes"
			}
			fmt.Fprintf(a.out, "Name:         %s\n", r.Name)
			fmt.Fprintf(a.out, "Remote:       %s\n", notSet(r.Remote))
			fmt.Fprintf(a.out, "Branch:       %s\n", r.Branch)
			fmt.Fprintf(a.out, "Language:     %s\n", notSet(r.Language))
			fmt.Fprintf(a.out, "Framework:    %s\n", notSet(r.Framework))
			fmt.Fprintf(a.out, "Priority:     %s\n", r.Priority)
			fmt.Fprintf(a.out, "Initialized:  %s\n", initialized)
			fmt.Fprintf(a.out, "Active goals: %d\n", r.ActiveGoals)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init <name> [remote]",
		Short: "Register or re-initialize a repo with " + repoInitScript + " in a new terminal",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := launch.JoinQuoted(append([]string{"bash", repoInitScript}, args...))
			action := "init"
			if len(args) == 2 {
				action = "register"
			}
			result := a.terminalOpener().Open(cmd.Context(), line, launch.Title(action, args[0], ""), a.cfg.Root)
			return a.reportTerminal(result, fmt.Sprintf("%s session opened for %s", titleWord(action), args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pull <name>",
		Short: "Run git pull for an initialized repo in a new terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if info, err := os.Stat(filepath.Join(a.cfg.WorkspaceDir(), name)); err != nil || !info.IsDir() {
				return fmt.Errorf("workspace for %s not found; initialize it first", name)
			}
			line := "cd " + launch.ShellQuote("workspace/"+name) + " && git pull"
			result := a.terminalOpener().Open(cmd.Context(), line, launch.Title("git_pull", name, ""), a.cfg.Root)
			return a.reportTerminal(result, fmt.Sprintf("Git pull session opened for %s", name))
		},
	})
	return cmd
}

func termCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "term -- <command...>",
		Short: "Open a command in a new terminal window from the workspace root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := a.terminalOpener().Open(cmd.Context(), launch.JoinQuoted(args), a.cfg.Settings.TerminalTitle, a.cfg.Root)
			return a.reportTerminal(result, "Terminal opened")
		},
	}
}

// checkCredentials runs the credential gate and prints its warnings.
func (a *app) checkCredentials(ctx context.Context) error {
	gate := credentials.New(
		credentials.WithRunner(a.runner),
		credentials.WithLookup(a.lookup),
		credentials.WithRuntime(a.cfg.Settings.Runtime),
		credentials.WithLogger(a.log.For("credentials")),
	)
	ok, message := gate.Validate(ctx)
	if !ok {
		fmt.Fprintln(a.errOut, ui.BoldRed(message))
		return errors.New("credential check failed")
	}
	for _, warning := range strings.Split(message, "\n") {
		if warning != "" {
			ui.Warnf(a.errOut, "%s", strings.TrimPrefix(warning, "WARNING: "))
		}
	}
	return nil
}

func (a *app) ensureImage(ctx context.Context) error {
	images := sandbox.NewImageManager(a.cfg,
		sandbox.WithImageRunner(a.runner),
		sandbox.WithImageFactory(a.factory),
		sandbox.WithImageLogger(a.log.For("image")),
	)
	if !images.Ensure(ctx, a.printLine) {
		return errors.New("sandbox image is not available")
	}
	return nil
}

// runSandbox launches req and streams it to stdout until it exits. The
// container is registered for teardown, so an interrupt stops it too.
func (a *app) runSandbox(ctx context.Context, req sandbox.Request, skipChecks bool) error {
	if !skipChecks {
		if err := a.checkCredentials(ctx); err != nil {
			return err
		}
		if err := a.ensureImage(ctx); err != nil {
			return err
		}
	}
	launcher := sandbox.NewLauncher(a.builder(), a.registry,
		sandbox.WithFactory(a.factory),
		sandbox.WithLauncherLogger(a.log.For("sandbox")),
	)
	proc, err := launcher.Launch(ctx, req, a.printLine)
	if err != nil {
		return err
	}
	if err := proc.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", req.Script, ctx.Err())
		}
		if code, ok := command.ExitCode(err); ok {
			return fmt.Errorf("%s exited with status %d", req.Script, code)
		}
		return err
	}
	ui.Successf(a.out, "%s finished (%s)", req.Script, proc.ContainerName())
	return nil
}

func (a *app) reportTerminal(result terminal.Result, success string) error {
	if result.Success {
		ui.Successf(a.out, "%s (%s)", success, result.Method)
		return nil
	}
	ui.Warnf(a.errOut, "No terminal found. Run manually:")
	fmt.Fprintln(a.out, result.FallbackCommand)
	return nil
}

func (a *app) printLine(line string) {
	fmt.Fprintln(a.out, line)
}

func actionNames() []string {
	names := make([]string, 0, len(agentActions))
	for name := range agentActions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// titleWord turns an action like git_pull into "Git pull".
func titleWord(action string) string {
	words := strings.ReplaceAll(action, "_", " ")
	if words == "" {
		return words
	}
	return strings.ToUpper(words[:1]) + words[1:]
}

func notSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
