package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/keywork/internal/config"
	"github.com/kingrea/keywork/internal/goals"
	"github.com/kingrea/keywork/internal/ui"
)

const newGoalScript = "agents/new_goal.sh"

var priorities = []goals.Priority{goals.PriorityLow, goals.PriorityNormal, goals.PriorityHigh, goals.PriorityUrgent}

func initCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create .keywork/ with a default config in the workspace root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(a.cfg.Root); err != nil {
				return err
			}
			ui.Successf(a.out, "initialized %s", a.cfg.SettingsPath())
			return nil
		},
	}
}

func newGoalCmd(a *app) *cobra.Command {
	var (
		flagRepo     string
		flagPriority string
	)

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a goal with " + newGoalScript,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if err := goals.ValidateName(name); err != nil {
				return err
			}
			priority := goals.Priority(flagPriority)
			if !validPriority(priority) {
				return fmt.Errorf("unknown priority %q (want low, normal, high or urgent)", flagPriority)
			}

			scriptArgs := []string{newGoalScript, name}
			if flagRepo != "" {
				scriptArgs = append(scriptArgs, flagRepo)
			}
			script := a.factory(cmd.Context(), "bash", scriptArgs...)
			script.Dir = a.cfg.Root
			out, err := script.CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s failed: %w\n%s", newGoalScript, err, strings.TrimSpace(string(out)))
			}
			if priority != goals.PriorityNormal {
				if err := setPriority(a.cfg.GoalDir(name), priority); err != nil {
					return err
				}
			}
			a.note("goal %s created from keywork", name)
			a.log.Info("goal created", zap.String("goal", name), zap.String("repo", flagRepo), zap.String("priority", string(priority)))
			ui.Successf(a.out, "created goal %s", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRepo, "repo", "", "Registered repo the goal works on")
	cmd.Flags().StringVar(&flagPriority, "priority", string(goals.PriorityNormal), "low, normal, high or urgent")
	return cmd
}

func pauseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <goal>",
		Short: "Ask the orchestrator to pause a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.goalDir(args[0])
			if err != nil {
				return err
			}
			if err := goals.Pause(dir); err != nil {
				return err
			}
			a.note("%s paused from keywork", args[0])
			ui.Successf(a.out, "Paused %s", args[0])
			return nil
		},
	}
}

func resumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <goal>",
		Short: "Remove a goal's pause marker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.goalDir(args[0])
			if err != nil {
				return err
			}
			removed, err := goals.Resume(dir)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(a.out, "%s is not paused\n", args[0])
				return nil
			}
			a.note("%s resumed from keywork", args[0])
			ui.Successf(a.out, "Resumed %s", args[0])
			return nil
		},
	}
}

func stopCmd(a *app) *cobra.Command {
	var flagAll bool

	cmd := &cobra.Command{
		Use:   "stop [goal]",
		Short: "Send a stop signal to a goal, or to every running goal with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagAll == (len(args) == 1) {
				return errors.New("name one goal or pass --all")
			}
			if !flagAll {
				dir, err := a.goalDir(args[0])
				if err != nil {
					return err
				}
				if err := goals.Stop(dir); err != nil {
					return err
				}
				a.note("stop signal sent to %s", args[0])
				ui.Successf(a.out, "Stop signal sent to %s", args[0])
				return nil
			}

			stopped := 0
			for _, g := range goals.LoadAll(a.cfg.GoalsDir()) {
				if g.Status != goals.StatusBuilding && g.Status != goals.StatusPlanning {
					continue
				}
				if err := goals.Stop(g.Path); err != nil {
					return err
				}
				a.note("stop signal sent to %s", g.Name)
				stopped++
			}
			ui.Successf(a.out, "Stop signal sent to %d running goal(s)", stopped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagAll, "all", false, "Stop every goal that is building or planning")
	return cmd
}

func feedbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <goal> [text...]",
		Short: "Append a feedback entry to a goal (reads stdin when no text is given)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.goalDir(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			if len(args) == 1 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read feedback: %w", err)
				}
				text = string(data)
			}
			id, err := goals.AppendFeedback(dir, text, a.now)
			if errors.Is(err, goals.ErrEmptyFeedback) {
				return errors.New("feedback text cannot be empty")
			}
			if err != nil {
				return err
			}
			a.note("feedback %s submitted for %s", id, args[0])
			ui.Successf(a.out, "Feedback %s submitted for %s", id, args[0])
			return nil
		},
	}
}

func validPriority(p goals.Priority) bool {
	for _, known := range priorities {
		if p == known {
			return true
		}
	}
	return false
}

// setPriority rewrites the priority line new_goal.sh writes into state.md.
func setPriority(dir string, priority goals.Priority) error {
	path := filepath.Join(dir, goals.StateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("set priority: %w", err)
	}
	updated := strings.Replace(string(data), "priority: "+string(goals.PriorityNormal), "priority: "+string(priority), 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("set priority: %w", err)
	}
	return nil
}
