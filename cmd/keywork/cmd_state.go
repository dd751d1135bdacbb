package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/keywork/internal/attention"
	"github.com/kingrea/keywork/internal/goals"
	"github.com/kingrea/keywork/internal/ledger"
	"github.com/kingrea/keywork/internal/ui"
)

func (a *app) attentionItems() []attention.Item {
	agg := attention.New(attention.WithLedger(ledger.New(ledger.WithLookahead(a.cfg.Settings.ReviewLookahead))))
	return agg.Load(a.cfg.GoalsDir())
}

// goalDir returns the directory of an existing goal.
func (a *app) goalDir(name string) (string, error) {
	if err := goals.ValidateName(name); err != nil {
		return "", err
	}
	dir := a.cfg.GoalDir(name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("goal %q not found under %s", name, a.cfg.GoalsDir())
	}
	return dir, nil
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every active goal and what needs attention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := goals.LoadAll(a.cfg.GoalsDir())
			if len(all) == 0 {
				fmt.Fprintf(a.out, "No active goals under %s\n", a.cfg.GoalsDir())
				return nil
			}
			tbl := ui.NewTable("GOAL", "STATUS", "PRIORITY", "PROGRESS", "COST", "REPO", "LAST ACTIVITY")
			for _, g := range all {
				tbl.Row(
					ui.C(g.Name, ui.Bold),
					ui.C(g.StatusDisplay(), ui.GoalStatus(string(g.Status))),
					ui.C(string(g.Priority), ui.Priority(string(g.Priority))),
					ui.C(g.Progress(), nil),
					ui.C(formatCost(g.TotalCostUSD), nil),
					ui.C(orDash(g.Repo), nil),
					ui.C(orDash(g.LastActivity), ui.Dim),
				)
			}
			tbl.Render(a.out)

			summary := attention.Summary(a.attentionItems())
			fmt.Fprintf(a.out, "\n%s %d review · %d question · %d paused\n",
				ui.Bold("Attention:"),
				summary[attention.KindReview],
				summary[attention.KindQuestion],
				summary[attention.KindPaused],
			)
			return nil
		},
	}
}

func goalCmd(a *app) *cobra.Command {
	var flagTasks bool

	cmd := &cobra.Command{
		Use:   "goal <name>",
		Short: "Show one goal in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.goalDir(args[0])
			if err != nil {
				return err
			}
			g := goals.Load(dir)
			fmt.Fprintf(a.out, "%s %s\n", ui.Bold("Goal:"), g.Name)
			fmt.Fprintf(a.out, "  Status:        %s\n", ui.GoalStatus(string(g.Status))(g.StatusDisplay()))
			fmt.Fprintf(a.out, "  Priority:      %s\n", ui.Priority(string(g.Priority))(string(g.Priority)))
			fmt.Fprintf(a.out, "  Repo:          %s\n", orDash(g.Repo))
			fmt.Fprintf(a.out, "  Progress:      %s (%d pending · %d blocked · %d review)\n",
				g.Progress(), g.Counts.Pending(), g.Counts.Blocked, g.Counts.Review)
			fmt.Fprintf(a.out, "  Cost:          %s\n", formatCost(g.TotalCostUSD))
			fmt.Fprintf(a.out, "  Last activity: %s\n", orDash(g.LastActivity))
			if g.PRDSummary != "" {
				fmt.Fprintf(a.out, "  PRD:           %s\n", g.PRDSummary)
			}
			if goals.IsStopped(dir) {
				fmt.Fprintf(a.out, "  %s\n", ui.BoldRed("stop requested"))
			}

			items := attention.ForGoal(a.attentionItems(), g.Name)
			if len(items) > 0 {
				fmt.Fprintf(a.out, "\n%s\n", ui.Bold("Needs attention:"))
				for _, item := range items {
					fmt.Fprintf(a.out, "  %s %s\n", ui.AttentionIcon(string(item.Kind)), describeItem(item))
				}
			}

			if flagTasks {
				lines := goals.TaskList(a.cfg.GoalsDir(), g.Name)
				fmt.Fprintf(a.out, "\n%s\n", ui.Bold("Tasks:"))
				if len(lines) == 0 {
					fmt.Fprintln(a.out, ui.Dim("  (no tasks)"))
				}
				for _, line := range lines {
					fmt.Fprintf(a.out, "  %s\n", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&flagTasks, "tasks", "t", false, "Also list the implementation checklist")
	return cmd
}

func attentionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attention",
		Short: "List reviews, questions and paused goals waiting on a human",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := a.attentionItems()
			if len(items) == 0 {
				fmt.Fprintln(a.out, ui.Green("Nothing needs attention."))
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(a.out, "%s %s  %s\n", ui.AttentionIcon(string(item.Kind)), ui.Bold(item.Goal), describeItem(item))
			}
			return nil
		},
	}
}

func reposCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List registered repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := goals.LoadAllRepos(a.cfg.ReposDir(), a.cfg.WorkspaceDir(), a.cfg.GoalsDir())
			if len(repos) == 0 {
				fmt.Fprintf(a.out, "No repos registered under %s\n", a.cfg.ReposDir())
				return nil
			}
			tbl := ui.NewTable("REPO", "LANGUAGE", "FRAMEWORK", "BRANCH", "PRIORITY", "INITIALIZED", "ACTIVE GOALS")
			for _, r := range repos {
				initialized := ui.C("no", ui.Yellow)
				if r.Initialized {
					initialized = ui.C("yes", ui.Green)
				}
				tbl.Row(
					ui.C(r.Name, ui.Bold),
					ui.C(orDash(r.Language), nil),
					ui.C(orDash(r.Framework), nil),
					ui.C(r.Branch, nil),
					ui.C(string(r.Priority), ui.Priority(string(r.Priority))),
					initialized,
					ui.C(strconv.Itoa(r.ActiveGoals), nil),
				)
			}
			tbl.Render(a.out)
			return nil
		},
	}
}

func logCmd(a *app) *cobra.Command {
	var flagLines int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the tail of the orchestrator activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := flagLines
			if n <= 0 {
				n = a.cfg.Settings.ActivityLines
			}
			lines, total := a.activity.Tail(n)
			if total == 0 {
				fmt.Fprintln(a.out, ui.Dim("No activity yet."))
				return nil
			}
			for _, line := range lines {
				fmt.Fprintln(a.out, line)
			}
			if total > len(lines) {
				fmt.Fprintln(a.out, ui.Dim(fmt.Sprintf("(%d of %d lines)", len(lines), total)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&flagLines, "lines", "n", 0, "Number of lines (default from config)")
	return cmd
}

func describeItem(item attention.Item) string {
	switch item.Kind {
	case attention.KindReview:
		return fmt.Sprintf("review %s: %s", item.TaskID, item.Title)
	case attention.KindQuestion:
		return fmt.Sprintf("question %s: %s", item.QuestionID, item.Title)
	default:
		return item.Title
	}
}

func formatCost(usd float64) string {
	return fmt.Sprintf("$%.2f", usd)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
