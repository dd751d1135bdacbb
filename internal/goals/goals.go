// Package goals derives goal and repo snapshots from the agents/ tree.
//
// Every function here reads disk fresh. A missing or partial file degrades to
// default values; nothing in this package reports a parse error.
package goals

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kingrea/keywork/internal/ledger"
	"github.com/kingrea/keywork/internal/record"
)

// File names inside a goal directory.
const (
	StateFile          = "state.md"
	ImplementationFile = "IMPLEMENTATION.md"
	QuestionsFile      = "questions.md"
	PRDFile            = "prd.md"
	FeedbackFile       = "feedback.md"
	PauseMarker        = ".pause"
	StopMarker         = ".stop"
	ReplanMarker       = ".replan"
)

const prdSummaryLimit = 120

// Status is the lifecycle state written by the orchestrator. Unknown values
// are kept verbatim.
type Status string

const (
	StatusCreated    Status = "created"
	StatusPlanning   Status = "planning"
	StatusBuilding   Status = "building"
	StatusPaused     Status = "paused"
	StatusGateReview Status = "gate_review"
	StatusPromoting  Status = "promoting"
	StatusCompleted  Status = "completed"
)

// Priority orders goals and repos for the orchestrator.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Goal is a point-in-time snapshot of one goal directory.
type Goal struct {
	Name         string
	Status       Status
	Priority     Priority
	LastActivity string
	Counts       ledger.Counts
	TotalCostUSD float64
	HasReplan    bool
	HasFeedback  bool
	PRDSummary   string
	Repo         string
	Path         string
}

// Progress renders completed/total, or "no tasks" for an empty ledger.
func (g Goal) Progress() string {
	if g.Counts.Total == 0 {
		return "no tasks"
	}
	return strconv.Itoa(g.Counts.Completed) + "/" + strconv.Itoa(g.Counts.Total)
}

// StatusDisplay is the status followed by any replan/feedback indicators.
func (g Goal) StatusDisplay() string {
	var flags []string
	if g.HasReplan {
		flags = append(flags, "replan")
	}
	if g.HasFeedback {
		flags = append(flags, "feedback")
	}
	if len(flags) == 0 {
		return string(g.Status)
	}
	return string(g.Status) + " (" + strings.Join(flags, ", ") + ")"
}

// Load snapshots the goal stored in dir.
func Load(dir string) Goal {
	state := record.Read(filepath.Join(dir, StateFile))
	return Goal{
		Name:         filepath.Base(dir),
		Status:       Status(state.Get("status", string(StatusCreated))),
		Priority:     Priority(state.Get("priority", string(PriorityNormal))),
		LastActivity: state.Get("last_activity", ""),
		Counts:       countTasks(filepath.Join(dir, ImplementationFile)),
		TotalCostUSD: parseCost(state.Get("total_cost_usd", "0")),
		HasReplan:    exists(filepath.Join(dir, ReplanMarker)),
		HasFeedback:  exists(filepath.Join(dir, FeedbackFile)),
		PRDSummary:   prdSummary(filepath.Join(dir, PRDFile)),
		Repo:         state.Get("repo", ""),
		Path:         dir,
	}
}

// LoadAll snapshots every active goal under root, sorted by name.
func LoadAll(root string) []Goal {
	dirs := ActiveDirs(root)
	out := make([]Goal, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, Load(dir))
	}
	return out
}

// ActiveDirs lists the subdirectories of root in name order, skipping names
// that start with `_` (archived) or `.` (hidden). A missing root yields nil.
func ActiveDirs(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || excluded(entry.Name()) {
			continue
		}
		dirs = append(dirs, filepath.Join(root, entry.Name()))
	}
	sort.Strings(dirs)
	return dirs
}

// TaskList returns the raw task lines of a goal's implementation plan.
func TaskList(goalsRoot, goal string) []string {
	data, err := os.ReadFile(filepath.Join(goalsRoot, goal, ImplementationFile))
	if err != nil {
		return nil
	}
	return ledger.TaskLines(string(data))
}

func excluded(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// ErrInvalidName is returned for goal names that cannot name an active goal
// directory directly under the goals root.
var ErrInvalidName = errors.New("goals: invalid goal name")

// ValidateName accepts names that LoadAll would list: a single path element
// not starting with "_" or ".".
func ValidateName(name string) error {
	if name == "" || excluded(name) || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return nil
}

func countTasks(path string) ledger.Counts {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Counts{}
	}
	return ledger.Count(string(data))
}

func parseCost(raw string) float64 {
	cost, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0
	}
	return cost
}

func prdSummary(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<!--") {
			continue
		}
		runes := []rune(line)
		if len(runes) > prdSummaryLimit {
			runes = runes[:prdSummaryLimit]
		}
		return string(runes)
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
