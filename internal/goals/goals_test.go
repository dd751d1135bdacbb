package goals

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/keywork/internal/ledger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadReadsGoalState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-feature")
	writeFile(t, filepath.Join(dir, StateFile),
		"# Goal State\nstatus: building\npriority: high\nrepo: my-project\ntotal_cost_usd: 1.50\nlast_activity: 2024-01-15T10:30:00Z\n")
	writeFile(t, filepath.Join(dir, ImplementationFile),
		"- [x] T001: Done\n- [ ] T002: Todo\n- [BLOCKED: api] T003: Blocked\n")
	writeFile(t, filepath.Join(dir, PRDFile), "# PRD\n\n<!-- template -->\nDo the thing.\n")

	g := Load(dir)
	assert.Equal(t, "my-feature", g.Name)
	assert.Equal(t, StatusBuilding, g.Status)
	assert.Equal(t, PriorityHigh, g.Priority)
	assert.Equal(t, "my-project", g.Repo)
	assert.Equal(t, "2024-01-15T10:30:00Z", g.LastActivity)
	assert.Equal(t, ledger.Counts{Total: 3, Completed: 1, Blocked: 1}, g.Counts)
	assert.InDelta(t, 1.50, g.TotalCostUSD, 1e-9)
	assert.Equal(t, "Do the thing.", g.PRDSummary)
	assert.Equal(t, "1/3", g.Progress())
	assert.Equal(t, "building", g.StatusDisplay())
	assert.Equal(t, dir, g.Path)
}

func TestLoadEmptyDirectoryUsesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bare")
	require.NoError(t, os.Mkdir(dir, 0o755))

	g := Load(dir)
	assert.Equal(t, StatusCreated, g.Status)
	assert.Equal(t, PriorityNormal, g.Priority)
	assert.Equal(t, "no tasks", g.Progress())
	assert.Zero(t, g.TotalCostUSD)
	assert.Empty(t, g.Repo)
	assert.Empty(t, g.PRDSummary)
}

func TestLoadFlagsReplanAndFeedback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ReplanMarker), "")
	writeFile(t, filepath.Join(dir, FeedbackFile), "# Human Feedback\n")

	g := Load(dir)
	assert.True(t, g.HasReplan)
	assert.True(t, g.HasFeedback)
	assert.Equal(t, "created (replan, feedback)", g.StatusDisplay())
}

func TestLoadDegradesBadCost(t *testing.T) {
	for _, raw := range []string{"abc", "-3", "NaN", ""} {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, StateFile), "total_cost_usd: "+raw+"\n")
		assert.Zero(t, Load(dir).TotalCostUSD, raw)
	}
}

func TestPRDSummaryTruncates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, PRDFile), strings.Repeat("x", 200)+"\n")
	assert.Len(t, Load(dir).PRDSummary, 120)
}

func TestLoadAllSkipsArchivedAndHidden(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "_completed", ".git", "_template"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	writeFile(t, filepath.Join(root, "orchestrator.log"), "not a goal\n")

	var names []string
	for _, g := range LoadAll(root) {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestLoadAllMissingRoot(t *testing.T) {
	assert.Empty(t, LoadAll(filepath.Join(t.TempDir(), "missing")))
}

func TestTaskList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "g", ImplementationFile), "# Plan\n- [ ] T001: a\n  - Depends: T002\n")
	assert.Equal(t, []string{"- [ ] T001: a"}, TaskList(root, "g"))
	assert.Nil(t, TaskList(root, "missing"))
}

func TestLoadAllReposCountsActiveGoals(t *testing.T) {
	root := t.TempDir()
	repos := filepath.Join(root, "agents", "repos")
	goalsRoot := filepath.Join(root, "agents", "goals")
	workspace := filepath.Join(root, "workspace")

	writeFile(t, filepath.Join(repos, "my-project", RepoConfigFile),
		"name: my-project\nlanguage: python\npriority: high\nchecks:\n  lint: ruff check .\n")
	writeFile(t, filepath.Join(repos, "_template", RepoConfigFile), "language: go\n")
	writeFile(t, filepath.Join(repos, "other", RepoConfigFile), "branch: develop\n")
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "my-project"), 0o755))

	writeFile(t, filepath.Join(goalsRoot, "a", StateFile), "repo: my-project\n")
	writeFile(t, filepath.Join(goalsRoot, "b", StateFile), "repo: my-project\n")
	writeFile(t, filepath.Join(goalsRoot, "_completed", "c", StateFile), "repo: my-project\n")
	writeFile(t, filepath.Join(goalsRoot, "_old", StateFile), "repo: my-project\n")

	got := LoadAllRepos(repos, workspace, goalsRoot)
	require.Len(t, got, 2)

	assert.Equal(t, "my-project", got[0].Name)
	assert.Equal(t, "python", got[0].Language)
	assert.Equal(t, PriorityHigh, got[0].Priority)
	assert.Equal(t, "main", got[0].Branch)
	assert.True(t, got[0].Initialized)
	assert.Equal(t, 2, got[0].ActiveGoals)

	assert.Equal(t, "other", got[1].Name)
	assert.Equal(t, "develop", got[1].Branch)
	assert.Equal(t, PriorityNormal, got[1].Priority)
	assert.False(t, got[1].Initialized)
	assert.Zero(t, got[1].ActiveGoals)
}

func TestMarkersRoundTrip(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsPaused(dir))

	require.NoError(t, Pause(dir))
	assert.True(t, IsPaused(dir))
	data, err := os.ReadFile(filepath.Join(dir, PauseMarker))
	require.NoError(t, err)
	assert.Equal(t, "Paused from keywork\n", string(data))

	resumed, err := Resume(dir)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.False(t, IsPaused(dir))

	resumed, err = Resume(dir)
	require.NoError(t, err)
	assert.False(t, resumed)

	require.NoError(t, Stop(dir))
	assert.True(t, IsStopped(dir))
	assert.True(t, HasMarker(dir, StopMarker))
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"alpha", "add-login_v2", "g1"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", "../x", "../../etc", "a/b", `a\b`, "..", "_archived", ".hidden"} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, name)
	}
}

func TestPauseMissingGoal(t *testing.T) {
	err := Pause(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAppendFeedbackNumbersEntries(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }

	id, err := AppendFeedback(dir, "  button is misaligned  ", now)
	require.NoError(t, err)
	assert.Equal(t, "F001", id)

	id, err = AppendFeedback(dir, "second", now)
	require.NoError(t, err)
	assert.Equal(t, "F002", id)

	data, err := os.ReadFile(filepath.Join(dir, FeedbackFile))
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# Human Feedback\n"))
	assert.Contains(t, content, "### F001: keywork feedback\n")
	assert.Contains(t, content, "- **Observed**: button is misaligned\n")
	assert.Contains(t, content, "2024-01-15T10:30:00Z")
}

func TestAppendFeedbackContinuesExistingNumbering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FeedbackFile), "# Human Feedback\n\n## Open\n\n### F007: old\n\n## Resolved\n\n### F003: older\n")

	id, err := AppendFeedback(dir, "new", nil)
	require.NoError(t, err)
	assert.Equal(t, "F008", id)
}

func TestAppendFeedbackRejectsBlank(t *testing.T) {
	dir := t.TempDir()
	_, err := AppendFeedback(dir, " \n ", nil)
	assert.ErrorIs(t, err, ErrEmptyFeedback)
	assert.NoFileExists(t, filepath.Join(dir, FeedbackFile))
}
