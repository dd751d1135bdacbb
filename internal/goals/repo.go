package goals

import (
	"os"
	"path/filepath"

	"github.com/kingrea/keywork/internal/record"
)

// RepoConfigFile is the per-repo config document under agents/repos/<name>/.
const RepoConfigFile = "config.yaml"

// Repo is a registered target repository.
type Repo struct {
	Name        string
	Language    string
	Framework   string
	Remote      string
	Branch      string
	Priority    Priority
	Initialized bool
	ActiveGoals int
	Path        string
}

// LoadRepo snapshots the repo registered in dir. Initialized reports whether
// workspaceRoot/<name> is a directory; ActiveGoals counts active goals under
// goalsRoot whose state names this repo.
func LoadRepo(dir, workspaceRoot, goalsRoot string) Repo {
	cfg := record.ReadNested(filepath.Join(dir, RepoConfigFile))
	name := filepath.Base(dir)
	return Repo{
		Name:        name,
		Language:    cfg.String("language"),
		Framework:   cfg.String("framework"),
		Remote:      cfg.String("remote"),
		Branch:      cfg.StringOr("branch", "main"),
		Priority:    Priority(cfg.StringOr("priority", string(PriorityNormal))),
		Initialized: isDir(filepath.Join(workspaceRoot, name)),
		ActiveGoals: countGoalsFor(goalsRoot, name),
		Path:        dir,
	}
}

// LoadAllRepos snapshots every registered repo under reposRoot in name order.
func LoadAllRepos(reposRoot, workspaceRoot, goalsRoot string) []Repo {
	dirs := ActiveDirs(reposRoot)
	out := make([]Repo, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, LoadRepo(dir, workspaceRoot, goalsRoot))
	}
	return out
}

func countGoalsFor(goalsRoot, repo string) int {
	n := 0
	for _, dir := range ActiveDirs(goalsRoot) {
		if record.Read(filepath.Join(dir, StateFile)).Get("repo", "") == repo {
			n++
		}
	}
	return n
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
