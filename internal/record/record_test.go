package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseReadsKeyValueLines(t *testing.T) {
	rec := Parse("# Goal State\n\nstatus: building\npriority: high\nrepo: my-project\n")
	assert.Equal(t, Record{"status": "building", "priority": "high", "repo": "my-project"}, rec)
}

func TestParseSkipsHeadingsAndLinesWithoutColon(t *testing.T) {
	rec := Parse("# status: ignored\njust prose\n  status:   created  \n")
	assert.Equal(t, Record{"status": "created"}, rec)
}

func TestParseSplitsOnFirstColonAndLastWriteWins(t *testing.T) {
	rec := Parse("last_activity: 2024-01-15T10:30:00Z\nstatus: planning\nstatus: building\r\n")
	assert.Equal(t, "2024-01-15T10:30:00Z", rec["last_activity"])
	assert.Equal(t, "building", rec["status"])
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	rec := Read(filepath.Join(t.TempDir(), "nonexistent.md"))
	assert.NotNil(t, rec)
	assert.Empty(t, rec)
	assert.Equal(t, "normal", rec.Get("priority", "normal"))
}

func TestReadParsesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "state.md", "status: created\n")
	assert.Equal(t, "created", Read(path).Get("status", ""))
}

func TestParseNestedScalarsAtTopLevel(t *testing.T) {
	cfg := ParseNested("name: my-project\nlanguage: python\ninitialized: true\n")
	assert.Equal(t, "my-project", cfg.String("name"))
	assert.Equal(t, "python", cfg.String("language"))
	assert.Equal(t, "true", cfg.String("initialized"))
}

func TestParseNestedFlattensOneLevel(t *testing.T) {
	cfg := ParseNested("checks:\n  lint: a\n  test: b\n")
	assert.Equal(t, Nested{
		"checks.lint": {Scalar: "a"},
		"checks.test": {Scalar: "b"},
	}, cfg)
	assert.Equal(t, map[string]string{"lint": "a", "test": "b"}, cfg.Children("checks"))
}

func TestParseNestedCollectsLists(t *testing.T) {
	cfg := ParseNested("skills:\n  - testing\n  - docker\n")
	assert.Equal(t, Nested{"skills": {Items: []string{"testing", "docker"}, IsList: true}}, cfg)
	assert.Equal(t, []string{"testing", "docker"}, cfg.List("skills"))
	assert.Equal(t, "", cfg.String("skills"))
}

func TestParseNestedIgnoresComments(t *testing.T) {
	cfg := ParseNested("# comment\nname: test\n# another comment\n")
	assert.Equal(t, Nested{"name": {Scalar: "test"}}, cfg)
}

func TestParseNestedDropsListItemsNotDeeperThanParent(t *testing.T) {
	cfg := ParseNested("skills:\n- testing\n  - docker\n")
	assert.Equal(t, []string{"docker"}, cfg.List("skills"))
}

func TestParseNestedDropsOrphanIndentedLeaves(t *testing.T) {
	cfg := ParseNested("  stray: value\n  - item\nname: ok\n")
	assert.Equal(t, Nested{"name": {Scalar: "ok"}}, cfg)
}

func TestParseNestedParentEndsAtShallowerKey(t *testing.T) {
	cfg := ParseNested("checks:\n  lint: a\nbranch: main\n")
	assert.Equal(t, "main", cfg.String("branch"))
	assert.Equal(t, "a", cfg.String("checks.lint"))
	assert.NotContains(t, cfg, "checks.branch")
}

func TestReadNestedMissingFileIsEmpty(t *testing.T) {
	cfg := ReadNested(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.Empty(t, cfg)
	assert.Equal(t, "main", cfg.StringOr("branch", "main"))
}

func TestSectionExtractsIndentedBlock(t *testing.T) {
	text := "language: go\nsandbox:\n  env_vars:\n    A: \"2\"\n  # note\n  volumes:\n    - /host:/container\nbranch: main\n"
	got := Section(text, "sandbox")
	assert.Equal(t, "env_vars:\n  A: \"2\"\n# note\nvolumes:\n  - /host:/container", got)

	cfg := ParseNested(got)
	assert.Equal(t, map[string]string{"A": "\"2\""}, cfg.Children("env_vars"))
	assert.Equal(t, []string{"/host:/container"}, cfg.List("volumes"))
}

func TestSectionMissingKey(t *testing.T) {
	assert.Equal(t, "", Section("language: go\n", "sandbox"))
}

func TestKeysAreSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Keys(map[string]string{"c": "", "a": "", "b": ""}))
}
