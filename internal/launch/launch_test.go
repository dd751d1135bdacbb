package launch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/keywork/internal/config"
	"github.com/kingrea/keywork/internal/registry"
	"github.com/kingrea/keywork/internal/sandbox"
	"github.com/kingrea/keywork/internal/terminal"
)

type recordingOpener struct {
	result  terminal.Result
	command string
	title   string
	dir     string
}

func (r *recordingOpener) Open(_ context.Context, command, title, dir string) terminal.Result {
	r.command, r.title, r.dir = command, title, dir
	return r.result
}

func newBuilder(t *testing.T) (*sandbox.Builder, *config.Config) {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	b := sandbox.NewBuilder(cfg,
		sandbox.WithHome("/home/u"),
		sandbox.WithPlatform("linux"),
		sandbox.WithLookup(func(string) (string, bool) { return "", false }),
		sandbox.WithNamer(func() string { return "keywork-agent-cafebabe" }),
	)
	return b, cfg
}

func TestAgentInTerminalRecordsSession(t *testing.T) {
	b, cfg := newBuilder(t)
	opener := &recordingOpener{result: terminal.Result{Success: true, Method: terminal.MethodGnomeTerminal, PID: 77}}
	reg := registry.New(nil)
	l := New(b, opener, reg, cfg.Root)

	got, err := l.AgentInTerminal(context.Background(), Request{
		Script: "agents/prd.sh",
		Args:   []string{"g1", "it's"},
		Goal:   "g1",
		Repo:   "api",
		Action: "prd",
	})
	require.NoError(t, err)
	assert.True(t, got.Success)

	assert.Equal(t, "Keywork: prd — g1 (api)", opener.title)
	assert.Equal(t, cfg.Root, opener.dir)
	assert.Contains(t, opener.command, "docker run --rm --name keywork-agent-cafebabe -it ")
	assert.Contains(t, opener.command, "-v "+filepath.Join(cfg.Root, "workspace", "api")+":/workspace")
	assert.Contains(t, opener.command, `keywork-sandbox bash agents/prd.sh g1 'it'"'"'s'`)

	sessions := reg.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "g1", sessions[0].Goal)
	assert.Equal(t, "api", sessions[0].Repo)
	assert.Equal(t, "prd", sessions[0].Action)
	assert.Equal(t, terminal.MethodGnomeTerminal, sessions[0].Method)
	assert.Equal(t, 77, sessions[0].PID)
	assert.Equal(t, opener.command, sessions[0].Command)
	assert.Empty(t, reg.Containers())
}

func TestAgentInTerminalFallbackRecordsNothing(t *testing.T) {
	b, cfg := newBuilder(t)
	opener := &recordingOpener{result: terminal.Result{Method: terminal.MethodFallback, FallbackCommand: "cd x && y"}}
	reg := registry.New(nil)

	got, err := New(b, opener, reg, cfg.Root).AgentInTerminal(context.Background(), Request{Script: "s.sh", Goal: "g", Action: "retro"})
	require.NoError(t, err)
	assert.Equal(t, "cd x && y", got.FallbackCommand)
	assert.Equal(t, "Keywork: retro — g", opener.title)
	assert.Empty(t, reg.Sessions())
}

func TestAgentInTerminalRequiresScript(t *testing.T) {
	b, cfg := newBuilder(t)
	_, err := New(b, &recordingOpener{}, nil, cfg.Root).AgentInTerminal(context.Background(), Request{Goal: "g"})
	assert.ErrorIs(t, err, sandbox.ErrNoScript)
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"":                   "''",
		"plain-word_1.sh":    "plain-word_1.sh",
		"/a/b:/c":            "/a/b:/c",
		"KEY=value":          "KEY=value",
		"two words":          "'two words'",
		"it's":               `'it'"'"'s'`,
		"$HOME":              "'$HOME'",
		"keywork-cache:/x/y": "keywork-cache:/x/y",
		"a,b":                "'a,b'",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShellQuote(in), in)
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Keywork: build — g", Title("build", "g", ""))
}
