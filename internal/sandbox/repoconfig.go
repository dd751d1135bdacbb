package sandbox

import (
	"os"
	"strconv"
	"strings"

	"github.com/kingrea/keywork/internal/record"
)

// RepoConfig is the `sandbox:` block of agents/repos/<repo>/config.yaml:
//
//	sandbox:
//	  env_vars:
//	    DATABASE_URL: postgres://localhost/dev
//	  volumes:
//	    - /host/data:/data
//	  ports:
//	    - 8080
type RepoConfig struct {
	Env     map[string]string
	Volumes []string
	Ports   []int
}

// ReadRepoConfig parses the sandbox block of the file at path. A missing file
// or block yields an empty config; unparseable port entries are skipped.
func ReadRepoConfig(path string) RepoConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		return RepoConfig{Env: map[string]string{}}
	}
	return ParseRepoConfig(string(data))
}

// ParseRepoConfig is ReadRepoConfig over text already in memory.
func ParseRepoConfig(text string) RepoConfig {
	cfg := RepoConfig{Env: map[string]string{}}
	block := record.ParseNested(record.Section(text, "sandbox"))
	for key, value := range block.Children("env_vars") {
		cfg.Env[key] = unquote(value)
	}
	cfg.Volumes = block.List("volumes")
	for _, item := range block.List("ports") {
		port, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		cfg.Ports = append(cfg.Ports, port)
	}
	return cfg
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
