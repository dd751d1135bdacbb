// Package record reads the two line-oriented text formats that goal and repo
// documents are written in: flat `key: value` records and a narrow indented
// subset of YAML used by repo config files.
//
// Neither parser aims for YAML or Markdown compliance. They accept exactly the
// shapes the agent scripts emit and silently skip everything else.
package record

import (
	"os"
	"strings"
)

// Record is a flat key/value mapping parsed from `key: value` lines.
type Record map[string]string

// Get returns the value stored under key, or def when the key is absent.
func (r Record) Get(key, def string) string {
	if v, ok := r[key]; ok {
		return v
	}
	return def
}

// Parse builds a Record from text. Lines are trimmed; lines that start with
// `#` or contain no `:` are ignored. The first colon splits key from value.
// Later duplicates overwrite earlier ones.
func Parse(text string) Record {
	rec := Record{}
	for _, raw := range strings.Split(normalizeNewlines(text), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		rec[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return rec
}

// Read parses the file at path. A missing or unreadable file yields an empty
// Record.
func Read(path string) Record {
	text, ok := readText(path)
	if !ok {
		return Record{}
	}
	return Parse(text)
}

func readText(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
