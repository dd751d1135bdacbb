package record

import (
	"sort"
	"strings"
)

// Value is one entry of a Nested config: either a scalar or an ordered list.
type Value struct {
	Scalar string
	Items  []string
	IsList bool
}

// Nested maps flattened keys (`parent.child` for one level of nesting) to
// scalar or list values.
type Nested map[string]Value

// String returns the scalar stored under key. Lists and missing keys yield "".
func (n Nested) String(key string) string {
	v, ok := n[key]
	if !ok || v.IsList {
		return ""
	}
	return v.Scalar
}

// StringOr returns the scalar under key or def when it is absent or empty.
func (n Nested) StringOr(key, def string) string {
	if s := n.String(key); s != "" {
		return s
	}
	return def
}

// List returns a copy of the list stored under key.
func (n Nested) List(key string) []string {
	v, ok := n[key]
	if !ok || !v.IsList {
		return nil
	}
	return append([]string(nil), v.Items...)
}

// Children collects the scalar leaves flattened under parent, keyed by the
// child name.
func (n Nested) Children(parent string) map[string]string {
	prefix := parent + "."
	out := map[string]string{}
	for key, v := range n {
		if v.IsList || !strings.HasPrefix(key, prefix) {
			continue
		}
		out[strings.TrimPrefix(key, prefix)] = v.Scalar
	}
	return out
}

// Keys returns the sorted keys of m.
func Keys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseNested reads the indented subset used by repo config files:
//
//	language: go
//	checks:
//	  lint: golangci-lint run
//	skills:
//	  - testing
//
// A key without an inline value opens a parent. Deeper `key: value` lines are
// stored as `parent.key`; deeper `- item` lines are appended to the parent's
// list. List items at or above the parent's indent are dropped without
// complaint.
func ParseNested(text string) Nested {
	out := Nested{}
	parent := ""
	parentIndent := 0
	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		indent := leadingWidth(line)

		if strings.HasPrefix(stripped, "- ") {
			if parent == "" || indent <= parentIndent {
				continue
			}
			item := strings.TrimSpace(stripped[2:])
			current, exists := out[parent]
			if exists && !current.IsList {
				continue
			}
			current.IsList = true
			current.Items = append(current.Items, item)
			out[parent] = current
			continue
		}

		key, value, ok := strings.Cut(stripped, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			parent = key
			parentIndent = indent
			continue
		}
		switch {
		case indent == 0:
			out[key] = Value{Scalar: value}
		case parent != "":
			out[parent+"."+key] = Value{Scalar: value}
		}
	}
	return out
}

// ReadNested parses the file at path. A missing file yields an empty config.
func ReadNested(path string) Nested {
	text, ok := readText(path)
	if !ok {
		return Nested{}
	}
	return ParseNested(text)
}

// Section returns the block nested under the top-level `key:` line, with the
// block's common indentation removed. The block ends at the next line that
// starts in column zero (comments and blank lines excepted).
func Section(text, key string) string {
	lines := strings.Split(normalizeNewlines(text), "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimRight(line, " \t") == key+":" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}
	var block []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") && line[0] != ' ' && line[0] != '\t' {
			break
		}
		block = append(block, line)
	}
	return dedent(block)
}

func dedent(lines []string) string {
	minIndent := -1
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := leadingWidth(line)
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.Join(lines, "\n")
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if leadingWidth(line) >= minIndent {
			line = line[minIndent:]
		} else {
			line = strings.TrimLeft(line, " \t")
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func leadingWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
