// Package ledger parses IMPLEMENTATION.md checklists into typed tasks and
// answers the one question the attention queue depends on: is a review task
// unblocked yet?
//
// The accepted task shapes are:
//
//	- [ ] T001: pending task
//	- [x] T002: done task
//	- [BLOCKED: reason] T003: blocked task
//	- [REVIEW: what to check] T004: review task
//	  - Depends: T001, T002
package ledger

import (
	"regexp"
	"strings"
)

// DefaultLookahead is how many lines after a review task are searched for its
// `Depends:` sub-line.
const DefaultLookahead = 9

// Status is the checklist state of a task.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusBlocked Status = "blocked"
	StatusReview  Status = "review"
)

// Task is one checklist line.
type Task struct {
	ID      string
	Status  Status
	Title   string
	Note    string
	Depends []string
	Line    int
}

// Counts tallies tasks by status.
type Counts struct {
	Total     int
	Completed int
	Blocked   int
	Review    int
}

// Pending is the number of tasks in none of the other states.
func (c Counts) Pending() int {
	return c.Total - c.Completed - c.Blocked - c.Review
}

// Review is an actionable review task.
type Review struct {
	Title  string
	TaskID string
}

var (
	taskIDPattern  = regexp.MustCompile(`\bT(\d+)`)
	depIDPattern   = regexp.MustCompile(`T\d+`)
	reviewPattern  = regexp.MustCompile(`^- \[REVIEW:\s*(.+?)\]`)
	dependsPattern = regexp.MustCompile(`^\s+-\s+Depends:\s*(.*)`)
)

const taskPrefix = "- ["

// Ledger evaluates checklist documents. The zero value is not useful; use New.
type Ledger struct {
	lookahead int
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithLookahead overrides the Depends search window. Values below 1 are
// ignored.
func WithLookahead(n int) Option {
	return func(l *Ledger) {
		if n >= 1 {
			l.lookahead = n
		}
	}
}

// New builds a Ledger.
func New(opts ...Option) Ledger {
	l := Ledger{lookahead: DefaultLookahead}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// Lookahead reports the configured Depends search window.
func (l Ledger) Lookahead() int {
	if l.lookahead < 1 {
		return DefaultLookahead
	}
	return l.lookahead
}

// Parse returns every task line in document order.
func (l Ledger) Parse(document string) []Task {
	lines := splitLines(document)
	var tasks []Task
	for i, line := range lines {
		task, ok := parseTaskLine(line)
		if !ok {
			continue
		}
		task.Line = i
		if deps, found := l.dependsLine(lines, i); found {
			task.Depends = depIDPattern.FindAllString(deps, -1)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// FindActionableReviews returns review tasks whose dependencies are all done.
// A review task with no Depends line inside the lookahead window is
// actionable.
func (l Ledger) FindActionableReviews(document string) []Review {
	lines := splitLines(document)
	var reviews []Review
	for i, line := range lines {
		m := reviewPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		satisfied := true
		if deps, found := l.dependsLine(lines, i); found {
			satisfied = DependenciesSatisfied(deps, document)
		}
		if !satisfied {
			continue
		}
		reviews = append(reviews, Review{
			Title:  strings.TrimSpace(m[1]),
			TaskID: TaskID(line),
		})
	}
	return reviews
}

func (l Ledger) dependsLine(lines []string, i int) (string, bool) {
	end := i + 1 + l.Lookahead()
	if end > len(lines) {
		end = len(lines)
	}
	for j := i + 1; j < end; j++ {
		if strings.HasPrefix(lines[j], taskPrefix) {
			return "", false
		}
		if m := dependsPattern.FindStringSubmatch(lines[j]); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Parse parses document with the default lookahead.
func Parse(document string) []Task {
	return New().Parse(document)
}

// FindActionableReviews evaluates document with the default lookahead.
func FindActionableReviews(document string) []Review {
	return New().FindActionableReviews(document)
}

// Count tallies task lines by status in one pass.
func Count(document string) Counts {
	var c Counts
	for _, line := range splitLines(document) {
		if !strings.HasPrefix(line, taskPrefix) {
			continue
		}
		c.Total++
		switch classify(line[len(taskPrefix):]) {
		case StatusDone:
			c.Completed++
		case StatusBlocked:
			c.Blocked++
		case StatusReview:
			c.Review++
		}
	}
	return c
}

// DependenciesSatisfied reports whether every task ID mentioned in dependsLine
// appears in document as a done task at the start of a line. An empty list is
// satisfied.
func DependenciesSatisfied(dependsLine, document string) bool {
	ids := depIDPattern.FindAllString(dependsLine, -1)
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		done := regexp.MustCompile(`(?m)^- \[x\] ` + regexp.QuoteMeta(id) + `\b`)
		if !done.MatchString(document) {
			return false
		}
	}
	return true
}

// TaskID extracts the first `T<digits>` token from line.
func TaskID(line string) string {
	m := taskIDPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return "T" + m[1]
}

// TaskLines returns the raw task lines of document.
func TaskLines(document string) []string {
	var out []string
	for _, line := range splitLines(document) {
		if strings.HasPrefix(line, taskPrefix) {
			out = append(out, line)
		}
	}
	return out
}

func parseTaskLine(line string) (Task, bool) {
	if !strings.HasPrefix(line, taskPrefix) {
		return Task{}, false
	}
	rest := line[len(taskPrefix):]
	task := Task{Status: classify(rest), ID: TaskID(line)}
	bracket, tail, closed := strings.Cut(rest, "]")
	if !closed {
		tail = ""
	}
	switch task.Status {
	case StatusBlocked:
		task.Note = noteAfterColon(strings.TrimPrefix(bracket, "BLOCKED"))
	case StatusReview:
		task.Note = noteAfterColon(strings.TrimPrefix(bracket, "REVIEW"))
	}
	title := strings.TrimSpace(tail)
	if task.ID != "" {
		if _, after, ok := strings.Cut(title, task.ID+":"); ok {
			title = after
		} else {
			title = strings.TrimPrefix(title, task.ID)
		}
	}
	task.Title = strings.TrimSpace(title)
	return task, true
}

func classify(bracket string) Status {
	switch {
	case strings.HasPrefix(bracket, "x]"):
		return StatusDone
	case strings.HasPrefix(bracket, "BLOCKED"):
		return StatusBlocked
	case strings.HasPrefix(bracket, "REVIEW"):
		return StatusReview
	default:
		return StatusPending
	}
}

func noteAfterColon(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), ":"))
}

func splitLines(document string) []string {
	return strings.Split(strings.ReplaceAll(document, "\r\n", "\n"), "\n")
}
