// Package attention collects the items across all active goals that are
// waiting on a human: unblocked reviews, open questions and paused goals.
package attention

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kingrea/keywork/internal/goals"
	"github.com/kingrea/keywork/internal/ledger"
)

// Kind classifies an attention item.
type Kind string

const (
	KindReview   Kind = "review"
	KindQuestion Kind = "question"
	KindPaused   Kind = "paused"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindReview, KindQuestion, KindPaused}

// Item is one thing waiting on a human.
type Item struct {
	Goal       string
	Kind       Kind
	Title      string
	TaskID     string
	QuestionID string
}

// Question is an entry of the Open section of questions.md.
type Question struct {
	ID    string
	Title string
}

var (
	openHeading     = regexp.MustCompile(`(?m)^## Open[ \t]*$`)
	nextHeading     = regexp.MustCompile(`(?m)^## `)
	questionHeading = regexp.MustCompile(`(?m)^### (Q\d+):[ \t]*(.+)`)
)

// Aggregator walks a goals root. The zero value uses the default ledger.
type Aggregator struct {
	ledger ledger.Ledger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithLedger evaluates review dependencies with l.
func WithLedger(l ledger.Ledger) Option {
	return func(a *Aggregator) {
		a.ledger = l
	}
}

// New builds an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{ledger: ledger.New()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load returns attention items goal by goal in directory order. Within a goal
// reviews come first, then questions, then the paused marker.
func (a *Aggregator) Load(goalsRoot string) []Item {
	var items []Item
	for _, dir := range goals.ActiveDirs(goalsRoot) {
		items = append(items, a.forGoal(dir)...)
	}
	return items
}

func (a *Aggregator) forGoal(dir string) []Item {
	name := filepath.Base(dir)
	var items []Item
	if doc, ok := readDoc(filepath.Join(dir, goals.ImplementationFile)); ok {
		for _, r := range a.ledger.FindActionableReviews(doc) {
			items = append(items, Item{Goal: name, Kind: KindReview, Title: r.Title, TaskID: r.TaskID})
		}
	}
	if doc, ok := readDoc(filepath.Join(dir, goals.QuestionsFile)); ok {
		for _, q := range OpenQuestions(doc) {
			items = append(items, Item{Goal: name, Kind: KindQuestion, Title: q.Title, QuestionID: q.ID})
		}
	}
	if goals.IsPaused(dir) {
		items = append(items, Item{Goal: name, Kind: KindPaused, Title: "Paused: " + name})
	}
	return items
}

// Load aggregates goalsRoot with the default ledger.
func Load(goalsRoot string) []Item {
	return New().Load(goalsRoot)
}

// OpenQuestions extracts `### Q<n>: title` headings between the `## Open`
// heading and the next level-two heading.
func OpenQuestions(document string) []Question {
	document = strings.ReplaceAll(document, "\r\n", "\n")
	loc := openHeading.FindStringIndex(document)
	if loc == nil {
		return nil
	}
	section := document[loc[1]:]
	if next := nextHeading.FindStringIndex(section); next != nil {
		section = section[:next[0]]
	}
	var out []Question
	for _, m := range questionHeading.FindAllStringSubmatch(section, -1) {
		out = append(out, Question{ID: m[1], Title: strings.TrimSpace(m[2])})
	}
	return out
}

// Summary counts items per kind.
func Summary(items []Item) map[Kind]int {
	out := make(map[Kind]int, len(Kinds))
	for _, item := range items {
		out[item.Kind]++
	}
	return out
}

// ForGoal filters items down to one goal.
func ForGoal(items []Item, goal string) []Item {
	var out []Item
	for _, item := range items {
		if item.Goal == goal {
			out = append(out, item)
		}
	}
	return out
}

func readDoc(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}
