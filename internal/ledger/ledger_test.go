package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixedPlan = "# Implementation Plan\n\n" +
	"- [ ] T001: First task\n" +
	"- [x] T002: Completed task\n" +
	"- [BLOCKED: needs info] T003: Blocked task\n" +
	"- [REVIEW: check output] T004: Review task\n" +
	"- [ ] T005: Another pending\n"

func TestCountMixedStatuses(t *testing.T) {
	c := Count(mixedPlan)
	assert.Equal(t, Counts{Total: 5, Completed: 1, Blocked: 1, Review: 1}, c)
	assert.Equal(t, 2, c.Pending())
	assert.Equal(t, c.Total, c.Completed+c.Blocked+c.Review+c.Pending())
}

func TestCountIsIdempotent(t *testing.T) {
	assert.Equal(t, Count(mixedPlan), Count(mixedPlan))
}

func TestCountNoTasks(t *testing.T) {
	assert.Equal(t, Counts{}, Count("# Implementation Plan\n\nNo tasks yet.\n"))
	assert.Equal(t, Counts{}, Count(""))
}

func TestCountIgnoresIndentedCheckboxes(t *testing.T) {
	c := Count("- [x] T001: Done\n  - [ ] nested note\n")
	assert.Equal(t, Counts{Total: 1, Completed: 1}, c)
}

func TestParseClassifiesAndExtractsFields(t *testing.T) {
	tasks := Parse(mixedPlan)
	require.Len(t, tasks, 5)

	assert.Equal(t, Task{ID: "T001", Status: StatusPending, Title: "First task", Line: 2}, tasks[0])
	assert.Equal(t, StatusDone, tasks[1].Status)
	assert.Equal(t, "Completed task", tasks[1].Title)
	assert.Equal(t, StatusBlocked, tasks[2].Status)
	assert.Equal(t, "needs info", tasks[2].Note)
	assert.Equal(t, StatusReview, tasks[3].Status)
	assert.Equal(t, "check output", tasks[3].Note)
	assert.Equal(t, "T004", tasks[3].ID)
}

func TestParseTaskWithoutID(t *testing.T) {
	tasks := Parse("- [ ] write docs\n")
	require.Len(t, tasks, 1)
	assert.Equal(t, "", tasks[0].ID)
	assert.Equal(t, "write docs", tasks[0].Title)
}

func TestParseAttachesDependencies(t *testing.T) {
	doc := "- [x] T001: Done\n- [ ] T002: Next\n  - Depends: T001, T005\n"
	tasks := Parse(doc)
	require.Len(t, tasks, 2)
	assert.Nil(t, tasks[0].Depends)
	assert.Equal(t, []string{"T001", "T005"}, tasks[1].Depends)
}

func TestDependenciesSatisfied(t *testing.T) {
	doc := "- [x] T001: Done\n- [x] T002: Done too\n- [ ] T003: Pending\n"
	tests := []struct {
		name    string
		depends string
		want    bool
	}{
		{"empty list is vacuous", "", true},
		{"no ids is vacuous", "nothing here", true},
		{"all done", "T001, T002", true},
		{"one pending", "T001, T003", false},
		{"unknown id", "T009", false},
		{"prefix id is not a match", "T00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DependenciesSatisfied(tt.depends, doc))
		})
	}
}

func TestDependenciesSatisfiedRequiresLineStart(t *testing.T) {
	doc := "  - [x] T001: indented done\nnotes: - [x] T001\n"
	assert.False(t, DependenciesSatisfied("T001", doc))
}

func TestDependenciesSatisfiedRespectsWordBoundary(t *testing.T) {
	doc := "- [x] T0010: Done\n"
	assert.False(t, DependenciesSatisfied("T001", doc))
}

func TestFindActionableReviewsWithDoneDependency(t *testing.T) {
	doc := "- [x] T001: Done\n" +
		"- [REVIEW: Check the output format] T002: Verify output\n" +
		"  - Depends: T001\n"
	assert.Equal(t, []Review{{Title: "Check the output format", TaskID: "T002"}}, FindActionableReviews(doc))
}

func TestFindActionableReviewsExcludesUnmetDependencies(t *testing.T) {
	for _, dep := range []string{"- [ ] T001: Pending", "- [BLOCKED: waiting] T001: Blocked"} {
		doc := dep + "\n- [REVIEW: check] T002: Review\n  - Depends: T001\n"
		assert.Empty(t, FindActionableReviews(doc), dep)
	}
}

func TestFindActionableReviewsWithoutDependsLine(t *testing.T) {
	doc := "- [ ] T001: Pending\n- [REVIEW: look] T002: Review\n  - Notes: nothing\n"
	assert.Equal(t, []Review{{Title: "look", TaskID: "T002"}}, FindActionableReviews(doc))
}

func TestFindActionableReviewsStopsAtNextTask(t *testing.T) {
	doc := "- [ ] T001: Pending\n" +
		"- [REVIEW: first] T002: Review\n" +
		"- [ ] T003: Other\n" +
		"  - Depends: T001\n"
	assert.Equal(t, []Review{{Title: "first", TaskID: "T002"}}, FindActionableReviews(doc))
}

func TestFindActionableReviewsLookaheadWindow(t *testing.T) {
	filler := strings.Repeat("  notes\n", 9)
	doc := "- [ ] T001: Pending\n- [REVIEW: far] T002: Review\n" + filler + "  - Depends: T001\n"

	assert.Len(t, FindActionableReviews(doc), 1, "Depends beyond the default window is not seen")
	assert.Empty(t, New(WithLookahead(10)).FindActionableReviews(doc))
}

func TestWithLookaheadIgnoresInvalidValues(t *testing.T) {
	assert.Equal(t, DefaultLookahead, New(WithLookahead(0)).Lookahead())
	assert.Equal(t, 3, New(WithLookahead(3)).Lookahead())
	assert.Equal(t, DefaultLookahead, Ledger{}.Lookahead())
}

func TestTaskLines(t *testing.T) {
	lines := TaskLines("# Plan\n- [ ] T001: a\n  - Depends: T002\n- [x] T002: b\n")
	assert.Equal(t, []string{"- [ ] T001: a", "- [x] T002: b"}, lines)
}

func TestTaskID(t *testing.T) {
	assert.Equal(t, "T003", TaskID("- [x] T003: thing"))
	assert.Equal(t, "", TaskID("- [x] nothing"))
	assert.Equal(t, "", TaskID("- [x] AT003 not an id"))
}
