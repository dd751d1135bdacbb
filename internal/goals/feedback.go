package goals

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyFeedback is returned when the submitted text is blank.
var ErrEmptyFeedback = errors.New("goals: feedback cannot be empty")

const feedbackSkeleton = "# Human Feedback\n\n<!-- Last incorporated: none -->\n\n## Open\n\n## Resolved\n"

var feedbackIDPattern = regexp.MustCompile(`F(\d+)`)

// AppendFeedback records an observation in the goal's feedback.md, creating
// the file when needed, and returns the new entry ID (F001, F002, ...).
// now stamps the entry; nil means time.Now.
func AppendFeedback(dir, text string, now func() time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyFeedback
	}
	if now == nil {
		now = time.Now
	}
	path := filepath.Join(dir, FeedbackFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = []byte(feedbackSkeleton)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("goals: create feedback: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("goals: read feedback: %w", err)
	}

	id := fmt.Sprintf("F%03d", nextFeedbackNumber(string(data)))
	var b strings.Builder
	fmt.Fprintf(&b, "\n### %s: keywork feedback\n", id)
	b.WriteString("- **Type**: observation\n")
	b.WriteString("- **Related tasks**: (to be classified by plan agent)\n")
	fmt.Fprintf(&b, "- **Observed**: %s\n", text)
	b.WriteString("- **Expected**: (to be clarified)\n")
	fmt.Fprintf(&b, "- **Notes**: Submitted via keywork at %s\n\n", now().UTC().Format(time.RFC3339))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("goals: open feedback: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("goals: append feedback: %w", err)
	}
	return id, nil
}

func nextFeedbackNumber(content string) int {
	highest := 0
	for _, m := range feedbackIDPattern.FindAllStringSubmatch(content, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}
