package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestTableAlignsOnRawText(t *testing.T) {
	withoutColor(t)
	tbl := NewTable("GOAL", "STATUS", "COST")
	tbl.Row(C("alpha", nil), C("building", GoalStatus("building")), C("$1.50", nil))
	tbl.Row(C("b", nil), C("created (replan)", GoalStatus("created")), C("$0.00", nil))

	var buf bytes.Buffer
	tbl.Render(&buf)
	assert.Equal(t,
		"GOAL   STATUS            COST\n"+
			"alpha  building          $1.50\n"+
			"b      created (replan)  $0.00\n",
		buf.String())
	assert.Equal(t, 2, tbl.Len())
}

func TestWarnAndSuccessLines(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	Warnf(&buf, "token expires in ~%d minutes", 5)
	Successf(&buf, "paused %s", "g1")
	assert.Equal(t, "warning: token expires in ~5 minutes\n✓ paused g1\n", buf.String())
}

func TestUnknownStatusIsPlain(t *testing.T) {
	withoutColor(t)
	assert.Equal(t, "mystery", GoalStatus("mystery")("mystery"))
	assert.Equal(t, "normal", Priority("normal")("normal"))
}
