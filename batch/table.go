package batch

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/perfgo/testbatch/model"
)

// RenderTable prints the non-passed results of a summary as a table with a
// per-outcome footer.
func RenderTable(w io.Writer, s *model.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%.2fs)", s.Title, s.Duration.Seconds()))
	t.AppendHeader(table.Row{"Outcome", "Test", "Time"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Outcome", AutoMerge: true},
		{Name: "Test", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Time", Align: text.AlignRight},
	})

	for _, o := range []model.Outcome{model.OutcomeFailed, model.OutcomeError, model.OutcomeTimedOut, model.OutcomeSkipped} {
		for _, r := range s.Filter(o) {
			t.AppendRow(table.Row{o.String(), r.Identifier, fmt.Sprintf("%.2fs", r.Elapsed.Seconds())})
		}
	}

	switch {
	case !s.OK():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case s.Count(model.OutcomeSkipped) > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d run, %d passed, %d skipped, %d failed, %d errors, %d timed out",
			len(s.Results),
			s.Count(model.OutcomePassed),
			s.Count(model.OutcomeSkipped),
			s.Count(model.OutcomeFailed),
			s.Count(model.OutcomeError),
			s.Count(model.OutcomeTimedOut)),
		"",
	})

	t.Render()
}
