package runlog

// format.go renders the run log. The log is read back by Parse to build the
// rerun list, so headings, entry lines and separators must not change
// without bumping FormatVersion and keeping Parse compatible.

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/perfgo/testbatch/model"
)

// FormatVersion is written into the header. Logs without it are version 1.
const FormatVersion = 2

// Separator bounds per-test blocks and the summary block.
var Separator = strings.Repeat("=", 70)

// Summary section headings per outcome. PASSED results are never listed.
var sectionHeadings = map[model.Outcome]string{
	model.OutcomeFailed:   "Failed tests:",
	model.OutcomeError:    "Error tests:",
	model.OutcomeTimedOut: "Timed out tests:",
	model.OutcomeSkipped:  "Skipped tests:",
}

// sectionOrder is the order sections appear in the summary.
var sectionOrder = []model.Outcome{
	model.OutcomeFailed,
	model.OutcomeError,
	model.OutcomeTimedOut,
	model.OutcomeSkipped,
}

// Header holds the lines written at the top of a run log.
type Header struct {
	Target  string
	LogFile string
	RunID   string
	Commit  string
	Branch  string
}

// WriteHeader writes the run log preamble.
func WriteHeader(w io.Writer, h Header) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n", h.Target)
	fmt.Fprintf(&b, "Logging to: %s\n", h.LogFile)
	fmt.Fprintf(&b, "Run ID: %s\n", h.RunID)
	if h.Commit != "" {
		fmt.Fprintf(&b, "Commit: %s", h.Commit)
		if h.Branch != "" {
			fmt.Fprintf(&b, " (%s)", h.Branch)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Log format: %d\n\n", FormatVersion)
	_, err := io.WriteString(w, b.String())
	return err
}

// ModeLine returns the line recording the run mode.
func ModeLine(mode model.Mode) string {
	return fmt.Sprintf("Mode: %s\n", mode)
}

// TestStart returns the opening of a per-test block.
func TestStart(identifier string) string {
	return fmt.Sprintf("\n%s\nRunning: %s\n%s\n", Separator, identifier, Separator)
}

// StatusLine returns the line closing a per-test block.
func StatusLine(outcome model.Outcome, elapsed time.Duration) string {
	return fmt.Sprintf("%s %s (%s)\n", outcome.Glyph(), outcome, seconds(elapsed))
}

// Progress returns the "[i/N] " prefix written before each test block.
// index is zero based.
func Progress(index, total int) string {
	return fmt.Sprintf("[%d/%d] ", index+1, total)
}

// FormatSummary renders the trailing summary block.
func FormatSummary(s *model.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", Separator, s.Title, Separator)
	fmt.Fprintf(&b, "Total tests run: %d\n", len(s.Results))
	fmt.Fprintf(&b, "Passed: %d\n", s.Count(model.OutcomePassed))
	fmt.Fprintf(&b, "Skipped: %d\n", s.Count(model.OutcomeSkipped))
	fmt.Fprintf(&b, "Failed: %d\n", s.Count(model.OutcomeFailed))
	fmt.Fprintf(&b, "Errors: %d\n", s.Count(model.OutcomeError))
	fmt.Fprintf(&b, "Timed out: %d\n", s.Count(model.OutcomeTimedOut))
	fmt.Fprintf(&b, "Total time: %s\n", seconds(s.Duration))

	for _, o := range sectionOrder {
		results := s.Filter(o)
		if len(results) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", sectionHeadings[o])
		for _, r := range results {
			fmt.Fprintf(&b, "  - %s (%s)\n", r.Identifier, seconds(r.Elapsed))
		}
	}
	fmt.Fprintf(&b, "%s\n\n", Separator)
	return b.String()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
