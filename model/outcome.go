package model

import "fmt"

// Outcome is the terminal state of one executed test identifier.
type Outcome uint8

const (
	OutcomePassed Outcome = iota
	OutcomeSkipped
	OutcomeError
	OutcomeFailed
	OutcomeTimedOut
)

// Outcomes lists every outcome in the order they are reported.
var Outcomes = []Outcome{OutcomePassed, OutcomeSkipped, OutcomeError, OutcomeFailed, OutcomeTimedOut}

// String returns the upper-case tag used on per-test status lines.
func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "PASSED"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeError:
		return "ERROR"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeTimedOut:
		return "TIMEDOUT"
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Success reports whether the outcome counts as a good result. Only PASSED
// and SKIPPED do; this drives stop-on-failure.
func (o Outcome) Success() bool {
	return o == OutcomePassed || o == OutcomeSkipped
}

// Glyph returns the marker printed in front of the status line.
func (o Outcome) Glyph() string {
	if o.Success() {
		return "✓"
	}
	return "✗"
}

// ParseOutcome parses the tag produced by String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range Outcomes {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}
