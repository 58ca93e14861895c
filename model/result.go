package model

import "time"

// RunResult is the recorded outcome of one test identifier. Captured output
// has already been written to the run log by the time a RunResult exists.
type RunResult struct {
	// Identifier that was executed
	Identifier string
	// Terminal state assigned by the runner
	Outcome Outcome
	// Wall time spent on the invocation
	Elapsed time.Duration
	// Exit code of the subprocess, -1 if it never ran to completion
	ExitCode int
}

// Success reports whether the result counts as good.
func (r RunResult) Success() bool {
	return r.Outcome.Success()
}

// Summary aggregates the results of one batch.
type Summary struct {
	// Title printed at the top of the summary block
	Title string
	// Results in execution order
	Results []RunResult
	// Wall time of the whole batch
	Duration time.Duration
	// Identifier that triggered stop-on-failure, empty otherwise
	StoppedAt string
}

// Count returns how many results ended in the given outcome.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Filter returns the results with the given outcome in execution order.
func (s *Summary) Filter(o Outcome) []RunResult {
	var out []RunResult
	for _, r := range s.Results {
		if r.Outcome == o {
			out = append(out, r)
		}
	}
	return out
}

// OK reports whether the batch is good: no ERROR, FAILED or TIMEDOUT results.
// Skipped tests do not count against it.
func (s *Summary) OK() bool {
	return s.Count(OutcomeError) == 0 && s.Count(OutcomeFailed) == 0 && s.Count(OutcomeTimedOut) == 0
}

// ExitCode is the process exit status for this batch.
func (s *Summary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}
