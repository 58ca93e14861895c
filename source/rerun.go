package source

// rerun.go derives a test list from the log of a previous run.

import (
	"fmt"

	"github.com/perfgo/testbatch/runlog"
)

// RerunOptions selects which summary sections are re-run besides failures.
type RerunOptions struct {
	IncludeTimeouts bool
	IncludeErrors   bool
}

// Rerun is a source derived from a prior log together with what was parsed.
type Rerun struct {
	*Source
	Parsed *runlog.Parsed
}

// FromLog parses a previous run log. The identifier shape follows the mode
// the earlier run was made in. Missing or unreadable logs and logs without a
// mode line are errors.
func FromLog(path string, opts RerunOptions) (*Rerun, error) {
	parsed, err := runlog.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot rerun from %s: %w", path, err)
	}

	ids := append([]string{}, parsed.Failed...)
	if opts.IncludeErrors {
		ids = append(ids, parsed.Errors...)
	}
	if opts.IncludeTimeouts {
		ids = append(ids, parsed.TimedOut...)
	}

	return &Rerun{
		Source: &Source{
			Identifiers: ids,
			Shape:       parsed.Mode.Shape(),
			Mode:        parsed.Mode,
			Locator:     path,
		},
		Parsed: parsed,
	}, nil
}
