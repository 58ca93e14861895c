package source

import (
	"regexp"

	"github.com/perfgo/testbatch/model"
)

// Source is the ordered list of identifiers for one run. All identifiers
// share Shape.
type Source struct {
	// Identifiers in execution order
	Identifiers []string
	// How every identifier is passed to the runner
	Shape model.Shape
	// Mode tag persisted in the log and checkpoint
	Mode model.Mode
	// Where the list came from (CSV file, discovery targets or log file)
	Locator string
}

// Len returns the number of identifiers.
func (s *Source) Len() int {
	return len(s.Identifiers)
}

// Index returns the position of id, or -1.
func (s *Source) Index(id string) int {
	for i, candidate := range s.Identifiers {
		if candidate == id {
			return i
		}
	}
	return -1
}

// Filter keeps identifiers matching re, preserving order. A nil re keeps
// everything.
func Filter(ids []string, re *regexp.Regexp) []string {
	if re == nil {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if re.MatchString(id) {
			out = append(out, id)
		}
	}
	return out
}
