package runner

// classify.go maps a finished invocation to an outcome. Matching captured
// text is heuristic; it is kept behind Classifier so a structured result from
// the test framework can replace it without touching the rest of the run.

import (
	"fmt"
	"regexp"

	"github.com/acarl005/stripansi"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
)

// Classifier assigns outcomes from exit code and captured output.
type Classifier struct {
	timeout *regexp.Regexp
	error   *regexp.Regexp
	skip    *regexp.Regexp
}

// NewClassifier compiles the signatures. An empty expression never matches.
func NewClassifier(sig config.Signatures) (*Classifier, error) {
	c := &Classifier{}
	for _, s := range []struct {
		name string
		expr string
		dst  **regexp.Regexp
	}{
		{"timeout", sig.Timeout, &c.timeout},
		{"error", sig.Error, &c.error},
		{"skip", sig.Skip, &c.skip},
	} {
		if s.expr == "" {
			continue
		}
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s signature: %w", s.name, err)
		}
		*s.dst = re
	}
	return c, nil
}

// Classify returns the outcome of an invocation that ran to completion.
// output is stdout followed by stderr. On a non-zero exit the timeout
// signature wins over the error signature when both are present.
func (c *Classifier) Classify(exitCode int, output string) model.Outcome {
	text := stripansi.Strip(output)

	if exitCode != 0 {
		switch {
		case matches(c.timeout, text):
			return model.OutcomeTimedOut
		case matches(c.error, text):
			return model.OutcomeError
		default:
			return model.OutcomeFailed
		}
	}

	if matches(c.skip, text) {
		return model.OutcomeSkipped
	}
	return model.OutcomePassed
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}
