package runlog

// parser.go reads a run log back to reconstruct which identifiers need to be
// executed again.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/perfgo/testbatch/model"
)

// ErrNoMode is returned when a log does not record its run mode.
var ErrNoMode = errors.New("log file must contain 'Mode: full_suite' or 'Mode: csv'")

var (
	modeLineRe  = regexp.MustCompile(`^Mode:\s*(full_suite|csv)\s*$`)
	entryLineRe = regexp.MustCompile(`^\s+-\s+(.+?)\s+\(\d+\.\d+s\)\s*$`)
)

// Parsed is the content of a run log relevant to reruns.
type Parsed struct {
	Mode     model.Mode
	Failed   []string
	Errors   []string
	TimedOut []string
	Skipped  []string
}

// Section returns the identifiers listed for an outcome.
func (p *Parsed) Section(o model.Outcome) []string {
	switch o {
	case model.OutcomeFailed:
		return p.Failed
	case model.OutcomeError:
		return p.Errors
	case model.OutcomeTimedOut:
		return p.TimedOut
	case model.OutcomeSkipped:
		return p.Skipped
	}
	return nil
}

// ParseFile parses the run log at path.
func ParseFile(path string) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("log file not found or could not be read: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a run log. Identifiers are collected from every summary block
// in the log, de-duplicated per outcome in first-seen order. A log without a
// mode line yields ErrNoMode.
func Parse(r io.Reader) (*Parsed, error) {
	p := &Parsed{}
	seen := map[model.Outcome]map[string]bool{}

	headings := make(map[string]model.Outcome, len(sectionHeadings))
	for o, h := range sectionHeadings {
		headings[h] = o
	}

	var (
		section   model.Outcome
		inSection bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stripped := strings.TrimSpace(line)

		if p.Mode == "" {
			if m := modeLineRe.FindStringSubmatch(stripped); m != nil {
				p.Mode = model.Mode(m[1])
				continue
			}
		}

		if o, ok := headings[stripped]; ok {
			section, inSection = o, true
			continue
		}
		if stripped == "" || strings.HasPrefix(stripped, "=====") {
			inSection = false
			continue
		}
		if !inSection {
			continue
		}

		m := entryLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if seen[section] == nil {
			seen[section] = map[string]bool{}
		}
		if seen[section][name] {
			continue
		}
		seen[section][name] = true
		p.appendTo(section, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	if p.Mode == "" {
		return nil, ErrNoMode
	}
	return p, nil
}

func (p *Parsed) appendTo(o model.Outcome, name string) {
	switch o {
	case model.OutcomeFailed:
		p.Failed = append(p.Failed, name)
	case model.OutcomeError:
		p.Errors = append(p.Errors, name)
	case model.OutcomeTimedOut:
		p.TimedOut = append(p.TimedOut, name)
	case model.OutcomeSkipped:
		p.Skipped = append(p.Skipped, name)
	}
}
