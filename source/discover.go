package source

// discover.go asks the test framework for its list of tests and turns the
// output into node ids.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
)

// Bounds how long orphaned grandchildren may hold the output pipes.
const discoverWaitDelay = 2 * time.Second

// "test_method (__main__.Class.test_method)" carries the node id in parens.
var parenthesizedIDRe = regexp.MustCompile(`.*\s+\((.+)\)\s*$`)

// Discoverer runs the profile's discovery command against suite files.
type Discoverer struct {
	logger    zerolog.Logger
	profile   config.Profile
	targetDir string
	notices   io.Writer
}

// NewDiscoverer creates a discoverer. Failure notices are written to notices.
func NewDiscoverer(logger zerolog.Logger, profile config.Profile, targetDir string, notices io.Writer) *Discoverer {
	return &Discoverer{
		logger:    logger,
		profile:   profile,
		targetDir: targetDir,
		notices:   notices,
	}
}

// Discover lists the tests of every file (relative to the target root; the
// profile's suite file when none is given) and keeps those matching filter.
// A failing file contributes no tests; the result may be empty but is never
// an error.
func (d *Discoverer) Discover(ctx context.Context, files []string, filter *regexp.Regexp) *Source {
	if len(files) == 0 {
		files = []string{d.profile.SuiteFile}
	}

	var ids []string
	seen := map[string]bool{}
	for _, file := range files {
		found, err := d.discoverFile(ctx, file)
		if err != nil {
			d.notice("%v\n", err)
			d.logger.Warn().Err(err).Str("file", file).Msg("Test discovery failed")
			continue
		}
		d.logger.Debug().Str("file", file).Int("tests", len(found)).Msg("Discovered tests")

		for _, id := range found {
			if file != d.profile.SuiteFile && !strings.Contains(id, "::") {
				id = file + "::" + id
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return &Source{
		Identifiers: Filter(ids, filter),
		Shape:       model.ShapeNodeID,
		Mode:        model.ModeFullSuite,
		Locator:     strings.Join(files, ","),
	}
}

func (d *Discoverer) discoverFile(ctx context.Context, file string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.profile.DiscoverTimeout)
	defer cancel()

	args := append([]string{}, d.profile.Command...)
	args = append(args, config.Expand(d.profile.DiscoverArgs, map[string]string{
		config.PlaceholderFile: filepath.Join(d.targetDir, file),
	})...)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = d.targetDir
	cmd.Env = d.profile.Environ(os.Environ())
	cmd.WaitDelay = discoverWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.logger.Debug().Str("command", shellescape.QuoteCommand(args)).Msg("Discovering tests")

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("discovery of %s timed out after %s", file, d.profile.DiscoverTimeout)
		}
		exitErr := &exec.ExitError{}
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = "(none)"
			}
			return nil, fmt.Errorf("discovery of %s failed (exit %d). stderr: %s", file, exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("discovery of %s failed: %w", file, err)
	}

	return ParseDiscoveryOutput(stdout.String()), nil
}

func (d *Discoverer) notice(format string, args ...any) {
	if d.notices != nil {
		fmt.Fprintf(d.notices, format, args...)
	}
}

// ParseDiscoveryOutput extracts identifiers from line-oriented discovery
// output. Suite reprs are skipped and "name (id)" lines yield the id.
func ParseDiscoveryOutput(output string) []string {
	var ids []string
	for _, line := range strings.Split(output, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "<") || strings.Contains(s, "TestSuite tests=") {
			continue
		}
		if m := parenthesizedIDRe.FindStringSubmatch(s); m != nil {
			ids = append(ids, strings.TrimSpace(m[1]))
			continue
		}
		ids = append(ids, s)
	}
	return ids
}
