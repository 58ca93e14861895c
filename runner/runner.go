package runner

// runner.go executes one test identifier as a subprocess with a bounded wall
// clock budget and records its output in the run log.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"al.essio.dev/pkg/shellescape"
	"code.cloudfoundry.org/clock"
	"github.com/rs/zerolog"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
	"github.com/perfgo/testbatch/runlog"
)

// DefaultWaitDelay bounds how long output pipes may stay open after the
// child has been killed (e.g. held by orphaned worker processes).
const DefaultWaitDelay = 10 * time.Second

// ErrInterrupted is returned when the caller's context is cancelled while a
// test is running. The interrupted test has no outcome.
var ErrInterrupted = errors.New("test run interrupted")

// Runner executes single test identifiers.
type Runner struct {
	logger     zerolog.Logger
	clock      clock.Clock
	profile    config.Profile
	classifier *Classifier
	targetDir  string
	status     io.Writer
	transcript io.Writer
	extraArgs  []string
	waitDelay  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used to measure elapsed time.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) {
		r.clock = clk
	}
}

// WithTranscript sets where captured stdout/stderr is written. It defaults to
// the status writer.
func WithTranscript(w io.Writer) Option {
	return func(r *Runner) {
		r.transcript = w
	}
}

// WithExtraArgs appends arguments to every invocation.
func WithExtraArgs(args ...string) Option {
	return func(r *Runner) {
		r.extraArgs = append(r.extraArgs, args...)
	}
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// New creates a runner for the target environment rooted at targetDir.
// Block headers and status lines go to status.
func New(logger zerolog.Logger, profile config.Profile, targetDir string, status io.Writer, opts ...Option) (*Runner, error) {
	if targetDir == "" {
		return nil, fmt.Errorf("targetDir cannot be empty")
	}
	if status == nil {
		return nil, fmt.Errorf("status writer cannot be nil")
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	classifier, err := NewClassifier(profile.Signatures)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		logger:     logger,
		clock:      clock.NewClock(),
		profile:    profile,
		classifier: classifier,
		targetDir:  targetDir,
		status:     status,
		waitDelay:  DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.transcript == nil {
		r.transcript = status
	}
	return r, nil
}

// Execute runs one identifier and classifies the result. Launch failures are
// reported as ERROR and timeouts as TIMEDOUT; neither is returned as an
// error. The only error is ErrInterrupted, when ctx is cancelled mid-test.
func (r *Runner) Execute(ctx context.Context, id string, shape model.Shape, timeout time.Duration) (model.RunResult, error) {
	r.print(runlog.TestStart(id))

	args := BuildArgs(&r.profile, r.targetDir, id, shape, int(timeout/time.Second), r.extraArgs)
	r.logger.Debug().
		Str("test", id).
		Str("shape", shape.String()).
		Str("command", shellescape.QuoteCommand(args)).
		Dur("timeout", timeout).
		Msg("Starting test")

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = r.targetDir
	cmd.Env = r.profile.Environ(os.Environ())
	cmd.WaitDelay = r.waitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := r.clock.Now()
	runErr := cmd.Run()
	elapsed := r.clock.Since(start)

	// Output goes to the log before anything else so it survives a crash of
	// the controller.
	r.transcribe(stdout.Bytes(), stderr.Bytes())

	result := model.RunResult{
		Identifier: id,
		Elapsed:    elapsed,
		ExitCode:   -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	exited := cmd.ProcessState != nil && cmd.ProcessState.Exited()

	switch {
	case ctx.Err() != nil && !exited:
		r.print(fmt.Sprintf("Interrupted after %.2fs\n", elapsed.Seconds()))
		r.logger.Warn().Str("test", id).Msg("Test interrupted")
		return result, fmt.Errorf("%w: %s", ErrInterrupted, id)

	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && !exited:
		result.Outcome = model.OutcomeTimedOut
		r.print(fmt.Sprintf("Timed out after %.2fs (limit: %s)\n", elapsed.Seconds(), timeout))

	case cmd.ProcessState == nil:
		result.Outcome = model.OutcomeError
		r.print(fmt.Sprintf("Failed to launch: %v\n", runErr))
		r.logger.Error().Err(runErr).Str("test", id).Msg("Failed to launch test")

	default:
		output := stdout.String() + stderr.String()
		result.Outcome = r.classifier.Classify(result.ExitCode, output)
	}

	r.print(runlog.StatusLine(result.Outcome, elapsed))

	r.logger.Debug().
		Str("test", id).
		Str("outcome", result.Outcome.String()).
		Int("exit_code", result.ExitCode).
		Dur("elapsed", elapsed).
		Msg("Test finished")

	return result, nil
}

func (r *Runner) transcribe(stdout, stderr []byte) {
	for _, b := range [][]byte{stdout, stderr} {
		if len(b) == 0 {
			continue
		}
		if _, err := r.transcript.Write(b); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to write test output to log")
			return
		}
		if b[len(b)-1] != '\n' {
			_, _ = io.WriteString(r.transcript, "\n")
		}
	}
}

func (r *Runner) print(msg string) {
	if _, err := io.WriteString(r.status, msg); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write run log")
	}
}
