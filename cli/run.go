package cli

// This file contains the run command which drives a test batch.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/testbatch/batch"
	"github.com/perfgo/testbatch/checkpoint"
	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/metrics"
	"github.com/perfgo/testbatch/model"
	"github.com/perfgo/testbatch/runlog"
	"github.com/perfgo/testbatch/runner"
	"github.com/perfgo/testbatch/source"
	"github.com/perfgo/testbatch/timing"
)

// runOptions is the validated form of the run command's flags.
type runOptions struct {
	target        string
	csvFile       string
	allTests      bool
	rerunLog      string
	rerun         source.RerunOptions
	testFiles     []string
	filter        *regexp.Regexp
	logFile       string
	timeout       time.Duration
	stopOnFailure bool
	resume        bool
	checkpoint    bool
	metricsFile   string
	profileFile   string
	extraArgs     []string
}

func (a *App) parseRunOptions(ctx *cli.Context, profile config.Profile, now time.Time) (*runOptions, error) {
	positional, extra := splitPassthrough(ctx.Args().Slice(), a.rawArgs)
	if len(positional) > 1 {
		return nil, fmt.Errorf("unexpected arguments: %s (flags must come before the CSV file)", strings.Join(positional[1:], " "))
	}

	opts := &runOptions{
		target:        ctx.String("target"),
		allTests:      ctx.Bool("all-tests"),
		rerunLog:      ctx.String("rerun-failed"),
		testFiles:     ctx.StringSlice("test-file"),
		logFile:       ctx.String("log-file"),
		timeout:       time.Duration(ctx.Int("per-test-timeout")) * time.Second,
		stopOnFailure: ctx.Bool("stop-on-failure"),
		resume:        ctx.Bool("resume"),
		checkpoint:    !ctx.Bool("no-checkpoint"),
		metricsFile:   ctx.String("metrics-file"),
		profileFile:   ctx.String("duration-profile"),
		extraArgs:     extra,
		rerun: source.RerunOptions{
			IncludeTimeouts: ctx.Bool("rerun-include-timeouts"),
			IncludeErrors:   ctx.Bool("rerun-include-errors"),
		},
	}
	if len(positional) == 1 {
		opts.csvFile = positional[0]
	}

	info, err := os.Stat(opts.target)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("target path does not exist: %s", opts.target)
	}
	suite := filepath.Join(opts.target, profile.SuiteFile)
	if _, err := os.Stat(suite); err != nil {
		return nil, fmt.Errorf("test file not found at: %s (please verify the target path is correct)", suite)
	}

	modes := 0
	for _, set := range []bool{opts.csvFile != "", opts.allTests, opts.rerunLog != ""} {
		if set {
			modes++
		}
	}
	switch {
	case modes == 0:
		return nil, errors.New("either provide a CSV file, use --all-tests, or use --rerun-failed LOG_FILE")
	case modes > 1:
		return nil, errors.New("use only one of: CSV file, --all-tests, or --rerun-failed")
	}

	if len(opts.testFiles) > 0 && !opts.allTests {
		return nil, errors.New("--test-file can only be used with --all-tests")
	}
	if (opts.rerun.IncludeTimeouts || opts.rerun.IncludeErrors) && opts.rerunLog == "" {
		a.logger.Warn().Msg("--rerun-include-* flags have no effect without --rerun-failed")
	}
	if opts.timeout <= 0 {
		return nil, fmt.Errorf("--per-test-timeout must be positive, got %d", ctx.Int("per-test-timeout"))
	}

	if expr := ctx.String("filter"); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter expression: %w", err)
		}
		opts.filter = re
	}

	if opts.logFile == "" {
		opts.logFile = defaultLogFile(opts.rerunLog, now)
	}
	if opts.rerunLog != "" && samePath(opts.rerunLog, opts.logFile) {
		return nil, fmt.Errorf("--log-file must differ from the --rerun-failed log (%s would be overwritten)", opts.rerunLog)
	}

	return opts, nil
}

// defaultLogFile names the log after the start time, and after the log being
// re-run in rerun mode.
func defaultLogFile(rerunLog string, now time.Time) string {
	timestamp := now.Format("20060102_150405")
	if rerunLog != "" {
		base := filepath.Base(rerunLog)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		return fmt.Sprintf("%s.rerun_%s.log", stem, timestamp)
	}
	return fmt.Sprintf("test_results_%s.log", timestamp)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func (a *App) run(ctx *cli.Context) error {
	clk := clock.NewClock()

	profile, err := a.loadProfile(ctx)
	if err != nil {
		return err
	}

	opts, err := a.parseRunOptions(ctx, profile, clk.Now())
	if err != nil {
		return err
	}

	// Resumed runs continue the existing log
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if opts.resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	logFile, err := os.OpenFile(opts.logFile, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	sink := runlog.NewSink(a.stdout, logFile)
	defer func() {
		if err := sink.Sync(); err != nil {
			a.logger.Debug().Err(err).Msg("Failed to sync log file")
		}
	}()

	runID := uuid.NewString()
	header := runlog.Header{
		Target:  opts.target,
		LogFile: opts.logFile,
		RunID:   runID,
	}
	// Capture git info of the target (non-fatal if it fails)
	if commit, branch, err := a.getGitInfo(opts.target); err == nil {
		header.Commit, header.Branch = commit, branch
	} else {
		a.logger.Debug().Err(err).Str("target", opts.target).Msg("Target is not a git checkout")
	}
	if err := runlog.WriteHeader(sink, header); err != nil {
		return fmt.Errorf("failed to write log header: %w", err)
	}

	a.logger.Debug().
		Str("run_id", runID).
		Str("log", opts.logFile).
		Dur("timeout", opts.timeout).
		Strs("extra_args", opts.extraArgs).
		Msg("Starting run")

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(a.logger, profile, opts.target, sink,
		runner.WithClock(clk),
		runner.WithExtraArgs(opts.extraArgs...),
		// captured output goes to the log only
		runner.WithTranscript(logFile),
	)
	if err != nil {
		return err
	}

	src, batchOpts, err := a.resolveSource(sigCtx, sink, profile, opts)
	if err != nil {
		return err
	}
	if src == nil {
		// nothing to run
		return nil
	}
	batchOpts.Timeout = opts.timeout
	batchOpts.StopOnFailure = opts.stopOnFailure
	batchOpts.Target = opts.target
	batchOpts.RunID = runID

	controllerOpts := []batch.Option{
		batch.WithClock(clk),
		batch.WithConsole(os.Stderr),
	}
	var storeOpts []checkpoint.Option
	if !opts.checkpoint {
		storeOpts = append(storeOpts, checkpoint.ReadOnly())
	}
	controllerOpts = append(controllerOpts, batch.WithCheckpoints(checkpoint.New(a.logger, clk, opts.logFile, storeOpts...)))
	var recorder *metrics.Recorder
	if opts.metricsFile != "" {
		recorder = metrics.NewRecorder(src.Mode, runID)
		controllerOpts = append(controllerOpts, batch.WithObserver(recorder))
	}
	var durations *timing.Builder
	if opts.profileFile != "" {
		durations = timing.New(clk)
		controllerOpts = append(controllerOpts, batch.WithObserver(durations))
	}

	controller := batch.New(a.logger, r, sink, controllerOpts...)
	start := controller.ResolveStart(src, opts.resume)
	summary, runErr := controller.Run(sigCtx, src, start, batchOpts)

	if recorder != nil {
		recorder.Finish(summary)
		if err := recorder.WriteFile(opts.metricsFile); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write metrics")
		}
	}
	if durations != nil {
		if err := durations.WriteFile(opts.profileFile); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write duration profile")
		} else {
			a.logger.Info().Str("path", opts.profileFile).Msg("View durations: go tool pprof -http=: " + opts.profileFile)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, runner.ErrInterrupted) {
			return cli.Exit("Interrupted. Use --resume with the same --log-file to continue.", 130)
		}
		return runErr
	}
	if !summary.OK() {
		return cli.Exit("", summary.ExitCode())
	}
	return nil
}

// resolveSource builds the test list of the selected mode and writes the
// mode notices. A nil source without error means there is nothing to run and
// the run is successful.
func (a *App) resolveSource(ctx context.Context, sink *runlog.Sink, profile config.Profile, opts *runOptions) (*source.Source, batch.Options, error) {
	perTest := int(opts.timeout / time.Second)

	switch {
	case opts.rerunLog != "":
		rr, err := source.FromLog(opts.rerunLog, opts.rerun)
		if err != nil {
			return nil, batch.Options{}, err
		}
		rr.Identifiers = source.Filter(rr.Identifiers, opts.filter)
		if rr.Len() == 0 {
			msg := "No failed tests to re-run."
			if len(rr.Parsed.TimedOut) > 0 && !opts.rerun.IncludeTimeouts {
				msg += " (Use --rerun-include-timeouts to also re-run timed out tests.)"
			}
			if len(rr.Parsed.Errors) > 0 && !opts.rerun.IncludeErrors {
				msg += " (Use --rerun-include-errors to also re-run tests that errored.)"
			}
			sink.Print(msg + "\n")
			return nil, batch.Options{}, nil
		}

		sink.Printf("Re-running failed tests from: %s\n", opts.rerunLog)
		if opts.rerun.IncludeTimeouts && len(rr.Parsed.TimedOut) > 0 {
			sink.Printf("Including %d timed out test(s).\n", len(rr.Parsed.TimedOut))
		}
		if opts.rerun.IncludeErrors && len(rr.Parsed.Errors) > 0 {
			sink.Printf("Including %d errored test(s).\n", len(rr.Parsed.Errors))
		}
		sink.Print(runlog.ModeLine(rr.Mode))
		return rr.Source, batch.Options{
			Title:    "TEST SUMMARY (rerun failed)",
			Announce: fmt.Sprintf("Re-running %d test(s). Per-test timeout: %ds", rr.Len(), perTest),
		}, nil

	case opts.allTests:
		sink.Print("Discovering tests...\n")
		sink.Print(runlog.ModeLine(model.ModeFullSuite))
		d := source.NewDiscoverer(a.logger, profile, opts.target, sink)
		src := d.Discover(ctx, opts.testFiles, opts.filter)
		if ctx.Err() != nil {
			return nil, batch.Options{}, cli.Exit("Interrupted during test discovery.", 130)
		}
		if src.Len() == 0 {
			sink.Print("No tests discovered. Check that the test file supports test discovery.\n")
			return nil, batch.Options{}, nil
		}
		return src, batch.Options{
			Title:    "TEST SUMMARY (full suite)",
			Announce: fmt.Sprintf("Found %d test(s). Per-test timeout: %ds", src.Len(), perTest),
		}, nil

	default:
		sink.Printf("Reading tests from: %s\n", opts.csvFile)
		sink.Print(runlog.ModeLine(model.ModeCSV))
		src, err := source.FromCSVFile(opts.csvFile)
		if err != nil {
			return nil, batch.Options{}, err
		}
		if src.Len() == 0 {
			sink.Print("No tests found in CSV file.\n")
			return nil, batch.Options{}, cli.Exit("", 1)
		}
		src.Identifiers = source.Filter(src.Identifiers, opts.filter)
		if src.Len() == 0 {
			sink.Printf("No tests in CSV file match --filter %q.\n", opts.filter.String())
			return nil, batch.Options{}, cli.Exit("", 1)
		}
		return src, batch.Options{
			Title:    "TEST SUMMARY",
			Announce: fmt.Sprintf("Found %d test(s) to run", src.Len()),
		}, nil
	}
}
