package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/rs/zerolog"

	"github.com/perfgo/testbatch/checkpoint"
	"github.com/perfgo/testbatch/model"
	"github.com/perfgo/testbatch/runlog"
	"github.com/perfgo/testbatch/source"
)

// Executor runs a single test identifier to completion.
type Executor interface {
	Execute(ctx context.Context, id string, shape model.Shape, timeout time.Duration) (model.RunResult, error)
}

// Observer is told about every recorded result.
type Observer interface {
	Observe(model.RunResult)
}

// Options control a single batch.
type Options struct {
	// Summary title
	Title string
	// Line printed before the first test, e.g. "Found 3 test(s) to run"
	Announce string
	// Per-test wall-clock budget
	Timeout time.Duration
	// End the batch at the first result that is not a success
	StopOnFailure bool
	// Target root and run ID, persisted in every checkpoint
	Target string
	RunID  string
}

// Controller drives an Executor over a source sequentially.
type Controller struct {
	logger    zerolog.Logger
	clock     clock.Clock
	executor  Executor
	out       io.Writer
	console   io.Writer
	store     *checkpoint.Store
	observers []Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithCheckpoints enables checkpointing through store. A read-only store
// still resumes from an existing checkpoint but never updates it.
func WithCheckpoints(store *checkpoint.Store) Option {
	return func(c *Controller) {
		c.store = store
	}
}

// WithObserver registers an observer for results.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// WithConsole sets where the summary table is rendered. The table never goes
// to out, which is the run log.
func WithConsole(w io.Writer) Option {
	return func(c *Controller) {
		c.console = w
	}
}

// New creates a controller writing its transcript to out.
func New(logger zerolog.Logger, executor Executor, out io.Writer, opts ...Option) *Controller {
	c := &Controller{
		logger:   logger,
		clock:    clock.NewClock(),
		executor: executor,
		out:      out,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveStart decides the index to start at. With resume it follows the
// checkpoint's next test when that test is still part of src; otherwise it
// starts over. Every start at 0 discards the checkpoint unless the store is
// read-only. Without a checkpoint store the answer is always 0.
func (c *Controller) ResolveStart(src *source.Source, resume bool) int {
	if c.store == nil {
		return 0
	}

	start := 0
	cp := c.store.Read()
	switch {
	case resume && cp == nil:
		c.printf("No checkpoint found, starting from first test.\n\n")
	case resume && cp.Complete():
		c.printf("Checkpoint shows previous run completed (no next test). Starting from first test.\n\n")
	case resume:
		next := cp.Next()
		if idx := src.Index(next); idx >= 0 {
			start = idx
			c.printf("Resuming from test: %s [%d/%d]\n\n", next, idx+1, src.Len())
		} else {
			c.printf("Checkpoint next_test %s, starting from first test.\n\n", notInListMessage(src.Mode))
			c.logger.Warn().Str("next_test", next).Msg("Checkpoint does not match the current test list")
		}
	case cp != nil && !c.store.IsReadOnly():
		next := "None"
		if !cp.Complete() {
			next = cp.Next()
		}
		c.printf("Checkpoint from previous run: last test = %s, next test = %s. Use --resume to continue from next test.\n\n", cp.LastTest, next)
		c.logger.Warn().Str("checkpoint", c.store.Path()).Msg("Discarding checkpoint of a previous incomplete run")
	}

	if start == 0 {
		c.store.Remove()
	}
	return start
}

func notInListMessage(mode model.Mode) string {
	if mode == model.ModeCSV {
		return "not in CSV list"
	}
	return "not in discovered list"
}

// Run executes src from index start. The returned summary covers only the
// tests executed by this call. A non-nil error means the batch was cut short
// by ctx; the test in flight at that moment is not part of the summary and
// is not checkpointed.
func (c *Controller) Run(ctx context.Context, src *source.Source, start int, opts Options) (*model.Summary, error) {
	if opts.Announce != "" {
		c.printf("%s\n\n", opts.Announce)
	}

	summary := &model.Summary{Title: opts.Title}
	total := src.Len()
	begin := c.clock.Now()

	c.logger.Debug().
		Str("mode", string(src.Mode)).
		Int("start", start).
		Int("total", total).
		Msg("Starting batch")

	var runErr error
	for i := start; i < total; i++ {
		id := src.Identifiers[i]
		c.printf("%s", runlog.Progress(i, total))

		res, err := c.executor.Execute(ctx, id, src.Shape, opts.Timeout)
		if err != nil {
			c.printf("\nInterrupted while running: %s\n", id)
			c.logger.Warn().Err(err).Str("test", id).Msg("Batch interrupted")
			summary.Title += " (interrupted)"
			runErr = err
			break
		}

		summary.Results = append(summary.Results, res)
		for _, o := range c.observers {
			o.Observe(res)
		}
		c.checkpoint(src, i, opts)

		if !res.Success() && opts.StopOnFailure {
			c.printf("\nStopping due to test failure: %s\n", id)
			summary.StoppedAt = id
			break
		}
	}

	summary.Duration = c.clock.Since(begin)
	c.printf("%s", runlog.FormatSummary(summary))
	if c.console != nil {
		RenderTable(c.console, summary)
	}

	c.logger.Debug().
		Int("executed", len(summary.Results)).
		Bool("ok", summary.OK()).
		Dur("duration", summary.Duration).
		Msg("Batch finished")

	return summary, runErr
}

func (c *Controller) checkpoint(src *source.Source, i int, opts Options) {
	if c.store == nil {
		return
	}

	var next *string
	if i+1 < src.Len() {
		next = &src.Identifiers[i+1]
	}
	c.store.Write(checkpoint.Progress{
		LastTest:  src.Identifiers[i],
		NextTest:  next,
		LastIndex: i,
		Total:     src.Len(),
		Mode:      src.Mode,
		Source:    src.Locator,
		Target:    opts.Target,
		RunID:     opts.RunID,
	})
}

func (c *Controller) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
