package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/testbatch/config"
)

const AppName = "testbatch"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	// console output of the commands
	stdout io.Writer
	// arguments as given to Run, used to find the "--" separator
	rawArgs []string
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		stdout: os.Stdout,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run large test batches one test at a time, with resume and rerun support",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "Target profile (YAML or TOML) describing how tests are invoked and classified",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run tests from a CSV file, the full suite, or the failures of a previous log",
		ArgsUsage: "[CSV_FILE] [-- EXTRA_ARGS...]",
		Action:    app.run,
		Description: `Runs every test as its own subprocess with a per-test timeout and
classifies it as PASSED, SKIPPED, ERROR, FAILED or TIMEDOUT.

Exactly one test source must be selected:
  CSV_FILE               tests named in the 'test_name' column (keyword match)
  --all-tests            every test reported by the discovery command
  --rerun-failed LOG     tests listed as failed in a previous log

Flags must come before CSV_FILE. Arguments after -- are appended to every
test invocation.

Examples:
  testbatch run --target ~/pytorch tests.csv
  testbatch run --target ~/pytorch --all-tests --filter 'Repro' --stop-on-failure
  testbatch run --target ~/pytorch --resume --log-file run.log tests.csv
  testbatch run --target ~/pytorch --rerun-failed run.log --rerun-include-timeouts`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "target",
				Aliases:  []string{"pytorch-path"},
				Usage:    "Root of the target environment containing the suite file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "all-tests",
				Usage: "Discover and run the full test suite",
			},
			&cli.StringFlag{
				Name:  "rerun-failed",
				Usage: "Re-run the tests that failed in `LOG_FILE` from a previous run",
			},
			&cli.BoolFlag{
				Name:  "rerun-include-timeouts",
				Usage: "With --rerun-failed, also re-run tests that timed out",
			},
			&cli.BoolFlag{
				Name:  "rerun-include-errors",
				Usage: "With --rerun-failed, also re-run tests that ended in an error",
			},
			&cli.StringSliceFlag{
				Name:  "test-file",
				Usage: "File to discover tests from, relative to the target (repeatable, --all-tests only)",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Only run tests whose identifier matches this regular expression",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Path to the run log (default: test_results_TIMESTAMP.log)",
			},
			&cli.IntFlag{
				Name:  "per-test-timeout",
				Usage: "Per-test timeout in `SECONDS`",
				Value: 300,
			},
			&cli.BoolFlag{
				Name:  "stop-on-failure",
				Usage: "Stop after the first test that is not passed or skipped",
			},
			&cli.BoolFlag{
				Name:  "resume",
				Usage: "Resume from the next test after the last run (uses the checkpoint of the log file)",
			},
			&cli.BoolFlag{
				Name:  "no-checkpoint",
				Usage: "Disable checkpointing after each test",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics of the run to this textfile",
			},
			&cli.StringFlag{
				Name:  "duration-profile",
				Usage: "Write a pprof profile of per-test wall time to this file",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List checkpoints of previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory to search for checkpoints",
				Value:   ".",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "incomplete",
				Usage: "Only show runs that did not reach the end of their test list",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "view",
		Usage:     "View the non-passed tests of a run log",
		ArgsUsage: "[LOG_FILE|INDEX|RUN_ID]",
		Action:    app.view,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory to search for checkpoints when no log file is given",
				Value:   ".",
			},
		},
		Description: `View the tests of a run log that did not pass.

Arguments:
  <log-file>  View this run log
  0           View the log of the most recent checkpoint (default)
  -1          View the log of the 2nd most recent checkpoint
  <run-id>    View the log whose checkpoint run ID starts with this prefix

Examples:
  testbatch view run.log
  testbatch view -- -1
  testbatch view 3f2a`,
	})
	return app
}

func (a *App) Run(args []string) error {
	a.rawArgs = args
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

func (a *App) loadProfile(ctx *cli.Context) (config.Profile, error) {
	path := ctx.String("config")
	if path == "" {
		return config.Default(), nil
	}

	profile, err := config.Load(path)
	if err != nil {
		return config.Profile{}, err
	}
	a.logger.Debug().Str("path", path).Strs("command", profile.Command).Msg("Loaded target profile")
	return profile, nil
}
