package cli

// This file contains the view command for displaying the non-passed tests of
// a run log.

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/testbatch/history"
	"github.com/perfgo/testbatch/model"
	"github.com/perfgo/testbatch/runlog"
)

// viewOrder is the order outcomes are listed in.
var viewOrder = []model.Outcome{
	model.OutcomeFailed,
	model.OutcomeError,
	model.OutcomeTimedOut,
	model.OutcomeSkipped,
}

func (a *App) view(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" {
		arg = "0"
	}

	logPath, err := a.resolveLogPath(ctx.String("dir"), arg)
	if err != nil {
		return err
	}

	parsed, err := runlog.ParseFile(logPath)
	if err != nil {
		return err
	}

	displayParsed(a.stdout, logPath, parsed)
	return nil
}

// resolveLogPath treats arg as a log file if one exists at that path, and
// otherwise as an index or run ID selecting a checkpoint below dir.
func (a *App) resolveLogPath(dir, arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}

	entries, err := history.LoadEntries(a.logger, dir)
	if err != nil {
		return "", fmt.Errorf("failed to load checkpoints: %w", err)
	}

	entry, err := history.Select(entries, arg)
	if err != nil {
		return "", err
	}
	a.logger.Debug().Str("checkpoint", entry.FullPath).Msg("Selected checkpoint")
	return entry.LogPath(), nil
}

func displayParsed(w io.Writer, logPath string, parsed *runlog.Parsed) {
	fmt.Fprintf(w, "=== Run log: %s ===\n", logPath)
	fmt.Fprintf(w, "Mode: %s\n\n", parsed.Mode)

	total := 0
	for _, o := range viewOrder {
		total += len(parsed.Section(o))
	}
	if total == 0 {
		fmt.Fprintln(w, "No failed, errored, timed out or skipped tests recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Outcome", "Test"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Outcome", AutoMerge: true},
		{Name: "Test", WidthMax: 100, WidthMaxEnforcer: text.WrapSoft},
	})
	t.SetStyle(table.StyleLight)

	for _, o := range viewOrder {
		for _, id := range parsed.Section(o) {
			t.AppendRow(table.Row{o.String(), id})
		}
	}

	t.AppendFooter(table.Row{"TOTAL", fmt.Sprintf("%d failed, %d errors, %d timed out, %d skipped",
		len(parsed.Failed), len(parsed.Errors), len(parsed.TimedOut), len(parsed.Skipped))})
	t.Render()

	if n := len(parsed.Failed) + len(parsed.Errors) + len(parsed.TimedOut); n > 0 {
		fmt.Fprintf(w, "\nRe-run: testbatch run --target <path> --rerun-failed %s", logPath)
		if len(parsed.TimedOut) > 0 {
			fmt.Fprint(w, " --rerun-include-timeouts")
		}
		if len(parsed.Errors) > 0 {
			fmt.Fprint(w, " --rerun-include-errors")
		}
		fmt.Fprintln(w)
	}
}
