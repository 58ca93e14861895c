package cli

// This file contains the list command for displaying the checkpoints of
// previous runs.

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/testbatch/history"
)

func (a *App) list(ctx *cli.Context) error {
	dir := ctx.String("dir")
	limit := ctx.Int("limit")
	onlyIncomplete := ctx.Bool("incomplete")

	// Load all checkpoints below dir
	entries, err := history.LoadEntries(a.logger, dir)
	if err != nil {
		return fmt.Errorf("failed to load checkpoints: %w", err)
	}

	var filtered []history.Entry
	for _, entry := range entries {
		if !onlyIncomplete || !entry.Checkpoint.Complete() {
			filtered = append(filtered, entry)
		}
	}

	printEntries(a.stdout, dir, filtered, limit)
	return nil
}

func printEntries(w io.Writer, dir string, entries []history.Entry, limit int) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No checkpoints found in %s\n", dir)
		fmt.Fprintf(w, "Checkpoints are written next to the log file as <log>.checkpoint\n")
		return
	}

	// Apply limit
	display := entries
	if limit > 0 && limit < len(display) {
		display = display[:limit]
	}

	fmt.Fprintf(w, "\n=== Checkpoints (%d total) ===\n\n", len(entries))

	for _, entry := range display {
		cp := entry.Checkpoint
		timestamp := cp.Updated.Local().Format("2006-01-02 15:04:05")

		// Determine status indicator
		status := "✓"
		state := "complete"
		if !cp.Complete() {
			status = "✗"
			state = "incomplete"
		}

		fmt.Fprintf(w, "%s  %s  [%d/%d]  %s  mode=%s", status, timestamp, cp.LastIndex+1, cp.Total, state, cp.Mode)
		if id := entry.ShortID(); id != "" {
			fmt.Fprintf(w, "  id=%s", id)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "   Log: %s\n", entry.LogPath())
		fmt.Fprintf(w, "   Last: %s\n", cp.LastTest)
		if !cp.Complete() {
			fmt.Fprintf(w, "   Next: %s\n", cp.Next())
		}
		if cp.Target != "" {
			fmt.Fprintf(w, "   Target: %s\n", cp.Target)
		}
		if cp.Source != "" {
			fmt.Fprintf(w, "   Source: %s\n", cp.Source)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "\nResume a run: testbatch run --resume --log-file <log> ...")
	fmt.Fprintln(w, "View failures: testbatch view <log>")
}
