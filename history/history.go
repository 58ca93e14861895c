package history

// This file contains shared history utilities for finding the checkpoints
// of previous runs and selecting one of them.

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/perfgo/testbatch/checkpoint"
	"github.com/perfgo/testbatch/model"
)

// ErrNoEntries is returned by Select when there is nothing to choose from.
var ErrNoEntries = errors.New("no checkpoints found")

type Entry struct {
	Checkpoint model.Checkpoint
	FullPath   string
}

// LogPath returns the log file the checkpoint belongs to.
func (e *Entry) LogPath() string {
	return checkpoint.LogPath(e.FullPath)
}

// ShortID returns the first 8 characters of the run ID.
func (e *Entry) ShortID() string {
	id := e.Checkpoint.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// LoadEntries loads every checkpoint below root, newest first.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, checkpoint.Suffix) {
			return nil
		}

		cp, err := checkpoint.Load(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse checkpoint")
			return nil
		}

		entries = append(entries, Entry{
			Checkpoint: *cp,
			FullPath:   path,
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Checkpoint.Updated.After(entries[j].Checkpoint.Updated)
	})

	return entries, nil
}

// Select picks an entry from newest-first entries. arg is either an index
// counted from the newest (0 is the newest, -1 the one before) or a run ID
// prefix.
func Select(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d checkpoints)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if prefix != "" && strings.HasPrefix(strings.ToLower(entries[i].Checkpoint.RunID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no checkpoint found matching run ID: %s", arg)
}
