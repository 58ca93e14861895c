package checkpoint

// store.go persists run progress next to the run log so an interrupted run
// can be resumed.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/clock"
	"github.com/rs/zerolog"

	"github.com/perfgo/testbatch/model"
)

// Suffix is appended to the log file path to derive the checkpoint path.
const Suffix = ".checkpoint"

// Path returns the checkpoint path for a log file.
func Path(logPath string) string {
	return logPath + Suffix
}

// LogPath returns the log file a checkpoint path belongs to.
func LogPath(checkpointPath string) string {
	return checkpointPath[:len(checkpointPath)-len(Suffix)]
}

// Progress is what the batch controller reports after each test.
type Progress struct {
	LastTest  string
	NextTest  *string
	LastIndex int
	Total     int
	Mode      model.Mode
	Source    string
	Target    string
	RunID     string
}

// Store reads and writes the checkpoint of one log file.
type Store struct {
	logger   zerolog.Logger
	clock    clock.Clock
	path     string
	readOnly bool
}

// Option configures a Store.
type Option func(*Store)

// ReadOnly makes Write and Remove no-ops. The checkpoint can still be read
// to resume from it.
func ReadOnly() Option {
	return func(s *Store) {
		s.readOnly = true
	}
}

// New creates a store for the checkpoint belonging to logPath.
func New(logger zerolog.Logger, clk clock.Clock, logPath string, opts ...Option) *Store {
	s := &Store{
		logger: logger,
		clock:  clk,
		path:   Path(logPath),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsReadOnly reports whether the store leaves the checkpoint file untouched.
func (s *Store) IsReadOnly() bool {
	return s.readOnly
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.path
}

// Write records progress. Failures are logged and swallowed: losing a
// checkpoint must never abort a run.
func (s *Store) Write(p Progress) {
	if s.readOnly {
		return
	}
	cp := model.Checkpoint{
		LastTest:  p.LastTest,
		NextTest:  p.NextTest,
		LastIndex: p.LastIndex,
		Total:     p.Total,
		Mode:      p.Mode,
		Source:    p.Source,
		Target:    p.Target,
		RunID:     p.RunID,
		Updated:   s.clock.Now(),
	}

	if err := s.write(&cp); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to write checkpoint")
	}
}

func (s *Store) write(cp *model.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write to a sibling file first so a kill mid-write leaves the previous
	// checkpoint intact.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Read returns the checkpoint, or nil if none exists or it cannot be read.
func (s *Store) Read() *model.Checkpoint {
	cp, err := Load(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Ignoring unreadable checkpoint")
		}
		return nil
	}
	return cp
}

// Remove deletes the checkpoint. A missing file is not an error.
func (s *Store) Remove() {
	if s.readOnly {
		return
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to remove checkpoint")
	}
}

// Load parses a checkpoint file.
func Load(path string) (*model.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	return &cp, nil
}
