package runlog

import (
	"fmt"
	"io"
	"sync"
)

// Sink fans every write out to all registered destinations. A run owns one
// sink (console and log file) for its whole lifetime.
type Sink struct {
	mu      sync.Mutex
	writers []io.Writer
}

// NewSink creates a sink writing to the given destinations.
func NewSink(writers ...io.Writer) *Sink {
	return &Sink{writers: writers}
}

// Add registers another destination.
func (s *Sink) Add(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writers = append(s.writers, w)
}

// Write writes p to every destination. A failing destination does not stop
// the others; the first error is returned.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, w := range s.writers {
		if _, err := w.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return 0, firstErr
	}
	return len(p), nil
}

// Printf formats and writes to every destination.
func (s *Sink) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s, format, args...)
}

// Print writes msg to every destination.
func (s *Sink) Print(msg string) {
	_, _ = io.WriteString(s, msg)
}

// Sync flushes destinations that support it.
func (s *Sink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, w := range s.writers {
		if syncer, ok := w.(interface{ Sync() error }); ok {
			if err := syncer.Sync(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
