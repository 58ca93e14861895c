package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
)

const suiteScript = `#!/bin/sh
case "$1" in
  pass) echo "Ran 1 test"; echo "OK"; exit 0 ;;
  skip) echo "Ran 1 test"; echo "OK (skipped=1)"; exit 0 ;;
  fail) echo "AssertionError: 1 != 2" >&2; exit 1 ;;
  error) echo "RuntimeError: boom" >&2; exit 1 ;;
  both) echo "RuntimeError: boom"; echo "Failed: Timeout >300.0s"; exit 1 ;;
  env) echo "rocm=$PYTORCH_TEST_WITH_ROCM"; exit 0 ;;
  sleep) sleep 30; exit 0 ;;
  Cls.test_node) echo "node ok"; exit 0 ;;
esac
echo "unknown test $1" >&2
exit 5
`

func testProfile() config.Profile {
	p := config.Default()
	p.Command = []string{"/bin/sh"}
	p.SuiteFile = "suite.sh"
	p.KeywordArgs = []string{"{file}", "{id}"}
	p.NodeArgs = []string{"{file}", "{case}"}
	return p
}

func newTestRunner(t *testing.T, p config.Profile) (*Runner, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suite.sh"), []byte(suiteScript), 0755))

	var out bytes.Buffer
	r, err := New(zerolog.Nop(), p, dir, &out, WithWaitDelay(time.Second))
	require.NoError(t, err)
	return r, &out
}

func TestExecuteOutcomes(t *testing.T) {
	tests := []struct {
		id   string
		want model.Outcome
	}{
		{id: "pass", want: model.OutcomePassed},
		{id: "skip", want: model.OutcomeSkipped},
		{id: "fail", want: model.OutcomeFailed},
		{id: "error", want: model.OutcomeError},
		{id: "both", want: model.OutcomeTimedOut},
		{id: "unknown", want: model.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r, out := newTestRunner(t, testProfile())
			res, err := r.Execute(context.Background(), tt.id, model.ShapeKeyword, 10*time.Second)
			require.NoError(t, err)
			require.Equal(t, tt.id, res.Identifier)
			require.Equal(t, tt.want, res.Outcome)
			require.Contains(t, out.String(), "Running: "+tt.id+"\n")
			require.Contains(t, out.String(), tt.want.String()+" (")
		})
	}
}

func TestExecuteWritesOutputBeforeStatus(t *testing.T) {
	r, out := newTestRunner(t, testProfile())
	res, err := r.Execute(context.Background(), "error", model.ShapeKeyword, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, res.ExitCode)

	log := out.String()
	running := strings.Index(log, "Running: error")
	output := strings.Index(log, "RuntimeError: boom")
	status := strings.Index(log, "✗ ERROR (")
	require.True(t, running >= 0 && output > running && status > output, "unexpected order:\n%s", log)
}

func TestExecuteTranscriptSeparateFromStatus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suite.sh"), []byte(suiteScript), 0755))

	var status, transcript bytes.Buffer
	r, err := New(zerolog.Nop(), testProfile(), dir, &status, WithTranscript(&transcript))
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "pass", model.ShapeKeyword, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, "Ran 1 test\nOK\n", transcript.String())
	require.NotContains(t, status.String(), "Ran 1 test")
	require.Contains(t, status.String(), "✓ PASSED (")
}

func TestExecuteAppliesEnvOverlay(t *testing.T) {
	r, out := newTestRunner(t, testProfile())
	_, err := r.Execute(context.Background(), "env", model.ShapeKeyword, 10*time.Second)
	require.NoError(t, err)
	require.Contains(t, out.String(), "rocm=1\n")
}

func TestExecuteNodeID(t *testing.T) {
	r, out := newTestRunner(t, testProfile())
	res, err := r.Execute(context.Background(), "__main__.Cls.test_node", model.ShapeNodeID, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, model.OutcomePassed, res.Outcome)
	require.Contains(t, out.String(), "Running: __main__.Cls.test_node\n")
	require.Contains(t, out.String(), "node ok\n")
}

func TestExecuteTimeout(t *testing.T) {
	r, out := newTestRunner(t, testProfile())

	start := time.Now()
	res, err := r.Execute(context.Background(), "sleep", model.ShapeKeyword, 300*time.Millisecond)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
	require.Equal(t, model.OutcomeTimedOut, res.Outcome)
	require.False(t, res.Success())
	require.GreaterOrEqual(t, res.Elapsed, 300*time.Millisecond)
	require.Contains(t, out.String(), "Timed out after")
	require.Contains(t, out.String(), "✗ TIMEDOUT (")
}

func TestExecuteLaunchFailure(t *testing.T) {
	p := testProfile()
	p.Command = []string{"/nonexistent/interpreter"}
	r, out := newTestRunner(t, p)

	res, err := r.Execute(context.Background(), "pass", model.ShapeKeyword, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, model.OutcomeError, res.Outcome)
	require.Equal(t, -1, res.ExitCode)
	require.Contains(t, out.String(), "Failed to launch:")
	require.Contains(t, out.String(), "✗ ERROR (")
}

func TestExecuteInterrupted(t *testing.T) {
	r, _ := newTestRunner(t, testProfile())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The per-test budget is larger than the caller's deadline, so the
	// cancellation comes from the caller.
	_, err := r.Execute(ctx, "sleep", model.ShapeKeyword, 20*time.Second)
	require.True(t, errors.Is(err, ErrInterrupted))
}

func TestNewValidates(t *testing.T) {
	var out bytes.Buffer
	_, err := New(zerolog.Nop(), testProfile(), "", &out)
	require.Error(t, err)

	_, err = New(zerolog.Nop(), testProfile(), t.TempDir(), nil)
	require.Error(t, err)

	p := testProfile()
	p.Command = nil
	_, err = New(zerolog.Nop(), p, t.TempDir(), &out)
	require.Error(t, err)
}
