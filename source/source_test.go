package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{
			name:  "single column",
			input: "test_name\ntest_foo\ntest_bar\n",
			want:  []string{"test_foo", "test_bar"},
		},
		{
			name:  "extra columns and blanks",
			input: "owner,test_name,notes\nme,test_foo,x\nyou,,y\nthem,  test_bar ,z\n",
			want:  []string{"test_foo", "test_bar"},
		},
		{
			name:  "short rows",
			input: "owner,test_name\nme\nyou,test_baz\n",
			want:  []string{"test_baz"},
		},
		{
			name:  "header only",
			input: "test_name\n",
			want:  nil,
		},
		{
			name:    "missing column",
			input:   "name\ntest_foo\n",
			wantErr: ErrMissingColumn,
		},
		{
			name:    "empty file",
			input:   "",
			wantErr: ErrMissingColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.csv")
	require.NoError(t, os.WriteFile(path, []byte("test_name\ntest_foo\n"), 0644))

	src, err := FromCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_foo"}, src.Identifiers)
	assert.Equal(t, model.ShapeKeyword, src.Shape)
	assert.Equal(t, model.ModeCSV, src.Mode)
	assert.Equal(t, path, src.Locator)
	assert.Equal(t, 0, src.Index("test_foo"))
	assert.Equal(t, -1, src.Index("test_bar"))

	_, err = FromCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFilter(t *testing.T) {
	ids := []string{"a::t1", "a::t2", "b::t3"}

	assert.Equal(t, []string{"a::t1", "a::t2"}, Filter(ids, regexp.MustCompile("a::")))
	assert.Equal(t, ids, Filter(ids, nil))
	assert.Empty(t, Filter(ids, regexp.MustCompile("zzz")))
}

func TestParseDiscoveryOutput(t *testing.T) {
	output := strings.Join([]string{
		"<unittest.suite.TestSuite tests=[<unittest.suite.TestSuite tests=[]>]>",
		"test_a (__main__.CudaReproTests.test_a)",
		"",
		"  test_b (__main__.CudaReproTests.test_b)  ",
		"test/inductor/test_x.py::TestX::test_c",
		"<built-in thing>",
	}, "\n")

	want := []string{
		"__main__.CudaReproTests.test_a",
		"__main__.CudaReproTests.test_b",
		"test/inductor/test_x.py::TestX::test_c",
	}
	assert.Equal(t, want, ParseDiscoveryOutput(output))
}

const (
	suiteDiscovery = `#!/bin/sh
echo "<unittest.suite.TestSuite tests=[]>"
echo "test_a (__main__.Repro.test_a)"
echo "test_b (__main__.Repro.test_b)"
echo "test_a (__main__.Repro.test_a)"
`
	otherDiscovery = `#!/bin/sh
echo "test_c (__main__.Other.test_c)"
`
	brokenDiscovery = `#!/bin/sh
echo "ImportError: no module named torch" >&2
exit 2
`
)

func newDiscoverer(t *testing.T) (*Discoverer, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"suite.sh":  suiteDiscovery,
		"other.sh":  otherDiscovery,
		"broken.sh": brokenDiscovery,
		"slow.sh":   "#!/bin/sh\nsleep 30\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0755))
	}

	p := config.Default()
	p.Command = []string{"/bin/sh"}
	p.SuiteFile = "suite.sh"
	p.DiscoverArgs = []string{"{file}"}
	p.DiscoverTimeout = 500 * time.Millisecond

	var notices bytes.Buffer
	return NewDiscoverer(zerolog.Nop(), p, dir, &notices), &notices
}

func TestDiscoverDefaultFile(t *testing.T) {
	d, notices := newDiscoverer(t)

	src := d.Discover(context.Background(), nil, nil)
	assert.Equal(t, []string{"__main__.Repro.test_a", "__main__.Repro.test_b"}, src.Identifiers)
	assert.Equal(t, model.ShapeNodeID, src.Shape)
	assert.Equal(t, model.ModeFullSuite, src.Mode)
	assert.Empty(t, notices.String())
}

func TestDiscoverMultipleFiles(t *testing.T) {
	d, notices := newDiscoverer(t)

	src := d.Discover(context.Background(), []string{"suite.sh", "broken.sh", "other.sh"}, nil)
	assert.Equal(t, []string{
		"__main__.Repro.test_a",
		"__main__.Repro.test_b",
		"other.sh::__main__.Other.test_c",
	}, src.Identifiers)
	assert.Contains(t, notices.String(), "discovery of broken.sh failed (exit 2)")
	assert.Contains(t, notices.String(), "ImportError")
}

func TestDiscoverFilter(t *testing.T) {
	d, _ := newDiscoverer(t)

	src := d.Discover(context.Background(), []string{"suite.sh", "other.sh"}, regexp.MustCompile("Other"))
	assert.Equal(t, []string{"other.sh::__main__.Other.test_c"}, src.Identifiers)
}

func TestDiscoverFailures(t *testing.T) {
	d, notices := newDiscoverer(t)

	src := d.Discover(context.Background(), []string{"slow.sh", "missing.sh"}, nil)
	assert.Empty(t, src.Identifiers)
	assert.Contains(t, notices.String(), "discovery of slow.sh timed out")
	assert.Contains(t, notices.String(), "discovery of missing.sh failed")
}

const priorLog = `Target: /src/pytorch
Mode: full_suite
Total tests: 4

======================================================================
FULL TEST SUITE SUMMARY
======================================================================
Failed tests:
  - __main__.A.test_fail (1.00s)

Error tests:
  - __main__.A.test_err (0.50s)

Timed out tests:
  - __main__.A.test_slow (300.00s)

======================================================================

`

func TestFromLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prior.log")
	require.NoError(t, os.WriteFile(path, []byte(priorLog), 0644))

	tests := []struct {
		name string
		opts RerunOptions
		want []string
	}{
		{name: "failed only", want: []string{"__main__.A.test_fail"}},
		{
			name: "with errors",
			opts: RerunOptions{IncludeErrors: true},
			want: []string{"__main__.A.test_fail", "__main__.A.test_err"},
		},
		{
			name: "everything",
			opts: RerunOptions{IncludeErrors: true, IncludeTimeouts: true},
			want: []string{"__main__.A.test_fail", "__main__.A.test_err", "__main__.A.test_slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, err := FromLog(path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rr.Identifiers)
			assert.Equal(t, model.ShapeNodeID, rr.Shape)
			assert.Equal(t, model.ModeFullSuite, rr.Mode)
			assert.Len(t, rr.Parsed.TimedOut, 1)
		})
	}
}

func TestFromLogErrors(t *testing.T) {
	dir := t.TempDir()
	noMode := filepath.Join(dir, "nomode.log")
	require.NoError(t, os.WriteFile(noMode, []byte("Failed tests:\n  - x (1.00s)\n"), 0644))

	_, err := FromLog(noMode, RerunOptions{})
	require.Error(t, err)

	_, err = FromLog(filepath.Join(dir, "missing.log"), RerunOptions{})
	require.Error(t, err)
}

func TestFromCSVFileExample(t *testing.T) {
	src, err := FromCSVFile(filepath.Join("..", "examples", "tests.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"test_adaptive_avg_pool_errors_with_long",
		"test_cudagraphs_aot_eager",
		"test_unbacked_symint_dynamic",
	}, src.Identifiers)
}
