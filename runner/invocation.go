package runner

// invocation.go builds the argument vector of a single test invocation from
// the target profile.

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
)

// unittest ids discovered from a script run as __main__ carry this prefix,
// which cannot be resolved when passed back on the command line.
const mainModulePrefix = "__main__."

// SplitNodeID splits a node id into the suite file it belongs to and the case
// inside it. Ids qualified as "<file>::<case>" name their file; bare ids
// belong to defaultFile.
func SplitNodeID(id, defaultFile string) (file, testCase string) {
	file, testCase = defaultFile, id
	if f, c, ok := strings.Cut(id, "::"); ok && f != "" {
		file, testCase = f, c
	}
	return file, strings.TrimPrefix(testCase, mainModulePrefix)
}

// BuildArgs returns the full argv for running one identifier.
func BuildArgs(p *config.Profile, targetDir, id string, shape model.Shape, timeoutSeconds int, extra []string) []string {
	args := append([]string{}, p.Command...)

	switch shape {
	case model.ShapeNodeID:
		file, testCase := SplitNodeID(id, p.SuiteFile)
		args = append(args, config.Expand(p.NodeArgs, map[string]string{
			config.PlaceholderFile: filepath.Join(targetDir, file),
			config.PlaceholderCase: testCase,
			config.PlaceholderID:   id,
		})...)
	default:
		args = append(args, config.Expand(p.KeywordArgs, map[string]string{
			config.PlaceholderFile: filepath.Join(targetDir, p.SuiteFile),
			config.PlaceholderID:   id,
		})...)
	}

	if timeoutSeconds > 0 && len(p.TimeoutArgs) > 0 {
		args = append(args, config.Expand(p.TimeoutArgs, map[string]string{
			config.PlaceholderSeconds: strconv.Itoa(timeoutSeconds),
		})...)
	}

	return append(args, extra...)
}
