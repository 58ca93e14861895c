package runner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/testbatch/config"
	"github.com/perfgo/testbatch/model"
)

func TestClassify(t *testing.T) {
	c, err := NewClassifier(config.Default().Signatures)
	require.NoError(t, err)

	tests := []struct {
		name     string
		exitCode int
		output   string
		want     model.Outcome
	}{
		{name: "clean pass", exitCode: 0, output: "Ran 1 test in 0.5s\n\nOK\n", want: model.OutcomePassed},
		{name: "pytest skip count", exitCode: 0, output: "=== 3 skipped in 0.1s ===", want: model.OutcomeSkipped},
		{name: "unittest skip", exitCode: 0, output: "OK (skipped=1)", want: model.OutcomeSkipped},
		{name: "coloured skip", exitCode: 0, output: "\x1b[33m2 skipped\x1b[0m", want: model.OutcomeSkipped},
		{name: "assertion failure", exitCode: 1, output: "AssertionError: 1 != 2\nFAILED (failures=1)", want: model.OutcomeFailed},
		{name: "runtime error", exitCode: 1, output: "RuntimeError: HIP error: invalid device function", want: model.OutcomeError},
		{name: "segfault", exitCode: -1, output: "Segmentation fault (core dumped)", want: model.OutcomeError},
		{name: "framework timeout", exitCode: 1, output: "+++++++++ Timeout +++++++++", want: model.OutcomeTimedOut},
		{name: "timeout wins over runtime error", exitCode: 1, output: "RuntimeError: x\nFailed: Timeout >300.0s", want: model.OutcomeTimedOut},
		{name: "error text on zero exit is ignored", exitCode: 0, output: "RuntimeError was expected", want: model.OutcomePassed},
		{name: "no output non-zero exit", exitCode: 2, output: "", want: model.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.exitCode, tt.output)
			require.Equal(t, tt.want, got)
			require.Equal(t, got == model.OutcomePassed || got == model.OutcomeSkipped, got.Success())
		})
	}
}

func TestClassifierEmptySignatures(t *testing.T) {
	c, err := NewClassifier(config.Signatures{})
	require.NoError(t, err)
	require.Equal(t, model.OutcomeFailed, c.Classify(1, "RuntimeError Timeout"))
	require.Equal(t, model.OutcomePassed, c.Classify(0, "3 skipped"))
}

func TestClassifierInvalidSignature(t *testing.T) {
	_, err := NewClassifier(config.Signatures{Skip: "("})
	require.Error(t, err)
}
