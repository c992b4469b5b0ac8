package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogInput(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/log_input.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 3}, result.Log)
	require.Len(t, result.Calls, 2)
	assert.Equal(t, [][]float64{{2}}, result.Calls[0].Outputs)
	assert.Equal(t, [][]float64{{3}}, result.Calls[1].Outputs)

	require.Len(t, result.Firings, 2)
	assert.Equal(t, "log", result.Firings[0].Effect)
	assert.Equal(t, []float64{2}, result.Firings[0].Args)
	assert.Less(t, result.Firings[0].Seq, result.Firings[1].Seq)
	assert.Equal(t, result.Firings[0].Context, result.Firings[1].Context)
}

func TestRunDoubleLog(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/double_log.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 9}, result.Log)
}

func TestRunNotePair(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/note_pair.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, result.Log)
	require.Len(t, result.Firings, 1)
	assert.Equal(t, "note", result.Firings[0].Effect)
}

func TestRunFailedOutputExpectation(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/log_input.yaml")
	require.NoError(t, err)
	s.Calls[0].Outputs = [][]float64{{99}}

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calls[0] outputs")
}

func TestRunFailedAssertion(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/log_input.yaml")
	require.NoError(t, err)
	s.Assertions = []Assertion{{Type: AssertLogEquals, Values: []float64{3, 2}}}

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log is")
}

func TestRunInputArityMismatch(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/log_input.yaml")
	require.NoError(t, err)
	s.Calls[0].Inputs = [][]float64{{1}, {2}}

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supplies 2 inputs")
}

func TestCheckAssertionsSubsequence(t *testing.T) {
	result := &Result{Log: []float64{1, 2, 3, 4}}

	s := &Scenario{Name: "sub", Assertions: []Assertion{
		{Type: AssertLogContains, Values: []float64{2, 4}},
	}}
	require.NoError(t, CheckAssertions(s, result))

	s.Assertions[0].Values = []float64{4, 2}
	require.Error(t, CheckAssertions(s, result))
}
