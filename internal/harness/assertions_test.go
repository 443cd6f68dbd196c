package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyResult(t *testing.T) *Result {
	t.Helper()
	s := load(t, "classify")
	s.Assertions = nil
	result, err := newHarness(t).Run(context.Background(), s)
	require.NoError(t, err)
	return result
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := classifyResult(t)
	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertOpCount, Op: "cmp.eq.strict", Count: 1},
		{Type: AssertOpCount, Op: "if", Function: "demo:classify/1", Count: 2},
		{Type: AssertBlockCount, Function: "demo:classify/1", Count: 7},
		{Type: AssertContains, Text: "badmatch"},
	})
	assert.Empty(t, errors)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := classifyResult(t)
	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertOpCount, Op: "if", Count: 2},
		{Type: AssertOpCount, Op: "if", Count: 3},
		{Type: AssertDeclares, Symbol: "__lumen_builtin_raise"},
	})
	require.Len(t, errors, 2)
	assert.Contains(t, errors[0], "assertion[1]")
	assert.Contains(t, errors[0], "Expected: 3 if ops")
	assert.Contains(t, errors[1], "assertion[2]")
	assert.Contains(t, errors[1], "not declared")
}

func TestEvaluateAssertions_UnknownFunction(t *testing.T) {
	result := classifyResult(t)
	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertBlockCount, Function: "demo:missing/0", Count: 1},
	})
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0], `no function "demo:missing/0"`)
}

func TestEvaluateAssertions_RewritesNeedLowering(t *testing.T) {
	result := classifyResult(t)
	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertRewrites, Rule: "if", Count: 2},
	})
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0], "requires a lowered script")
}

func TestEvaluateAssertions_NoModule(t *testing.T) {
	result := &Result{Pass: true}
	assert.Empty(t, EvaluateAssertions(result, nil))
	assert.Len(t, EvaluateAssertions(result, []Assertion{{Type: AssertContains, Text: "x"}}), 1)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertContains,
		Expected: `IR containing "x"`,
		Actual:   "not found",
		Context:  "func @f() -> term {\n}\n",
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: contains")
	assert.Contains(t, msg, `Expected: IR containing "x"`)
	assert.Contains(t, msg, "Actual: not found")
	assert.Contains(t, msg, "func @f() -> term {")
}
