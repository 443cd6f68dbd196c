package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// goldenSession is the builder session used for golden runs, so that
// stored artifacts and logs are identical across runs.
const goldenSession = "00000000-0000-0000-0000-000000000000"

// RunWithGolden builds a script and compares the final printed module
// against a golden file. The golden file is stored in
// testdata/golden/{script name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the script fails to build. Test failure (via goldie)
// occurs if the IR doesn't match the golden file.
func RunWithGolden(t *testing.T, s *Script, opts ...Option) (*Result, error) {
	t.Helper()

	h, err := New(append([]Option{WithSession(goldenSession)}, opts...)...)
	if err != nil {
		return nil, err
	}
	result, err := h.Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, s.Name(), result)
	return result, nil
}

// AssertGolden compares a result's final module against a golden file
// without re-running the script.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.Text()))
}
