package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(testutil.DiscardLogger()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestArtifact creates an artifact whose fingerprint matches its text.
func createTestArtifact(module, stage, text string) ir.Artifact {
	return ir.Artifact{
		Fingerprint: ir.TextFingerprint(text),
		Module:      module,
		Stage:       stage,
		Target:      "x86_64-unknown-linux-gnu",
		IRVersion:   ir.IRVersion,
		Session:     "test-session-0001",
		Text:        text,
	}
}
