package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/target"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Target returns a preset from the embedded catalog. An empty triple
// selects the default target.
func Target(t testing.TB, triple string) target.Info {
	t.Helper()
	info, err := target.Builtin().Lookup(triple)
	require.NoError(t, err)
	return info
}

// Loc returns a location in the file "test.erl".
func Loc(line int) ir.Location {
	return ir.Location{File: "test.erl", Line: line, Column: 1}
}
