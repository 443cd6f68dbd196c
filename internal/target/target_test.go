package target

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()
	assert.Equal(t, []string{
		"aarch64-apple-darwin",
		"wasm32-unknown-unknown",
		"x86_64-pc-windows-msvc",
		"x86_64-unknown-linux-gnu",
	}, c.Triples())

	def, err := c.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "x86_64-unknown-linux-gnu", def.Triple)
	assert.Equal(t, 8, def.WordBytes())
	assert.Equal(t, "itanium", def.ExceptionDialect())

	win, err := c.Lookup("x86_64-pc-windows-msvc")
	require.NoError(t, err)
	assert.True(t, win.LikeMSVC)
	assert.Equal(t, "seh", win.ExceptionDialect())

	wasm, err := c.Lookup("wasm32-unknown-unknown")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<29-1), wasm.MaxBinaryBits())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Builtin().Lookup("riscv64-unknown-none")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown triple")
	assert.Contains(t, err.Error(), "aarch64-apple-darwin")
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown_field", "targets:\n  - triple: x\n    pointer_width: 64\n    immediate_width: 8\n    endian: big\n", "endian"},
		{"bad_width", "targets:\n  - triple: x\n    pointer_width: 16\n    immediate_width: 8\n", "pointer_width 16"},
		{"immediate_too_wide", "targets:\n  - triple: x\n    pointer_width: 32\n    immediate_width: 40\n", "immediate_width 40"},
		{"duplicate", "targets:\n  - {triple: x, pointer_width: 64, immediate_width: 8}\n  - {triple: x, pointer_width: 64, immediate_width: 8}\n", "duplicate"},
		{"bad_default", "default: y\ntargets:\n  - {triple: x, pointer_width: 64, immediate_width: 8}\n", "default y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadFileAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	src := "default: riscv64-unknown-linux-gnu\ntargets:\n" +
		"  - {triple: riscv64-unknown-linux-gnu, pointer_width: 64, immediate_width: 46}\n" +
		"  - {triple: wasm32-unknown-unknown, pointer_width: 32, immediate_width: 30}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	user, err := LoadFile(path)
	require.NoError(t, err)

	merged := Builtin().Merge(user)
	require.NoError(t, merged.Validate())
	assert.Len(t, merged.Targets, 5)

	def, err := merged.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "riscv64-unknown-linux-gnu", def.Triple)

	wasm, err := merged.Lookup("wasm32-unknown-unknown")
	require.NoError(t, err)
	assert.Equal(t, 30, wasm.ImmediateWidth)
}
