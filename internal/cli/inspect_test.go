package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"uniform tuple", "tuple<atom, atom>", "tuple<2x atom>\n  kind: tuple\n  size: 24 bytes\n  flags: term, boxed\n"},
		{"machine int", "i32", "i32\n  kind: machine_int\n  size: 4 bytes\n  flags: \n"},
		{"dynamic tuple", "tuple", "tuple<*>\n  kind: tuple\n  size: dynamic\n  flags: term, boxed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "type", tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestTypeCommand_SizeFollowsTarget(t *testing.T) {
	out, _, err := execute(t, "type", "--target", "wasm32-unknown-unknown", "tuple<3x term>")
	require.NoError(t, err)
	assert.Contains(t, out, "size: 16 bytes")

	out, _, err = execute(t, "type", "tuple<3x term>")
	require.NoError(t, err)
	assert.Contains(t, out, "size: 32 bytes")
}

func TestTypeCommand_JSON(t *testing.T) {
	out, _, err := execute(t, "type", "--format", "json", "tuple<atom, atom>")
	require.NoError(t, err)

	var resp struct {
		Status string   `json:"status"`
		Data   TypeInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "tuple<2x atom>", resp.Data.Text)
	assert.Equal(t, "tuple", resp.Data.Kind)
	assert.True(t, resp.Data.Term)
	assert.Equal(t, 24, resp.Data.Size)
}

func TestTypeCommand_ParseError(t *testing.T) {
	out, _, err := execute(t, "type", "box<i32>")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestAttrCommand(t *testing.T) {
	out, _, err := execute(t, "attr", "atom<{ id = 3, value = 'ok' }>")
	require.NoError(t, err)
	assert.Equal(t, "atom<{ id = 3, value = 'ok' }> : atom\n", out)
}

func TestAttrCommand_ParseError(t *testing.T) {
	out, _, err := execute(t, "attr", "--format", "json", "int<{ value = 300, width = 8 }>")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "does not fit")
}
