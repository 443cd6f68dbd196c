package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(AttrInfo{Text: "nil", Type: "nil"}))

	var resp struct {
		Status string   `json:"status"`
		Data   AttrInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "nil", resp.Data.Type)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeParse, "expected type", map[string]int{"col": 7}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E002", resp.Error.Code)
	assert.Equal(t, "expected type", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(AttrInfo{Text: "nil", Type: "nil"}))
	require.NoError(t, formatter.Error(ErrCodeTarget, "unknown triple", "ignored unless verbose"))
	assert.Equal(t, "nil : nil\nError [E003]: unknown triple\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeScript, "bad script", "line 3"))
	assert.Contains(t, buf.String(), "Details: line 3")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: diag,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Building %s", "classify")

			assert.Empty(t, out.String(), "verbose logs never go to the JSON stream")
			if tt.wantLog {
				assert.Equal(t, "Building classify\n", diag.String())
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestOutputFormatter_Mark(t *testing.T) {
	plain := &OutputFormatter{}
	assert.Equal(t, "ok", plain.Mark(true))
	assert.Equal(t, "FAIL", plain.Mark(false))

	color := &OutputFormatter{Color: true}
	assert.Contains(t, color.Mark(true), "✓")
	assert.Contains(t, color.Mark(false), "✗")
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestExitError(t *testing.T) {
	base := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open store", base)
	assert.Equal(t, "failed to open store: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("lower: %w", err)))

	assert.Equal(t, "2 of 3 scripts failed", NewExitError(ExitFailure, "2 of 3 scripts failed").Error())
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
