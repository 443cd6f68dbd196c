package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// marshalSymbols encodes a symbol list as a sorted JSON array so equal sets
// store identically.
func marshalSymbols(symbols []string) (string, error) {
	sorted := slices.Clone(symbols)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sorted); err != nil {
		return "", fmt.Errorf("marshal symbols: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// unmarshalSymbols decodes a JSON array written by marshalSymbols.
func unmarshalSymbols(text string) ([]string, error) {
	symbols := []string{}
	if err := json.Unmarshal([]byte(text), &symbols); err != nil {
		return nil, fmt.Errorf("unmarshal symbols: %w", err)
	}
	return symbols, nil
}
