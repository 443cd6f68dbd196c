package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Script is a build script: a module described op by op, replayed through
// the builder the way a front end would drive it.
type Script struct {
	// Module names the module being built.
	Module string `yaml:"module"`

	// Description explains what this script exercises.
	Description string `yaml:"description"`

	// Target selects a target preset by triple. Empty means the default.
	Target string `yaml:"target,omitempty"`

	// Lower runs the lowering engine after building. Assertions then apply
	// to the lowered module.
	Lower bool `yaml:"lower,omitempty"`

	// Declarations are external functions referenced by calls.
	Declarations []DeclSpec `yaml:"declarations,omitempty"`

	// Functions are built in order.
	Functions []FunctionSpec `yaml:"functions"`

	// Assertions validate the finished module.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// ExpectError, when set, is the build error code the script must fail
	// with (e.g. "TYPE_MISMATCH").
	ExpectError string `yaml:"expect_error,omitempty"`

	// path is the file the script was loaded from, used in locations.
	path string
}

// Name returns the script's base name without extension, or the module
// name for scripts not loaded from a file.
func (s *Script) Name() string {
	if s.path == "" {
		return s.Module
	}
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DeclSpec declares an external function. Types use IR type syntax.
type DeclSpec struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Result string   `yaml:"result,omitempty"`
}

// FunctionSpec defines one function. The first block is the entry block;
// its arguments are the parameters.
type FunctionSpec struct {
	Name   string      `yaml:"name"`
	Params []ParamSpec `yaml:"params"`
	Result string      `yaml:"result,omitempty"`
	Blocks []BlockSpec `yaml:"blocks"`
}

// ParamSpec names a parameter or block argument. Type defaults to term.
// Env marks a closure parameter whose environment holds that many values.
type ParamSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
	Env  int    `yaml:"env,omitempty"`
}

// BlockSpec is one block. Args is ignored for the entry block.
type BlockSpec struct {
	Label string      `yaml:"label"`
	Args  []ParamSpec `yaml:"args,omitempty"`
	Ops   []Step      `yaml:"ops"`
}

// Names is a list of value names. A single scalar is accepted for a
// one-element list.
type Names []string

// UnmarshalYAML accepts a scalar or a sequence.
func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*n = Names{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*n = list
	return nil
}

// DestSpec is a continuation: a block label and the values passed to it.
// A scalar is shorthand for a label with no values.
type DestSpec struct {
	Block string `yaml:"block"`
	Args  Names  `yaml:"args,omitempty"`
}

// UnmarshalYAML accepts "label" or {block: label, args: [...]}.
func (d *DestSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Block = node.Value
		return nil
	}
	type plain DestSpec
	return node.Decode((*plain)(d))
}

// Literal is a constant operand. Exactly one field is set. Attr holds the
// textual attribute form.
type Literal struct {
	Atom   *string  `yaml:"atom,omitempty"`
	Int    *int64   `yaml:"int,omitempty"`
	BigInt string   `yaml:"bigint,omitempty"`
	Float  *float64 `yaml:"float,omitempty"`
	String *string  `yaml:"string,omitempty"`
	Bool   *bool    `yaml:"bool,omitempty"`
	Nil    bool     `yaml:"nil,omitempty"`
	Attr   string   `yaml:"attr,omitempty"`
}

func (l *Literal) count() int {
	n := 0
	for _, set := range []bool{l.Atom != nil, l.Int != nil, l.BigInt != "", l.Float != nil,
		l.String != nil, l.Bool != nil, l.Nil, l.Attr != ""} {
		if set {
			n++
		}
	}
	return n
}

// SegmentSpec describes a binary segment.
type SegmentSpec struct {
	Type   string `yaml:"type"`
	Unit   uint8  `yaml:"unit,omitempty"`
	Endian string `yaml:"endian,omitempty"`
	Signed bool   `yaml:"signed,omitempty"`
}

// ChangeSpec is one map_update action.
type ChangeSpec struct {
	Action string `yaml:"action"` // insert, update, remove
	Key    string `yaml:"key"`
	Value  string `yaml:"value,omitempty"`
}

// PatternSpec is a match clause pattern. Exactly one field is set; an
// empty pattern matches anything.
type PatternSpec struct {
	Literal *Literal     `yaml:"literal,omitempty"`
	Type    string       `yaml:"type,omitempty"`
	Tuple   int          `yaml:"tuple,omitempty"`
	Cons    bool         `yaml:"cons,omitempty"`
	MapKey  *Literal     `yaml:"map_key,omitempty"`
	Binary  *SegmentSpec `yaml:"binary,omitempty"`
	Size    *int64       `yaml:"size,omitempty"`
}

// GuardSpec applies a test intrinsic to some of a clause's bindings.
type GuardSpec struct {
	Intrinsic string `yaml:"intrinsic"`
	Bind      []int  `yaml:"bind"`
}

// ClauseSpec is one match clause.
type ClauseSpec struct {
	Pattern PatternSpec `yaml:"pattern"`
	Guard   *GuardSpec  `yaml:"guard,omitempty"`
	Body    DestSpec    `yaml:"body"`
}

// Step is one builder call. Which fields apply depends on Op.
type Step struct {
	Op   string `yaml:"op"`
	Args Names  `yaml:"args,omitempty"`
	As   Names  `yaml:"as,omitempty"`

	Kind    string       `yaml:"kind,omitempty"` // compare kind, e.g. "gte"
	Type    string       `yaml:"type,omitempty"`
	Value   *Literal     `yaml:"value,omitempty"`
	Index   int          `yaml:"index,omitempty"`
	Callee  string       `yaml:"callee,omitempty"`
	Tail    bool         `yaml:"tail,omitempty"`
	Label   string       `yaml:"label,omitempty"`
	Spec    *SegmentSpec `yaml:"spec,omitempty"`
	Changes []ChangeSpec `yaml:"changes,omitempty"`
	Clauses []ClauseSpec `yaml:"clauses,omitempty"`

	To      *DestSpec `yaml:"to,omitempty"`
	Then    *DestSpec `yaml:"then,omitempty"`
	Else    *DestSpec `yaml:"else,omitempty"`
	Other   *DestSpec `yaml:"other,omitempty"`
	OK      *DestSpec `yaml:"ok,omitempty"`
	Err     *DestSpec `yaml:"err,omitempty"`
	Timeout *DestSpec `yaml:"timeout,omitempty"`
	Check   *DestSpec `yaml:"check,omitempty"`
	NoMatch *DestSpec `yaml:"no_match,omitempty"`

	line   int
	column int
}

// UnmarshalYAML records the step's position for IR locations.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	type plain Step
	if err := node.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line, s.column = node.Line, node.Column
	return nil
}

// LoadScript reads and parses a build script.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// ParseScript parses a build script from YAML.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScript(&s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}

// validateScript checks the shape of a script. Operand names and types are
// checked while building.
func validateScript(s *Script) error {
	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if len(s.Functions) == 0 {
		return fmt.Errorf("functions list is required and must be non-empty")
	}
	for i, d := range s.Declarations {
		if d.Name == "" {
			return fmt.Errorf("declarations[%d]: name is required", i)
		}
	}
	for i, f := range s.Functions {
		if f.Name == "" {
			return fmt.Errorf("functions[%d]: name is required", i)
		}
		if len(f.Blocks) == 0 {
			return fmt.Errorf("functions[%d] %s: at least one block is required", i, f.Name)
		}
		labels := make(map[string]bool, len(f.Blocks))
		for j, b := range f.Blocks {
			if b.Label == "" {
				return fmt.Errorf("functions[%d].blocks[%d]: label is required", i, j)
			}
			if labels[b.Label] {
				return fmt.Errorf("functions[%d]: duplicate block label %q", i, b.Label)
			}
			labels[b.Label] = true
			for k, op := range b.Ops {
				if op.Op == "" {
					return fmt.Errorf("functions[%d].blocks[%d].ops[%d]: op is required", i, j, k)
				}
				if _, known := stepHandlers[op.Op]; !known {
					return fmt.Errorf("functions[%d].blocks[%d].ops[%d]: unknown op %q", i, j, k, op.Op)
				}
				if op.Value != nil && op.Value.count() != 1 {
					return fmt.Errorf("functions[%d].blocks[%d].ops[%d]: value must set exactly one field", i, j, k)
				}
			}
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}
