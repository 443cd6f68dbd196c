// Package abi loads the runtime calling surface: the runtime symbols lowered
// code calls and the intrinsic table the builder consults.
//
// The catalog is written in CUE. The embedded catalog.cue is the default;
// Load accepts any source with the same shape, so tests and tools can
// extend it.
package abi

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/eir/internal/ir"
)

//go:embed catalog.cue
var builtinSource []byte

// IntrinsicKind classifies intrinsics by the op the builder emits.
type IntrinsicKind string

const (
	KindCompare  IntrinsicKind = "compare"
	KindLogic    IntrinsicKind = "logic"
	KindTypeTest IntrinsicKind = "type_test"
	KindRaise    IntrinsicKind = "raise"
)

// Symbol is a runtime entry point. Types are kept as text until resolved
// against a registry and target word size.
type Symbol struct {
	Name    string
	Params  []string
	Results []string
	VarArgs bool
}

// Intrinsic maps a qualified function name (module:name/arity) to a
// built-in operation.
type Intrinsic struct {
	Name  string
	Kind  IntrinsicKind
	Op    string
	Arity int
}

// Catalog is a loaded runtime catalog.
type Catalog struct {
	symbols    map[string]Symbol
	intrinsics map[string]Intrinsic
}

// CatalogError represents a catalog error with source position.
type CatalogError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CatalogError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the embedded catalog. It is loaded once.
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = Load("catalog.cue", builtinSource)
	})
	return builtin, builtinErr
}

// Load compiles CUE source into a catalog. Every field must be concrete.
func Load(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{
		symbols:    make(map[string]Symbol),
		intrinsics: make(map[string]Intrinsic),
	}
	if err := c.loadSymbols(v.LookupPath(cue.ParsePath("runtime"))); err != nil {
		return nil, err
	}
	if err := c.loadIntrinsics(v.LookupPath(cue.ParsePath("intrinsics"))); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) loadSymbols(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		item := iter.Value()
		var s Symbol
		if s.Name, err = stringField(item, "name"); err != nil {
			return err
		}
		if s.Params, err = stringList(item, "params"); err != nil {
			return err
		}
		if s.Results, err = stringList(item, "results"); err != nil {
			return err
		}
		if va := item.LookupPath(cue.ParsePath("varargs")); va.Exists() {
			if d, ok := va.Default(); ok {
				va = d
			}
			if s.VarArgs, err = va.Bool(); err != nil {
				return formatCUEError(err)
			}
		}
		if _, dup := c.symbols[s.Name]; dup {
			return &CatalogError{Field: "runtime", Message: "duplicate symbol " + s.Name, Pos: item.Pos()}
		}
		c.symbols[s.Name] = s
	}
	return nil
}

func (c *Catalog) loadIntrinsics(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		item := iter.Value()
		var in Intrinsic
		if in.Name, err = stringField(item, "name"); err != nil {
			return err
		}
		kind, err := stringField(item, "kind")
		if err != nil {
			return err
		}
		in.Kind = IntrinsicKind(kind)
		if in.Op, err = stringField(item, "op"); err != nil {
			return err
		}
		arity, err := item.LookupPath(cue.ParsePath("arity")).Int64()
		if err != nil {
			return formatCUEError(err)
		}
		in.Arity = int(arity)
		if _, dup := c.intrinsics[in.Name]; dup {
			return &CatalogError{Field: "intrinsics", Message: "duplicate intrinsic " + in.Name, Pos: item.Pos()}
		}
		c.intrinsics[in.Name] = in
	}
	return nil
}

func stringField(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CatalogError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CatalogError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// Symbol returns the runtime symbol with the given name.
func (c *Catalog) Symbol(name string) (Symbol, bool) {
	s, ok := c.symbols[name]
	return s, ok
}

// Symbols returns the runtime symbol names in sorted order.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.symbols))
	for name := range c.symbols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Intrinsic returns the intrinsic for a qualified name such as
// "erlang:</2".
func (c *Catalog) Intrinsic(name string) (Intrinsic, bool) {
	in, ok := c.intrinsics[name]
	return in, ok
}

// Intrinsics returns every intrinsic sorted by name.
func (c *Catalog) Intrinsics() []Intrinsic {
	out := make([]Intrinsic, 0, len(c.intrinsics))
	for _, in := range c.intrinsics {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Signature resolves a runtime symbol's types. "usize" becomes the machine
// integer of wordBits; every other type string is parsed as IR type text.
func (c *Catalog) Signature(name string, types *ir.Registry, wordBits int) (ir.Signature, error) {
	s, ok := c.symbols[name]
	if !ok {
		return ir.Signature{}, fmt.Errorf("abi: unknown runtime symbol %s", name)
	}
	params, err := resolveTypes(s.Params, types, wordBits)
	if err != nil {
		return ir.Signature{}, fmt.Errorf("abi: %s params: %w", name, err)
	}
	results, err := resolveTypes(s.Results, types, wordBits)
	if err != nil {
		return ir.Signature{}, fmt.Errorf("abi: %s results: %w", name, err)
	}
	return ir.Signature{Params: params, Results: results, VarArgs: s.VarArgs}, nil
}

func resolveTypes(src []string, types *ir.Registry, wordBits int) ([]*ir.Type, error) {
	out := make([]*ir.Type, 0, len(src))
	for _, s := range src {
		if s == "usize" {
			t, err := types.Int(wordBits)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
			continue
		}
		t, err := ir.ParseType(types, s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
