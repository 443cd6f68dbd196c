package ir

import (
	"slices"
	"strconv"
	"strings"
)

// Location is a source position. The zero value is the unknown location.
type Location struct {
	File   string
	Line   int
	Column int
}

// Unknown is the location used when no source position is available.
var Unknown = Location{}

// IsKnown reports whether the location carries a line number.
func (l Location) IsKnown() bool { return l.Line > 0 }

func (l Location) String() string {
	if !l.IsKnown() {
		return "unknown"
	}
	file := l.File
	if file == "" {
		file = "-"
	}
	return file + ":" + strconv.Itoa(l.Line) + ":" + strconv.Itoa(l.Column)
}

// Signature is a function type.
type Signature struct {
	Params  []*Type
	Results []*Type
	VarArgs bool
}

// Equal reports whether two signatures are identical.
func (s Signature) Equal(o Signature) bool {
	return s.VarArgs == o.VarArgs &&
		slices.Equal(s.Params, o.Params) &&
		slices.Equal(s.Results, o.Results)
}

// String prints the signature, e.g. "(term, term) -> term".
func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	if s.VarArgs {
		if len(s.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(") -> ")
	switch len(s.Results) {
	case 1:
		sb.WriteString(s.Results[0].String())
	default:
		sb.WriteByte('(')
		for i, r := range s.Results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// Function is a function definition or an external declaration. A
// declaration has no blocks.
type Function struct {
	Name string
	Sig  Signature
	Loc  Location

	module *Module
	decl   bool
	blocks []*Block
	values Sequence
	labels Sequence
}

// Module returns the owning module.
func (f *Function) Module() *Module { return f.module }

// IsDeclaration reports whether f is an external declaration.
func (f *Function) IsDeclaration() bool { return f.decl }

// Blocks returns the blocks in creation order. The first is the entry.
func (f *Function) Blocks() []*Block { return f.blocks }

// Entry returns the entry block, or nil for a declaration.
func (f *Function) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// AddBlock appends a new block with arguments of the given types.
func (f *Function) AddBlock(argTypes ...*Type) *Block {
	b := &Block{id: BlockID(f.labels.Next()), fn: f}
	for _, t := range argTypes {
		b.AddArg(t)
	}
	f.blocks = append(f.blocks, b)
	return b
}

// RemoveBlock deletes b from the function. Callers must ensure nothing
// branches to it.
func (f *Function) RemoveBlock(b *Block) {
	f.blocks = slices.DeleteFunc(f.blocks, func(x *Block) bool { return x == b })
}

// NewOp creates an op with fresh result values of the given types. The op
// is not placed in any block; use Block.Append or Block.InsertBefore.
func (f *Function) NewOp(kind OpKind, loc Location, operands []*Value, results ...*Type) *Op {
	op := &Op{Kind: kind, Loc: loc, operands: operands}
	for i, t := range results {
		op.results = append(op.results, &Value{
			id:    ValueID(f.values.Next()),
			typ:   t,
			fn:    f,
			def:   op,
			index: i,
		})
	}
	return op
}

// ReplaceAllUses rewrites every operand and successor argument referring to
// old so it refers to repl instead.
func (f *Function) ReplaceAllUses(old, repl *Value) {
	for _, b := range f.blocks {
		for _, op := range b.ops {
			for i, v := range op.operands {
				if v == old {
					op.operands[i] = repl
				}
			}
			for _, s := range op.succs {
				for i, v := range s.Args {
					if v == old {
						s.Args[i] = repl
					}
				}
			}
		}
	}
}

// Uses counts the operand and successor-argument references to v.
func (f *Function) Uses(v *Value) int {
	n := 0
	for _, b := range f.blocks {
		for _, op := range b.ops {
			for _, o := range op.operands {
				if o == v {
					n++
				}
			}
			for _, s := range op.succs {
				for _, a := range s.Args {
					if a == v {
						n++
					}
				}
			}
		}
	}
	return n
}

// Module is a compilation unit: functions and declarations sharing a type
// registry and attribute store.
type Module struct {
	Name  string
	Types *Registry
	Attrs *AttrStore

	funcs  []*Function
	byName map[string]*Function
	frozen bool
}

// NewModule creates an empty module.
func NewModule(name string, types *Registry, attrs *AttrStore) *Module {
	return &Module{
		Name:   name,
		Types:  types,
		Attrs:  attrs,
		byName: make(map[string]*Function),
	}
}

// Functions returns definitions and declarations in creation order.
func (m *Module) Functions() []*Function { return m.funcs }

// Lookup returns the function or declaration named symbol.
func (m *Module) Lookup(symbol string) *Function { return m.byName[symbol] }

// Freeze marks the module finished. Later mutations through the module
// API fail with MODULE_FROZEN.
func (m *Module) Freeze() { m.frozen = true }

// Frozen reports whether Freeze was called.
func (m *Module) Frozen() bool { return m.frozen }

// Thaw reopens a frozen module for rewriting passes.
func (m *Module) Thaw() { m.frozen = false }

// GetOrDeclare returns the function named symbol, declaring it with sig if
// absent. An existing symbol with a different signature is an error.
func (m *Module) GetOrDeclare(symbol string, sig Signature) (*Function, error) {
	if f, ok := m.byName[symbol]; ok {
		if !f.Sig.Equal(sig) {
			return nil, &SymbolError{Code: CodeIncompatibleRedeclaration, Symbol: symbol,
				Existing: f.Sig, Wanted: sig}
		}
		return f, nil
	}
	if m.frozen {
		return nil, &SymbolError{Code: CodeModuleFrozen, Symbol: symbol}
	}
	f := &Function{Name: symbol, Sig: sig, module: m, decl: true}
	m.funcs = append(m.funcs, f)
	m.byName[symbol] = f
	return f, nil
}

// Define creates a function definition with an entry block whose arguments
// match the signature parameters. A prior compatible declaration becomes
// the definition.
func (m *Module) Define(symbol string, sig Signature, loc Location) (*Function, error) {
	if m.frozen {
		return nil, &SymbolError{Code: CodeModuleFrozen, Symbol: symbol}
	}
	f, ok := m.byName[symbol]
	switch {
	case ok && !f.decl:
		return nil, &SymbolError{Code: CodeDuplicateDefinition, Symbol: symbol}
	case ok && !f.Sig.Equal(sig):
		return nil, &SymbolError{Code: CodeIncompatibleRedeclaration, Symbol: symbol,
			Existing: f.Sig, Wanted: sig}
	case ok:
		f.decl = false
		f.Loc = loc
	default:
		f = &Function{Name: symbol, Sig: sig, Loc: loc, module: m}
		m.funcs = append(m.funcs, f)
		m.byName[symbol] = f
	}
	f.AddBlock(sig.Params...)
	return f, nil
}
