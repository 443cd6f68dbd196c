package lower

import (
	"errors"

	"github.com/roach88/eir/internal/abi"
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/target"
)

// runtimePrefix is prepended to an op's mnemonic to form its runtime
// symbol, e.g. cmp.eq -> __lumen_builtin_cmp.eq.
const runtimePrefix = "__lumen_builtin_"

// Rewriter gives rules access to the function being lowered.
type Rewriter struct {
	m       *ir.Module
	fn      *ir.Function
	target  target.Info
	catalog *abi.Catalog
	rule    string
}

func newRewriter(m *ir.Module, fn *ir.Function, tgt target.Info, cat *abi.Catalog) *Rewriter {
	return &Rewriter{m: m, fn: fn, target: tgt, catalog: cat}
}

// Function returns the function being lowered.
func (rw *Rewriter) Function() *ir.Function { return rw.fn }

// Types returns the module's type registry.
func (rw *Rewriter) Types() *ir.Registry { return rw.m.Types }

// Word returns the target's machine word integer type.
func (rw *Rewriter) Word() *ir.Type { return rw.m.Types.MustInt(rw.target.PointerWidth) }

// Declare returns the declaration of a runtime symbol, adding it to the
// module on first use.
func (rw *Rewriter) Declare(symbol string) (*ir.Function, error) {
	sig, err := rw.catalog.Signature(symbol, rw.m.Types, rw.target.PointerWidth)
	if err != nil {
		return nil, &RewriteError{Code: ErrCodeUnknownSymbol, Message: "cannot declare " + symbol, Err: err}
	}
	f, err := rw.m.GetOrDeclare(symbol, sig)
	if err != nil {
		return nil, &RewriteError{Code: ErrCodeRedeclaration, Message: "cannot declare " + symbol, Err: err}
	}
	return f, nil
}

// Before returns a cursor inserting ahead of op. Terminate on it replaces
// op.
func (rw *Rewriter) Before(op *ir.Op) *Cursor {
	return &Cursor{rw: rw, blk: op.Block(), anchor: op, loc: op.Loc}
}

// AtEnd returns a cursor appending to blk.
func (rw *Rewriter) AtEnd(blk *ir.Block, loc ir.Location) *Cursor {
	return &Cursor{rw: rw, blk: blk, loc: loc}
}

// NewBlock appends a block to the function.
func (rw *Rewriter) NewBlock(argTypes ...*ir.Type) *ir.Block {
	return rw.fn.AddBlock(argTypes...)
}

// ReplaceValue redirects the uses of op's results to repl and removes op.
func (rw *Rewriter) ReplaceValue(op *ir.Op, repl ...*ir.Value) error {
	if len(repl) != len(op.Results()) {
		return &RewriteError{Code: ErrCodeMalformedOp, Message: "result count changed"}
	}
	for i, r := range op.Results() {
		rw.fn.ReplaceAllUses(r, repl[i])
	}
	op.Block().Remove(op)
	return nil
}

func (rw *Rewriter) wrap(op *ir.Op, err error) error {
	var re *RewriteError
	if !errors.As(err, &re) {
		re = &RewriteError{Code: ErrCodeMalformedOp, Message: "rewrite failed", Err: err}
	}
	if re.Rule == "" {
		re.Rule = rw.rule
	}
	if re.Function == "" {
		re.Function = rw.fn.Name
	}
	if re.Op == "" {
		re.Op = op.Kind.String()
	}
	return re
}

// Cursor is an insertion point for new ops.
type Cursor struct {
	rw     *Rewriter
	blk    *ir.Block
	anchor *ir.Op
	loc    ir.Location
}

func (c *Cursor) put(op *ir.Op) {
	if c.anchor != nil {
		c.blk.InsertBefore(c.anchor, op)
		return
	}
	c.blk.Append(op)
}

// Call emits a call to a runtime symbol and returns its results.
func (c *Cursor) Call(symbol string, args ...*ir.Value) ([]*ir.Value, error) {
	f, err := c.rw.Declare(symbol)
	if err != nil {
		return nil, err
	}
	params := f.Sig.Params
	if len(args) != len(params) {
		return nil, &RewriteError{Code: ErrCodeMalformedOp,
			Message: symbol + " called with the wrong number of arguments"}
	}
	for i, a := range args {
		if !ir.Assignable(a.Type(), params[i]) {
			return nil, &RewriteError{Code: ErrCodeMalformedOp,
				Message: symbol + " argument " + a.String() + " has type " + a.Type().String() + ", want " + params[i].String()}
		}
	}
	op := c.rw.fn.NewOp(ir.OpCall, c.loc, args, f.Sig.Results...)
	op.Callee = symbol
	c.put(op)
	return op.Results(), nil
}

// Cast reinterprets v as t. It returns v when the types already agree.
func (c *Cursor) Cast(v *ir.Value, t *ir.Type) *ir.Value {
	if v.Type() == t {
		return v
	}
	op := c.rw.fn.NewOp(ir.OpCast, c.loc, []*ir.Value{v}, t)
	op.TypeArg = t
	c.put(op)
	return op.Result(0)
}

// Word reinterprets v as a machine word.
func (c *Cursor) Word(v *ir.Value) *ir.Value {
	return c.Cast(v, c.rw.Word())
}

// Const materializes an attribute typed as t, or as the attribute's own
// type when t is nil.
func (c *Cursor) Const(a ir.Attr, t *ir.Type) *ir.Value {
	if t == nil {
		t = a.Type()
	}
	op := c.rw.fn.NewOp(ir.OpConstant, c.loc, nil, t)
	op.Attr = a
	c.put(op)
	return op.Result(0)
}

// Int materializes a machine integer of the given width.
func (c *Cursor) Int(v int64, width int) (*ir.Value, error) {
	a, err := c.rw.m.Attrs.Int(v, width)
	if err != nil {
		return nil, &RewriteError{Code: ErrCodeMalformedOp, Message: "integer constant", Err: err}
	}
	return c.Const(a, nil), nil
}

// Terminate ends the block with a new terminator. On a cursor from Before
// the anchor is replaced.
func (c *Cursor) Terminate(kind ir.OpKind, operands []*ir.Value, succs ...*ir.Successor) *ir.Op {
	op := c.rw.fn.NewOp(kind, c.loc, operands)
	for _, s := range succs {
		op.AddSuccessor(s.Role, s.Block, s.Args...)
	}
	if c.anchor != nil {
		c.blk.Replace(c.anchor, op)
		c.anchor = nil
		return op
	}
	c.blk.Append(op)
	return op
}

// edge forwards s under role with the implicit values bound ahead of its
// explicit arguments.
func edge(role ir.Role, s *ir.Successor, implicit ...*ir.Value) *ir.Successor {
	args := make([]*ir.Value, 0, len(implicit)+len(s.Args))
	args = append(args, implicit...)
	args = append(args, s.Args...)
	return &ir.Successor{Role: role, Block: s.Block, Args: args}
}
