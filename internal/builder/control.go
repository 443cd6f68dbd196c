package builder

import (
	"github.com/roach88/eir/internal/ir"
)

// Dest is a continuation: a target block and the explicit values passed to
// it. Terminators that produce values (calls, receive, binary protocol)
// bind those ahead of Args.
type Dest struct {
	Block *ir.Block
	Args  []*ir.Value
}

// To builds a Dest.
func To(blk *ir.Block, args ...*ir.Value) Dest {
	return Dest{Block: blk, Args: args}
}

// edge is a successor under construction.
type edge struct {
	role     ir.Role
	dest     Dest
	implicit []*ir.Type
}

// checkDest validates a continuation: the block belongs to the open
// function, and its arguments match the implicit values followed by the
// explicit ones in count and type.
func (b *Builder) checkDest(op string, loc ir.Location, e edge) error {
	d := e.dest
	if d.Block == nil {
		return b.fail(ErrCodeMissingContinuation, op, loc, "%s continuation has no block", e.role)
	}
	if d.Block.Function() != b.fn {
		return b.fail(ErrCodeForeignValue, op, loc, "%s block %s belongs to another function", e.role, d.Block)
	}
	if err := b.checkValues(op, loc, d.Args...); err != nil {
		return err
	}
	want := d.Block.NumArgs()
	got := len(e.implicit) + len(d.Args)
	if got != want {
		return b.fail(ErrCodeBadArity, op, loc,
			"%s block %s takes %d arguments, continuation passes %d", e.role, d.Block, want, got)
	}
	for i, t := range e.implicit {
		if param := d.Block.Arg(i).Type(); !ir.Assignable(t, param) {
			return b.fail(ErrCodeTypeMismatch, op, loc,
				"%s block %s argument %d has type %s, receives %s", e.role, d.Block, i, param, t)
		}
	}
	for i, v := range d.Args {
		j := len(e.implicit) + i
		if param := d.Block.Arg(j).Type(); !ir.Assignable(v.Type(), param) {
			return b.fail(ErrCodeTypeMismatch, op, loc,
				"%s block %s argument %d has type %s, receives %s %s", e.role, d.Block, j, param, v, v.Type())
		}
	}
	return nil
}

// terminate validates every edge and appends a terminator.
func (b *Builder) terminate(blk *ir.Block, opName string, kind ir.OpKind, loc ir.Location, operands []*ir.Value, edges ...edge) (*ir.Op, error) {
	for _, e := range edges {
		if err := b.checkDest(opName, loc, e); err != nil {
			return nil, err
		}
	}
	o := b.fn.NewOp(kind, loc, operands)
	for _, e := range edges {
		o.AddSuccessor(e.role, e.dest.Block, e.dest.Args...)
	}
	blk.Append(o)
	return o, nil
}

// BuildBr emits an unconditional branch.
func (b *Builder) BuildBr(loc ir.Location, d Dest) error {
	const op = "build_br"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	_, err = b.terminate(blk, op, ir.OpBr, loc, nil, edge{role: ir.RoleDest, dest: d})
	return err
}

// BuildIf emits the ternary truth test: yes when cond is true, no when it
// is false, and other when it is not a boolean. other may be nil when cond
// is statically boolean, in which case a non-boolean falls to no.
//
// An i1 condition (a lowered boolean) produces a two-way cond_br and must
// not pass other.
func (b *Builder) BuildIf(loc ir.Location, cond *ir.Value, yes, no Dest, other *Dest) error {
	const op = "build_if"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	if err := b.checkValues(op, loc, cond); err != nil {
		return err
	}
	edges := []edge{{role: ir.RoleTrue, dest: yes}, {role: ir.RoleFalse, dest: no}}
	if cond.Type().IsI1() {
		if other != nil {
			return b.fail(ErrCodeBadArity, op, loc, "an i1 condition has no third outcome")
		}
		_, err = b.terminate(blk, op, ir.OpCondBr, loc, []*ir.Value{cond}, edges...)
		return err
	}
	if err := b.checkTerm(op, loc, cond); err != nil {
		return err
	}
	if other != nil {
		edges = append(edges, edge{role: ir.RoleOther, dest: *other})
	}
	_, err = b.terminate(blk, op, ir.OpIf, loc, []*ir.Value{cond}, edges...)
	return err
}

// BuildReturn returns v, which may be nil for a function without result.
func (b *Builder) BuildReturn(loc ir.Location, v *ir.Value) error {
	const op = "build_return"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	results := b.fn.Sig.Results
	var operands []*ir.Value
	if v != nil {
		if err := b.checkValues(op, loc, v); err != nil {
			return err
		}
		if len(results) != 1 {
			return b.fail(ErrCodeBadArity, op, loc, "%s returns no value", b.fn.Name)
		}
		if !ir.Assignable(v.Type(), results[0]) {
			return b.fail(ErrCodeTypeMismatch, op, loc,
				"%s returns %s, got %s %s", b.fn.Name, results[0], v, v.Type())
		}
		operands = []*ir.Value{v}
	} else if len(results) != 0 {
		return b.fail(ErrCodeBadArity, op, loc, "%s must return a %s", b.fn.Name, results[0])
	}
	_, err = b.terminate(blk, op, ir.OpReturn, loc, operands)
	return err
}

// BuildUnreachable marks the end of the block as unreachable.
func (b *Builder) BuildUnreachable(loc ir.Location) error {
	const op = "build_unreachable"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	_, err = b.terminate(blk, op, ir.OpUnreachable, loc, nil)
	return err
}
