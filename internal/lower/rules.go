package lower

import (
	"github.com/roach88/eir/internal/ir"
)

// rule adapts a pair of functions to the Rule interface.
type rule struct {
	name    string
	match   func(*ir.Op) bool
	rewrite func(*Rewriter, *ir.Op) error
}

func (r rule) Name() string                          { return r.name }
func (r rule) Match(op *ir.Op) bool                  { return r.match(op) }
func (r rule) Rewrite(rw *Rewriter, op *ir.Op) error { return r.rewrite(rw, op) }

func kindIs(kinds ...ir.OpKind) func(*ir.Op) bool {
	return func(op *ir.Op) bool {
		for _, k := range kinds {
			if op.Kind == k {
				return true
			}
		}
		return false
	}
}

// DefaultRules returns the rules that lower every runtime-backed op to
// calls on the runtime catalog. Static and closure calls, constants and
// the pure structural ops are left for code generation.
func DefaultRules() []Rule {
	return []Rule{
		rule{"compare", func(op *ir.Op) bool {
			return op.Kind.IsComparison() || op.Kind == ir.OpAnd || op.Kind == ir.OpOr
		}, lowerCompare},
		rule{"is_type", kindIs(ir.OpIsType), lowerIsType},
		rule{"if", func(op *ir.Op) bool {
			return op.Kind == ir.OpIf && machineBool(op.Operand(0)) != nil
		}, lowerIf},
		rule{"map_update", kindIs(ir.OpMapUpdate), lowerMapUpdate},
		rule{"binary_start", kindIs(ir.OpBinaryStart), lowerBinaryStart},
		rule{"binary_push", kindIs(ir.OpBinaryPush), lowerBinaryPush},
		rule{"binary_finish", kindIs(ir.OpBinaryFinish), lowerBinaryFinish},
		rule{"binary_match", kindIs(ir.OpBinaryMatch), lowerBinaryMatch},
		rule{"receive", kindIs(ir.OpReceiveStart, ir.OpReceiveWait, ir.OpReceiveDone), lowerReceive},
		rule{"trace", kindIs(ir.OpTraceCapture, ir.OpTraceConstruct), lowerTrace},
		rule{"throw", kindIs(ir.OpThrow), lowerThrow},
		rule{"landing_pad", kindIs(ir.OpLandingPad), lowerLandingPad},
	}
}

func lowerCompare(rw *Rewriter, op *ir.Op) error {
	c := rw.Before(op)
	res, err := c.Call(runtimePrefix+op.Kind.String(), c.Word(op.Operand(0)), c.Word(op.Operand(1)))
	if err != nil {
		return err
	}
	return rw.ReplaceValue(op, c.Cast(res[0], op.Result(0).Type()))
}

// machineBool returns the i1 behind cond: cond itself, or the operand of
// the cast that boxed a runtime flag. It returns nil for a term boolean.
func machineBool(cond *ir.Value) *ir.Value {
	if cond == nil {
		return nil
	}
	if cond.Type().IsI1() {
		return cond
	}
	if def := cond.Def(); def != nil && def.Kind == ir.OpCast && def.Operand(0).Type().IsI1() {
		return def.Operand(0)
	}
	return nil
}

// TypeTag encodes t for the runtime type test: the kind in the low byte and
// a static tuple arity above it.
func TypeTag(t *ir.Type) int64 {
	tag := int64(t.Kind())
	if t.HasStaticShape() {
		tag |= int64(t.Arity()) << 8
	}
	return tag
}

func lowerIsType(rw *Rewriter, op *ir.Op) error {
	if op.TypeArg == nil {
		return &RewriteError{Code: ErrCodeMalformedOp, Message: "is_type without a type"}
	}
	c := rw.Before(op)
	tag, err := c.Int(TypeTag(op.TypeArg), 32)
	if err != nil {
		return err
	}
	res, err := c.Call(runtimePrefix+"is_type", c.Word(op.Operand(0)), tag)
	if err != nil {
		return err
	}
	return rw.ReplaceValue(op, c.Cast(res[0], op.Result(0).Type()))
}

// lowerIf turns an if on a runtime flag into cond_br. An i1 has no third
// state, so the other edge is dropped; Run prunes its block if nothing else
// reaches it.
func lowerIf(rw *Rewriter, op *ir.Op) error {
	yes, no := op.Successor(ir.RoleTrue), op.Successor(ir.RoleFalse)
	if yes == nil || no == nil {
		return &RewriteError{Code: ErrCodeMalformedOp, Message: "if without both branches"}
	}
	rw.Before(op).Terminate(ir.OpCondBr, []*ir.Value{machineBool(op.Operand(0))}, edge(ir.RoleTrue, yes), edge(ir.RoleFalse, no))
	return nil
}

// lowerMapUpdate chains one runtime call per action. Each call yields a
// success flag and either the new map or the error term.
func lowerMapUpdate(rw *Rewriter, op *ir.Op) error {
	ok, fail := op.Successor(ir.RoleOK), op.Successor(ir.RoleErr)
	if ok == nil || fail == nil {
		return &RewriteError{Code: ErrCodeMalformedOp, Message: "map.update without ok and err"}
	}
	types := rw.Types()
	c := rw.Before(op)
	cur := c.Word(op.Operand(0))
	next := 1
	for i, action := range op.Actions {
		args := []*ir.Value{cur}
		for j := 0; j < action.Operands(); j++ {
			v := op.Operand(next)
			if v == nil {
				return &RewriteError{Code: ErrCodeMalformedOp, Message: "map.update is missing operands"}
			}
			args = append(args, c.Word(v))
			next++
		}
		res, err := c.Call(runtimePrefix+"map."+action.String(), args...)
		if err != nil {
			return err
		}
		reason := c.Cast(res[1], types.Term())
		if i == len(op.Actions)-1 {
			c.Terminate(ir.OpCondBr, []*ir.Value{res[0]},
				edge(ir.RoleTrue, ok, c.Cast(res[1], types.Map())),
				edge(ir.RoleFalse, fail, reason))
			break
		}
		step := rw.NewBlock(rw.Word())
		c.Terminate(ir.OpCondBr, []*ir.Value{res[0]},
			&ir.Successor{Role: ir.RoleTrue, Block: step, Args: []*ir.Value{res[1]}},
			edge(ir.RoleFalse, fail, reason))
		c = rw.AtEnd(step, op.Loc)
		cur = step.Arg(0)
	}
	return nil
}

func lowerBinaryStart(rw *Rewriter, op *ir.Op) error {
	c := rw.Before(op)
	res, err := c.Call(runtimePrefix + "binary.start")
	if err != nil {
		return err
	}
	c.Terminate(ir.OpBr, nil, edge(ir.RoleDest, op.Successor(ir.RoleDest), res[0]))
	return nil
}

func lowerBinaryPush(rw *Rewriter, op *ir.Op) error {
	types := rw.Types()
	c := rw.Before(op)
	size, err := sizeOperand(c, op, 2)
	if err != nil {
		return err
	}
	spec, err := c.Int(int64(op.Spec.Encode()), 32)
	if err != nil {
		return err
	}
	res, err := c.Call(runtimePrefix+"binary.push", op.Operand(0), c.Word(op.Operand(1)), size, spec)
	if err != nil {
		return err
	}
	handle := c.Cast(res[1], types.BytePtr())
	reason := c.Cast(res[1], types.Term())
	c.Terminate(ir.OpCondBr, []*ir.Value{res[0]},
		edge(ir.RoleTrue, op.Successor(ir.RoleOK), handle),
		edge(ir.RoleFalse, op.Successor(ir.RoleErr), reason))
	return nil
}

// sizeOperand returns operand i as a word, or -1 when the segment has no
// explicit size.
func sizeOperand(c *Cursor, op *ir.Op, i int) (*ir.Value, error) {
	if v := op.Operand(i); v != nil {
		return c.Word(v), nil
	}
	return c.Int(-1, c.rw.target.PointerWidth)
}

// lowerBinaryFinish materializes a binary folded at build time as a
// constant; the runtime accumulator is finished otherwise.
func lowerBinaryFinish(rw *Rewriter, op *ir.Op) error {
	c := rw.Before(op)
	var bin *ir.Value
	if folded, isBin := op.Attr.(*ir.BinaryAttr); isBin {
		bin = c.Const(folded, nil)
	} else {
		res, err := c.Call(runtimePrefix+"binary.finish", op.Operand(0))
		if err != nil {
			return err
		}
		bin = c.Cast(res[0], rw.Types().Binary())
	}
	c.Terminate(ir.OpBr, nil, edge(ir.RoleDest, op.Successor(ir.RoleDest), bin))
	return nil
}

func lowerBinaryMatch(rw *Rewriter, op *ir.Op) error {
	term := rw.Types().Term()
	c := rw.Before(op)
	size, err := sizeOperand(c, op, 1)
	if err != nil {
		return err
	}
	spec, err := c.Int(int64(op.Spec.Encode()), 32)
	if err != nil {
		return err
	}
	res, err := c.Call(runtimePrefix+"binary.match", c.Word(op.Operand(0)), size, spec)
	if err != nil {
		return err
	}
	value, rest := c.Cast(res[1], term), c.Cast(res[2], term)
	c.Terminate(ir.OpCondBr, []*ir.Value{res[0]},
		edge(ir.RoleTrue, op.Successor(ir.RoleOK), value, rest),
		edge(ir.RoleFalse, op.Successor(ir.RoleErr)))
	return nil
}

func lowerReceive(rw *Rewriter, op *ir.Op) error {
	types := rw.Types()
	c := rw.Before(op)
	switch op.Kind {
	case ir.OpReceiveStart:
		res, err := c.Call(runtimePrefix+"receive.start", c.Word(op.Operand(0)))
		if err != nil {
			return err
		}
		ref := c.Cast(res[0], types.ReceiveRef())
		c.Terminate(ir.OpBr, nil, edge(ir.RoleDest, op.Successor(ir.RoleDest), ref))
	case ir.OpReceiveWait:
		res, err := c.Call(runtimePrefix+"receive.wait", c.Word(op.Operand(0)))
		if err != nil {
			return err
		}
		msg := c.Cast(res[1], types.Term())
		c.Terminate(ir.OpCondBr, []*ir.Value{res[0]},
			edge(ir.RoleTrue, op.Successor(ir.RoleCheck), msg),
			edge(ir.RoleFalse, op.Successor(ir.RoleTimeout)))
	case ir.OpReceiveDone:
		if _, err := c.Call(runtimePrefix+"receive.done", c.Word(op.Operand(0))); err != nil {
			return err
		}
		c.Terminate(ir.OpBr, nil, edge(ir.RoleDest, op.Successor(ir.RoleDest)))
	}
	return nil
}

func lowerTrace(rw *Rewriter, op *ir.Op) error {
	types := rw.Types()
	c := rw.Before(op)
	if op.Kind == ir.OpTraceCapture {
		res, err := c.Call(runtimePrefix + "trace.capture")
		if err != nil {
			return err
		}
		ref := c.Cast(res[0], types.TraceRef())
		c.Terminate(ir.OpBr, nil, edge(ir.RoleDest, op.Successor(ir.RoleDest), ref))
		return nil
	}
	res, err := c.Call(runtimePrefix+"trace.construct", c.Word(op.Operand(0)))
	if err != nil {
		return err
	}
	return rw.ReplaceValue(op, c.Cast(res[0], types.Term()))
}

// lowerThrow calls the runtime raise, which does not return. A missing
// trace is passed as a null word.
func lowerThrow(rw *Rewriter, op *ir.Op) error {
	c := rw.Before(op)
	var trace *ir.Value
	if t := op.Operand(2); t != nil {
		trace = c.Word(t)
	} else {
		var err error
		if trace, err = c.Int(0, rw.target.PointerWidth); err != nil {
			return err
		}
	}
	if _, err := c.Call(runtimePrefix+"raise", c.Word(op.Operand(0)), c.Word(op.Operand(1)), trace); err != nil {
		return err
	}
	c.Terminate(ir.OpUnreachable, nil)
	return nil
}

func lowerLandingPad(rw *Rewriter, op *ir.Op) error {
	types := rw.Types()
	dialect := op.Dialect
	if dialect == "" {
		dialect = rw.target.ExceptionDialect()
	}
	c := rw.Before(op)
	res, err := c.Call(runtimePrefix+"catch."+dialect, c.Word(op.Operand(0)))
	if err != nil {
		return err
	}
	class := c.Cast(res[0], types.Atom())
	reason := c.Cast(res[1], types.Term())
	trace := c.Cast(res[2], types.TraceRef())
	c.Terminate(ir.OpBr, nil, edge(ir.RoleDest, op.Successor(ir.RoleErr), class, reason, trace))
	return nil
}
