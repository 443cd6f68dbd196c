package builder

import (
	"github.com/roach88/eir/internal/abi"
	"github.com/roach88/eir/internal/ir"
)

// BuildStaticCall emits a direct call to callee. On normal return control
// goes to ok with the result bound ahead of ok.Args; if the callee raises,
// control goes to err with the error term bound ahead of err.Args.
//
// ok may be nil only in tail position, where the callee's result becomes
// the caller's. err is optional: without it a raise propagates.
func (b *Builder) BuildStaticCall(loc ir.Location, callee *ir.Function, args []*ir.Value, tail bool, ok, err *Dest) error {
	const op = "build_static_call"
	blk, e := b.insertionPoint(op, loc)
	if e != nil {
		return e
	}
	if callee == nil || callee.Module() != b.mod {
		return b.fail(ErrCodeForeignValue, op, loc, "callee is not in this module")
	}
	if e := b.checkArgs(op, loc, callee.Name, callee.Sig, args); e != nil {
		return e
	}
	result := b.types.Term()
	if len(callee.Sig.Results) > 0 {
		result = callee.Sig.Results[0]
	}
	edges, e := b.callEdges(op, loc, result, tail, ok, err)
	if e != nil {
		return e
	}
	o, e := b.terminate(blk, op, ir.OpStaticCall, loc, args, edges...)
	if e != nil {
		return e
	}
	o.Callee = callee.Name
	o.Tail = tail
	return nil
}

// BuildClosureCall emits an indirect call through a closure value. Closure
// calls always carry an err continuation.
func (b *Builder) BuildClosureCall(loc ir.Location, closure *ir.Value, args []*ir.Value, tail bool, ok *Dest, err Dest) error {
	const op = "build_closure_call"
	blk, e := b.insertionPoint(op, loc)
	if e != nil {
		return e
	}
	if e := b.checkValues(op, loc, closure); e != nil {
		return e
	}
	if ct := closure.Type(); ct.Kind() != ir.KindClosure && !ct.Contains(b.types.Closure()) {
		return b.fail(ErrCodeTypeMismatch, op, loc, "callee %s has type %s, not a closure", closure, ct)
	}
	if e := b.checkValues(op, loc, args...); e != nil {
		return e
	}
	for _, a := range args {
		if e := b.checkTerm(op, loc, a); e != nil {
			return e
		}
	}
	edges, e := b.callEdges(op, loc, b.types.Term(), tail, ok, &err)
	if e != nil {
		return e
	}
	operands := append([]*ir.Value{closure}, args...)
	o, e := b.terminate(blk, op, ir.OpClosureCall, loc, operands, edges...)
	if e != nil {
		return e
	}
	o.Tail = tail
	return nil
}

func (b *Builder) checkArgs(op string, loc ir.Location, name string, sig ir.Signature, args []*ir.Value) error {
	if err := b.checkValues(op, loc, args...); err != nil {
		return err
	}
	if len(args) < len(sig.Params) || (!sig.VarArgs && len(args) != len(sig.Params)) {
		return b.fail(ErrCodeBadArity, op, loc, "%s takes %d arguments, got %d", name, len(sig.Params), len(args))
	}
	for i, p := range sig.Params {
		if !ir.Assignable(args[i].Type(), p) {
			return b.fail(ErrCodeTypeMismatch, op, loc,
				"%s argument %d has type %s, got %s %s", name, i, p, args[i], args[i].Type())
		}
	}
	return nil
}

// callEdges builds the ok/err successors of a call.
func (b *Builder) callEdges(op string, loc ir.Location, result *ir.Type, tail bool, ok, err *Dest) ([]edge, error) {
	var edges []edge
	switch {
	case ok != nil:
		edges = append(edges, edge{role: ir.RoleOK, dest: *ok, implicit: []*ir.Type{result}})
	case !tail:
		return nil, b.fail(ErrCodeMissingContinuation, op, loc, "a call outside tail position needs an ok continuation")
	default:
		own := b.fn.Sig.Results
		if len(own) != 1 || !ir.Assignable(result, own[0]) {
			return nil, b.fail(ErrCodeTypeMismatch, op, loc,
				"tail call result %s does not match %s", result, b.fn.Sig)
		}
	}
	if err != nil {
		edges = append(edges, edge{role: ir.RoleErr, dest: *err, implicit: []*ir.Type{b.types.Term()}})
	}
	return edges, nil
}

// BuildCall calls the function named callee. Intrinsics are recognized
// first: a value-producing intrinsic passes its result to ok (or returns it
// in tail position) and a raising intrinsic throws. A raising intrinsic
// given an err continuation, and anything else, becomes a static call to an
// external declaration taking and returning terms.
func (b *Builder) BuildCall(loc ir.Location, callee string, args []*ir.Value, tail bool, ok, err *Dest) error {
	const op = "build_call"
	if b.err != nil {
		return b.err
	}
	if ok == nil && !tail {
		return b.fail(ErrCodeMissingContinuation, op, loc, "a call outside tail position needs an ok continuation")
	}
	if b.raisesInto(callee, err) {
		// the raise must reach err, so it stays an ordinary call
		return b.buildExternalCall(loc, callee, args, tail, ok, err)
	}
	v, handled, e := b.MaybeBuildIntrinsic(loc, callee, args)
	if e != nil {
		return e
	}
	if handled {
		switch {
		case v == nil:
			return nil
		case ok != nil:
			return b.BuildBr(loc, Dest{Block: ok.Block, Args: append([]*ir.Value{v}, ok.Args...)})
		default:
			return b.BuildReturn(loc, v)
		}
	}
	return b.buildExternalCall(loc, callee, args, tail, ok, err)
}

// raisesInto reports whether callee is a raising intrinsic called with an
// err continuation.
func (b *Builder) raisesInto(callee string, err *Dest) bool {
	if err == nil {
		return false
	}
	in, found := b.catalog.Intrinsic(callee)
	return found && in.Kind == abi.KindRaise
}

func (b *Builder) buildExternalCall(loc ir.Location, callee string, args []*ir.Value, tail bool, ok, err *Dest) error {
	params := make([]*ir.Type, len(args))
	for i := range params {
		params[i] = b.types.Term()
	}
	fn, e := b.GetOrDeclareFunction(loc, callee, ir.Signature{Params: params, Results: []*ir.Type{b.types.Term()}})
	if e != nil {
		return e
	}
	return b.BuildStaticCall(loc, fn, args, tail, ok, err)
}

var compareOps = map[string]ir.OpKind{
	"eq.strict":  ir.OpCmpEqStrict,
	"eq":         ir.OpCmpEq,
	"neq.strict": ir.OpCmpNeqStrict,
	"neq":        ir.OpCmpNeq,
	"lt":         ir.OpCmpLt,
	"lte":        ir.OpCmpLte,
	"gt":         ir.OpCmpGt,
	"gte":        ir.OpCmpGte,
}

// MaybeBuildIntrinsic emits the built-in operation for callee if the
// runtime catalog lists it. It reports whether callee was an intrinsic.
// Raising intrinsics terminate the block and return a nil value.
func (b *Builder) MaybeBuildIntrinsic(loc ir.Location, callee string, args []*ir.Value) (*ir.Value, bool, error) {
	const op = "build_intrinsic"
	if b.err != nil {
		return nil, false, b.err
	}
	in, found := b.catalog.Intrinsic(callee)
	if !found {
		return nil, false, nil
	}
	if len(args) != in.Arity {
		return nil, true, b.fail(ErrCodeBadArity, op, loc, "%s takes %d arguments, got %d", callee, in.Arity, len(args))
	}
	b.logger.Debug("intrinsic recognized", "callee", callee, "kind", string(in.Kind))
	switch in.Kind {
	case abi.KindCompare:
		kind, ok := compareOps[in.Op]
		if !ok {
			return nil, true, b.fail(ErrCodeInvalidType, op, loc, "unknown comparison %q for %s", in.Op, callee)
		}
		v, err := b.BuildCompare(loc, kind, args[0], args[1])
		return v, true, err
	case abi.KindLogic:
		var v *ir.Value
		var err error
		if in.Op == "and" {
			v, err = b.BuildAnd(loc, args[0], args[1])
		} else {
			v, err = b.BuildOr(loc, args[0], args[1])
		}
		return v, true, err
	case abi.KindTypeTest:
		t, err := ir.ParseType(b.types, in.Op)
		if err != nil {
			return nil, true, b.failWith(ErrCodeInvalidType, op, loc, err, "type test %s", callee)
		}
		v, err := b.BuildIsType(loc, args[0], t)
		return v, true, err
	case abi.KindRaise:
		class, err := b.BuildConstantAtom(loc, in.Op)
		if err != nil {
			return nil, true, err
		}
		return nil, true, b.BuildThrow(loc, class, args[0], nil)
	}
	return nil, true, b.fail(ErrCodeInvalidType, op, loc, "unknown intrinsic kind %q", in.Kind)
}

// BuildThrow raises an exception of the given class (an atom: error, exit
// or throw) with reason. trace may be nil when no trace was captured.
func (b *Builder) BuildThrow(loc ir.Location, class, reason, trace *ir.Value) error {
	const op = "build_throw"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	operands := []*ir.Value{class, reason}
	if trace != nil {
		operands = append(operands, trace)
	}
	if err := b.checkValues(op, loc, operands...); err != nil {
		return err
	}
	if !ir.Assignable(class.Type(), b.types.Atom()) {
		return b.fail(ErrCodeTypeMismatch, op, loc, "class %s has type %s, not atom", class, class.Type())
	}
	if err := b.checkTerm(op, loc, reason); err != nil {
		return err
	}
	if trace != nil && trace.Type() != b.types.TraceRef() {
		return b.fail(ErrCodeTypeMismatch, op, loc, "trace %s has type %s, not trace_ref", trace, trace.Type())
	}
	_, err = b.terminate(blk, op, ir.OpThrow, loc, operands)
	return err
}

// BuildLandingPad creates the block an err continuation should target when
// the failure must be normalized before matching. The pad receives the raw
// error term and passes (class, reason, trace) ahead of err.Args. The
// unwinding dialect follows the target. The insertion point is unchanged.
func (b *Builder) BuildLandingPad(loc ir.Location, err Dest) (*ir.Block, error) {
	const op = "build_landing_pad"
	if b.err != nil {
		return nil, b.err
	}
	if b.fn == nil {
		return nil, b.fail(ErrCodeNoInsertionPoint, op, loc, "no function is open")
	}
	pad := b.fn.AddBlock(b.types.Term())
	e := edge{
		role:     ir.RoleErr,
		dest:     err,
		implicit: []*ir.Type{b.types.Atom(), b.types.Term(), b.types.TraceRef()},
	}
	o, cerr := b.terminate(pad, op, ir.OpLandingPad, loc, []*ir.Value{pad.Arg(0)}, e)
	if cerr != nil {
		b.fn.RemoveBlock(pad)
		return nil, cerr
	}
	o.Dialect = b.target.ExceptionDialect()
	return pad, nil
}
