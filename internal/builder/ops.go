package builder

import (
	"github.com/roach88/eir/internal/ir"
)

// BuildCompare emits a term comparison. kind must be one of the cmp ops.
// Exact equality also compares types; the non-exact forms allow numeric
// coercion (1 == 1.0).
func (b *Builder) BuildCompare(loc ir.Location, kind ir.OpKind, lhs, rhs *ir.Value) (*ir.Value, error) {
	op := "build_" + kind.String()
	if !kind.IsComparison() {
		return nil, b.fail(ErrCodeInvalidType, op, loc, "%s is not a comparison", kind)
	}
	return b.binaryBoolean(op, kind, loc, lhs, rhs)
}

// BuildEq emits == or, when exact, =:=.
func (b *Builder) BuildEq(loc ir.Location, lhs, rhs *ir.Value, exact bool) (*ir.Value, error) {
	if exact {
		return b.BuildCompare(loc, ir.OpCmpEqStrict, lhs, rhs)
	}
	return b.BuildCompare(loc, ir.OpCmpEq, lhs, rhs)
}

// BuildNeq emits /= or, when exact, =/=.
func (b *Builder) BuildNeq(loc ir.Location, lhs, rhs *ir.Value, exact bool) (*ir.Value, error) {
	if exact {
		return b.BuildCompare(loc, ir.OpCmpNeqStrict, lhs, rhs)
	}
	return b.BuildCompare(loc, ir.OpCmpNeq, lhs, rhs)
}

// BuildAnd emits a non-short-circuit logical and over boolean terms.
func (b *Builder) BuildAnd(loc ir.Location, lhs, rhs *ir.Value) (*ir.Value, error) {
	return b.binaryBoolean("build_and", ir.OpAnd, loc, lhs, rhs)
}

// BuildOr emits a non-short-circuit logical or over boolean terms.
func (b *Builder) BuildOr(loc ir.Location, lhs, rhs *ir.Value) (*ir.Value, error) {
	return b.binaryBoolean("build_or", ir.OpOr, loc, lhs, rhs)
}

func (b *Builder) binaryBoolean(op string, kind ir.OpKind, loc ir.Location, lhs, rhs *ir.Value) (*ir.Value, error) {
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, lhs, rhs); err != nil {
		return nil, err
	}
	if err := b.checkTerm(op, loc, lhs); err != nil {
		return nil, err
	}
	if err := b.checkTerm(op, loc, rhs); err != nil {
		return nil, err
	}
	return b.emit(blk, kind, loc, []*ir.Value{lhs, rhs}, b.types.Boolean()).Result(0), nil
}

// BuildIsType emits a runtime type test of v against the term type t.
func (b *Builder) BuildIsType(loc ir.Location, v *ir.Value, t *ir.Type) (*ir.Value, error) {
	const op = "build_is_type"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, v); err != nil {
		return nil, err
	}
	if t == nil || !t.IsTerm() {
		return nil, b.fail(ErrCodeInvalidType, op, loc, "cannot test for non-term type %s", t)
	}
	o := b.emit(blk, ir.OpIsType, loc, []*ir.Value{v}, b.types.Boolean())
	o.TypeArg = t
	return o.Result(0), nil
}

// BuildCast reinterprets v as type t. It is used to narrow a term after a
// successful type test.
func (b *Builder) BuildCast(loc ir.Location, v *ir.Value, t *ir.Type) (*ir.Value, error) {
	const op = "build_cast"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, v); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, b.fail(ErrCodeInvalidType, op, loc, "cast needs a type")
	}
	if v.Type() == t {
		return v, nil
	}
	o := b.emit(blk, ir.OpCast, loc, []*ir.Value{v}, t)
	o.TypeArg = t
	return o.Result(0), nil
}

// BuildCons emits a list cell.
func (b *Builder) BuildCons(loc ir.Location, head, tail *ir.Value) (*ir.Value, error) {
	const op = "build_cons"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.termOperands(op, loc, head, tail); err != nil {
		return nil, err
	}
	return b.emit(blk, ir.OpCons, loc, []*ir.Value{head, tail}, b.types.Cons()).Result(0), nil
}

// BuildTuple emits a tuple whose type records each element's type.
func (b *Builder) BuildTuple(loc ir.Location, elems ...*ir.Value) (*ir.Value, error) {
	const op = "build_tuple"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, elems...); err != nil {
		return nil, err
	}
	types := make([]*ir.Type, len(elems))
	for i, e := range elems {
		types[i] = e.Type()
	}
	t, err := b.types.Tuple(types...)
	if err != nil {
		return nil, b.failWith(ErrCodeInvalidType, op, loc, err, "invalid tuple")
	}
	return b.emit(blk, ir.OpTuple, loc, elems, t).Result(0), nil
}

// MapEntry is a key/value pair for BuildMap.
type MapEntry struct {
	Key   *ir.Value
	Value *ir.Value
}

// BuildMap emits a map literal.
func (b *Builder) BuildMap(loc ir.Location, entries []MapEntry) (*ir.Value, error) {
	const op = "build_map"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	operands := make([]*ir.Value, 0, 2*len(entries))
	for _, e := range entries {
		operands = append(operands, e.Key, e.Value)
	}
	if err := b.termOperands(op, loc, operands...); err != nil {
		return nil, err
	}
	return b.emit(blk, ir.OpMap, loc, operands, b.types.Map()).Result(0), nil
}

// MapChange is one entry of a functional map update. Value is ignored for
// ir.MapRemove.
type MapChange struct {
	Action ir.MapAction
	Key    *ir.Value
	Value  *ir.Value
}

// BuildMapUpdate applies changes to m in order, producing a new map. The new
// map is passed to ok; a failing change (an update of a missing key) passes
// the error term to err.
func (b *Builder) BuildMapUpdate(loc ir.Location, m *ir.Value, changes []MapChange, ok, err Dest) error {
	const op = "build_map_update"
	blk, e := b.insertionPoint(op, loc)
	if e != nil {
		return e
	}
	if len(changes) == 0 {
		return b.fail(ErrCodeBadArity, op, loc, "map update needs at least one change")
	}
	operands := []*ir.Value{m}
	actions := make([]ir.MapAction, len(changes))
	for i, c := range changes {
		actions[i] = c.Action
		operands = append(operands, c.Key)
		if c.Action != ir.MapRemove {
			operands = append(operands, c.Value)
		}
	}
	if e := b.termOperands(op, loc, operands...); e != nil {
		return e
	}
	if mt := m.Type(); mt != b.types.Map() && !mt.Contains(b.types.Map()) {
		return b.fail(ErrCodeTypeMismatch, op, loc, "%s has type %s, not a map", m, mt)
	}
	o, e := b.terminate(blk, op, ir.OpMapUpdate, loc, operands,
		edge{role: ir.RoleOK, dest: ok, implicit: []*ir.Type{b.types.Map()}},
		edge{role: ir.RoleErr, dest: err, implicit: []*ir.Type{b.types.Term()}},
	)
	if e != nil {
		return e
	}
	o.Actions = actions
	return nil
}

func (b *Builder) termOperands(op string, loc ir.Location, vals ...*ir.Value) error {
	if err := b.checkValues(op, loc, vals...); err != nil {
		return err
	}
	for _, v := range vals {
		if err := b.checkTerm(op, loc, v); err != nil {
			return err
		}
	}
	return nil
}

// BuildTupleGet extracts element index of a tuple. When the tuple's shape
// is static the index is bounds-checked and the element type is exact.
func (b *Builder) BuildTupleGet(loc ir.Location, tuple *ir.Value, index int) (*ir.Value, error) {
	const op = "build_tuple_get"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, tuple); err != nil {
		return nil, err
	}
	t := tuple.Type()
	elem := b.types.Term()
	switch {
	case index < 0:
		return nil, b.fail(ErrCodeIndexOutOfRange, op, loc, "negative tuple index %d", index)
	case t.HasStaticShape():
		if index >= t.Arity() {
			return nil, b.fail(ErrCodeIndexOutOfRange, op, loc, "index %d outside %s", index, t)
		}
		elem = t.ElementType(index)
	case t.Kind() != ir.KindTuple && !t.Contains(b.types.DynamicTuple()):
		return nil, b.fail(ErrCodeTypeMismatch, op, loc, "%s has type %s, not a tuple", tuple, t)
	}
	o := b.emit(blk, ir.OpTupleGet, loc, []*ir.Value{tuple}, elem)
	o.Index = index
	return o.Result(0), nil
}

// BuildListSplit extracts the head and tail of a cons cell.
func (b *Builder) BuildListSplit(loc ir.Location, cons *ir.Value) (head, tail *ir.Value, err error) {
	const op = "build_list_split"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, nil, err
	}
	if err := b.termOperands(op, loc, cons); err != nil {
		return nil, nil, err
	}
	head = b.emit(blk, ir.OpListHead, loc, []*ir.Value{cons}, b.types.Term()).Result(0)
	tail = b.emit(blk, ir.OpListTail, loc, []*ir.Value{cons}, b.types.Term()).Result(0)
	return head, tail, nil
}

// BuildMapContains tests whether key is present in m.
func (b *Builder) BuildMapContains(loc ir.Location, m, key *ir.Value) (*ir.Value, error) {
	const op = "build_map_contains"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.termOperands(op, loc, m, key); err != nil {
		return nil, err
	}
	return b.emit(blk, ir.OpMapContains, loc, []*ir.Value{m, key}, b.types.Boolean()).Result(0), nil
}

// BuildMapGet looks up key in m. The key must be known to be present.
func (b *Builder) BuildMapGet(loc ir.Location, m, key *ir.Value) (*ir.Value, error) {
	const op = "build_map_get"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.termOperands(op, loc, m, key); err != nil {
		return nil, err
	}
	return b.emit(blk, ir.OpMapGet, loc, []*ir.Value{m, key}, b.types.Term()).Result(0), nil
}

// BuildClosure creates a closure over callee capturing env. The environment
// arity is recorded so BuildUnpackEnv can bounds-check.
func (b *Builder) BuildClosure(loc ir.Location, callee *ir.Function, env []*ir.Value) (*ir.Value, error) {
	const op = "build_closure"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if callee == nil || callee.Module() != b.mod {
		return nil, b.fail(ErrCodeForeignValue, op, loc, "closure target is not in this module")
	}
	if err := b.termOperands(op, loc, env...); err != nil {
		return nil, err
	}
	o := b.emit(blk, ir.OpClosure, loc, env, b.types.Closure())
	o.Callee = callee.Name
	v := o.Result(0)
	b.envs[v] = len(env)
	return v, nil
}

// BuildUnpackEnv extracts captured value index from a closure environment.
// The closure must be a value built by BuildClosure or a parameter declared
// with an EnvArity.
func (b *Builder) BuildUnpackEnv(loc ir.Location, closure *ir.Value, index int) (*ir.Value, error) {
	const op = "build_unpack_env"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, closure); err != nil {
		return nil, err
	}
	arity, ok := b.envs[closure]
	if !ok {
		return nil, b.fail(ErrCodeUndescribedEnv, op, loc, "%s has no described environment", closure)
	}
	if index < 0 || index >= arity {
		return nil, b.fail(ErrCodeIndexOutOfRange, op, loc, "index %d outside environment of %d", index, arity)
	}
	o := b.emit(blk, ir.OpUnpackEnv, loc, []*ir.Value{closure}, b.types.Term())
	o.Index = index
	return o.Result(0), nil
}
