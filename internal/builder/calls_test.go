package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eir/internal/ir"
)

func TestBuildClosureCall_Continuations(t *testing.T) {
	b := newBuilder(t, "")
	fn, err := b.CreateFunction(ir.Unknown, "demo:apply/2",
		[]Arg{{Name: "f", Type: b.Types().Closure()}, {Name: "x"}}, nil)
	require.NoError(t, err)
	f, x := fn.Entry().Arg(0), fn.Entry().Arg(1)

	b1, err := b.AddBlock(b.Types().Term())
	require.NoError(t, err)
	b2, err := b.AddBlock(b.Types().Term())
	require.NoError(t, err)

	ok := To(b1)
	require.NoError(t, b.BuildClosureCall(ir.Unknown, f, []*ir.Value{x}, false, &ok, To(b2)))

	call := fn.Entry().Terminator()
	require.NotNil(t, call)
	assert.Equal(t, ir.OpClosureCall, call.Kind)
	require.Len(t, call.Successors(), 2)

	okEdge, errEdge := call.Successor(ir.RoleOK), call.Successor(ir.RoleErr)
	require.NotNil(t, okEdge)
	require.NotNil(t, errEdge)
	assert.Same(t, b1, okEdge.Block)
	assert.Same(t, b2, errEdge.Block)
	assert.Equal(t, b1.NumArgs(), call.ImplicitArgs(ir.RoleOK)+len(okEdge.Args))
	assert.Equal(t, b2.NumArgs(), call.ImplicitArgs(ir.RoleErr)+len(errEdge.Args))

	returnArg(t, b, b1)
	returnArg(t, b, b2)
	require.NoError(t, b.FinishFunction())
}

func TestBuildClosureCall_NotAClosure(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:a/1", 1)
	errBlk, _ := b.AddBlock(b.Types().Term())
	require.NoError(t, b.PositionAtEnd(fn.Entry()))

	atom, err := b.BuildConstantAtom(ir.Unknown, "nope")
	require.NoError(t, err)
	err = b.BuildClosureCall(ir.Unknown, atom, nil, true, nil, To(errBlk))
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}

func TestBuildCall_DeclarationDedup(t *testing.T) {
	const n = 4
	b := newBuilder(t, "")
	fn := open(t, b, "demo:rev/1", 1)
	v := fn.Entry().Arg(0)
	for i := 0; i < n; i++ {
		next, err := b.AddBlock(b.Types().Term())
		require.NoError(t, err)
		d := To(next)
		require.NoError(t, b.BuildCall(ir.Unknown, "lists:reverse/1", []*ir.Value{v}, false, &d, nil))
		require.NoError(t, b.PositionAtEnd(next))
		v = next.Arg(0)
	}
	require.NoError(t, b.BuildReturn(ir.Unknown, v))
	require.NoError(t, b.FinishFunction())

	decls, calls := 0, 0
	for _, f := range b.Module().Functions() {
		if f.Name == "lists:reverse/1" {
			decls++
			assert.True(t, f.IsDeclaration())
		}
	}
	for _, blk := range fn.Blocks() {
		for _, op := range blk.Ops() {
			if op.Kind == ir.OpStaticCall && op.Callee == "lists:reverse/1" {
				calls++
			}
		}
	}
	assert.Equal(t, 1, decls)
	assert.Equal(t, n, calls)
}

func TestBuildCall_IncompatibleRedeclaration(t *testing.T) {
	b := newBuilder(t, "")
	_, err := b.GetOrDeclareFunction(ir.Unknown, "ext:f/1",
		ir.Signature{Params: []*ir.Type{b.Types().Atom()}, Results: []*ir.Type{b.Types().Term()}})
	require.NoError(t, err)

	fn := open(t, b, "demo:a/1", 1)
	err = b.BuildCall(ir.Unknown, "ext:f/1", []*ir.Value{fn.Entry().Arg(0)}, true, nil, nil)
	assert.True(t, HasCode(err, ErrCodeIncompatibleRedeclaration))
}

func TestBuildCall_NeedsContinuation(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:a/1", 1)
	err := b.BuildCall(ir.Unknown, "ext:f/1", []*ir.Value{fn.Entry().Arg(0)}, false, nil, nil)
	assert.True(t, HasCode(err, ErrCodeMissingContinuation))
}

func TestBuildCall_CompareIntrinsicInTail(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:eq/2", 2)
	a, c := fn.Entry().Arg(0), fn.Entry().Arg(1)

	require.NoError(t, b.BuildCall(ir.Unknown, "erlang:=:=/2", []*ir.Value{a, c}, true, nil, nil))
	require.NoError(t, b.FinishFunction())

	ops := fn.Entry().Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, ir.OpCmpEqStrict, ops[0].Kind)
	assert.Equal(t, ir.OpReturn, ops[1].Kind)
	assert.Nil(t, b.Module().Lookup("erlang:=:=/2"))
}

func TestMaybeBuildIntrinsic(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:a/1", 1)
	x := fn.Entry().Arg(0)

	v, handled, err := b.MaybeBuildIntrinsic(ir.Unknown, "erlang:is_tuple/1", []*ir.Value{x})
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, "tuple<*>", v.Def().TypeArg.String())

	_, handled, err = b.MaybeBuildIntrinsic(ir.Unknown, "lists:map/2", []*ir.Value{x, x})
	require.NoError(t, err)
	assert.False(t, handled)

	_, _, err = b.MaybeBuildIntrinsic(ir.Unknown, "erlang:and/2", []*ir.Value{x})
	assert.True(t, HasCode(err, ErrCodeBadArity))
}

func TestBuildCall_RaiseIntrinsic(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:fail/1", 1)
	require.NoError(t, b.BuildCall(ir.Unknown, "erlang:error/1", []*ir.Value{fn.Entry().Arg(0)}, true, nil, nil))
	require.NoError(t, b.FinishFunction())

	throw := fn.Entry().Terminator()
	require.NotNil(t, throw)
	assert.Equal(t, ir.OpThrow, throw.Kind)
	class := throw.Operand(0).Def()
	assert.Equal(t, "error", class.Attr.(*ir.AtomAttr).Name)
}

func TestBuildCall_RaiseIntrinsicWithContinuations(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:try/1", 1)
	okBlk, err := b.AddBlock(b.Types().Term())
	require.NoError(t, err)
	errBlk, err := b.AddBlock(b.Types().Term())
	require.NoError(t, err)
	require.NoError(t, b.PositionAtEnd(fn.Entry()))

	ok, fail := To(okBlk), To(errBlk)
	require.NoError(t, b.BuildCall(ir.Unknown, "erlang:error/1", []*ir.Value{fn.Entry().Arg(0)}, false, &ok, &fail))
	returnArg(t, b, okBlk)
	returnArg(t, b, errBlk)
	require.NoError(t, b.FinishFunction())

	call := fn.Entry().Terminator()
	require.NotNil(t, call)
	assert.Equal(t, ir.OpStaticCall, call.Kind)
	assert.Equal(t, "erlang:error/1", call.Callee)
	assert.Same(t, okBlk, call.Successor(ir.RoleOK).Block)
	assert.Same(t, errBlk, call.Successor(ir.RoleErr).Block)

	decl := b.Module().Lookup("erlang:error/1")
	require.NotNil(t, decl)
	assert.True(t, decl.IsDeclaration())
}

func TestBuildLandingPad_Dialect(t *testing.T) {
	for _, tc := range []struct {
		triple  string
		dialect string
	}{
		{"x86_64-unknown-linux-gnu", "itanium"},
		{"x86_64-pc-windows-msvc", "seh"},
	} {
		t.Run(tc.triple, func(t *testing.T) {
			b := newBuilder(t, tc.triple)
			fn := open(t, b, "demo:try/1", 1)
			r := b.Types()
			handler, err := b.AddBlock(r.Atom(), r.Term(), r.TraceRef())
			require.NoError(t, err)
			pad, err := b.BuildLandingPad(ir.Unknown, To(handler))
			require.NoError(t, err)
			assert.Same(t, fn.Entry(), b.CurrentBlock())

			ok, err := b.AddBlock(r.Term())
			require.NoError(t, err)
			require.NoError(t, b.PositionAtEnd(fn.Entry()))
			d := To(ok)
			padDest := To(pad)
			require.NoError(t, b.BuildCall(ir.Unknown, "ext:risky/1", []*ir.Value{fn.Entry().Arg(0)}, false, &d, &padDest))
			returnArg(t, b, ok)
			require.NoError(t, b.PositionAtEnd(handler))
			require.NoError(t, b.BuildReturn(ir.Unknown, handler.Arg(1)))
			require.NoError(t, b.FinishFunction())

			lp := pad.Terminator()
			assert.Equal(t, ir.OpLandingPad, lp.Kind)
			assert.Equal(t, tc.dialect, lp.Dialect)
			assert.Equal(t, 3, lp.ImplicitArgs(ir.RoleErr))
		})
	}
}
