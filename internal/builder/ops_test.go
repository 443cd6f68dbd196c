package builder

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eir/internal/ir"
)

func TestBuildCompare_ResultIsBoolean(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:cmp/2", 2)
	x, y := fn.Entry().Arg(0), fn.Entry().Arg(1)

	for _, build := range []func() (*ir.Value, error){
		func() (*ir.Value, error) { return b.BuildEq(ir.Unknown, x, y, true) },
		func() (*ir.Value, error) { return b.BuildEq(ir.Unknown, x, y, false) },
		func() (*ir.Value, error) { return b.BuildNeq(ir.Unknown, x, y, true) },
		func() (*ir.Value, error) { return b.BuildCompare(ir.Unknown, ir.OpCmpLt, x, y) },
		func() (*ir.Value, error) { return b.BuildAnd(ir.Unknown, x, y) },
		func() (*ir.Value, error) { return b.BuildOr(ir.Unknown, x, y) },
	} {
		v, err := build()
		require.NoError(t, err)
		assert.Same(t, b.Types().Boolean(), v.Type())
	}

	_, err := b.BuildCompare(ir.Unknown, ir.OpCons, x, y)
	assert.True(t, HasCode(err, ErrCodeInvalidType))
}

func TestBuildTuple_TypedByElements(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:t/1", 1)
	x := fn.Entry().Arg(0)
	atom, err := b.BuildConstantAtom(ir.Unknown, "ok")
	require.NoError(t, err)

	tup, err := b.BuildTuple(ir.Unknown, atom, x)
	require.NoError(t, err)
	assert.Equal(t, "tuple<atom, term>", tup.Type().String())

	first, err := b.BuildTupleGet(ir.Unknown, tup, 0)
	require.NoError(t, err)
	assert.Same(t, b.Types().Atom(), first.Type())

	dyn, err := b.BuildTupleGet(ir.Unknown, x, 7)
	require.NoError(t, err)
	assert.Same(t, b.Types().Term(), dyn.Type())

	_, err = b.BuildTupleGet(ir.Unknown, atom, 0)
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}

func TestBuildTupleGet_DynamicShape(t *testing.T) {
	b := newBuilder(t, "")
	fn, err := b.CreateFunction(ir.Unknown, "demo:g/1", []Arg{{Type: b.Types().DynamicTuple()}}, nil)
	require.NoError(t, err)

	v, err := b.BuildTupleGet(ir.Unknown, fn.Entry().Arg(0), 5)
	require.NoError(t, err)
	assert.Same(t, b.Types().Term(), v.Type())
}

func TestBuildMapUpdate(t *testing.T) {
	b := newBuilder(t, "")
	fn, err := b.CreateFunction(ir.Unknown, "demo:put/3",
		[]Arg{{Type: b.Types().Map()}, {}, {}}, nil)
	require.NoError(t, err)
	m, k, v := fn.Entry().Arg(0), fn.Entry().Arg(1), fn.Entry().Arg(2)

	ok, _ := b.AddBlock(b.Types().Map())
	fail, _ := b.AddBlock(b.Types().Term())
	require.NoError(t, b.PositionAtEnd(fn.Entry()))
	require.NoError(t, b.BuildMapUpdate(ir.Unknown, m, []MapChange{
		{Action: ir.MapInsert, Key: k, Value: v},
		{Action: ir.MapRemove, Key: v},
	}, To(ok), To(fail)))
	returnArg(t, b, ok)
	returnArg(t, b, fail)
	require.NoError(t, b.FinishFunction())

	upd := fn.Entry().Terminator()
	assert.Equal(t, "map.update %0, insert(%1, %2), remove(%2), ok ^bb1, err ^bb2", ir.FormatOp(upd))
}

func TestBuildMapUpdate_Empty(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:put/1", 1)
	ok, _ := b.AddBlock(b.Types().Map())
	fail, _ := b.AddBlock(b.Types().Term())
	err := b.BuildMapUpdate(ir.Unknown, fn.Entry().Arg(0), nil, To(ok), To(fail))
	assert.True(t, HasCode(err, ErrCodeBadArity))
}

func TestBuildMapLookup(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:get/2", 2)
	m, k := fn.Entry().Arg(0), fn.Entry().Arg(1)

	has, err := b.BuildMapContains(ir.Unknown, m, k)
	require.NoError(t, err)
	assert.Same(t, b.Types().Boolean(), has.Type())
	v, err := b.BuildMapGet(ir.Unknown, m, k)
	require.NoError(t, err)
	built, err := b.BuildMap(ir.Unknown, []MapEntry{{Key: k, Value: v}})
	require.NoError(t, err)
	assert.Same(t, b.Types().Map(), built.Type())
	cell, err := b.BuildCons(ir.Unknown, v, built)
	require.NoError(t, err)
	head, tail, err := b.BuildListSplit(ir.Unknown, cell)
	require.NoError(t, err)
	assert.Equal(t, ir.OpListHead, head.Def().Kind)
	assert.Equal(t, ir.OpListTail, tail.Def().Kind)
}

func TestBuildUnpackEnv(t *testing.T) {
	b := newBuilder(t, "")
	fn, err := b.CreateFunction(ir.Unknown, "demo:env/1",
		[]Arg{{Name: "self", Type: b.Types().Closure(), EnvArity: 2}}, nil)
	require.NoError(t, err)
	self := fn.Entry().Arg(0)

	v, err := b.BuildUnpackEnv(ir.Unknown, self, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Def().Index)

	_, err = b.BuildUnpackEnv(ir.Unknown, self, 2)
	assert.True(t, HasCode(err, ErrCodeIndexOutOfRange))
}

func TestBuildUnpackEnv_Undescribed(t *testing.T) {
	b := newBuilder(t, "")
	fn, err := b.CreateFunction(ir.Unknown, "demo:env/1", []Arg{{Type: b.Types().Closure()}}, nil)
	require.NoError(t, err)

	_, err = b.BuildUnpackEnv(ir.Unknown, fn.Entry().Arg(0), 0)
	assert.True(t, HasCode(err, ErrCodeUndescribedEnv))
}

func TestBuildClosure_DescribesEnv(t *testing.T) {
	b := newBuilder(t, "")
	target, err := b.GetOrDeclareFunction(ir.Unknown, "demo:-fun-0-/1",
		ir.Signature{Params: []*ir.Type{b.Types().Term()}, Results: []*ir.Type{b.Types().Term()}})
	require.NoError(t, err)
	fn := open(t, b, "demo:mk/1", 1)

	clo, err := b.BuildClosure(ir.Unknown, target, []*ir.Value{fn.Entry().Arg(0)})
	require.NoError(t, err)
	assert.Same(t, b.Types().Closure(), clo.Type())

	_, err = b.BuildUnpackEnv(ir.Unknown, clo, 0)
	require.NoError(t, err)
	_, err = b.BuildUnpackEnv(ir.Unknown, clo, 1)
	assert.True(t, HasCode(err, ErrCodeIndexOutOfRange))
}

func TestCreateFunction_EnvArityNeedsClosure(t *testing.T) {
	b := newBuilder(t, "")
	_, err := b.CreateFunction(ir.Unknown, "demo:bad/1", []Arg{{Name: "x", EnvArity: 1}}, nil)
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}

func TestConstants(t *testing.T) {
	b := newBuilder(t, "")
	open(t, b, "demo:c/0", 0)
	r := b.Types()

	small, err := b.BuildConstantInt(ir.Unknown, 42)
	require.NoError(t, err)
	assert.Same(t, r.Fixnum(), small.Type())
	assert.Equal(t, "int<{ value = 42, width = 46 }>", small.Def().Attr.String())

	big, err := b.BuildConstantBigInt(ir.Unknown, "70368744177664") // 2^46
	require.NoError(t, err)
	assert.Same(t, r.BigInt(), big.Type())

	_, err = b.BuildConstantBigInt(ir.Unknown, "12x")
	assert.True(t, HasCode(err, ErrCodeInvalidType))
}

func TestIntegerAttr_SignedRange(t *testing.T) {
	b := newBuilder(t, "")
	lim := new(big.Int).Lsh(big.NewInt(1), 45) // immediate width 46

	tests := []struct {
		name string
		v    *big.Int
		want ir.Kind
	}{
		{"largest fixnum", new(big.Int).Sub(lim, big.NewInt(1)), ir.KindMachineInt},
		{"smallest fixnum", new(big.Int).Neg(lim), ir.KindMachineInt},
		{"above range", lim, ir.KindBigInt},
		{"below range", new(big.Int).Sub(new(big.Int).Neg(lim), big.NewInt(1)), ir.KindBigInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := b.IntegerAttr(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Type().Kind())
		})
	}
}

func TestConstants_Kinds(t *testing.T) {
	b := newBuilder(t, "")
	open(t, b, "demo:c/0", 0)
	r, a := b.Types(), b.Attrs()

	tr, err := b.BuildConstantBool(ir.Unknown, true)
	require.NoError(t, err)
	assert.Same(t, r.Boolean(), tr.Type())
	assert.Equal(t, "true", tr.Def().Attr.(*ir.AtomAttr).Name)

	f, err := b.BuildConstantFloat(ir.Unknown, 1.5)
	require.NoError(t, err)
	assert.Same(t, r.Float(), f.Type())

	s, err := b.BuildConstantString(ir.Unknown, "hi")
	require.NoError(t, err)
	assert.Same(t, r.HeapBin(), s.Type())

	raw, err := b.BuildConstantBinary(ir.Unknown, []byte{0, 1}, ir.BinaryHeader(2), ir.BinaryFlagRefCounted)
	require.NoError(t, err)
	assert.Same(t, r.ProcBin(), raw.Type())

	empty, err := b.BuildConstantList(ir.Unknown, nil)
	require.NoError(t, err)
	assert.Same(t, r.Nil(), empty.Type())

	one, err := a.Int(1, 46)
	require.NoError(t, err)
	list, err := b.BuildConstantList(ir.Unknown, []ir.Attr{one})
	require.NoError(t, err)
	assert.Same(t, r.Cons(), list.Type())

	tup, err := b.BuildConstantTuple(ir.Unknown, []ir.Attr{a.AtomNamed("ok"), one})
	require.NoError(t, err)
	assert.Equal(t, "tuple<atom, i46>", tup.Type().String())

	m, err := b.BuildConstantMap(ir.Unknown, []ir.Attr{a.AtomNamed("k"), one})
	require.NoError(t, err)
	assert.Same(t, r.Map(), m.Type())

	_, err = b.BuildConstantMap(ir.Unknown, []ir.Attr{one})
	assert.True(t, HasCode(err, ErrCodeInvalidType))
}
