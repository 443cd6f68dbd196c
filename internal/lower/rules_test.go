package lower

import (
	"context"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eir/internal/builder"
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/testutil"
	"github.com/roach88/eir/internal/verify"
)

// runtimeBacked lists the op kinds DefaultRules must eliminate.
var runtimeBacked = map[ir.OpKind]bool{
	ir.OpCmpEq: true, ir.OpCmpEqStrict: true, ir.OpCmpNeq: true, ir.OpCmpNeqStrict: true,
	ir.OpCmpLt: true, ir.OpCmpLte: true, ir.OpCmpGt: true, ir.OpCmpGte: true,
	ir.OpAnd: true, ir.OpOr: true, ir.OpIsType: true, ir.OpIf: true,
	ir.OpMapUpdate: true, ir.OpBinaryStart: true, ir.OpBinaryPush: true,
	ir.OpBinaryFinish: true, ir.OpBinaryMatch: true, ir.OpReceiveStart: true,
	ir.OpReceiveWait: true, ir.OpReceiveDone: true, ir.OpTraceCapture: true,
	ir.OpTraceConstruct: true, ir.OpThrow: true, ir.OpLandingPad: true,
}

func assertLowered(t *testing.T, m *ir.Module) {
	t.Helper()
	for _, f := range m.Functions() {
		for _, blk := range f.Blocks() {
			for _, op := range blk.Ops() {
				assert.False(t, runtimeBacked[op.Kind], "%s still has %s", f.Name, ir.FormatOp(op))
			}
		}
	}
	assert.Empty(t, verify.Module(m))
}

func TestLower_MatchGolden(t *testing.T) {
	b := newBuilder(t)
	fn, err := b.CreateFunction(ir.Unknown, "demo:classify/1", make([]builder.Arg, 1), nil)
	require.NoError(t, err)
	r := b.Types()

	l1, _ := b.AddBlock(r.Term())
	l2, _ := b.AddBlock(r.Atom())
	require.NoError(t, b.PositionAtEnd(fn.Entry()))
	require.NoError(t, b.BuildMatch(ir.Unknown, builder.Match{
		Selector: fn.Entry().Arg(0),
		Clauses: []builder.Clause{
			{Pattern: builder.LiteralPattern{Value: b.Attrs().AtomNamed("ok")}, Body: l1},
			{Pattern: builder.TypePattern{Type: r.Atom()}, Body: l2},
		},
	}))
	for _, blk := range []*ir.Block{l1, l2} {
		require.NoError(t, b.PositionAtEnd(blk))
		require.NoError(t, b.BuildReturn(ir.Unknown, blk.Arg(0)))
	}
	require.NoError(t, b.FinishFunction())
	m, err := b.Finish()
	require.NoError(t, err)

	stats, err := newEngine(t).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"compare": 1, "is_type": 1, "if": 2, "throw": 1}, stats.Rewrites)
	assertLowered(t, m)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "lower_classify", []byte(ir.FormatFunction(fn)))
}

// protocolModule exercises every runtime protocol in one function:
//
//	try risky() of
//	  _ -> Bin = <<V/binary>>, M1 = M#{k => Bin} without k,
//	       receive Msg -> Msg after T -> erlang:raise(error, timeout, Trace)
//	catch Class:Reason:Trace -> Reason
func protocolModule(t *testing.T) *ir.Module {
	t.Helper()
	b := newBuilder(t)
	r := b.Types()
	loc := testutil.Loc(1)

	fn, err := b.CreateFunction(loc, "demo:proto/2", []builder.Arg{{Name: "M", Type: r.Map()}, {Name: "V"}}, nil)
	require.NoError(t, err)
	m, v := fn.Entry().Arg(0), fn.Entry().Arg(1)
	risky, err := b.GetOrDeclareFunction(loc, "demo:risky/0", ir.Signature{Results: []*ir.Type{r.Term()}})
	require.NoError(t, err)

	caught, _ := b.AddBlock(r.Atom(), r.Term(), r.TraceRef())
	started, _ := b.AddBlock(r.Term())
	handle, _ := b.AddBlock(r.BytePtr())
	pushed, _ := b.AddBlock(r.BytePtr())
	built, _ := b.AddBlock(r.Binary())
	updated, _ := b.AddBlock(r.Map())
	loop, _ := b.AddBlock(r.ReceiveRef())
	check, _ := b.AddBlock(r.Term())
	timedOut, _ := b.AddBlock()
	traced, _ := b.AddBlock(r.TraceRef())
	done, _ := b.AddBlock(r.Term())
	failed, _ := b.AddBlock(r.Term())

	pad, err := b.BuildLandingPad(loc, builder.To(caught))
	require.NoError(t, err)
	okDest, errDest := builder.To(started), builder.To(pad)
	require.NoError(t, b.BuildStaticCall(loc, risky, nil, false, &okDest, &errDest))

	require.NoError(t, b.PositionAtEnd(caught))
	require.NoError(t, b.BuildReturn(loc, caught.Arg(1)))

	require.NoError(t, b.PositionAtEnd(started))
	require.NoError(t, b.BuildBinaryStart(loc, builder.To(handle)))

	require.NoError(t, b.PositionAtEnd(handle))
	require.NoError(t, b.BuildBinaryPush(loc, handle.Arg(0), v, nil, ir.BinarySpec{Type: ir.BinaryBytes},
		builder.To(pushed), builder.To(failed)))

	require.NoError(t, b.PositionAtEnd(pushed))
	require.NoError(t, b.BuildBinaryFinish(loc, pushed.Arg(0), builder.To(built)))

	require.NoError(t, b.PositionAtEnd(built))
	k, err := b.BuildConstantAtom(loc, "k")
	require.NoError(t, err)
	require.NoError(t, b.BuildMapUpdate(loc, m, []builder.MapChange{
		{Action: ir.MapInsert, Key: k, Value: built.Arg(0)},
		{Action: ir.MapRemove, Key: k},
	}, builder.To(updated), builder.To(failed)))

	require.NoError(t, b.PositionAtEnd(updated))
	infinity, err := b.BuildConstantAtom(loc, "infinity")
	require.NoError(t, err)
	require.NoError(t, b.BuildReceiveStart(loc, infinity, builder.To(loop)))

	ref := loop.Arg(0)
	require.NoError(t, b.PositionAtEnd(loop))
	require.NoError(t, b.BuildReceiveWait(loc, ref, builder.To(timedOut), builder.To(check)))

	require.NoError(t, b.PositionAtEnd(check))
	require.NoError(t, b.BuildReceiveDone(loc, ref, builder.To(done, check.Arg(0))))

	require.NoError(t, b.PositionAtEnd(done))
	require.NoError(t, b.BuildReturn(loc, done.Arg(0)))

	require.NoError(t, b.PositionAtEnd(timedOut))
	require.NoError(t, b.BuildTraceCapture(loc, builder.To(traced)))

	require.NoError(t, b.PositionAtEnd(traced))
	class, err := b.BuildConstantAtom(loc, "error")
	require.NoError(t, err)
	reason, err := b.BuildConstantAtom(loc, "timeout")
	require.NoError(t, err)
	require.NoError(t, b.BuildThrow(loc, class, reason, traced.Arg(0)))

	require.NoError(t, b.PositionAtEnd(failed))
	class, err = b.BuildConstantAtom(loc, "error")
	require.NoError(t, err)
	require.NoError(t, b.BuildThrow(loc, class, failed.Arg(0), nil))

	require.NoError(t, b.FinishFunction())
	mod, err := b.Finish()
	require.NoError(t, err)
	return mod
}

func TestLower_Protocols(t *testing.T) {
	m := protocolModule(t)
	fn := m.Lookup("demo:proto/2")
	blocksBefore := len(fn.Blocks())

	stats, err := newEngine(t).Run(context.Background(), m)
	require.NoError(t, err)
	assertLowered(t, m)

	assert.Equal(t, map[string]int{
		"landing_pad":   1,
		"binary_start":  1,
		"binary_push":   1,
		"binary_finish": 1,
		"map_update":    1,
		"receive":       3,
		"trace":         1,
		"throw":         2,
	}, stats.Rewrites)

	want := []string{
		"binary.finish", "binary.push", "binary.start", "catch.itanium",
		"map.insert", "map.remove", "raise",
		"receive.done", "receive.start", "receive.wait", "trace.capture",
	}
	for i, s := range want {
		want[i] = runtimePrefix + s
	}
	assert.Equal(t, want, stats.Declared)

	// one extra block joins the two map actions
	assert.Len(t, fn.Blocks(), blocksBefore+1)
	assert.Equal(t, 2, countCalls(m, runtimePrefix+"raise"))
}

func TestLower_LandingPadFollowsDialect(t *testing.T) {
	b, err := builder.New("demo", testutil.Target(t, "x86_64-pc-windows-msvc"),
		builder.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	r := b.Types()
	fn, err := b.CreateFunction(ir.Unknown, "demo:safe/0", nil, nil)
	require.NoError(t, err)
	risky, err := b.GetOrDeclareFunction(ir.Unknown, "demo:risky/0", ir.Signature{Results: []*ir.Type{r.Term()}})
	require.NoError(t, err)

	caught, _ := b.AddBlock(r.Atom(), r.Term(), r.TraceRef())
	pad, err := b.BuildLandingPad(ir.Unknown, builder.To(caught))
	require.NoError(t, err)
	require.NoError(t, b.BuildStaticCall(ir.Unknown, risky, nil, true, nil, &builder.Dest{Block: pad}))
	require.NoError(t, b.PositionAtEnd(caught))
	require.NoError(t, b.BuildReturn(ir.Unknown, caught.Arg(0)))
	require.NoError(t, b.FinishFunction())
	m, err := b.Finish()
	require.NoError(t, err)

	tgt := testutil.Target(t, "x86_64-pc-windows-msvc")
	_, err = New(tgt, b.Catalog(), WithLogger(testutil.DiscardLogger())).Run(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 1, countCalls(m, runtimePrefix+"catch.seh"))
	assert.Nil(t, m.Lookup(runtimePrefix+"catch.itanium"))
	assert.Len(t, fn.Blocks(), 3)
	assertLowered(t, m)
}

func TestLower_FoldedBinaryBecomesConstant(t *testing.T) {
	b := newBuilder(t)
	r := b.Types()
	_, err := b.CreateFunction(ir.Unknown, "demo:hello/0", nil, nil)
	require.NoError(t, err)

	handle, _ := b.AddBlock(r.BytePtr())
	pushed, _ := b.AddBlock(r.BytePtr())
	built, _ := b.AddBlock(r.Binary())
	failed, _ := b.AddBlock(r.Term())

	require.NoError(t, b.BuildBinaryStart(ir.Unknown, builder.To(handle)))
	require.NoError(t, b.PositionAtEnd(handle))
	hi, err := b.BuildConstantString(ir.Unknown, "hi")
	require.NoError(t, err)
	require.NoError(t, b.BuildBinaryPush(ir.Unknown, handle.Arg(0), hi, nil, ir.BinarySpec{Type: ir.BinaryBytes},
		builder.To(pushed), builder.To(failed)))
	require.NoError(t, b.PositionAtEnd(pushed))
	require.NoError(t, b.BuildBinaryFinish(ir.Unknown, pushed.Arg(0), builder.To(built)))
	require.NoError(t, b.PositionAtEnd(built))
	require.NoError(t, b.BuildReturn(ir.Unknown, built.Arg(0)))
	require.NoError(t, b.PositionAtEnd(failed))
	require.NoError(t, b.BuildReturn(ir.Unknown, failed.Arg(0)))
	require.NoError(t, b.FinishFunction())
	m, err := b.Finish()
	require.NoError(t, err)

	_, err = newEngine(t).Run(context.Background(), m)
	require.NoError(t, err)
	assertLowered(t, m)

	assert.Equal(t, 0, countCalls(m, runtimePrefix+"binary.finish"))
	br := pushed.Terminator()
	require.Equal(t, ir.OpBr, br.Kind)
	def := br.Successors()[0].Args[0].Def()
	require.NotNil(t, def)
	assert.Equal(t, ir.OpConstant, def.Kind)
	assert.Contains(t, def.Attr.String(), `"hi"`)
}

func TestTypeTag(t *testing.T) {
	r := ir.NewRegistry()
	pair, err := r.Tuple(r.Term(), r.Term())
	require.NoError(t, err)

	assert.Equal(t, int64(ir.KindAtom), TypeTag(r.Atom()))
	assert.Equal(t, int64(ir.KindTuple), TypeTag(r.DynamicTuple()))
	assert.Equal(t, int64(ir.KindTuple)|2<<8, TypeTag(pair))
}

func TestLower_IfDropsOtherBlock(t *testing.T) {
	b := newBuilder(t)
	fn, err := b.CreateFunction(testutil.Loc(1), "demo:cmp/2", make([]builder.Arg, 2), nil)
	require.NoError(t, err)
	x, y := fn.Entry().Arg(0), fn.Entry().Arg(1)

	yes, _ := b.AddBlock()
	no, _ := b.AddBlock()
	other, _ := b.AddBlock()
	require.NoError(t, b.PositionAtEnd(fn.Entry()))
	eq, err := b.BuildCompare(testutil.Loc(2), ir.OpCmpEqStrict, x, y)
	require.NoError(t, err)
	d := builder.To(other)
	require.NoError(t, b.BuildIf(testutil.Loc(3), eq, builder.To(yes), builder.To(no), &d))
	for i, blk := range []*ir.Block{yes, no, other} {
		require.NoError(t, b.PositionAtEnd(blk))
		require.NoError(t, b.BuildReturn(testutil.Loc(4+i), x))
	}
	require.NoError(t, b.FinishFunction())
	m, err := b.Finish()
	require.NoError(t, err)
	require.Empty(t, verify.Module(m))

	stats, err := newEngine(t).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rewrites["if"])
	assert.Equal(t, 1, stats.Pruned)
	assertLowered(t, m)
	assert.NotContains(t, fn.Blocks(), other)
	assert.Contains(t, fn.Blocks(), no)
}

func TestPrune(t *testing.T) {
	r := ir.NewRegistry()
	newFn := func(t *testing.T) (*ir.Function, *ir.Block) {
		t.Helper()
		m := ir.NewModule("demo", r, ir.NewAttrStore(r))
		f, err := m.Define("demo:f/0", ir.Signature{Results: []*ir.Type{r.Term()}}, ir.Unknown)
		require.NoError(t, err)
		return f, f.AddBlock()
	}

	t.Run("drops unreachable blocks", func(t *testing.T) {
		f, dead := newFn(t)
		dead.Append(f.NewOp(ir.OpUnreachable, ir.Unknown, nil))
		f.Entry().Append(f.NewOp(ir.OpUnreachable, ir.Unknown, nil))

		n, err := prune(f)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []*ir.Block{f.Entry()}, f.Blocks())
	})

	t.Run("keeps a function whose live ops use a dropped value", func(t *testing.T) {
		f, dead := newFn(t)
		c := f.NewOp(ir.OpConstant, ir.Unknown, nil, r.Atom())
		dead.Append(c)
		dead.Append(f.NewOp(ir.OpUnreachable, ir.Unknown, nil))
		f.Entry().Append(f.NewOp(ir.OpReturn, ir.Unknown, []*ir.Value{c.Result(0)}))

		_, err := prune(f)
		require.Error(t, err)
		var rerr *RewriteError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, ErrCodeDanglingValue, rerr.Code)
		assert.Len(t, f.Blocks(), 2)
	})
}
