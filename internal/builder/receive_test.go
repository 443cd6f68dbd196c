package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eir/internal/ir"
)

func TestReceiveProtocol(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:recv/1", 1)
	r := b.Types()

	loop, _ := b.AddBlock(r.ReceiveRef())
	check, _ := b.AddBlock(r.Term())
	timeout, _ := b.AddBlock()
	matched, _ := b.AddBlock(r.Term())

	require.NoError(t, b.PositionAtEnd(fn.Entry()))
	require.NoError(t, b.BuildReceiveStart(ir.Unknown, fn.Entry().Arg(0), To(loop)))

	ref := loop.Arg(0)
	require.NoError(t, b.PositionAtEnd(loop))
	require.NoError(t, b.BuildReceiveWait(ir.Unknown, ref, To(timeout), To(check)))

	require.NoError(t, b.PositionAtEnd(check))
	require.NoError(t, b.BuildReceiveDone(ir.Unknown, ref, To(matched, check.Arg(0))))

	returnArg(t, b, matched)
	require.NoError(t, b.PositionAtEnd(timeout))
	atom, err := b.BuildConstantAtom(ir.Unknown, "timeout")
	require.NoError(t, err)
	require.NoError(t, b.BuildReturn(ir.Unknown, atom))
	require.NoError(t, b.FinishFunction())

	wait := loop.Terminator()
	assert.Equal(t, ir.OpReceiveWait, wait.Kind)
	assert.Same(t, timeout, wait.Successor(ir.RoleTimeout).Block)
	assert.Same(t, check, wait.Successor(ir.RoleCheck).Block)
	assert.Equal(t, 1, wait.ImplicitArgs(ir.RoleCheck))
}

func TestReceiveWait_NeedsHandle(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:recv/1", 1)
	timeout, _ := b.AddBlock()
	check, _ := b.AddBlock(b.Types().Term())
	err := b.BuildReceiveWait(ir.Unknown, fn.Entry().Arg(0), To(timeout), To(check))
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}

func TestTraceCaptureAndThrow(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:raise/1", 1)
	r := b.Types()

	captured, _ := b.AddBlock(r.TraceRef())
	require.NoError(t, b.PositionAtEnd(fn.Entry()))
	require.NoError(t, b.BuildTraceCapture(ir.Unknown, To(captured)))

	require.NoError(t, b.PositionAtEnd(captured))
	trace := captured.Arg(0)
	term, err := b.BuildTraceConstruct(ir.Unknown, trace)
	require.NoError(t, err)
	assert.Same(t, r.Term(), term.Type())

	class, err := b.BuildConstantAtom(ir.Unknown, "throw")
	require.NoError(t, err)
	require.NoError(t, b.BuildThrow(ir.Unknown, class, fn.Entry().Arg(0), trace))
	require.NoError(t, b.FinishFunction())

	assert.Len(t, captured.Terminator().Operands(), 3)
}

func TestThrow_ClassMustBeAtom(t *testing.T) {
	b := newBuilder(t, "")
	fn := open(t, b, "demo:raise/1", 1)
	x := fn.Entry().Arg(0)
	err := b.BuildThrow(ir.Unknown, x, x, nil)
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}
