package builder

import (
	"github.com/roach88/eir/internal/ir"
)

// BuildReceiveStart opens a mailbox scan bounded by timeout (a term:
// milliseconds or the atom infinity). cont receives the receive handle
// ahead of its explicit arguments.
func (b *Builder) BuildReceiveStart(loc ir.Location, timeout *ir.Value, cont Dest) error {
	const op = "build_receive_start"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	if err := b.termOperands(op, loc, timeout); err != nil {
		return err
	}
	_, err = b.terminate(blk, op, ir.OpReceiveStart, loc, []*ir.Value{timeout},
		edge{role: ir.RoleDest, dest: cont, implicit: []*ir.Type{b.types.ReceiveRef()}})
	return err
}

// BuildReceiveWait suspends until a message is available or the scan times
// out. check receives the next message ahead of its explicit arguments; the
// clauses of the receive are matched there.
func (b *Builder) BuildReceiveWait(loc ir.Location, ref *ir.Value, timeout, check Dest) error {
	const op = "build_receive_wait"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	if err := b.checkReceiveRef(op, loc, ref); err != nil {
		return err
	}
	_, err = b.terminate(blk, op, ir.OpReceiveWait, loc, []*ir.Value{ref},
		edge{role: ir.RoleTimeout, dest: timeout},
		edge{role: ir.RoleCheck, dest: check, implicit: []*ir.Type{b.types.Term()}},
	)
	return err
}

// BuildReceiveDone removes the matched message from the mailbox, closes the
// scan and continues at cont with the values bound by the matching clause.
func (b *Builder) BuildReceiveDone(loc ir.Location, ref *ir.Value, cont Dest) error {
	const op = "build_receive_done"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	if err := b.checkReceiveRef(op, loc, ref); err != nil {
		return err
	}
	_, err = b.terminate(blk, op, ir.OpReceiveDone, loc, []*ir.Value{ref},
		edge{role: ir.RoleDest, dest: cont})
	return err
}

func (b *Builder) checkReceiveRef(op string, loc ir.Location, ref *ir.Value) error {
	if err := b.checkValues(op, loc, ref); err != nil {
		return err
	}
	if ref.Type() != b.types.ReceiveRef() {
		return b.fail(ErrCodeTypeMismatch, op, loc, "%s has type %s, not receive_ref", ref, ref.Type())
	}
	return nil
}

// BuildTraceCapture captures the current stack trace. dest receives the
// trace_ref ahead of its explicit arguments.
func (b *Builder) BuildTraceCapture(loc ir.Location, dest Dest) error {
	const op = "build_trace_capture"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	_, err = b.terminate(blk, op, ir.OpTraceCapture, loc, nil,
		edge{role: ir.RoleDest, dest: dest, implicit: []*ir.Type{b.types.TraceRef()}})
	return err
}

// BuildTraceConstruct converts a captured trace into a term.
func (b *Builder) BuildTraceConstruct(loc ir.Location, trace *ir.Value) (*ir.Value, error) {
	const op = "build_trace_construct"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if err := b.checkValues(op, loc, trace); err != nil {
		return nil, err
	}
	if trace.Type() != b.types.TraceRef() {
		return nil, b.fail(ErrCodeTypeMismatch, op, loc, "%s has type %s, not trace_ref", trace, trace.Type())
	}
	return b.emit(blk, ir.OpTraceConstruct, loc, []*ir.Value{trace}, b.types.Term()).Result(0), nil
}
