package builder

import (
	"math/big"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/eir/internal/ir"
)

// maxFoldBytes bounds the literal a folded binary may grow to. Larger
// constant segments are left to the runtime push.
const maxFoldBytes = 4096

// binaryFold accumulates the bytes of a binary whose segments have all been
// constant so far. A nil *binaryFold, or one with dynamic set, cannot be
// folded.
type binaryFold struct {
	bytes   []byte
	dynamic bool
}

func (f *binaryFold) extend(seg []byte, ok bool) *binaryFold {
	if f == nil || f.dynamic || !ok || len(f.bytes)+len(seg) > maxFoldBytes {
		return &binaryFold{dynamic: true}
	}
	out := make([]byte, 0, len(f.bytes)+len(seg))
	out = append(out, f.bytes...)
	return &binaryFold{bytes: append(out, seg...)}
}

// constAttr returns the attribute of a value defined by a constant op.
func constAttr(v *ir.Value) ir.Attr {
	if v == nil || v.Def() == nil || v.Def().Kind != ir.OpConstant {
		return nil
	}
	return v.Def().Attr
}

// BuildBinaryStart begins a binary construction. cont receives the
// accumulation handle (ptr<i8>) ahead of its explicit arguments.
func (b *Builder) BuildBinaryStart(loc ir.Location, cont Dest) error {
	const op = "build_binary_start"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	e := edge{role: ir.RoleDest, dest: cont, implicit: []*ir.Type{b.types.BytePtr()}}
	if _, err := b.terminate(blk, op, ir.OpBinaryStart, loc, nil, e); err != nil {
		return err
	}
	b.bins[cont.Block.Arg(0)] = &binaryFold{}
	return nil
}

// BuildBinaryPush appends value to the binary behind handle as one segment
// described by spec. size is in units and may be nil for the type's default
// size. The updated handle is passed to ok; a malformed segment passes an
// error term to err.
//
// A constant size that is negative or larger than the target can address
// is known to fail, so the push is replaced by a branch straight to err
// with the badarg atom.
func (b *Builder) BuildBinaryPush(loc ir.Location, handle, value, size *ir.Value, spec ir.BinarySpec, ok, err Dest) error {
	const op = "build_binary_push"
	blk, e := b.insertionPoint(op, loc)
	if e != nil {
		return e
	}
	if e := b.checkValues(op, loc, handle, value); e != nil {
		return e
	}
	if handle.Type() != b.types.BytePtr() {
		return b.fail(ErrCodeTypeMismatch, op, loc, "handle %s has type %s, not %s", handle, handle.Type(), b.types.BytePtr())
	}
	if e := b.checkTerm(op, loc, value); e != nil {
		return e
	}
	operands := []*ir.Value{handle, value}
	var sizeBits *big.Int
	if size != nil {
		if e := b.checkValues(op, loc, size); e != nil {
			return e
		}
		if e := b.checkTerm(op, loc, size); e != nil {
			return e
		}
		operands = append(operands, size)
		if a, isInt := constAttr(size).(*ir.IntAttr); isInt {
			sizeBits = new(big.Int).Mul(a.Value(), big.NewInt(int64(spec.EffectiveUnit())))
		}
	}

	if sizeBits != nil && !b.sizeAddressable(sizeBits) {
		b.logger.Debug("binary segment size out of range", "size", sizeBits.String(), "loc", loc.String())
		return b.failedPush(blk, loc, handle, ok, err)
	}

	o, e := b.terminate(blk, op, ir.OpBinaryPush, loc, operands,
		edge{role: ir.RoleOK, dest: ok, implicit: []*ir.Type{b.types.BytePtr()}},
		edge{role: ir.RoleErr, dest: err, implicit: []*ir.Type{b.types.Term()}},
	)
	if e != nil {
		return e
	}
	o.Spec = spec

	seg, folded := foldSegment(constAttr(value), sizeBits, size == nil, spec)
	next := b.bins[handle].extend(seg, folded)
	if prev, seen := b.bins[ok.Block.Arg(0)]; seen && prev != nil {
		// the continuation is shared between accumulations
		next = &binaryFold{dynamic: true}
	}
	b.bins[ok.Block.Arg(0)] = next
	return nil
}

func (b *Builder) sizeAddressable(bits *big.Int) bool {
	if bits.Sign() < 0 {
		return false
	}
	return bits.IsUint64() && bits.Uint64() <= b.target.MaxBinaryBits()
}

// failedPush terminates blk with a constant-false cond_br whose false edge
// carries badarg to err, keeping ok reachable in the graph.
func (b *Builder) failedPush(blk *ir.Block, loc ir.Location, handle *ir.Value, ok, err Dest) error {
	const op = "build_binary_push"
	f, e := b.attrs.Int(0, 1)
	if e != nil {
		return b.failWith(ErrCodeInvalidType, op, loc, e, "i1 constant")
	}
	cond := b.emit(blk, ir.OpConstant, loc, nil, b.types.I1())
	cond.Attr = f
	reason := b.emit(blk, ir.OpConstant, loc, nil, b.types.Atom())
	reason.Attr = b.attrs.AtomNamed("badarg")

	yes := Dest{Block: ok.Block, Args: append([]*ir.Value{handle}, ok.Args...)}
	no := Dest{Block: err.Block, Args: append([]*ir.Value{reason.Result(0)}, err.Args...)}
	_, e = b.terminate(blk, op, ir.OpCondBr, loc, []*ir.Value{cond.Result(0)},
		edge{role: ir.RoleTrue, dest: yes},
		edge{role: ir.RoleFalse, dest: no},
	)
	if e != nil {
		return e
	}
	if ok.Block != nil {
		b.bins[ok.Block.Arg(0)] = &binaryFold{dynamic: true}
	}
	return nil
}

// foldSegment encodes a constant segment. It reports false when the
// segment is not constant, not byte aligned, or larger than maxFoldBytes.
func foldSegment(a ir.Attr, sizeBits *big.Int, defaultSize bool, spec ir.BinarySpec) ([]byte, bool) {
	if a == nil || (!defaultSize && sizeBits == nil) {
		return nil, false
	}
	switch spec.Type {
	case ir.BinaryInteger:
		v, isInt := a.(*ir.IntAttr)
		if !isInt {
			return nil, false
		}
		bits := int64(8)
		if !defaultSize {
			bits = sizeBits.Int64()
		}
		if bits%8 != 0 || bits/8 > maxFoldBytes {
			return nil, false
		}
		return encodeInt(v.Value(), int(bits/8), spec.Endian == ir.EndianLittle), true
	case ir.BinaryBytes, ir.BinaryBits:
		v, isBin := a.(*ir.BinaryAttr)
		if !isBin {
			return nil, false
		}
		raw := v.Bytes()
		if defaultSize {
			return raw, true
		}
		if sizeBits.Int64()%8 != 0 || sizeBits.Int64()/8 > int64(len(raw)) {
			return nil, false
		}
		return raw[:sizeBits.Int64()/8], true
	case ir.BinaryUTF8:
		v, isInt := a.(*ir.IntAttr)
		if !isInt || !defaultSize {
			return nil, false
		}
		r, fits := v.Int64()
		if !fits || !utf8.ValidRune(rune(r)) || r != int64(rune(r)) {
			return nil, false
		}
		return utf8.AppendRune(nil, rune(r)), true
	}
	return nil, false
}

// encodeInt truncates v to n bytes in two's complement.
func encodeInt(v *big.Int, n int, little bool) []byte {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	u := new(big.Int).Mod(v, mod)
	out := u.FillBytes(make([]byte, n))
	if little {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// BuildBinaryFinish materializes the accumulation behind handle. cont
// receives the binary term ahead of its explicit arguments. When every
// pushed segment was constant the finish op carries the folded literal.
func (b *Builder) BuildBinaryFinish(loc ir.Location, handle *ir.Value, cont Dest) error {
	const op = "build_binary_finish"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return err
	}
	if err := b.checkValues(op, loc, handle); err != nil {
		return err
	}
	if handle.Type() != b.types.BytePtr() {
		return b.fail(ErrCodeTypeMismatch, op, loc, "handle %s has type %s, not %s", handle, handle.Type(), b.types.BytePtr())
	}
	o, err := b.terminate(blk, op, ir.OpBinaryFinish, loc, []*ir.Value{handle},
		edge{role: ir.RoleDest, dest: cont, implicit: []*ir.Type{b.types.Binary()}})
	if err != nil {
		return err
	}
	if fold := b.bins[handle]; fold != nil && !fold.dynamic {
		flags := uint64(ir.BinaryEncodingRaw)
		if printable(fold.bytes) {
			flags = ir.BinaryEncodingUTF8
		}
		o.Attr = b.attrs.Binary(fold.bytes, ir.BinaryHeader(len(fold.bytes)), flags)
	}
	return nil
}

func printable(p []byte) bool {
	if !utf8.Valid(p) {
		return false
	}
	for _, r := range string(p) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// BuildBinaryMatch extracts one segment from bin. On success ok receives
// the extracted value and the remaining binary ahead of its explicit
// arguments; err is taken when the segment does not match.
func (b *Builder) BuildBinaryMatch(loc ir.Location, bin, size *ir.Value, spec ir.BinarySpec, ok, err Dest) error {
	const op = "build_binary_match"
	blk, e := b.insertionPoint(op, loc)
	if e != nil {
		return e
	}
	operands := []*ir.Value{bin}
	if size != nil {
		operands = append(operands, size)
	}
	if e := b.termOperands(op, loc, operands...); e != nil {
		return e
	}
	o, e := b.terminate(blk, op, ir.OpBinaryMatch, loc, operands,
		edge{role: ir.RoleOK, dest: ok, implicit: []*ir.Type{b.types.Term(), b.types.Term()}},
		edge{role: ir.RoleErr, dest: err},
	)
	if e != nil {
		return e
	}
	o.Spec = spec
	return nil
}
