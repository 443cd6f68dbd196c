package builder

import (
	"math/big"

	"github.com/roach88/eir/internal/ir"
)

// BuildConstant materializes an interned attribute as a value. The value's
// type is the attribute's type, except that an integer of the immediate
// width is a fixnum.
func (b *Builder) BuildConstant(loc ir.Location, a ir.Attr) (*ir.Value, error) {
	if a == nil {
		return b.constant(loc, nil, nil)
	}
	if ia, isInt := a.(*ir.IntAttr); isInt && !ia.IsBig() && ia.Width == b.target.ImmediateWidth {
		return b.constant(loc, a, b.types.Fixnum())
	}
	return b.constant(loc, a, a.Type())
}

// constant emits a constant whose value type t may be narrower than the
// attribute's storage type, as for fixnums and booleans.
func (b *Builder) constant(loc ir.Location, a ir.Attr, t *ir.Type) (*ir.Value, error) {
	const op = "build_constant"
	blk, err := b.insertionPoint(op, loc)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, b.fail(ErrCodeInvalidType, op, loc, "constant has no attribute")
	}
	o := b.emit(blk, ir.OpConstant, loc, nil, t)
	o.Attr = a
	return o.Result(0), nil
}

// BuildConstantInt emits an integer term. Values that fit the target's
// immediate width become fixnums, anything wider a bigint.
func (b *Builder) BuildConstantInt(loc ir.Location, v int64) (*ir.Value, error) {
	return b.buildInteger(loc, big.NewInt(v))
}

// BuildConstantBigInt emits an integer term from its decimal text.
func (b *Builder) BuildConstantBigInt(loc ir.Location, decimal string) (*ir.Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	v, ok := new(big.Int).SetString(decimal, 10)
	if !ok {
		return nil, b.fail(ErrCodeInvalidType, "build_constant_bigint", loc, "invalid integer literal %q", decimal)
	}
	return b.buildInteger(loc, v)
}

func (b *Builder) buildInteger(loc ir.Location, v *big.Int) (*ir.Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	a, err := b.IntegerAttr(v)
	if err != nil {
		return nil, b.failWith(ErrCodeInvalidType, "build_constant_int", loc, err, "integer %s", v)
	}
	return b.BuildConstant(loc, a)
}

// IntegerAttr interns v as an integer term attribute: a fixnum of the
// immediate width when it fits, a bigint otherwise.
func (b *Builder) IntegerAttr(v *big.Int) (*ir.IntAttr, error) {
	width := b.target.ImmediateWidth
	if ir.FitsSigned(v, width) {
		return b.attrs.IntValue(v, width)
	}
	return b.attrs.BigIntValue(v, width)
}

// BuildConstantFloat emits a float term.
func (b *Builder) BuildConstantFloat(loc ir.Location, f float64) (*ir.Value, error) {
	return b.BuildConstant(loc, b.attrs.Float(f))
}

// BuildConstantAtom emits the atom named name, assigning it an id on first
// use.
func (b *Builder) BuildConstantAtom(loc ir.Location, name string) (*ir.Value, error) {
	return b.BuildConstant(loc, b.attrs.AtomNamed(name))
}

// BuildConstantAtomID emits an atom whose id was assigned by the front end.
// The id must not already belong to another name.
func (b *Builder) BuildConstantAtomID(loc ir.Location, name string, id uint64) (*ir.Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	a, err := b.attrs.Atom(name, id)
	if err != nil {
		return nil, b.failWith(ErrCodeInvalidType, "build_constant_atom", loc, err, "atom %q", name)
	}
	return b.BuildConstant(loc, a)
}

// BuildConstantBool emits true or false as a boolean term.
func (b *Builder) BuildConstantBool(loc ir.Location, v bool) (*ir.Value, error) {
	name := "false"
	if v {
		name = "true"
	}
	return b.constant(loc, b.attrs.AtomNamed(name), b.types.Boolean())
}

// BuildConstantBinary emits a binary literal with an explicit header and
// flags.
func (b *Builder) BuildConstantBinary(loc ir.Location, value []byte, header, flags uint64) (*ir.Value, error) {
	return b.BuildConstant(loc, b.attrs.Binary(value, header, flags))
}

// BuildConstantString emits a UTF-8 heap binary.
func (b *Builder) BuildConstantString(loc ir.Location, s string) (*ir.Value, error) {
	return b.BuildConstant(loc, b.attrs.String(s))
}

// BuildConstantNil emits the empty list.
func (b *Builder) BuildConstantNil(loc ir.Location) (*ir.Value, error) {
	return b.BuildConstant(loc, b.attrs.Nil())
}

// BuildConstantList emits a proper list literal. An empty list is nil.
func (b *Builder) BuildConstantList(loc ir.Location, elems []ir.Attr) (*ir.Value, error) {
	if len(elems) == 0 {
		return b.BuildConstantNil(loc)
	}
	return b.buildSeq(loc, elems, b.types.Cons())
}

// BuildConstantTuple emits a tuple literal typed by its elements.
func (b *Builder) BuildConstantTuple(loc ir.Location, elems []ir.Attr) (*ir.Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	types := make([]*ir.Type, len(elems))
	for i, e := range elems {
		if e == nil {
			return nil, b.fail(ErrCodeInvalidType, "build_constant_tuple", loc, "element %d is nil", i)
		}
		types[i] = e.Type()
	}
	t, err := b.types.Tuple(types...)
	if err != nil {
		return nil, b.failWith(ErrCodeInvalidType, "build_constant_tuple", loc, err, "invalid tuple literal")
	}
	return b.buildSeq(loc, elems, t)
}

// BuildConstantMap emits a map literal from alternating keys and values.
func (b *Builder) BuildConstantMap(loc ir.Location, kvs []ir.Attr) (*ir.Value, error) {
	return b.buildSeq(loc, kvs, b.types.Map())
}

func (b *Builder) buildSeq(loc ir.Location, elems []ir.Attr, t *ir.Type) (*ir.Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	a, err := b.attrs.Seq(elems, t)
	if err != nil {
		return nil, b.failWith(ErrCodeInvalidType, "build_constant_seq", loc, err, "invalid %s literal", t)
	}
	return b.BuildConstant(loc, a)
}
