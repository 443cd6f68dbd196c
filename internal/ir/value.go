package ir

import (
	"slices"
	"strconv"
)

// ValueID identifies an SSA value within its function.
type ValueID uint32

// BlockID identifies a block within its function.
type BlockID uint32

// Value is an SSA value: either the result of an op or a block argument.
// Values are defined exactly once and belong to a single function.
type Value struct {
	id    ValueID
	typ   *Type
	fn    *Function
	def   *Op    // nil for block arguments
	block *Block // owner of a block argument
	index int    // result or argument position
}

func (v *Value) ID() ValueID { return v.id }

func (v *Value) Type() *Type { return v.typ }

// Function returns the function the value belongs to.
func (v *Value) Function() *Function { return v.fn }

// Def returns the defining op, or nil for a block argument.
func (v *Value) Def() *Op { return v.def }

// BlockArg returns the owning block and position when v is a block
// argument.
func (v *Value) BlockArg() (*Block, int, bool) {
	if v.def != nil {
		return nil, 0, false
	}
	return v.block, v.index, true
}

// String returns the printed name, e.g. "%3".
func (v *Value) String() string {
	return "%" + strconv.FormatUint(uint64(v.id), 10)
}

// Block is a basic block. Blocks take arguments instead of phi nodes; a
// well-formed block ends in exactly one terminator.
type Block struct {
	id   BlockID
	fn   *Function
	args []*Value
	ops  []*Op
}

func (b *Block) ID() BlockID { return b.id }

// Function returns the enclosing function.
func (b *Block) Function() *Function { return b.fn }

// String returns the printed label, e.g. "^bb2".
func (b *Block) String() string {
	return "^bb" + strconv.FormatUint(uint64(b.id), 10)
}

// Args returns the block arguments. The slice must not be modified.
func (b *Block) Args() []*Value { return b.args }

// Arg returns argument i, or nil when out of range.
func (b *Block) Arg(i int) *Value {
	if i < 0 || i >= len(b.args) {
		return nil
	}
	return b.args[i]
}

// NumArgs returns the number of block arguments.
func (b *Block) NumArgs() int { return len(b.args) }

// AddArg appends a block argument of type t.
func (b *Block) AddArg(t *Type) *Value {
	v := &Value{
		id:    ValueID(b.fn.values.Next()),
		typ:   t,
		fn:    b.fn,
		block: b,
		index: len(b.args),
	}
	b.args = append(b.args, v)
	return v
}

// Ops returns the ops in order. The slice must not be modified.
func (b *Block) Ops() []*Op { return b.ops }

// Terminator returns the final op if it is a terminator.
func (b *Block) Terminator() *Op {
	if len(b.ops) == 0 {
		return nil
	}
	if last := b.ops[len(b.ops)-1]; last.Kind.IsTerminator() {
		return last
	}
	return nil
}

// Terminated reports whether the block already ends in a terminator.
func (b *Block) Terminated() bool { return b.Terminator() != nil }

// Append adds op at the end of the block.
func (b *Block) Append(op *Op) {
	op.block = b
	b.ops = append(b.ops, op)
}

// InsertBefore inserts ops immediately before anchor. It panics if anchor
// is not in b.
func (b *Block) InsertBefore(anchor *Op, ops ...*Op) {
	i := b.indexOf(anchor)
	for _, op := range ops {
		op.block = b
	}
	b.ops = slices.Insert(b.ops, i, ops...)
}

// Replace swaps old for op in place.
func (b *Block) Replace(old, op *Op) {
	i := b.indexOf(old)
	op.block = b
	old.block = nil
	b.ops[i] = op
}

// Remove deletes op from the block.
func (b *Block) Remove(op *Op) {
	i := b.indexOf(op)
	op.block = nil
	b.ops = slices.Delete(b.ops, i, i+1)
}

func (b *Block) indexOf(op *Op) int {
	i := slices.Index(b.ops, op)
	if i < 0 {
		panic("ir: op " + op.Kind.String() + " not in block " + b.String())
	}
	return i
}

// Successors returns the distinct successor blocks of the terminator in
// order of first appearance.
func (b *Block) Successors() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	var out []*Block
	for _, s := range t.succs {
		if !slices.Contains(out, s.Block) {
			out = append(out, s.Block)
		}
	}
	return out
}
