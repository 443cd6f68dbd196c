package ir

import (
	"strconv"
	"strings"
)

// Kind identifies a member of the term type catalog.
//
// The set is closed. Printing, parsing, and classification switch over it
// exhaustively, so adding a kind means touching each of those switches.
type Kind uint8

const (
	KindNone Kind = iota
	KindTerm
	KindList
	KindNumber
	KindInteger
	KindFloat
	KindAtom
	KindBoolean
	KindFixnum
	KindBigInt
	KindNil
	KindCons
	KindTuple
	KindMap
	KindClosure
	KindBinary
	KindHeapBin
	KindProcBin
	KindBox
	KindRef
	KindPtr
	KindTraceRef
	KindReceiveRef
	KindMachineInt
	KindMachineFloat

	numKinds
)

// keywords maps every kind without a payload-dependent spelling to its
// keyword. Parametric kinds print their own syntax.
var keywords = [numKinds]string{
	KindNone:       "none",
	KindTerm:       "term",
	KindList:       "list",
	KindNumber:     "number",
	KindInteger:    "integer",
	KindFloat:      "float",
	KindAtom:       "atom",
	KindBoolean:    "boolean",
	KindFixnum:     "fixnum",
	KindBigInt:     "bigint",
	KindNil:        "nil",
	KindCons:       "cons",
	KindTuple:      "tuple",
	KindMap:        "map",
	KindClosure:    "closure",
	KindBinary:     "binary",
	KindHeapBin:    "heapbin",
	KindProcBin:    "procbin",
	KindBox:        "box",
	KindRef:        "ref",
	KindPtr:        "ptr",
	KindTraceRef:   "trace_ref",
	KindReceiveRef: "receive_ref",
}

// String returns the keyword for k. Machine kinds have no single keyword
// and report a descriptive name instead.
func (k Kind) String() string {
	switch k {
	case KindMachineInt:
		return "machine_int"
	case KindMachineFloat:
		return "machine_float"
	}
	if k < numKinds {
		return keywords[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Parametric reports whether values of this kind carry type parameters.
func (k Kind) Parametric() bool {
	switch k {
	case KindTuple, KindBox, KindRef, KindPtr, KindMachineInt, KindMachineFloat:
		return true
	default:
		return false
	}
}

// DefaultWordBytes is the term word size of 64-bit targets.
const DefaultWordBytes = 8

// Type is an interned member of the term type catalog. Two types are the
// same type exactly when the pointers are equal; never construct a Type
// directly, obtain it from a Registry.
type Type struct {
	id    uint32
	kind  Kind
	width uint16  // machine int/float bit width
	elem  *Type   // box, ref, ptr inner type; uniform tuple element
	elems []*Type // heterogeneous tuple elements
	arity int     // tuple arity; 0 means dynamic shape
	text  string  // canonical text, computed once at intern time
}

// ID returns the registry-local identifier. IDs are dense and start at 1.
func (t *Type) ID() uint32 { return t.id }

// Kind returns the catalog kind.
func (t *Type) Kind() Kind { return t.kind }

// String returns the canonical text form accepted by ParseType.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.text
}

// Width returns the bit width of a machine integer or float, 0 otherwise.
func (t *Type) Width() int { return int(t.width) }

// Elem returns the pointee of box, ref and ptr types, or the element type
// of a uniform tuple. It returns nil for everything else.
func (t *Type) Elem() *Type { return t.elem }

// Arity returns the number of tuple elements; 0 for a dynamic tuple and for
// non-tuple types.
func (t *Type) Arity() int {
	if t.kind != KindTuple {
		return 0
	}
	return t.arity
}

// Elems returns the tuple element types. For a uniform tuple the single
// element type is repeated Arity times. The returned slice is a copy.
func (t *Type) Elems() []*Type {
	if t.kind != KindTuple || t.arity == 0 {
		return nil
	}
	out := make([]*Type, t.arity)
	for i := range out {
		out[i] = t.ElementType(i)
	}
	return out
}

// ElementType returns the type of tuple element i, or nil when i is out of
// range or the shape is dynamic.
func (t *Type) ElementType(i int) *Type {
	if t.kind != KindTuple || i < 0 || i >= t.arity {
		return nil
	}
	if t.elems != nil {
		return t.elems[i]
	}
	return t.elem
}

// HasStaticShape reports whether the tuple arity is known.
func (t *Type) HasStaticShape() bool { return t.kind == KindTuple && t.arity > 0 }

// HasDynamicShape reports whether the type is a tuple of unknown arity.
func (t *Type) HasDynamicShape() bool { return t.kind == KindTuple && t.arity == 0 }

// IsUniform reports whether a static tuple repeats a single element type.
func (t *Type) IsUniform() bool { return t.HasStaticShape() && t.elems == nil }

// SizeInBytes returns the heap footprint of a tuple (one header word plus
// one word per element) or the storage size of a word-sized value, for a
// target whose term word is word bytes. It returns -1 when the size is not
// statically known.
func (t *Type) SizeInBytes(word int) int {
	switch t.kind {
	case KindTuple:
		if t.arity == 0 {
			return -1
		}
		return word + t.arity*word
	case KindMachineInt, KindMachineFloat:
		return (int(t.width) + 7) / 8
	case KindTraceRef, KindReceiveRef:
		return word
	}
	if t.IsTerm() || t.kind == KindRef || t.kind == KindPtr {
		return word
	}
	return -1
}

// IsOpaque reports whether t is one of the abstract term kinds whose
// concrete representation is unknown until runtime.
func (t *Type) IsOpaque() bool {
	switch t.kind {
	case KindTerm, KindList, KindNumber, KindInteger:
		return true
	}
	return false
}

// IsImmediate reports whether values of t fit in a single term word
// without a heap allocation.
func (t *Type) IsImmediate() bool {
	switch t.kind {
	case KindNone, KindNil, KindBoolean, KindAtom, KindFixnum, KindFloat:
		return true
	}
	return false
}

// IsBoxed reports whether values of t live on the heap behind a box.
func (t *Type) IsBoxed() bool {
	switch t.kind {
	case KindBigInt, KindCons, KindTuple, KindMap, KindClosure,
		KindBinary, KindHeapBin, KindProcBin:
		return true
	}
	return false
}

// IsTerm reports whether t describes a language-level term: an opaque
// kind, an immediate, a boxed kind, or a box.
func (t *Type) IsTerm() bool {
	return t.IsOpaque() || t.IsImmediate() || t.IsBoxed() || t.kind == KindBox
}

// IsMachine reports whether t is a raw machine integer or float.
func (t *Type) IsMachine() bool {
	return t.kind == KindMachineInt || t.kind == KindMachineFloat
}

// IsI1 reports whether t is the 1-bit machine integer used for lowered
// booleans.
func (t *Type) IsI1() bool { return t.kind == KindMachineInt && t.width == 1 }

// Contains reports whether every value of sub is also a value of t.
// Equal types contain each other.
func (t *Type) Contains(sub *Type) bool {
	if t == sub {
		return true
	}
	if sub == nil || !sub.IsTerm() {
		return false
	}
	switch t.kind {
	case KindTerm:
		return true
	case KindNumber:
		switch sub.kind {
		case KindInteger, KindFixnum, KindBigInt, KindFloat:
			return true
		}
	case KindInteger:
		return sub.kind == KindFixnum || sub.kind == KindBigInt
	case KindList:
		return sub.kind == KindNil || sub.kind == KindCons
	case KindAtom:
		return sub.kind == KindBoolean
	case KindBinary:
		return sub.kind == KindHeapBin || sub.kind == KindProcBin
	case KindTuple:
		return t.arity == 0 && sub.kind == KindTuple
	}
	return false
}

// Assignable reports whether a value of type from may flow into a slot of
// type to. Lowered booleans (i1) are accepted wherever a boolean term is.
func Assignable(from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from == to || to.Contains(from) {
		return true
	}
	if from.IsI1() {
		switch to.kind {
		case KindTerm, KindAtom, KindBoolean:
			return true
		}
	}
	if from.kind == KindBox && to.IsTerm() {
		return to.Contains(from.elem)
	}
	return false
}

func formatType(t *Type) string {
	switch t.kind {
	case KindMachineInt:
		return "i" + strconv.Itoa(int(t.width))
	case KindMachineFloat:
		return "f" + strconv.Itoa(int(t.width))
	case KindBox, KindRef, KindPtr:
		return keywords[t.kind] + "<" + t.elem.String() + ">"
	case KindTuple:
		switch {
		case t.arity == 0:
			return "tuple<*>"
		case t.elems == nil:
			return "tuple<" + strconv.Itoa(t.arity) + "x " + t.elem.String() + ">"
		default:
			var sb strings.Builder
			sb.WriteString("tuple<")
			for i, e := range t.elems {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(e.String())
			}
			sb.WriteString(">")
			return sb.String()
		}
	}
	return keywords[t.kind]
}
