package ir

import (
	"strconv"
	"strings"
	"sync"
)

// MaxIntWidth is the widest machine integer the registry accepts.
const MaxIntWidth = 128

// Registry interns types. Constructing the same type twice returns the same
// pointer, so callers compare types with ==.
//
// Thread-safety: Registry is safe for concurrent use. Lookups take a read
// lock; only the first construction of a type takes the write lock.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*Type
	arena []*Type

	singletons [numKinds]*Type
}

// NewRegistry creates a registry with every non-parametric kind interned.
func NewRegistry() *Registry {
	r := &Registry{byKey: make(map[string]*Type)}
	for k := Kind(0); k < numKinds; k++ {
		if k.Parametric() {
			continue
		}
		r.singletons[k] = r.intern(k, 0, nil, nil, 0)
	}
	return r
}

// Len returns the number of interned types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.arena)
}

// Types returns every interned type in creation order.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, len(r.arena))
	copy(out, r.arena)
	return out
}

// Get returns the singleton for a non-parametric kind.
func (r *Registry) Get(k Kind) (*Type, error) {
	if k >= numKinds || k.Parametric() {
		return nil, &TypeError{Code: CodeNotSingleton, Kind: k, Index: -1,
			Message: "kind takes parameters"}
	}
	return r.singletons[k], nil
}

func (r *Registry) None() *Type       { return r.singletons[KindNone] }
func (r *Registry) Term() *Type       { return r.singletons[KindTerm] }
func (r *Registry) List() *Type       { return r.singletons[KindList] }
func (r *Registry) Number() *Type     { return r.singletons[KindNumber] }
func (r *Registry) Integer() *Type    { return r.singletons[KindInteger] }
func (r *Registry) Float() *Type      { return r.singletons[KindFloat] }
func (r *Registry) Atom() *Type       { return r.singletons[KindAtom] }
func (r *Registry) Boolean() *Type    { return r.singletons[KindBoolean] }
func (r *Registry) Fixnum() *Type     { return r.singletons[KindFixnum] }
func (r *Registry) BigInt() *Type     { return r.singletons[KindBigInt] }
func (r *Registry) Nil() *Type        { return r.singletons[KindNil] }
func (r *Registry) Cons() *Type       { return r.singletons[KindCons] }
func (r *Registry) Map() *Type        { return r.singletons[KindMap] }
func (r *Registry) Closure() *Type    { return r.singletons[KindClosure] }
func (r *Registry) Binary() *Type     { return r.singletons[KindBinary] }
func (r *Registry) HeapBin() *Type    { return r.singletons[KindHeapBin] }
func (r *Registry) ProcBin() *Type    { return r.singletons[KindProcBin] }
func (r *Registry) TraceRef() *Type   { return r.singletons[KindTraceRef] }
func (r *Registry) ReceiveRef() *Type { return r.singletons[KindReceiveRef] }

// DynamicTuple returns the tuple type of unknown arity.
func (r *Registry) DynamicTuple() *Type {
	return r.intern(KindTuple, 0, nil, nil, 0)
}

// Int returns the machine integer type of the given bit width.
func (r *Registry) Int(width int) (*Type, error) {
	if width < 1 || width > MaxIntWidth {
		return nil, &TypeError{Code: CodeInvalidWidth, Kind: KindMachineInt, Index: -1,
			Message: "width " + strconv.Itoa(width) + " outside 1.." + strconv.Itoa(MaxIntWidth)}
	}
	return r.intern(KindMachineInt, uint16(width), nil, nil, 0), nil
}

// I1 returns the 1-bit integer used for lowered booleans.
func (r *Registry) I1() *Type { return r.MustInt(1) }

// MustInt is like Int but panics on an invalid width.
// Use only with constant widths.
func (r *Registry) MustInt(width int) *Type {
	t, err := r.Int(width)
	if err != nil {
		panic(err)
	}
	return t
}

// MachineFloat returns f32 or f64.
func (r *Registry) MachineFloat(width int) (*Type, error) {
	if width != 32 && width != 64 {
		return nil, &TypeError{Code: CodeInvalidWidth, Kind: KindMachineFloat, Index: -1,
			Message: "width " + strconv.Itoa(width) + " is not 32 or 64"}
	}
	return r.intern(KindMachineFloat, uint16(width), nil, nil, 0), nil
}

// Box returns box<inner>. Only term types may be boxed.
func (r *Registry) Box(inner *Type) (*Type, error) {
	if inner == nil || !inner.IsTerm() {
		return nil, &TypeError{Code: CodeInvalidInnerType, Kind: KindBox, Index: -1,
			Message: "inner type " + inner.String() + " is not a term type"}
	}
	return r.intern(KindBox, 0, inner, nil, 0), nil
}

// Ref returns ref<inner>. Only term types may be referenced.
func (r *Registry) Ref(inner *Type) (*Type, error) {
	if inner == nil || !inner.IsTerm() {
		return nil, &TypeError{Code: CodeInvalidInnerType, Kind: KindRef, Index: -1,
			Message: "inner type " + inner.String() + " is not a term type"}
	}
	return r.intern(KindRef, 0, inner, nil, 0), nil
}

// Ptr returns ptr<inner>. A nil inner type means ptr<i8>.
func (r *Registry) Ptr(inner *Type) (*Type, error) {
	if inner == nil {
		inner = r.MustInt(8)
	}
	if inner.kind == KindNone {
		return nil, &TypeError{Code: CodeInvalidInnerType, Kind: KindPtr, Index: -1,
			Message: "cannot point to none"}
	}
	return r.intern(KindPtr, 0, inner, nil, 0), nil
}

// BytePtr returns ptr<i8>, the opaque handle type used by runtime builders.
func (r *Registry) BytePtr() *Type {
	t, _ := r.Ptr(nil)
	return t
}

// Tuple returns the tuple with the given element types. An empty element
// list yields the dynamic tuple. If every element is the same type the
// uniform form is interned, so tuple<atom, atom> and tuple<2x atom> are the
// same type.
func (r *Registry) Tuple(elems ...*Type) (*Type, error) {
	if len(elems) == 0 {
		return r.DynamicTuple(), nil
	}
	if err := VerifyTupleElements(elems); err != nil {
		return nil, err
	}
	uniform := true
	for _, e := range elems[1:] {
		if e != elems[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return r.intern(KindTuple, 0, elems[0], nil, len(elems)), nil
	}
	cp := make([]*Type, len(elems))
	copy(cp, elems)
	return r.intern(KindTuple, 0, nil, cp, len(cp)), nil
}

// UniformTuple returns tuple<arity x elem>. Arity 0 yields the dynamic
// tuple regardless of elem.
func (r *Registry) UniformTuple(arity int, elem *Type) (*Type, error) {
	if arity < 0 {
		return nil, &TypeError{Code: CodeInvalidArity, Kind: KindTuple, Index: -1,
			Message: "negative arity " + strconv.Itoa(arity)}
	}
	if arity == 0 {
		return r.DynamicTuple(), nil
	}
	if err := verifyTupleElement(0, elem); err != nil {
		return nil, err
	}
	return r.intern(KindTuple, 0, elem, nil, arity), nil
}

// VerifyTupleElements checks the tuple element rule: each element must be
// an opaque term kind, an immediate, a boxed kind, a box, a machine
// integer, or a trace reference. The first failing index is reported.
func VerifyTupleElements(elems []*Type) error {
	for i, e := range elems {
		if err := verifyTupleElement(i, e); err != nil {
			return err
		}
	}
	return nil
}

func verifyTupleElement(i int, e *Type) error {
	if e == nil {
		return &TypeError{Code: CodeInvalidElementType, Kind: KindTuple, Index: i,
			Message: "missing element type"}
	}
	if e.IsTerm() || e.kind == KindMachineInt || e.kind == KindTraceRef {
		return nil
	}
	return &TypeError{Code: CodeInvalidElementType, Kind: KindTuple, Index: i,
		Message: e.String() + " is not a valid tuple element"}
}

func (r *Registry) intern(k Kind, width uint16, elem *Type, elems []*Type, arity int) *Type {
	key := internKey(k, width, elem, elems, arity)

	r.mu.RLock()
	t, ok := r.byKey[key]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byKey[key]; ok {
		return t
	}
	t = &Type{
		id:    uint32(len(r.arena) + 1),
		kind:  k,
		width: width,
		elem:  elem,
		elems: elems,
		arity: arity,
	}
	t.text = formatType(t)
	r.arena = append(r.arena, t)
	r.byKey[key] = t
	return t
}

// internKey identifies a type by kind and the ids of its parameters. Child
// types are already interned, so their ids are unique.
func internKey(k Kind, width uint16, elem *Type, elems []*Type, arity int) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(k)))
	sb.WriteByte('/')
	sb.WriteString(strconv.Itoa(int(width)))
	sb.WriteByte('/')
	sb.WriteString(strconv.Itoa(arity))
	sb.WriteByte('/')
	if elem != nil {
		sb.WriteString(strconv.FormatUint(uint64(elem.id), 10))
	}
	for _, e := range elems {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(uint64(e.id), 10))
	}
	return sb.String()
}
