package ir

import (
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// AttrStore interns constant attributes. Attributes are keyed by their
// canonical text, so equal constants share one pointer.
//
// Thread-safety: AttrStore is safe for concurrent use.
type AttrStore struct {
	types *Registry

	mu        sync.RWMutex
	byKey     map[string]Attr
	atoms     map[string]uint64 // NFC name -> id
	atomNames map[uint64]string // id -> NFC name, "" while anonymous
	seq       uint64            // above every bound atom id
}

// NewAttrStore creates a store whose attribute types come from types.
func NewAttrStore(types *Registry) *AttrStore {
	return &AttrStore{
		types:     types,
		byKey:     make(map[string]Attr),
		atoms:     make(map[string]uint64),
		atomNames: make(map[uint64]string),
	}
}

// Types returns the registry attribute types are drawn from.
func (s *AttrStore) Types() *Registry { return s.types }

// Len returns the number of interned attributes.
func (s *AttrStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

func (s *AttrStore) intern(a Attr) Attr {
	key := a.String()
	s.mu.RLock()
	got, ok := s.byKey[key]
	s.mu.RUnlock()
	if ok {
		return got
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if got, ok := s.byKey[key]; ok {
		return got
	}
	s.byKey[key] = a
	return a
}

// Atom returns the atom constant with the given id and name. Names are
// normalized to NFC so visually identical atoms intern together. A name and
// an id are bound to each other on first use and binding either to
// something else fails with CodeAtomConflict. An empty name refers to the
// id alone.
func (s *AttrStore) Atom(name string, id uint64) (*AtomAttr, error) {
	name = norm.NFC.String(name)
	s.mu.Lock()
	err := s.bindAtom(name, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.intern(&AtomAttr{typ: s.types.Atom(), ID: id, Name: name}).(*AtomAttr), nil
}

// AtomNamed returns the atom for name, assigning the next free id the first
// time a name is seen.
func (s *AttrStore) AtomNamed(name string) *AtomAttr {
	name = norm.NFC.String(name)
	s.mu.Lock()
	id, ok := s.atoms[name]
	if !ok {
		// seq is above every bound id, so this cannot conflict
		id = s.seq
		_ = s.bindAtom(name, id)
	}
	s.mu.Unlock()
	return s.intern(&AtomAttr{typ: s.types.Atom(), ID: id, Name: name}).(*AtomAttr)
}

// bindAtom records name <-> id. Callers hold s.mu.
func (s *AttrStore) bindAtom(name string, id uint64) error {
	if prev := s.atomNames[id]; prev != "" && name != "" && prev != name {
		return &TypeError{Code: CodeAtomConflict, Kind: KindAtom, Index: -1,
			Message: fmt.Sprintf("id %d already names '%s'", id, prev)}
	}
	if name != "" {
		if prev, ok := s.atoms[name]; ok && prev != id {
			return &TypeError{Code: CodeAtomConflict, Kind: KindAtom, Index: -1,
				Message: fmt.Sprintf("'%s' already has id %d", name, prev)}
		}
		s.atoms[name] = id
		s.atomNames[id] = name
	} else if _, ok := s.atomNames[id]; !ok {
		s.atomNames[id] = ""
	}
	if id >= s.seq {
		s.seq = id + 1
	}
	return nil
}

// Int returns an integer constant of the given machine width.
func (s *AttrStore) Int(v int64, width int) (*IntAttr, error) {
	return s.IntValue(big.NewInt(v), width)
}

// IntValue returns an integer constant of the given machine width. The
// value must fit the width as either a signed or an unsigned integer.
func (s *AttrStore) IntValue(v *big.Int, width int) (*IntAttr, error) {
	t, err := s.types.Int(width)
	if err != nil {
		return nil, err
	}
	if !FitsWidth(v, width) {
		return nil, &TypeError{Code: CodeInvalidWidth, Kind: KindMachineInt, Index: -1,
			Message: "value " + v.String() + " does not fit in " + strconv.Itoa(width) + " bits"}
	}
	return s.intern(&IntAttr{typ: t, value: new(big.Int).Set(v), Width: width}).(*IntAttr), nil
}

// BigIntValue returns an arbitrary precision integer constant. width records
// the immediate width the value was too wide for.
func (s *AttrStore) BigIntValue(v *big.Int, width int) (*IntAttr, error) {
	if width < 1 || width > MaxIntWidth {
		return nil, &TypeError{Code: CodeInvalidWidth, Kind: KindBigInt, Index: -1,
			Message: "width " + strconv.Itoa(width) + " outside 1.." + strconv.Itoa(MaxIntWidth)}
	}
	return s.intern(&IntAttr{typ: s.types.BigInt(), value: new(big.Int).Set(v), Width: width}).(*IntAttr), nil
}

// FitsWidth reports whether v is representable in width bits, signed or
// unsigned.
func FitsWidth(v *big.Int, width int) bool {
	if v.Sign() >= 0 {
		return v.BitLen() <= width
	}
	// -2^(w-1) <= v
	min := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	min.Neg(min)
	return v.Cmp(min) >= 0
}

// FitsSigned reports whether v lies in the two's complement range of width
// bits: -2^(w-1) <= v < 2^(w-1).
func FitsSigned(v *big.Int, width int) bool {
	if width < 1 {
		return false
	}
	if v.Sign() >= 0 {
		return v.BitLen() < width
	}
	return FitsWidth(v, width)
}

// Float returns a double precision float constant.
func (s *AttrStore) Float(v float64) *FloatAttr {
	return s.intern(&FloatAttr{typ: s.types.Float(), Value: v}).(*FloatAttr)
}

// Binary returns a binary constant. The flags decide both the printed form
// and the type: reference-counted binaries are procbin, the rest heapbin.
func (s *AttrStore) Binary(value []byte, header, flags uint64) *BinaryAttr {
	t := s.types.HeapBin()
	if flags&BinaryFlagRefCounted != 0 {
		t = s.types.ProcBin()
	}
	return s.intern(&BinaryAttr{typ: t, value: string(value), Header: header, Flags: flags}).(*BinaryAttr)
}

// String returns a UTF-8 heap binary holding text.
func (s *AttrStore) String(text string) *BinaryAttr {
	return s.Binary([]byte(text), BinaryHeader(len(text)), BinaryEncodingUTF8)
}

// BinaryHeader computes the header word for a heap binary of n bytes: the
// byte size shifted past the 6 tag bits.
func BinaryHeader(n int) uint64 {
	const heapBinTag = 0b100100
	return uint64(n)<<6 | heapBinTag
}

// Seq returns a sequence constant. typ must be a list, tuple or map type.
// A static tuple needs exactly arity elements; a map needs an even count.
func (s *AttrStore) Seq(elems []Attr, typ *Type) (*SeqAttr, error) {
	switch {
	case typ == nil:
		return nil, &TypeError{Code: CodeInvalidInnerType, Kind: KindTuple, Index: -1,
			Message: "sequence needs a type"}
	case typ.kind == KindTuple:
		if typ.HasStaticShape() && typ.arity != len(elems) {
			return nil, &TypeError{Code: CodeInvalidArity, Kind: KindTuple, Index: -1,
				Message: strconv.Itoa(len(elems)) + " elements for " + typ.String()}
		}
	case typ.kind == KindMap:
		if len(elems)%2 != 0 {
			return nil, &TypeError{Code: CodeInvalidArity, Kind: KindMap, Index: -1,
				Message: "map sequence needs key/value pairs"}
		}
	case typ.kind == KindList, typ.kind == KindCons, typ.kind == KindNil, typ.kind == KindTerm:
	default:
		return nil, &TypeError{Code: CodeInvalidInnerType, Kind: typ.kind, Index: -1,
			Message: typ.String() + " cannot hold a sequence"}
	}
	cp := make([]Attr, len(elems))
	copy(cp, elems)
	return s.intern(&SeqAttr{typ: typ, elems: cp}).(*SeqAttr), nil
}

// Nil returns the empty list constant.
func (s *AttrStore) Nil() *NilAttr {
	return s.intern(&NilAttr{typ: s.types.Nil()}).(*NilAttr)
}
