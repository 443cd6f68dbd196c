package ir

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
)

// Attr is a sealed interface for interned constant values. Only the attribute
// types in this file implement it; obtain instances from an AttrStore.
type Attr interface {
	// Type returns the term or machine type of the constant.
	Type() *Type
	// String returns the canonical text form accepted by ParseAttr.
	String() string

	attr() // Sealed
}

// AtomAttr is an atom constant: a numeric id paired with its NFC name.
type AtomAttr struct {
	typ  *Type
	ID   uint64
	Name string
}

func (*AtomAttr) attr() {}

func (a *AtomAttr) Type() *Type { return a.typ }

func (a *AtomAttr) String() string {
	if a.Name == "" {
		return "atom<{ id = " + strconv.FormatUint(a.ID, 10) + " }>"
	}
	return "atom<{ id = " + strconv.FormatUint(a.ID, 10) + ", value = " + quoteAtom(a.Name) + " }>"
}

// IntAttr is an integer constant. Values that fit the target's immediate
// width are typed as machine integers; wider values are bigints.
type IntAttr struct {
	typ   *Type
	value *big.Int
	Width int
}

func (*IntAttr) attr() {}

func (a *IntAttr) Type() *Type { return a.typ }

// Value returns a copy of the integer value.
func (a *IntAttr) Value() *big.Int { return new(big.Int).Set(a.value) }

// Int64 returns the value and whether it fits in an int64.
func (a *IntAttr) Int64() (int64, bool) {
	return a.value.Int64(), a.value.IsInt64()
}

// IsBig reports whether the constant is a bigint.
func (a *IntAttr) IsBig() bool { return a.typ.kind == KindBigInt }

func (a *IntAttr) String() string {
	kw := "int"
	if a.IsBig() {
		kw = "bigint"
	}
	return kw + "<{ value = " + a.value.String() + ", width = " + strconv.Itoa(a.Width) + " }>"
}

// FloatAttr is a double precision float constant.
type FloatAttr struct {
	typ   *Type
	Value float64
}

func (*FloatAttr) attr() {}

func (a *FloatAttr) Type() *Type { return a.typ }

func (a *FloatAttr) String() string {
	return "float<{ value = " + formatFloat(a.Value) + " }>"
}

// formatFloat prints the shortest representation that parses back to the
// same value, always with a decimal point or exponent.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

// Binary flag bits. The low two bits select the encoding; bit 2 marks a
// reference-counted (process heap) binary.
const (
	BinaryEncodingRaw    uint64 = 0
	BinaryEncodingLatin1 uint64 = 1
	BinaryEncodingUTF8   uint64 = 2
	BinaryEncodingMask   uint64 = 0b11
	BinaryFlagRefCounted uint64 = 1 << 2
)

// BinaryAttr is a binary constant. Header is the precomputed header word the
// runtime expects in front of the payload.
type BinaryAttr struct {
	typ    *Type
	value  string
	Header uint64
	Flags  uint64
}

func (*BinaryAttr) attr() {}

func (a *BinaryAttr) Type() *Type { return a.typ }

// Bytes returns a copy of the payload.
func (a *BinaryAttr) Bytes() []byte { return []byte(a.value) }

// Len returns the payload size in bytes.
func (a *BinaryAttr) Len() int { return len(a.value) }

// Encoding returns the encoding bits of Flags.
func (a *BinaryAttr) Encoding() uint64 { return a.Flags & BinaryEncodingMask }

// IsPrintable reports whether the payload is text and prints as a quoted
// string rather than hex.
func (a *BinaryAttr) IsPrintable() bool { return a.Encoding() != BinaryEncodingRaw }

func (a *BinaryAttr) String() string {
	var v string
	if a.IsPrintable() {
		v = strconv.Quote(a.value)
	} else {
		v = "0x" + hex.EncodeToString([]byte(a.value))
	}
	return "binary<{ value = " + v +
		", header = " + strconv.FormatUint(a.Header, 10) +
		", flags = " + strconv.FormatUint(a.Flags, 10) + " }>"
}

// SeqAttr is an ordered sequence of attributes with an explicit type,
// used for constant lists, tuples, and maps. Map sequences alternate keys
// and values.
type SeqAttr struct {
	typ   *Type
	elems []Attr
}

func (*SeqAttr) attr() {}

func (a *SeqAttr) Type() *Type { return a.typ }

// Elems returns a copy of the elements.
func (a *SeqAttr) Elems() []Attr {
	out := make([]Attr, len(a.elems))
	copy(out, a.elems)
	return out
}

// Len returns the number of elements.
func (a *SeqAttr) Len() int { return len(a.elems) }

func (a *SeqAttr) String() string {
	var sb strings.Builder
	sb.WriteString("seq<[")
	for i, e := range a.elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.String())
	}
	sb.WriteString("] : ")
	sb.WriteString(a.typ.String())
	sb.WriteString(">")
	return sb.String()
}

// NilAttr is the empty list constant.
type NilAttr struct {
	typ *Type
}

func (*NilAttr) attr() {}

func (a *NilAttr) Type() *Type { return a.typ }

func (a *NilAttr) String() string { return "nil" }
