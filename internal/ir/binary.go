package ir

import "strconv"

// BinaryType is the segment type of a binary construction or match.
type BinaryType uint8

const (
	BinaryInteger BinaryType = iota
	BinaryFloat
	BinaryBytes
	BinaryBits
	BinaryUTF8
	BinaryUTF16
	BinaryUTF32
)

var binaryTypeNames = [...]string{
	BinaryInteger: "integer",
	BinaryFloat:   "float",
	BinaryBytes:   "bytes",
	BinaryBits:    "bits",
	BinaryUTF8:    "utf8",
	BinaryUTF16:   "utf16",
	BinaryUTF32:   "utf32",
}

func (t BinaryType) String() string {
	if int(t) < len(binaryTypeNames) {
		return binaryTypeNames[t]
	}
	return "binary_type(" + strconv.Itoa(int(t)) + ")"
}

// ParseBinaryType maps a segment type name to its BinaryType.
func ParseBinaryType(name string) (BinaryType, bool) {
	for i, n := range binaryTypeNames {
		if n == name {
			return BinaryType(i), true
		}
	}
	return 0, false
}

// Endianness is the byte order of a segment.
type Endianness uint8

const (
	EndianBig Endianness = iota
	EndianLittle
	EndianNative
)

func (e Endianness) String() string {
	switch e {
	case EndianLittle:
		return "little"
	case EndianNative:
		return "native"
	default:
		return "big"
	}
}

// ParseEndianness maps "big", "little" or "native" to an Endianness.
func ParseEndianness(name string) (Endianness, bool) {
	switch name {
	case "big", "":
		return EndianBig, true
	case "little":
		return EndianLittle, true
	case "native":
		return EndianNative, true
	}
	return 0, false
}

// BinarySpec describes one segment: its type, the unit its size is counted
// in, byte order, and signedness.
type BinarySpec struct {
	Type   BinaryType
	Unit   uint8
	Endian Endianness
	Signed bool
}

// DefaultUnit returns the unit implied by the segment type when none was
// given.
func (s BinarySpec) DefaultUnit() uint8 {
	switch s.Type {
	case BinaryBytes:
		return 8
	default:
		return 1
	}
}

// EffectiveUnit returns Unit, or the type's default when Unit is 0.
func (s BinarySpec) EffectiveUnit() uint8 {
	if s.Unit == 0 {
		return s.DefaultUnit()
	}
	return s.Unit
}

// Encode packs the spec into the 32-bit word the runtime receives:
// bits 0-3 type, bits 4-5 endianness, bit 6 signedness, bits 8-15 unit.
func (s BinarySpec) Encode() uint32 {
	w := uint32(s.Type) | uint32(s.Endian)<<4 | uint32(s.EffectiveUnit())<<8
	if s.Signed {
		w |= 1 << 6
	}
	return w
}

// String prints the spec in segment-specifier order, e.g.
// "integer-unsigned-big-unit:1".
func (s BinarySpec) String() string {
	sign := "unsigned"
	if s.Signed {
		sign = "signed"
	}
	return s.Type.String() + "-" + sign + "-" + s.Endian.String() +
		"-unit:" + strconv.Itoa(int(s.EffectiveUnit()))
}
