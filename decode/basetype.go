package decode

import "fmt"

// BaseType identifies one of the FIT wire-format scalar encodings. The
// numeric value is the raw byte FIT definition messages carry on the wire.
type BaseType uint8

const (
	BaseEnum    BaseType = 0x00
	BaseSint8   BaseType = 0x01
	BaseUint8   BaseType = 0x02
	BaseSint16  BaseType = 0x83
	BaseUint16  BaseType = 0x84
	BaseSint32  BaseType = 0x85
	BaseUint32  BaseType = 0x86
	BaseString  BaseType = 0x07
	BaseFloat32 BaseType = 0x88
	BaseFloat64 BaseType = 0x89
	BaseUint8z  BaseType = 0x0A
	BaseUint16z BaseType = 0x8B
	BaseUint32z BaseType = 0x8C
	BaseByte    BaseType = 0x0D
	BaseSint64  BaseType = 0x8E
	BaseUint64  BaseType = 0x8F
	BaseUint64z BaseType = 0x90
)

// baseTypeSpec describes the fixed properties of a base type: its width in
// bytes (0 means variable-width, i.e. string), whether it is signed or a
// floating-point type, and the display name used in logs and errors.
type baseTypeSpec struct {
	name     string
	width    int
	signed   bool
	floating bool
}

var baseTypeSpecs = map[BaseType]baseTypeSpec{
	BaseEnum:    {name: "enum", width: 1},
	BaseSint8:   {name: "sint8", width: 1, signed: true},
	BaseUint8:   {name: "uint8", width: 1},
	BaseSint16:  {name: "sint16", width: 2, signed: true},
	BaseUint16:  {name: "uint16", width: 2},
	BaseSint32:  {name: "sint32", width: 4, signed: true},
	BaseUint32:  {name: "uint32", width: 4},
	BaseString:  {name: "string", width: 0},
	BaseFloat32: {name: "float32", width: 4, signed: true, floating: true},
	BaseFloat64: {name: "float64", width: 8, signed: true, floating: true},
	BaseUint8z:  {name: "uint8z", width: 1},
	BaseUint16z: {name: "uint16z", width: 2},
	BaseUint32z: {name: "uint32z", width: 4},
	BaseByte:    {name: "byte", width: 1},
	BaseSint64:  {name: "sint64", width: 8, signed: true},
	BaseUint64:  {name: "uint64", width: 8},
	BaseUint64z: {name: "uint64z", width: 8},
}

// Spec returns the width/signedness/float metadata for bt, and whether bt is
// a base type this decoder recognizes.
func (bt BaseType) Spec() (baseTypeSpec, bool) {
	s, ok := baseTypeSpecs[bt]
	return s, ok
}

// Width reports the fixed byte width of bt, or 0 for variable-width types
// (string).
func (bt BaseType) Width() int {
	s, ok := baseTypeSpecs[bt]
	if !ok {
		return 0
	}
	return s.width
}

// String renders bt using its canonical profile name, or a hex fallback for
// base types outside the catalogued table (spec.md §6).
func (bt BaseType) String() string {
	if s, ok := baseTypeSpecs[bt]; ok {
		return s.name
	}
	return fmt.Sprintf("unknown(0x%02X)", uint8(bt))
}

// zIsInvalid reports whether bt is one of the "z" variants, whose invalid
// sentinel is zero rather than all-ones.
func (bt BaseType) zIsInvalid() bool {
	switch bt {
	case BaseUint8z, BaseUint16z, BaseUint32z, BaseUint64z:
		return true
	default:
		return false
	}
}

// invalidUint is the raw unsigned sentinel pattern for fixed-width integer
// and float base types, used to detect invalid field values before scale/
// offset is applied. Byte uses 0xFF like uint8; string has no entry here
// and is checked separately.
func (bt BaseType) invalidUint() (uint64, bool) {
	switch bt {
	case BaseEnum, BaseUint8, BaseByte:
		return 0xFF, true
	case BaseSint8:
		return 0x7F, true
	case BaseUint8z:
		return 0x00, true
	case BaseSint16:
		return 0x7FFF, true
	case BaseUint16:
		return 0xFFFF, true
	case BaseUint16z:
		return 0x0000, true
	case BaseSint32:
		return 0x7FFFFFFF, true
	case BaseUint32, BaseFloat32:
		return 0xFFFFFFFF, true
	case BaseUint32z:
		return 0x00000000, true
	case BaseSint64:
		return 0x7FFFFFFFFFFFFFFF, true
	case BaseUint64, BaseFloat64:
		return 0xFFFFFFFFFFFFFFFF, true
	case BaseUint64z:
		return 0x0000000000000000, true
	default:
		return 0, false
	}
}
