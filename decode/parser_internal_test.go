package decode

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeRecordHeaderNormal(t *testing.T) {
	rh := decodeRecordHeader(0x40) // is_def bit set, local_type 0
	if rh.compressed || !rh.isDef || rh.devFlag || rh.localType != 0 {
		t.Errorf("unexpected header: %+v", rh)
	}

	rh = decodeRecordHeader(0x65) // data message, local_type 5
	if rh.compressed || rh.isDef || rh.localType != 5 {
		t.Errorf("unexpected header: %+v", rh)
	}
}

func TestDecodeRecordHeaderCompressed(t *testing.T) {
	// bit7 set, local_type bits 6-5 = 01, offset 0x0A
	rh := decodeRecordHeader(0x80 | (1 << 5) | 0x0A)
	if !rh.compressed || rh.localType != 1 || rh.tsOffset != 0x0A {
		t.Errorf("unexpected header: %+v", rh)
	}
}

func TestReadBitsWidths(t *testing.T) {
	raw16 := []byte{0x34, 0x12}
	bits, signed := readBits(BaseUint16, raw16, binary.LittleEndian)
	if bits != 0x1234 || signed {
		t.Errorf("uint16 readBits = 0x%X signed=%v", bits, signed)
	}

	raw32 := []byte{0x01, 0x00, 0x00, 0x00}
	bits, signed = readBits(BaseSint32, raw32, binary.LittleEndian)
	if bits != 1 || !signed {
		t.Errorf("sint32 readBits = %d signed=%v", bits, signed)
	}
}

func TestDecodeScalarFieldSignedNegative(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 1, Size: 2, BaseType: BaseSint16}
	desc := FieldDescriptor{Name: "delta"}
	raw := make([]byte, 2)
	v16 := int16(-5)
	binary.LittleEndian.PutUint16(raw, uint16(v16))

	fv, ok := decodeScalarField(fd, desc, raw, binary.LittleEndian, 0, false)
	if !ok {
		t.Fatal("expected a valid value")
	}
	if fv.Value.(int64) != -5 {
		t.Errorf("Value = %v, want -5", fv.Value)
	}
	if fv.BaseType != BaseSint16 {
		t.Errorf("BaseType = %v, want BaseSint16", fv.BaseType)
	}
}

func TestDecodeScalarFieldSignedSint32WithScale(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 1, Size: 4, BaseType: BaseSint32}
	desc := FieldDescriptor{Name: "position_lat", Scale: 1, Units: "semicircles"}
	raw := make([]byte, 4)
	v32 := int32(-1000000000)
	binary.LittleEndian.PutUint32(raw, uint32(v32))

	fv, ok := decodeScalarField(fd, desc, raw, binary.LittleEndian, 0, false)
	if !ok {
		t.Fatal("expected a valid value")
	}
	if got := fv.Value.(float64); got != -1000000000 {
		t.Errorf("Value = %v, want -1000000000", got)
	}
}

func TestDecodeScalarFieldInvalidSentinelOmitted(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 1, Size: 1, BaseType: BaseUint8}
	desc := FieldDescriptor{Name: "x"}
	_, ok := decodeScalarField(fd, desc, []byte{0xFF}, binary.LittleEndian, 0, false)
	if ok {
		t.Fatal("expected sentinel value to be omitted")
	}
}

func TestDecodeScalarFieldDateTimeEpochShift(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 253, Size: 4, BaseType: BaseUint32}
	desc := FieldDescriptor{Name: "timestamp"}
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, 100000)

	fv, ok := decodeScalarField(fd, desc, raw, binary.LittleEndian, FITUnixEpochDelta, true)
	if !ok {
		t.Fatal("expected a valid value")
	}
	want := int64(100000 + FITUnixEpochDelta)
	if fv.Value.(int64) != want {
		t.Errorf("Value = %v, want %d", fv.Value, want)
	}
}

func TestDecodeScalarFieldScaleOffset(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 1, Size: 2, BaseType: BaseUint16}
	desc := FieldDescriptor{Name: "speed", Scale: 1000, Units: "m/s"}
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, 2500) // 2.5 m/s at scale 1000

	fv, ok := decodeScalarField(fd, desc, raw, binary.LittleEndian, 0, false)
	if !ok {
		t.Fatal("expected a valid value")
	}
	if got := fv.Value.(float64); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("Value = %v, want 2.5", got)
	}
}

func TestDecodeScalarFieldFloat32Sentinel(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 1, Size: 4, BaseType: BaseFloat32}
	desc := FieldDescriptor{Name: "f"}
	raw := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, ok := decodeScalarField(fd, desc, raw, binary.LittleEndian, 0, false)
	if ok {
		t.Fatal("expected float32 all-ones bit pattern to be treated as invalid")
	}
}

func TestDecodeArrayFieldPartialInvalid(t *testing.T) {
	fd := FieldDefinition{FieldNumber: 1, Size: 3, BaseType: BaseUint8}
	desc := FieldDescriptor{Name: "arr"}
	raw := []byte{10, 0xFF, 20}

	fv, ok := decodeArrayField(fd, desc, raw, binary.LittleEndian)
	if !ok {
		t.Fatal("expected array with at least one valid element to survive")
	}
	vals := fv.Value.([]float64)
	if len(vals) != 3 || vals[0] != 10 || !math.IsNaN(vals[1]) || vals[2] != 20 {
		t.Errorf("unexpected array: %v", vals)
	}
}

func TestSanitizeStringStripsControlAndNUL(t *testing.T) {
	raw := []byte("abc\x00junk\x7F")
	got := sanitizeString(raw)
	if got != "abc" {
		t.Errorf("sanitizeString = %q, want %q", got, "abc")
	}
}
