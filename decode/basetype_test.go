package decode

import "testing"

func TestBaseTypeSpecWidths(t *testing.T) {
	cases := []struct {
		bt       BaseType
		width    int
		signed   bool
		floating bool
	}{
		{BaseEnum, 1, false, false},
		{BaseSint8, 1, true, false},
		{BaseUint8, 1, false, false},
		{BaseSint16, 2, true, false},
		{BaseUint16, 2, false, false},
		{BaseSint32, 4, true, false},
		{BaseUint32, 4, false, false},
		{BaseFloat32, 4, true, true},
		{BaseFloat64, 8, true, true},
		{BaseSint64, 8, true, false},
		{BaseUint64, 8, false, false},
	}
	for _, c := range cases {
		spec, ok := c.bt.Spec()
		if !ok {
			t.Fatalf("%v: expected known base type", c.bt)
		}
		if spec.width != c.width || spec.signed != c.signed || spec.floating != c.floating {
			t.Errorf("%v: got width=%d signed=%v floating=%v, want width=%d signed=%v floating=%v",
				c.bt, spec.width, spec.signed, spec.floating, c.width, c.signed, c.floating)
		}
		if c.bt.Width() != c.width {
			t.Errorf("%v: Width() = %d, want %d", c.bt, c.bt.Width(), c.width)
		}
	}
}

func TestInvalidSentinels(t *testing.T) {
	cases := []struct {
		bt   BaseType
		want uint64
	}{
		{BaseUint8, 0xFF},
		{BaseSint8, 0x7F},
		{BaseUint8z, 0x00},
		{BaseSint16, 0x7FFF},
		{BaseUint16, 0xFFFF},
		{BaseSint32, 0x7FFFFFFF},
		{BaseUint32, 0xFFFFFFFF},
		{BaseSint64, 0x7FFFFFFFFFFFFFFF},
		{BaseUint64, 0xFFFFFFFFFFFFFFFF},
	}
	for _, c := range cases {
		got, ok := c.bt.invalidUint()
		if !ok {
			t.Fatalf("%v: expected a sentinel", c.bt)
		}
		if got != c.want {
			t.Errorf("%v: sentinel = 0x%X, want 0x%X", c.bt, got, c.want)
		}
	}
}

func TestZVariantsInvalidAtZero(t *testing.T) {
	for _, bt := range []BaseType{BaseUint8z, BaseUint16z, BaseUint32z, BaseUint64z} {
		if !bt.zIsInvalid() {
			t.Errorf("%v: expected zIsInvalid", bt)
		}
	}
	for _, bt := range []BaseType{BaseUint8, BaseSint16, BaseFloat32} {
		if bt.zIsInvalid() {
			t.Errorf("%v: did not expect zIsInvalid", bt)
		}
	}
}

func TestUnknownBaseTypeString(t *testing.T) {
	bt := BaseType(0x55)
	if _, ok := bt.Spec(); ok {
		t.Fatalf("0x55: expected an uncatalogued base type")
	}
	if got := bt.String(); got != "unknown(0x55)" {
		t.Errorf("String() = %q, want unknown(0x55)", got)
	}
}
