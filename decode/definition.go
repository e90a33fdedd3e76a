package decode

import "encoding/binary"

// Endianness selects the byte order a definition message declares for its
// fields (spec.md §3).
type Endianness uint8

const (
	LittleEndian Endianness = 0
	BigEndian    Endianness = 1
)

// ByteOrder returns the standard library byte order matching e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// FieldDefinition is one field slot inside a MessageDefinition (spec.md
// §3). Size may be a multiple of BaseType.Width() for array-valued fields.
type FieldDefinition struct {
	FieldNumber uint8
	Size        uint8
	BaseType    BaseType
}

// DeveloperFieldDefinition is one developer-data field slot inside a
// MessageDefinition (spec.md §3).
type DeveloperFieldDefinition struct {
	FieldNumber        uint8
	Size               uint8
	DeveloperDataIndex uint8
}

// MessageDefinition is the field layout installed for one local message
// type by a definition record (spec.md §3, §4.2).
type MessageDefinition struct {
	GlobalMesgNum     uint16
	Endianness        Endianness
	Fields            []FieldDefinition
	DevFields         []DeveloperFieldDefinition
	TotalPayloadBytes int
}

// payloadBytes computes TotalPayloadBytes from the declared field sizes,
// used both at install time and to fast-skip unknown messages.
func (d *MessageDefinition) payloadBytes() int {
	total := 0
	for _, f := range d.Fields {
		total += int(f.Size)
	}
	for _, f := range d.DevFields {
		total += int(f.Size)
	}
	return total
}

// DefinitionTable holds the 16 local-message-type slots live at any point
// during decode (spec.md §3: "exactly 16 slots are live at any time").
// Installing a definition into an already-defined slot overwrites it; the
// state machine per slot is Empty -> Defined(def) (spec.md §4.2).
type DefinitionTable struct {
	slots [16]*MessageDefinition

	// history records every (localType, definition) pair ever installed,
	// not just the 16 currently-live slots; Decode exposes it as
	// Result.DefinitionTable (SPEC_FULL.md supplemental features).
	history []DefinitionHistoryEntry
}

// DefinitionHistoryEntry is one entry of DefinitionTable's installation
// log.
type DefinitionHistoryEntry struct {
	LocalType  uint8
	Definition MessageDefinition
}

// NewDefinitionTable returns an empty table; all 16 slots are Empty.
func NewDefinitionTable() *DefinitionTable {
	return &DefinitionTable{}
}

// Install installs def into localType's slot, overwriting any prior
// definition, and appends the install to the history log.
func (t *DefinitionTable) Install(localType uint8, def MessageDefinition) {
	def.TotalPayloadBytes = def.payloadBytes()
	d := def
	t.slots[localType&0x0F] = &d
	t.history = append(t.history, DefinitionHistoryEntry{LocalType: localType, Definition: def})
}

// Lookup returns the active definition for localType, or false if the
// slot is Empty (ErrUndefinedLocalType at the call site).
func (t *DefinitionTable) Lookup(localType uint8) (*MessageDefinition, bool) {
	d := t.slots[localType&0x0F]
	if d == nil {
		return nil, false
	}
	return d, true
}

// History returns every definition ever installed, in installation order.
func (t *DefinitionTable) History() []DefinitionHistoryEntry {
	return t.history
}
