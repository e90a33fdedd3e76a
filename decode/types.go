package decode

// FieldValue is one decoded field inside a Message: a resolved name, the
// decoded scalar or array value, its units (when the profile declares
// one), and whether it came from a developer-data descriptor rather than
// the built-in profile.
type FieldValue struct {
	Name        string
	Value       any // scalar (float64 | int64 | uint64 | string | []byte) or []float64/[]int64/[]uint64
	Units       string
	IsDeveloper bool
	Null        bool // explicit null (always-null session fields on invalid sentinel)

	// BaseType is the field's declared wire base type, carried through so
	// the post-processor can repair signed values by declared width
	// rather than by inspecting the decoded Go type (spec.md §4.5 step 2).
	BaseType BaseType
}

// Message is one fully decoded data record, ready for a Sink.
type Message struct {
	GlobalMesgNum uint16
	Name          string
	LocalType     uint8
	Fields        map[string]FieldValue

	// IsRecord marks global message number 20 (record), whose rows are
	// keyed by a resolved timestamp rather than appended positionally.
	IsRecord  bool
	Timestamp int64 // resolved Unix-epoch seconds, only meaningful when IsRecord
}

// Sink is the minimal hand-off contract RecordParser needs: hand a
// decoded message to whatever is collecting them. The store package's
// InMemorySink and BatchedTableSink both implement it, in addition to
// their own wider capability sets.
type Sink interface {
	Put(msg Message) error
}
