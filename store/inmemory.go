package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lucasjlepore/fitdecode/decode"
)

// recordTable holds the record message's two containers: a timestamp-
// keyed mapping per field, and the raw file-order timestamp sequence the
// post-processor needs before duplicate pruning (spec.md §3, §4.5 step 3).
type recordTable struct {
	fields         map[string]map[int64]any
	fieldBaseTypes map[string]decode.BaseType
	fieldDev       map[string]bool
	tsInFileOrder  []int64
}

// seqTable holds every non-record message's insertion-ordered columns
// (spec.md §4.4.1).
type seqTable struct {
	fields   map[string][]any
	fieldDev map[string]bool
}

// InMemorySink is the columnar in-memory MessageSink (spec.md §4.4.1):
// `messages: name -> fields`, where record fields are timestamp-keyed
// maps and all other message fields are insertion-ordered sequences.
type InMemorySink struct {
	mu        sync.Mutex
	names     []string
	record    *recordTable
	sequences map[string]*seqTable
}

// NewInMemorySink returns an empty sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{
		record:    &recordTable{fields: map[string]map[int64]any{}, fieldBaseTypes: map[string]decode.BaseType{}, fieldDev: map[string]bool{}},
		sequences: map[string]*seqTable{},
	}
}

// Put implements decode.Sink.
func (s *InMemorySink) Put(msg decode.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.IsRecord {
		s.record.tsInFileOrder = append(s.record.tsInFileOrder, msg.Timestamp)
		if _, ok := s.record.fields["timestamp"]; !ok {
			s.record.fields["timestamp"] = map[int64]any{}
		}
		s.record.fields["timestamp"][msg.Timestamp] = msg.Timestamp

		for name, fv := range msg.Fields {
			col, ok := s.record.fields[name]
			if !ok {
				col = map[int64]any{}
				s.record.fields[name] = col
			}
			if _, already := col[msg.Timestamp]; !already {
				// A duplicate record.timestamp keeps the first occurrence's
				// values (spec.md §4.5 step 3).
				if fv.Null {
					col[msg.Timestamp] = nil
				} else {
					col[msg.Timestamp] = fv.Value
				}
			}
			if fv.BaseType != 0 {
				s.record.fieldBaseTypes[name] = fv.BaseType
			}
			if fv.IsDeveloper {
				s.record.fieldDev[name] = true
			}
		}
		return nil
	}

	tbl, ok := s.sequences[msg.Name]
	if !ok {
		tbl = &seqTable{fields: map[string][]any{}, fieldDev: map[string]bool{}}
		s.sequences[msg.Name] = tbl
		s.names = append(s.names, msg.Name)
	}
	for name, fv := range msg.Fields {
		var v any
		if !fv.Null {
			v = fv.Value
		}
		tbl.fields[name] = append(tbl.fields[name], v)
		if fv.IsDeveloper {
			tbl.fieldDev[name] = true
		}
	}
	return nil
}

// CreateTable is a no-op for the in-memory sink (spec.md §9).
func (s *InMemorySink) CreateTable(name string, columns []string) error { return nil }

// AddColumns is a no-op for the in-memory sink (spec.md §9).
func (s *InMemorySink) AddColumns(name string, columns []string) error { return nil }

// InsertBatch appends a batch of already-assembled rows to a non-record
// table, for callers that build rows outside the decode.Sink.Put path
// (e.g. tests seeding fixtures directly).
func (s *InMemorySink) InsertBatch(name string, rows []map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, ok := s.sequences[name]
	if !ok {
		tbl = &seqTable{fields: map[string][]any{}, fieldDev: map[string]bool{}}
		s.sequences[name] = tbl
		s.names = append(s.names, name)
	}
	for _, row := range rows {
		for k, v := range row {
			tbl.fields[k] = append(tbl.fields[k], v)
		}
	}
	return nil
}

// DropAll releases every stored table.
func (s *InMemorySink) DropAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = nil
	s.sequences = map[string]*seqTable{}
	s.record = &recordTable{fields: map[string]map[int64]any{}, fieldBaseTypes: map[string]decode.BaseType{}, fieldDev: map[string]bool{}}
	return nil
}

// QueryColumn implements spec.md §4.4.1's get(message, field): a bare
// scalar if the column collapsed to one value, an ordered sequence
// otherwise, or a timestamp-keyed map for record fields.
func (s *InMemorySink) QueryColumn(message, field string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message == "record" {
		col, ok := s.record.fields[field]
		if !ok {
			return nil, fmt.Errorf("%w: record.%s", ErrUnknownMessage, field)
		}
		return col, nil
	}

	tbl, ok := s.sequences[message]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, message)
	}
	col, ok := tbl.fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMessage, message, field)
	}
	if len(col) == 1 && !tbl.fieldDev[field] {
		return col[0], nil
	}
	return col, nil
}

// RecordColumn returns the live timestamp-keyed map for a record field,
// for the post-processor to mutate in place.
func (s *InMemorySink) RecordColumn(field string) map[int64]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.fields[field]
}

// SetRecordColumn replaces a record field's column wholesale, used by
// interpolation and unit conversion passes.
func (s *InMemorySink) SetRecordColumn(field string, col map[int64]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.fields[field] = col
}

// SetSequenceColumn replaces a non-record message field's insertion-ordered
// column wholesale, used by unit conversion.
func (s *InMemorySink) SetSequenceColumn(message, field string, values []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, ok := s.sequences[message]
	if !ok {
		return
	}
	tbl.fields[field] = values
}

// RecordFieldBaseType returns the declared wire base type for a record
// field, used by the signed-integer repair pass.
func (s *InMemorySink) RecordFieldBaseType(field string) (decode.BaseType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bt, ok := s.record.fieldBaseTypes[field]
	return bt, ok
}

// RecordFieldNames returns every field name ever seen on a record
// message, including "timestamp".
func (s *InMemorySink) RecordFieldNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.record.fields))
	for name := range s.record.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordTimestampsFileOrder returns the pre-dedup timestamp sequence in
// the order records arrived from the parser (spec.md §4.5 step 3, and the
// timestamp_original/timestamp_deduped Open Question decision).
func (s *InMemorySink) RecordTimestampsFileOrder() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.record.tsInFileOrder))
	copy(out, s.record.tsInFileOrder)
	return out
}

// SetRecordTimestampsFileOrder overwrites the file-order bookkeeping
// sequence that RecordTimestampsFileOrder returns.
func (s *InMemorySink) SetRecordTimestampsFileOrder(ts []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.tsInFileOrder = ts
}

// ApplyDeveloperOverride implements decode.DeveloperOverrider (spec.md
// §4.3): for each descriptor that declares a native field on the record
// message, the developer-data column replaces the native column unless
// overwrite is false and the native column already has data.
func (s *InMemorySink) ApplyDeveloperOverride(descs []decode.DeveloperFieldDescriptor, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range descs {
		if !d.HasNative || d.NativeMesgNum != 20 {
			continue
		}
		nativeName := nativeFieldName(d.NativeField)
		if nativeName == "" {
			continue
		}
		devCol, ok := s.record.fields[d.Name]
		if !ok {
			continue
		}
		if !overwrite {
			if existing, ok := s.record.fields[nativeName]; ok && len(existing) > 0 {
				continue
			}
		}
		s.record.fields[nativeName] = devCol
	}
	return nil
}

// nativeFieldName resolves a record field number to its profile name,
// for ApplyDeveloperOverride.
func nativeFieldName(fieldNum uint8) string {
	p := decode.NewProfile()
	return p.Field(20, fieldNum).Name
}
