package post

import (
	"testing"

	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

func TestRepairSignedFieldsReinterpretsUnsignedRaw(t *testing.T) {
	sink := store.NewInMemorySink()
	if err := sink.Put(decode.Message{
		Name: "record", IsRecord: true, Timestamp: 1,
		Fields: map[string]decode.FieldValue{
			"altitude_delta": {Name: "altitude_delta", Value: int64(65531), BaseType: decode.BaseSint16}, // two's complement of -5
		},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	repairSignedFields(sink, nil)

	got := sink.RecordColumn("altitude_delta")[1]
	if got != int64(-5) {
		t.Errorf("altitude_delta = %v, want -5", got)
	}
}

func TestRepairSignedFieldsReinterpretsSint8(t *testing.T) {
	sink := store.NewInMemorySink()
	if err := sink.Put(decode.Message{
		Name: "record", IsRecord: true, Timestamp: 1,
		Fields: map[string]decode.FieldValue{
			"temperature": {Name: "temperature", Value: int64(226), BaseType: decode.BaseSint8}, // two's complement of -30
		},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	repairSignedFields(sink, nil)

	got := sink.RecordColumn("temperature")[1]
	if got != int64(-30) {
		t.Errorf("temperature = %v, want -30", got)
	}
}

func TestRepairSignedFieldsIdempotent(t *testing.T) {
	sink := store.NewInMemorySink()
	if err := sink.Put(decode.Message{
		Name: "record", IsRecord: true, Timestamp: 1,
		Fields: map[string]decode.FieldValue{
			"altitude_delta": {Name: "altitude_delta", Value: int64(-5), BaseType: decode.BaseSint16},
		},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	repairSignedFields(sink, nil)
	repairSignedFields(sink, nil)

	got := sink.RecordColumn("altitude_delta")[1]
	if got != int64(-5) {
		t.Errorf("altitude_delta = %v, want -5 after repeated repair", got)
	}
}
