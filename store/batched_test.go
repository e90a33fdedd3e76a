package store

import (
	"testing"

	"github.com/lucasjlepore/fitdecode/decode"
)

func openTestSink(t *testing.T) *BatchedTableSink {
	t.Helper()
	sink, err := OpenBatchedTableSink(decode.BatchSinkOptions{TableName: "t", DataSourceName: ":memory:"})
	if err != nil {
		t.Fatalf("OpenBatchedTableSink: %v", err)
	}
	t.Cleanup(func() { sink.DropAll() })
	return sink
}

func recordMessage(ts int64, lat, lon, dist float64) decode.Message {
	return decode.Message{
		GlobalMesgNum: 20,
		Name:          "record",
		IsRecord:      true,
		Timestamp:     ts,
		Fields: map[string]decode.FieldValue{
			"timestamp":     {Name: "timestamp", Value: ts},
			"position_lat":  {Name: "position_lat", Value: lat},
			"position_long": {Name: "position_long", Value: lon},
			"distance":      {Name: "distance", Value: dist},
		},
	}
}

func TestBatchedTableSinkFlushesOnThreshold(t *testing.T) {
	sink := openTestSink(t)
	for i := 0; i < BufferThreshold+5; i++ {
		if err := sink.Put(recordMessage(int64(i), 1, 1, float64(i))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	v, err := sink.QueryColumn("record", "distance")
	if err != nil {
		t.Fatalf("QueryColumn: %v", err)
	}
	col, ok := v.(map[int64]any)
	if !ok || len(col) != BufferThreshold+5 {
		t.Fatalf("expected %d rows, got %#v", BufferThreshold+5, v)
	}
}

func TestBatchedTableSinkDropsRecordsMissingMandatoryFields(t *testing.T) {
	sink := openTestSink(t)
	if err := sink.Put(decode.Message{
		Name: "record", IsRecord: true, Timestamp: 1,
		Fields: map[string]decode.FieldValue{"heart_rate": {Name: "heart_rate", Value: int64(140)}},
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	v, err := sink.QueryColumn("record", "heart_rate")
	if err == nil {
		t.Fatalf("expected an error querying a table that was never created, got %#v", v)
	}
}

func TestBatchedTableSinkEvolvesColumns(t *testing.T) {
	sink := openTestSink(t)
	if err := sink.Put(recordMessage(1, 1, 1, 10)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	msg := recordMessage(2, 1, 1, 20)
	msg.Fields["cadence"] = decode.FieldValue{Name: "cadence", Value: int64(80)}
	if err := sink.Put(msg); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	v, err := sink.QueryColumn("record", "cadence")
	if err != nil {
		t.Fatalf("QueryColumn: %v", err)
	}
	col, ok := v.(map[int64]any)
	if !ok {
		t.Fatalf("expected a timestamp-keyed column, got %#v", v)
	}
	if col[1] != nil {
		t.Errorf("cadence[1] = %v, want nil (row predates the column)", col[1])
	}
	if col[2] == nil {
		t.Errorf("cadence[2] = nil, want 80")
	}
}

func TestApplyDeveloperOverrideOnBatchedSink(t *testing.T) {
	sink := openTestSink(t)
	msg := recordMessage(1, 1, 1, 10)
	msg.Fields["my_hr"] = decode.FieldValue{Name: "my_hr", Value: int64(150), IsDeveloper: true}
	if err := sink.Put(msg); err != nil {
		t.Fatalf("Put: %v", err)
	}

	descs := []decode.DeveloperFieldDescriptor{
		{Name: "my_hr", HasNative: true, NativeMesgNum: 20, NativeField: 3},
	}
	if err := sink.ApplyDeveloperOverride(descs, true); err != nil {
		t.Fatalf("ApplyDeveloperOverride: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	v, err := sink.QueryColumn("record", "heart_rate")
	if err != nil {
		t.Fatalf("QueryColumn: %v", err)
	}
	col, ok := v.(map[int64]any)
	if !ok || col[1] != int64(150) {
		t.Errorf("heart_rate[1] = %#v, want 150", v)
	}
}
