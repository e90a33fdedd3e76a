package store

import (
	"testing"

	"github.com/lucasjlepore/fitdecode/decode"
)

func TestComputeStopPointsEnforcesMonotonicDistance(t *testing.T) {
	sink := openTestSink(t)
	// distance regresses at ts=2, which must be clamped forward.
	for i, dist := range []float64{0, 10, 5, 20} {
		if err := sink.Put(recordMessage(int64(i), 1, 1, dist)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := sink.ComputeStopPoints(func(row map[string]any) bool { return false }, nil); err != nil {
		t.Fatalf("ComputeStopPoints: %v", err)
	}

	v, err := sink.QueryColumn("record", "distance")
	if err != nil {
		t.Fatalf("QueryColumn: %v", err)
	}
	col := v.(map[int64]any)
	if col[2].(float64) < col[1].(float64) {
		t.Errorf("distance[2]=%v should never be less than distance[1]=%v", col[2], col[1])
	}
}

func TestComputeStopPointsFlagsStoppedRows(t *testing.T) {
	sink := openTestSink(t)
	for i, dist := range []float64{0, 10, 10, 20} {
		if err := sink.Put(recordMessage(int64(i), 1, 1, dist)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	err := sink.ComputeStopPoints(func(row map[string]any) bool {
		return row["timestamp"].(int64) == 2
	}, nil)
	if err != nil {
		t.Fatalf("ComputeStopPoints: %v", err)
	}

	v, err := sink.QueryColumn("record", "stopped")
	if err != nil {
		t.Fatalf("QueryColumn: %v", err)
	}
	col := v.(map[int64]any)
	stoppedVal := col[2]
	switch s := stoppedVal.(type) {
	case int64:
		if s != 1 {
			t.Errorf("stopped[2] = %v, want 1", s)
		}
	default:
		t.Errorf("stopped[2] has unexpected type %#v", stoppedVal)
	}
}

func TestComputeStopPointsNoopOnEmptySink(t *testing.T) {
	sink := openTestSink(t)
	if err := sink.ComputeStopPoints(func(row map[string]any) bool { return false }, nil); err != nil {
		t.Fatalf("ComputeStopPoints on empty sink: %v", err)
	}
	_ = decode.DefaultOptions()
}
