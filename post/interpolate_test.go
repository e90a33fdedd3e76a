package post

import (
	"testing"

	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

func TestInterpolateFieldLinear(t *testing.T) {
	sink := store.NewInMemorySink()
	for _, ts := range []int64{0, 1, 2, 3, 4} {
		fields := map[string]decode.FieldValue{}
		if ts == 0 || ts == 4 {
			fields["distance"] = decode.FieldValue{Name: "distance", Value: float64(ts) * 10}
		}
		if err := sink.Put(decode.Message{Name: "record", IsRecord: true, Timestamp: ts, Fields: fields}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	interpolateField(sink, "distance", &PauseTracker{}, nil)

	col := sink.RecordColumn("distance")
	if col[2] != 20.0 {
		t.Errorf("distance[2] = %v, want 20.0", col[2])
	}
}

func TestInterpolateFieldBoundaryDuplication(t *testing.T) {
	sink := store.NewInMemorySink()
	for _, ts := range []int64{0, 1, 2} {
		fields := map[string]decode.FieldValue{}
		if ts == 1 {
			fields["power"] = decode.FieldValue{Name: "power", Value: int64(200)}
		}
		if err := sink.Put(decode.Message{Name: "record", IsRecord: true, Timestamp: ts, Fields: fields}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	interpolateField(sink, "power", &PauseTracker{}, nil)

	col := sink.RecordColumn("power")
	if col[0] != int64(200) || col[2] != int64(200) {
		t.Errorf("boundary values = %v, %v, want 200, 200", col[0], col[2])
	}
}

func TestInterpolateFieldNullsPausedInterval(t *testing.T) {
	sink := store.NewInMemorySink()
	for _, ts := range []int64{0, 1, 2} {
		fields := map[string]decode.FieldValue{}
		if ts != 1 {
			fields["speed"] = decode.FieldValue{Name: "speed", Value: float64(ts)}
		}
		if err := sink.Put(decode.Message{Name: "record", IsRecord: true, Timestamp: ts, Fields: fields}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	pauses := &PauseTracker{paused: map[int64]bool{1: true}}
	interpolateField(sink, "speed", pauses, nil)

	col := sink.RecordColumn("speed")
	if col[1] != nil {
		t.Errorf("speed[1] = %v, want nil (paused)", col[1])
	}
}

func TestZeroFillCadence(t *testing.T) {
	sink := store.NewInMemorySink()
	for _, ts := range []int64{0, 1} {
		fields := map[string]decode.FieldValue{}
		if ts == 0 {
			fields["cadence"] = decode.FieldValue{Name: "cadence", Value: int64(80)}
		}
		if err := sink.Put(decode.Message{Name: "record", IsRecord: true, Timestamp: ts, Fields: fields}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	zeroFillCadence(sink)

	col := sink.RecordColumn("cadence")
	if col[1] != int64(0) {
		t.Errorf("cadence[1] = %v, want 0", col[1])
	}
}
