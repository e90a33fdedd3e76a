package post

import (
	"math"

	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

// ReassembleHeartRate implements spec.md §4.7: hr messages carry a coarse
// per-message anchor (timestamp, event_timestamp) plus eleven 12-bit packed
// sub-second deltas (event_timestamp_12) that refine the anchor into a
// fractional-second timeline, which filtered_bpm samples are projected onto.
// The projected (second, bpm) pairs are averaged and written into
// record.heart_rate.
func ReassembleHeartRate(sink *store.InMemorySink, pacer decode.Pacer) {
	timestamps := seqAny(sink, "hr", "timestamp")
	eventTS := seqAny(sink, "hr", "event_timestamp")
	deltas12 := seqAny(sink, "hr", "event_timestamp_12")
	bpmArrays := seqAny(sink, "hr", "filtered_bpm")
	if len(timestamps) == 0 {
		return
	}

	tsCol := sink.RecordColumn("timestamp")
	if len(tsCol) == 0 {
		return
	}
	minTS, maxTS := rangeOf(tsCol)

	var bpmAll []float64
	for _, row := range bpmArrays {
		bpmAll = append(bpmAll, floatSlice(row)...)
	}

	sums := map[int64]float64{}
	counts := map[int64]int{}
	bpmIdx := 0
	iter := 0

	for i := 0; i < len(timestamps); i++ {
		iter++
		if pacer != nil && iter%decode.PacerInterval == 0 {
			pacer.Tick()
		}

		anchorTS := toInt64Any(timestamps[i])
		eventSeconds := numeric(valueAt(eventTS, i))
		startTS := float64(anchorTS) - eventSeconds

		lastTicks1024 := uint32(math.Round(eventSeconds * 1024))
		ts := []float64{float64(lastTicks1024) / 1024}

		for _, d12 := range decodeEventTimestamp12(floatSlice(valueAt(deltas12, i))) {
			lowCur := lastTicks1024 & 0xFFF
			newLow := d12
			if newLow < lowCur {
				newLow += 0x1000
			}
			lastTicks1024 = (lastTicks1024 &^ 0xFFF) | newLow
			ts = append(ts, float64(lastTicks1024)/1024)
		}

		for _, offset := range ts {
			if bpmIdx >= len(bpmAll) {
				break
			}
			bpm := bpmAll[bpmIdx]
			bpmIdx++
			if math.IsNaN(bpm) {
				continue
			}
			second := int64(math.Round(startTS + offset))
			if second < minTS || second > maxTS {
				continue
			}
			sums[second] += bpm
			counts[second]++
		}
	}

	out := sink.RecordColumn("heart_rate")
	if out == nil {
		out = map[int64]any{}
	}
	for second, count := range counts {
		out[second] = int64(math.Round(sums[second] / float64(count)))
	}
	sink.SetRecordColumn("heart_rate", out)
}

// decodeEventTimestamp12 unpacks up to eleven 12-bit deltas from the raw
// event_timestamp_12 byte sequence, alternating the two bit layouts per
// spec.md §4.7 step 3, and never reading past the field's declared size.
func decodeEventTimestamp12(raw []float64) []uint32 {
	bytes := make([]byte, 0, len(raw))
	for _, v := range raw {
		if math.IsNaN(v) {
			bytes = append(bytes, 0)
			continue
		}
		bytes = append(bytes, byte(int64(v)))
	}

	var out []uint32
	for i := 0; i+1 < len(bytes) && len(out) < 11; i += 3 {
		b0, b1 := bytes[i], bytes[i+1]
		out = append(out, uint32(b0)|(uint32(b1&0x0F)<<8))
		if i+2 >= len(bytes) || len(out) >= 11 {
			break
		}
		b2 := bytes[i+2]
		out = append(out, (uint32(b2)<<4)|(uint32(b1&0xF0)>>4))
	}
	if len(out) > 11 {
		out = out[:11]
	}
	return out
}

func floatSlice(v any) []float64 {
	switch s := v.(type) {
	case []float64:
		return s
	case []any:
		out := make([]float64, 0, len(s))
		for _, e := range s {
			out = append(out, numeric(e))
		}
		return out
	case int64, uint64, int, float64:
		// A single-sample field decodes as a bare scalar, not a
		// one-element array (decodeScalarField, not decodeArrayField).
		return []float64{numeric(s)}
	default:
		return nil
	}
}

func valueAt(seq []any, i int) any {
	if i < 0 || i >= len(seq) {
		return nil
	}
	return seq[i]
}
