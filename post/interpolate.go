package post

import (
	"sort"

	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

// interpolateField implements spec.md §4.5 step 5 for one opted-in record
// field: values before the first known key duplicate the leading value,
// values after the last known key duplicate the trailing value, values
// between two known keys are linearly interpolated (rounded to nearest for
// integer-typed fields), and values inside a paused interval are nulled.
func interpolateField(sink *store.InMemorySink, field string, pauses *PauseTracker, pacer decode.Pacer) {
	tsCol := sink.RecordColumn("timestamp")
	if len(tsCol) == 0 {
		return
	}
	timestamps := make([]int64, 0, len(tsCol))
	for ts := range tsCol {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	col := sink.RecordColumn(field)
	known := make([]int64, 0, len(col))
	isInt := false
	seenAny := false
	for ts, v := range col {
		if v == nil {
			continue
		}
		known = append(known, ts)
		if !seenAny {
			isInt = isIntValue(v)
			seenAny = true
		}
	}
	if len(known) == 0 {
		return
	}
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })

	out := make(map[int64]any, len(timestamps))
	iter := 0
	lo := 0
	for _, t := range timestamps {
		iter++
		if pacer != nil && iter%decode.PacerInterval == 0 {
			pacer.Tick()
		}

		if v, ok := col[t]; ok && v != nil {
			out[t] = v
			continue
		}
		if pauses.Paused(t) {
			out[t] = nil
			continue
		}

		for lo < len(known)-1 && known[lo+1] <= t {
			lo++
		}
		a := known[lo]
		switch {
		case t <= known[0]:
			out[t] = col[known[0]]
		case t >= known[len(known)-1]:
			out[t] = col[known[len(known)-1]]
		case a == t:
			out[t] = col[a]
		default:
			b := known[lo+1]
			va := numeric(col[a])
			vb := numeric(col[b])
			v := va + (vb-va)*float64(t-a)/float64(b-a)
			if isInt {
				out[t] = int64(roundHalfAwayFromZero(v))
			} else {
				out[t] = v
			}
		}
	}
	sink.SetRecordColumn(field, out)
}

// zeroFillCadence implements the cadence special-case in spec.md §4.5 step
// 5: missing values become 0, never interpolated.
func zeroFillCadence(sink *store.InMemorySink) {
	tsCol := sink.RecordColumn("timestamp")
	col := sink.RecordColumn("cadence")
	out := make(map[int64]any, len(tsCol))
	for ts := range tsCol {
		if v, ok := col[ts]; ok && v != nil {
			out[ts] = v
			continue
		}
		out[ts] = int64(0)
	}
	sink.SetRecordColumn("cadence", out)
}

func isIntValue(v any) bool {
	switch v.(type) {
	case int64, int, uint64:
		return true
	default:
		return false
	}
}

func numeric(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return float64(n)
	default:
		return 0
	}
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
