package post

import (
	"sort"

	"github.com/lucasjlepore/fitdecode/store"
)

// pauseGapThreshold is the minimum length, in seconds, a contiguous paused
// run must span to survive the gap-threshold filter (spec.md §4.6).
const pauseGapThreshold = 60

// PauseTracker answers whether a given second of the activity falls inside
// a timer-paused interval, after short pause runs have been re-labelled
// active.
type PauseTracker struct {
	paused map[int64]bool
}

// Paused reports whether ts falls in a paused interval. Timestamps outside
// the tracked range are reported active.
func (t *PauseTracker) Paused(ts int64) bool {
	if t == nil {
		return false
	}
	return t.paused[ts]
}

// BuildPauseTracker implements spec.md §4.6: from the event message's
// event==timer rows, derive timer start/stop boundaries, walk the record
// timestamp range flipping a paused/active boolean at each boundary, then
// re-label any paused run shorter than pauseGapThreshold seconds as active.
func BuildPauseTracker(sink *store.InMemorySink) *PauseTracker {
	starts, stops := timerBoundaries(sink)

	tsCol := sink.RecordColumn("timestamp")
	if len(tsCol) == 0 {
		return &PauseTracker{paused: map[int64]bool{}}
	}
	minTS, maxTS := rangeOf(tsCol)

	boundary := make(map[int64]int) // +1 at a start, -1 at a stop
	for _, s := range starts {
		boundary[s]++
	}
	for _, s := range stops {
		boundary[s]--
	}

	raw := make(map[int64]bool, maxTS-minTS+1)
	active := true
	for ts := minTS; ts <= maxTS; ts++ {
		if d, ok := boundary[ts]; ok {
			if d > 0 {
				active = true // a start boundary resumes
			} else if d < 0 {
				active = false // a stop boundary pauses
			}
		}
		raw[ts] = !active
	}

	return &PauseTracker{paused: applyGapFilter(raw, minTS, maxTS)}
}

// timerBoundaries extracts the ascending start (event_type=0) and stop
// (event_type=4) timestamp lists from the event message's event==timer rows.
func timerBoundaries(sink *store.InMemorySink) (starts, stops []int64) {
	events := seqAny(sink, "event", "event")
	eventTypes := seqAny(sink, "event", "event_type")
	timestamps := seqAny(sink, "event", "timestamp")

	n := len(timestamps)
	for i := 0; i < n && i < len(events) && i < len(eventTypes); i++ {
		if toEnum(events[i]) != 0 { // 0 == timer
			continue
		}
		ts := toInt64Any(timestamps[i])
		switch toEnum(eventTypes[i]) {
		case 0:
			starts = append(starts, ts)
		case 4:
			stops = append(stops, ts)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	sort.Slice(stops, func(i, j int) bool { return stops[i] < stops[j] })
	return starts, stops
}

// applyGapFilter re-labels any contiguous paused run shorter than
// pauseGapThreshold seconds as active.
func applyGapFilter(raw map[int64]bool, minTS, maxTS int64) map[int64]bool {
	out := make(map[int64]bool, len(raw))
	var runStart int64
	inRun := false

	flush := func(end int64) {
		if !inRun {
			return
		}
		keep := end-runStart+1 >= pauseGapThreshold
		for ts := runStart; ts <= end; ts++ {
			out[ts] = keep
		}
		inRun = false
	}

	for ts := minTS; ts <= maxTS; ts++ {
		if raw[ts] {
			if !inRun {
				inRun = true
				runStart = ts
			}
			continue
		}
		flush(ts - 1)
		out[ts] = false
	}
	flush(maxTS)
	return out
}

func rangeOf(col map[int64]any) (min, max int64) {
	first := true
	for ts := range col {
		if first {
			min, max = ts, ts
			first = false
			continue
		}
		if ts < min {
			min = ts
		}
		if ts > max {
			max = ts
		}
	}
	return min, max
}

func seqAny(sink *store.InMemorySink, message, field string) []any {
	v, err := sink.QueryColumn(message, field)
	if err != nil {
		return nil
	}
	if seq, ok := v.([]any); ok {
		return seq
	}
	return []any{v}
}

func toEnum(v any) int64 {
	return toInt64Any(v)
}

func toInt64Any(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
