// Package post implements the PostProcessor phases that run against a
// fully-decoded store.InMemorySink: signed-integer repair, duplicate-
// timestamp pruning, densification, missing-key interpolation, unit
// conversion, pause-interval tracking, and heart-rate burst reassembly.
package post

import (
	"fmt"

	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

// Options configures the post-processing pipeline (spec.md §4.5, §6).
type Options struct {
	Units            decode.UnitsMode
	Pace             bool
	GarminTimestamps bool
	FixData          []string
	DataEverySecond  bool
	Pacer            decode.Pacer
}

func (o Options) fixSet() map[string]bool {
	set := make(map[string]bool, len(o.FixData))
	for _, f := range o.FixData {
		set[f] = true
	}
	return set
}

// fixDataFields maps a fix_data name to the record column(s) it governs.
// "all" expands to every interpolatable column.
var fixDataFields = map[string][]string{
	"cadence":           {"cadence"},
	"distance":          {"distance"},
	"heart_rate":        {"heart_rate"},
	"lat_lon":           {"position_lat", "position_long"},
	"speed":             {"speed"},
	"power":             {"power"},
	"altitude":          {"altitude"},
	"enhanced_speed":    {"enhanced_speed"},
	"enhanced_altitude": {"enhanced_altitude"},
}

func resolvedFixFields(set map[string]bool) []string {
	if set["all"] {
		all := make([]string, 0, len(fixDataFields))
		for _, cols := range fixDataFields {
			all = append(all, cols...)
		}
		return all
	}
	var out []string
	for name := range set {
		out = append(out, fixDataFields[name]...)
	}
	return out
}

// Run executes the PostProcessor phases in order against sink (spec.md
// §4.5). Run only operates on the in-memory sink. BatchedTableSink does
// not run these phases: its rows are stored as decoded, with only the
// developer-field override and the stop-point pass applied to them.
func Run(sink *store.InMemorySink, opts Options) error {
	phaseLog := withPhase("postprocess")

	// Phase 1, timestamp epoch shift: already applied at decode time
	// (spec.md §4.2 step 3 performs the same shift the moment a date-time
	// field is decoded), so this phase has nothing left to do here.

	repairSignedFields(sink, opts.Pacer)

	original, deduped := pruneDuplicateTimestamps(sink)
	// timestamp_original/timestamp_deduped are sequences, not per-timestamp
	// values, so they're stored positionally (index -> value) rather than
	// keyed by the timestamp they describe, unlike every other record
	// column.
	sink.SetRecordColumn("timestamp_original", toIndexMap(original))
	sink.SetRecordColumn("timestamp_deduped", toIndexMap(deduped))
	sink.SetRecordColumn("timestamp", toAnyMap(deduped))

	pauses := BuildPauseTracker(sink)

	if opts.DataEverySecond {
		densify(sink, deduped)
	}

	fixFields := resolvedFixFields(opts.fixSet())
	for _, field := range fixFields {
		if field == "cadence" {
			zeroFillCadence(sink)
			continue
		}
		interpolateField(sink, field, pauses, opts.Pacer)
	}

	ReassembleHeartRate(sink, opts.Pacer)

	if opts.Units != decode.UnitsModeRaw {
		if err := ConvertUnits(sink, opts); err != nil {
			return fmt.Errorf("convert units: %w", err)
		}
	}

	phaseLog.Info().Msg("post-processing complete")
	return nil
}

func toAnyMap(ts []int64) map[int64]any {
	out := make(map[int64]any, len(ts))
	for _, t := range ts {
		out[t] = t
	}
	return out
}

func toIndexMap(ts []int64) map[int64]any {
	out := make(map[int64]any, len(ts))
	for i, t := range ts {
		out[int64(i)] = t
	}
	return out
}
