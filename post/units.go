package post

import (
	"math"

	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

// unitConvertedMessages are the messages unit conversion applies to
// (spec.md §6).
var unitConvertedMessages = map[string]uint16{
	"session":     18,
	"lap":         19,
	"record":      20,
	"segment_lap": 142,
}

// ConvertUnits implements spec.md §6's exact conversion factors, applied in
// place to every field in session/lap/record/segment_lap whose profile
// units are temperature, distance, speed, or semicircle angle.
func ConvertUnits(sink *store.InMemorySink, opts Options) error {
	if opts.Units == decode.UnitsModeRaw {
		return nil
	}
	profile := decode.NewProfile()

	for name, global := range unitConvertedMessages {
		desc, ok := profile.Message(global)
		if !ok {
			continue
		}
		unitsByField := map[string]string{}
		for _, fd := range desc.Fields {
			switch fd.Units {
			case "c", "semicircles", "m", "m/s":
				unitsByField[fd.Name] = fd.Units
			}
		}

		if name == "record" {
			convertRecordMessage(sink, unitsByField, opts)
			continue
		}
		convertSequenceMessage(sink, name, unitsByField, opts)
	}
	return nil
}

func convertRecordMessage(sink *store.InMemorySink, unitsByField map[string]string, opts Options) {
	for field, unit := range unitsByField {
		col := sink.RecordColumn(field)
		if len(col) == 0 {
			continue
		}
		for ts, v := range col {
			if v == nil {
				continue
			}
			col[ts] = convertValue(field, unit, numeric(v), opts)
		}
	}
}

func convertSequenceMessage(sink *store.InMemorySink, message string, unitsByField map[string]string, opts Options) {
	for field, unit := range unitsByField {
		v, err := sink.QueryColumn(message, field)
		if err != nil {
			continue
		}
		switch seq := v.(type) {
		case []any:
			out := make([]any, len(seq))
			for i, e := range seq {
				if e == nil {
					continue
				}
				out[i] = convertValue(field, unit, numeric(e), opts)
			}
			sink.SetSequenceColumn(message, field, out)
		default:
			if v == nil {
				continue
			}
			sink.SetSequenceColumn(message, field, []any{convertValue(field, unit, numeric(v), opts)})
		}
	}
}

// elevationFields are the profile's "m"-unit fields that spec.md §6
// converts to feet rather than miles; everything else tagged "m"
// (distance, total_distance, ...) converts to miles.
var elevationFields = map[string]bool{
	"altitude":          true,
	"enhanced_altitude": true,
	"min_altitude":      true,
	"max_altitude":      true,
	"avg_altitude":      true,
	"total_ascent":      true,
	"total_descent":     true,
	"height":            true,
	"depth":             true,
	"avg_depth":         true,
	"max_depth":         true,
}

// convertValue dispatches on the profile unit string. Semicircle fields
// always convert; Celsius fields convert only in statute mode;
// distance/speed/altitude fields respect the metric/statute/pace options,
// with field name distinguishing
// feet-converted elevation fields from miles-converted distance fields
// (both share the profile's "m" unit tag).
func convertValue(field, unit string, v float64, opts Options) float64 {
	switch unit {
	case "c":
		if opts.Units != decode.UnitsModeStatute {
			return v
		}
		return round(v*9/5+32, 2)
	case "semicircles":
		return round(v*180/math.Pow(2, 31), 5)
	case "m":
		if opts.Units != decode.UnitsModeStatute {
			return v
		}
		if elevationFields[field] {
			return round(v*3.2808399, 1)
		}
		return round(v*0.000621371192, 5)
	case "m/s":
		return convertSpeed(v, opts)
	default:
		return v
	}
}

func convertSpeed(ms float64, opts Options) float64 {
	if ms == 0 {
		return 0
	}
	if opts.Units == decode.UnitsModeStatute {
		if opts.Pace {
			return round(60/2.23693629/ms, 3)
		}
		return round(ms*2.23693629, 3)
	}
	if opts.Pace {
		return round(60/3.6/ms, 3)
	}
	return round(ms*3.6, 3)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
