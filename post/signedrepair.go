package post

import (
	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/lucasjlepore/fitdecode/store"
)

// signedWidths maps a signed base type to its bit width, for the two's
// complement reinterpretation below. BaseSint64 is intentionally absent:
// int64(1)<<64 overflows to 0, which would make the repair guard below a
// no-op anyway, and decode/parser.go's signExtend already sign-extends
// sint64 at decode time, so there's nothing left for this pass to repair.
var signedWidths = map[decode.BaseType]uint{
	decode.BaseSint8:  8,
	decode.BaseSint16: 16,
	decode.BaseSint32: 32,
}

// repairSignedFields implements spec.md §4.5 step 2: any record field whose
// declared base type is sint8/sint16/sint32 but whose stored value was
// unpacked as unsigned (raw >= 2^(width-1)) is re-interpreted as two's
// complement in that width. Values already in the correct signed range are
// left untouched, so repeated calls are idempotent.
func repairSignedFields(sink *store.InMemorySink, pacer decode.Pacer) {
	phaseLog := withPhase("signedrepair")
	iter := 0

	for _, field := range sink.RecordFieldNames() {
		width, ok := signedWidths[fieldBaseType(sink, field)]
		if !ok {
			continue
		}

		col := sink.RecordColumn(field)
		half := int64(1) << (width - 1)
		full := int64(1) << width

		for ts, v := range col {
			iter++
			if pacer != nil && iter%decode.PacerInterval == 0 {
				pacer.Tick()
			}

			raw, ok := asInt64(v)
			if !ok {
				continue
			}
			if raw >= half && raw < full {
				col[ts] = raw - full
			}
		}
		phaseLog.Debug().Str("field", field).Msg("repaired")
	}
}

func fieldBaseType(sink *store.InMemorySink, field string) decode.BaseType {
	bt, _ := sink.RecordFieldBaseType(field)
	return bt
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
