package post

import (
	"sort"

	"github.com/lucasjlepore/fitdecode/store"
)

// pruneDuplicateTimestamps implements spec.md §4.5 step 3 and the
// timestamp_original/timestamp_deduped Open Question decision
// (SPEC_FULL.md): original is the raw file-order sequence as decoded
// (including duplicates, the plain-English reading of "timestamp_original");
// deduped is unique(original) preserving first occurrence, the sequence
// spec.md's source actually stores under that name.
func pruneDuplicateTimestamps(sink *store.InMemorySink) (original, deduped []int64) {
	original = sink.RecordTimestampsFileOrder()

	seen := make(map[int64]bool, len(original))
	deduped = make([]int64, 0, len(original))
	for _, ts := range original {
		if seen[ts] {
			continue
		}
		seen[ts] = true
		deduped = append(deduped, ts)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i] < deduped[j] })
	return original, deduped
}

// densify replaces record.timestamp with a dense one-per-second sequence
// from min to max (spec.md §4.5 step 4, data_every_second).
func densify(sink *store.InMemorySink, deduped []int64) []int64 {
	if len(deduped) == 0 {
		return deduped
	}
	min, max := deduped[0], deduped[len(deduped)-1]
	dense := make([]int64, 0, max-min+1)
	for ts := min; ts <= max; ts++ {
		dense = append(dense, ts)
	}
	sink.SetRecordColumn("timestamp", toAnyMap(dense))
	return dense
}
