package decode

import "time"

// PacerInterval is the number of loop iterations between Pacer.Tick calls
// in the record parser and, by the same constant, in the post-processor's
// long loops (spec.md §5, §9).
const PacerInterval = 4096

// Pacer is the long-running-loop hook an embedding host can supply to
// extend a shared work-lease while a decode or post-process pass is in
// flight. Tick must not block: it either returns immediately or proposes
// a new deadline. A nil Pacer is legal; decode proceeds unpaced.
type Pacer interface {
	Tick() (extend time.Duration, ok bool)
}

// pace calls p.Tick every PacerInterval iterations if p is non-nil, and is
// a no-op otherwise. The record parser's loop uses it; the post and store
// loops apply the same PacerInterval check inline.
func pace(p Pacer, iter int) {
	if p == nil {
		return
	}
	if iter%PacerInterval != 0 {
		return
	}
	p.Tick()
}
