package decode

import (
	"encoding/binary"

	"github.com/tormoder/fit/dyncrc16"
)

// CRCCheck reports the outcome of a CRC-16 comparison. CRC validity is
// never enforced by this decoder (spec.md §4.1) — it is computed and
// logged for diagnostics only, since many emitters leave the header CRC
// zero.
type CRCCheck struct {
	Stored   uint16
	Computed uint16
	Valid    bool
}

// checkHeaderCRC computes the dynamic CRC-16 over the first 12 header
// bytes and compares it against the stored 14-byte header CRC, when
// present.
func checkHeaderCRC(buf []byte, h Header) CRCCheck {
	if !h.CRCPresent {
		return CRCCheck{}
	}
	computed := dyncrc16.Checksum(buf[:12])
	return CRCCheck{
		Stored:   h.CRC,
		Computed: computed,
		Valid:    computed == h.CRC || h.CRC == 0,
	}
}

// VerifyFileCRC computes the dynamic CRC-16 over the header plus the full
// record body and compares it against the 2-byte trailer that follows the
// body. It requires the whole file in memory, unlike the streaming
// decoder loop, so callers that read the file into a buffer (rather than
// decoding from a live stream) can call it separately after Decode.
func VerifyFileCRC(buf []byte, h Header) CRCCheck {
	return checkFileCRC(buf, h.BodyEnd())
}

func checkFileCRC(buf []byte, bodyEnd int64) CRCCheck {
	if int64(len(buf)) < bodyEnd+2 {
		return CRCCheck{}
	}
	stored := binary.LittleEndian.Uint16(buf[bodyEnd : bodyEnd+2])
	computed := dyncrc16.Checksum(buf[:bodyEnd])
	return CRCCheck{
		Stored:   stored,
		Computed: computed,
		Valid:    computed == stored || stored == 0,
	}
}
