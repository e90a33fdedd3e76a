package decode

import (
	"encoding/binary"
	"fmt"
)

// Header is the decoded FIT file header (spec.md §4.1).
type Header struct {
	HeaderSize     uint8
	ProtocolVer    uint8
	ProfileVer     uint16
	DataSize       uint32
	DataType       [4]byte
	CRC            uint16 // only meaningful when HeaderSize == 14
	CRCPresent     bool
}

// BodyEnd returns the absolute cursor position at which the record body
// must end: header_size + data_size.
func (h Header) BodyEnd() int64 {
	return int64(h.HeaderSize) + int64(h.DataSize)
}

// DecodeHeader validates and parses the first 12 or 14 bytes of a FIT
// stream (spec.md §4.1). buf must contain at least the declared
// header_size bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < 1 {
		return Header{}, fmt.Errorf("%w: empty buffer", ErrTruncated)
	}

	size := buf[0]
	if size != 12 && size != 14 {
		return Header{}, fmt.Errorf("%w: header_size=%d", ErrBadHeader, size)
	}
	if len(buf) < int(size) {
		return Header{}, fmt.Errorf("%w: need %d header bytes, have %d", ErrTruncated, size, len(buf))
	}

	h := Header{HeaderSize: size}
	h.ProtocolVer = buf[1]
	h.ProfileVer = binary.LittleEndian.Uint16(buf[2:4])
	h.DataSize = binary.LittleEndian.Uint32(buf[4:8])
	copy(h.DataType[:], buf[8:12])

	if h.DataType != [4]byte{'.', 'F', 'I', 'T'} {
		return Header{}, fmt.Errorf("%w: data_type=%q", ErrNotFit, h.DataType[:])
	}
	// data_size==0 is a valid, if degenerate, header: an empty record
	// body decodes to an empty sink rather than an error.

	if size == 14 {
		h.CRC = binary.LittleEndian.Uint16(buf[12:14])
		h.CRCPresent = true
	}

	return h, nil
}
