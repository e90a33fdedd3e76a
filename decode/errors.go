package decode

import "errors"

// Sentinel error kinds from the error-handling design. Callers use
// errors.Is against these; call sites wrap them with fmt.Errorf("...: %w")
// to attach byte offsets, local types, or global message numbers.
var (
	// ErrBadHeader is returned when header_size is not 12 or 14.
	ErrBadHeader = errors.New("decode: bad header")

	// ErrNotFit is returned when the header's data_type marker is not
	// ".FIT". A zero data_size is accepted and decodes to an empty body.
	ErrNotFit = errors.New("decode: not a FIT file")

	// ErrUndefinedLocalType is returned when a data message references a
	// local message type with no active definition installed.
	ErrUndefinedLocalType = errors.New("decode: undefined local message type")

	// ErrOrphanCompressedTimestamp is returned when a compressed-timestamp
	// record arrives before any full-timestamp anchor has been seen.
	ErrOrphanCompressedTimestamp = errors.New("decode: compressed timestamp with no prior anchor")

	// ErrUnsupportedBaseType is returned when a definition message
	// declares a base-type id outside the catalogued table.
	ErrUnsupportedBaseType = errors.New("decode: unsupported base type")

	// ErrTruncated is returned when the stream ends before data_size
	// bytes of body have been consumed.
	ErrTruncated = errors.New("decode: truncated file")

	// ErrStoreError is returned when the message sink fails to persist a
	// decoded message.
	ErrStoreError = errors.New("decode: sink failed to persist message")

	// ErrBadOption is returned for an invalid units/pace/fix_data value.
	ErrBadOption = errors.New("decode: bad option")
)
