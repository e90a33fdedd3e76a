package decode

import (
	"context"
	"fmt"
)

// UnitsMode selects the unit system a caller wants numeric fields
// reported in (spec.md §6). The decoder itself only threads the choice
// through to Options; unit conversion is a post-processing concern
// (spec.md §4.5 step 6).
type UnitsMode string

const (
	UnitsModeMetric  UnitsMode = "metric"
	UnitsModeStatute UnitsMode = "statute"
	UnitsModeRaw     UnitsMode = "raw"
)

// BatchSinkOptions configures a relational batch sink, selected by
// Options.BufferInputToDB (spec.md §6).
type BatchSinkOptions struct {
	TableName      string
	DataSourceName string
	Username       string
	Password       string
}

// Options is the full configuration surface from spec.md §6.
type Options struct {
	Units             UnitsMode
	Pace              bool
	GarminTimestamps  bool
	FixData           []string
	DataEverySecond   bool
	LimitData         map[string][]string
	BufferInputToDB   bool
	BatchSink         BatchSinkOptions
	InputIsData       bool
	OverwriteWithDevData bool
}

// DefaultOptions returns the configuration defaults spec.md §6 specifies.
func DefaultOptions() Options {
	return Options{
		Units:                UnitsModeMetric,
		OverwriteWithDevData: true,
	}
}

// Validate checks the enumerated option values (spec.md §7 BadOption).
func (o Options) Validate() error {
	switch o.Units {
	case "", UnitsModeMetric, UnitsModeStatute, UnitsModeRaw:
	default:
		return fmt.Errorf("%w: units=%q", ErrBadOption, o.Units)
	}
	for _, f := range o.FixData {
		if !validFixField[f] {
			return fmt.Errorf("%w: fix_data=%q", ErrBadOption, f)
		}
	}
	return nil
}

var validFixField = map[string]bool{
	"all": true, "cadence": true, "distance": true, "heart_rate": true,
	"lat_lon": true, "speed": true, "power": true, "altitude": true,
	"enhanced_speed": true, "enhanced_altitude": true,
}

// Result is everything a successful decode produces beyond the sink
// itself: the header, CRC diagnostics, and introspection accessors for
// the definition/developer-field catalogs actually seen (SPEC_FULL.md
// supplemental features).
type Result struct {
	Header          Header
	HeaderCRC       CRCCheck
	FileCRC         CRCCheck
	DefinitionTable []DefinitionHistoryEntry
	Profile         *Profile
}

// DeveloperFields returns every developer field descriptor registered
// during decode.
func (r Result) DeveloperFields() []DeveloperFieldDescriptor {
	return r.Profile.DeveloperFields()
}

// Decoder is the package's public entry point: it owns a ByteSource and a
// Sink for the lifetime of exactly one Decode call (spec.md §5).
type Decoder struct {
	src     ByteSource
	sink    Sink
	opts    Options
	pacer   Pacer
	profile *Profile
}

// NewDecoder constructs a Decoder over src, handing decoded messages to
// sink. opts must already pass Validate.
func NewDecoder(src ByteSource, sink Sink, opts Options) *Decoder {
	return &Decoder{src: src, sink: sink, opts: opts, profile: NewProfile()}
}

// WithPacer attaches a Pacer to the decoder for subsequent Decode calls.
func (d *Decoder) WithPacer(p Pacer) *Decoder {
	d.pacer = p
	return d
}

// Decode drives HeaderDecoder then RecordParser to completion. ctx
// cancellation is honored at the next record-header read, the only
// interruption point spec.md §5 defines.
func (d *Decoder) Decode(ctx context.Context) (Result, error) {
	if err := d.opts.Validate(); err != nil {
		return Result{}, err
	}

	headerLog := withPhase("header")
	headerBuf, err := d.src.ReadFull(12)
	if err != nil {
		return Result{}, err
	}

	// The source cannot be rewound, so the first 12 bytes are read and 2
	// more follow only when the first byte declares a 14-byte header.
	size := headerBuf[0]
	full := headerBuf
	if size == 14 {
		tail, err := d.src.ReadFull(2)
		if err != nil {
			return Result{}, err
		}
		full = append(full, tail...)
	}

	h, err := DecodeHeader(full)
	if err != nil {
		return Result{}, err
	}
	headerLog.Info().Uint32("data_size", h.DataSize).Msg("header decoded")

	hcrc := checkHeaderCRC(full, h)
	if h.CRCPresent && !hcrc.Valid {
		headerLog.Warn().Uint16("stored", hcrc.Stored).Uint16("computed", hcrc.Computed).Msg("header CRC mismatch")
	}

	parser := newRecordParser(d.src, h, d.profile, d.opts, d.sink, d.pacer)
	if err := parser.run(ctx); err != nil {
		return Result{}, err
	}

	if overrider, ok := d.sink.(DeveloperOverrider); ok {
		if err := overrider.ApplyDeveloperOverride(d.profile.DeveloperFields(), d.opts.OverwriteWithDevData); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStoreError, err)
		}
	}

	var fcrc CRCCheck
	if fb, ok := d.src.(interface{ Bytes() []byte }); ok {
		fcrc = checkFileCRC(fb.Bytes(), h.BodyEnd())
	}

	return Result{
		Header:          h,
		HeaderCRC:       hcrc,
		FileCRC:         fcrc,
		DefinitionTable: parser.defs.History(),
		Profile:         d.profile,
	}, nil
}
