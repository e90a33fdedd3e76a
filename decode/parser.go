package decode

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// FITUnixEpochDelta is the number of seconds the FIT epoch (1989-12-31
// UTC) sits before the Unix epoch (spec.md §6, GLOSSARY).
const FITUnixEpochDelta int64 = 631_065_600

const recordGlobalMesgNum = uint16(20)

// DeveloperOverrider is implemented by sinks that can rewrite a native
// record column with a developer-data column after decode completes
// (spec.md §4.3). Decoder checks for it via a type assertion so decode
// stays decoupled from any particular sink implementation.
type DeveloperOverrider interface {
	ApplyDeveloperOverride(descs []DeveloperFieldDescriptor, overwrite bool) error
}

// recordParser drives the main decode loop (spec.md §4.2).
type recordParser struct {
	src     ByteSource
	defs    *DefinitionTable
	profile *Profile
	opts    Options
	sink    Sink
	pacer   Pacer

	bodyEnd int64

	prevTsUnix   int64 // last resolved record timestamp, Unix (or raw, per opts.GarminTimestamps) epoch seconds
	haveTs       bool
	maxRecordTs  int64
	haveMaxTs    bool
	iter         int
}

func newRecordParser(src ByteSource, h Header, profile *Profile, opts Options, sink Sink, pacer Pacer) *recordParser {
	return &recordParser{
		src:     src,
		defs:    NewDefinitionTable(),
		profile: profile,
		opts:    opts,
		sink:    sink,
		pacer:   pacer,
		bodyEnd: h.BodyEnd(),
	}
}

// epochDelta returns the FIT->Unix epoch shift currently in effect: zero
// when the caller asked for raw Garmin timestamps.
func (p *recordParser) epochDelta() int64 {
	if p.opts.GarminTimestamps {
		return 0
	}
	return FITUnixEpochDelta
}

// run drives the loop until the body has been fully consumed.
func (p *recordParser) run(ctx context.Context) error {
	phaseLog := withPhase("parse")
	for p.src.Pos() < p.bodyEnd {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.iter++
		pace(p.pacer, p.iter)

		if err := p.step(); err != nil {
			return err
		}
	}
	if p.src.Pos() != p.bodyEnd {
		return fmt.Errorf("%w: cursor %d != body end %d", ErrTruncated, p.src.Pos(), p.bodyEnd)
	}
	phaseLog.Info().Int("records", p.iter).Msg("record body consumed")
	return nil
}

// recordHeader is the decoded form of the one-byte record header (spec.md
// §4.2 Table 4-1).
type recordHeader struct {
	compressed bool
	isDef      bool
	devFlag    bool
	localType  uint8
	tsOffset   uint8
}

func decodeRecordHeader(h byte) recordHeader {
	if h&0x80 != 0 {
		return recordHeader{
			compressed: true,
			localType:  (h >> 5) & 0x03,
			tsOffset:   h & 0x1F,
		}
	}
	return recordHeader{
		isDef:     (h>>6)&0x01 == 1,
		devFlag:   (h>>5)&0x01 == 1,
		localType: h & 0x0F,
	}
}

func (p *recordParser) step() error {
	raw, err := p.src.ReadFull(1)
	if err != nil {
		return err
	}
	rh := decodeRecordHeader(raw[0])

	if !rh.compressed && rh.isDef {
		return p.decodeDefinition(rh)
	}
	return p.decodeDataMessage(rh)
}

func (p *recordParser) decodeDefinition(rh recordHeader) error {
	hdr, err := p.src.ReadFull(4)
	if err != nil {
		return err
	}
	// hdr[0] reserved, hdr[1] architecture
	arch := Endianness(hdr[1])
	order := arch.ByteOrder()
	globalMesgNum := order.Uint16(hdr[2:4])

	numFieldsBuf, err := p.src.ReadFull(1)
	if err != nil {
		return err
	}
	numFields := int(numFieldsBuf[0])

	fields := make([]FieldDefinition, 0, numFields)
	for i := 0; i < numFields; i++ {
		fb, err := p.src.ReadFull(3)
		if err != nil {
			return err
		}
		bt := BaseType(fb[2])
		if _, ok := bt.Spec(); !ok {
			return fmt.Errorf("%w: 0x%02X", ErrUnsupportedBaseType, fb[2])
		}
		fields = append(fields, FieldDefinition{FieldNumber: fb[0], Size: fb[1], BaseType: bt})
	}

	var devFields []DeveloperFieldDefinition
	if rh.devFlag {
		ndBuf, err := p.src.ReadFull(1)
		if err != nil {
			return err
		}
		numDev := int(ndBuf[0])
		for i := 0; i < numDev; i++ {
			fb, err := p.src.ReadFull(3)
			if err != nil {
				return err
			}
			devFields = append(devFields, DeveloperFieldDefinition{
				FieldNumber:        fb[0],
				Size:                fb[1],
				DeveloperDataIndex: fb[2],
			})
		}
	}

	p.defs.Install(rh.localType, MessageDefinition{
		GlobalMesgNum: globalMesgNum,
		Endianness:    arch,
		Fields:        fields,
		DevFields:     devFields,
	})
	return nil
}

func (p *recordParser) decodeDataMessage(rh recordHeader) error {
	def, ok := p.defs.Lookup(rh.localType)
	if !ok {
		return fmt.Errorf("%w: local_type=%d", ErrUndefinedLocalType, rh.localType)
	}

	msgDesc, known := p.profile.Message(def.GlobalMesgNum)
	if !known && len(def.DevFields) == 0 {
		// Unknown global message and no developer fields: skip by size
		// without decoding (spec.md §4.2 step 3, §7).
		if _, err := p.src.ReadFull(def.TotalPayloadBytes); err != nil {
			return err
		}
		return nil
	}

	fields := make(map[string]FieldValue, len(def.Fields)+len(def.DevFields))
	for _, fd := range def.Fields {
		raw, err := p.src.ReadFull(int(fd.Size))
		if err != nil {
			return err
		}
		desc := p.profile.Field(def.GlobalMesgNum, fd.FieldNumber)
		fv, ok := decodeField(fd, desc, raw, def.Endianness.ByteOrder(), p.epochDelta(), fd.FieldNumber == 253)
		if !ok {
			if msgDesc.Name == "session" && alwaysNullSessionFields[desc.Name] {
				fields[desc.Name] = FieldValue{Name: desc.Name, Units: desc.Units, Null: true}
			}
			continue
		}
		fields[fv.Name] = fv
	}

	for _, dd := range def.DevFields {
		raw, err := p.src.ReadFull(int(dd.Size))
		if err != nil {
			return err
		}
		desc, ok := p.profile.DeveloperField(dd.DeveloperDataIndex, dd.FieldNumber)
		name := fmt.Sprintf("dev_%d_%d", dd.DeveloperDataIndex, dd.FieldNumber)
		units := ""
		bt := BaseByte
		if ok {
			name = desc.Name
			units = desc.Units
			bt = desc.BaseType
		}
		fdSynthetic := FieldDefinition{FieldNumber: dd.FieldNumber, Size: dd.Size, BaseType: bt}
		fv, valid := decodeField(fdSynthetic, FieldDescriptor{Name: name, Units: units}, raw, def.Endianness.ByteOrder(), 0, false)
		if !valid {
			continue
		}
		fv.IsDeveloper = true
		fields[fv.Name] = fv
	}

	if msgDesc.Name == "field_description" {
		p.installFieldDescription(fields)
	}

	applyLimitData(msgDesc.Name, p.opts.LimitData, fields)

	msg := Message{
		GlobalMesgNum: def.GlobalMesgNum,
		Name:          msgDesc.Name,
		LocalType:     rh.localType,
		Fields:        fields,
		IsRecord:      def.GlobalMesgNum == recordGlobalMesgNum,
	}

	if msg.IsRecord {
		ts, err := p.resolveRecordTimestamp(fields, rh)
		if err != nil {
			return err
		}
		msg.Timestamp = ts
	}

	if err := p.sink.Put(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	return nil
}

// resolveRecordTimestamp implements spec.md §4.2 step 4.
func (p *recordParser) resolveRecordTimestamp(fields map[string]FieldValue, rh recordHeader) (int64, error) {
	if tv, ok := fields["timestamp"]; ok && !tv.Null {
		ts := toInt64(tv.Value)
		p.prevTsUnix, p.haveTs = ts, true
		p.updateMax(ts)
		return ts, nil
	}

	if rh.compressed {
		if !p.haveTs {
			return 0, ErrOrphanCompressedTimestamp
		}
		delta := p.epochDelta()
		base := p.prevTsUnix - delta
		low5 := base & 0x1F
		ts := base - low5 + int64(rh.tsOffset)
		if int64(rh.tsOffset) < low5 {
			ts += 32
		}
		ts += delta
		p.prevTsUnix = ts
		p.updateMax(ts)
		return ts, nil
	}

	if p.haveMaxTs {
		ts := p.maxRecordTs + 1
		p.updateMax(ts)
		return ts, nil
	}
	return 0, fmt.Errorf("%w: record with no timestamp and no anchor", ErrOrphanCompressedTimestamp)
}

func (p *recordParser) updateMax(ts int64) {
	if !p.haveMaxTs || ts > p.maxRecordTs {
		p.maxRecordTs, p.haveMaxTs = ts, true
	}
}

// installFieldDescription builds a DeveloperFieldDescriptor from a decoded
// field_description message (spec.md §4.3).
func (p *recordParser) installFieldDescription(fields map[string]FieldValue) {
	devIdx, _ := fields["developer_data_index"]
	fieldNum, _ := fields["field_definition_number"]
	baseTypeID, _ := fields["fit_base_type_id"]
	name, _ := fields["field_name"]
	units, _ := fields["units"]
	nativeMesg, hasNativeMesg := fields["native_mesg_num"]
	nativeField, hasNativeField := fields["native_field_num"]

	desc := DeveloperFieldDescriptor{
		Name:     toString(name.Value),
		Units:    toString(units.Value),
		BaseType: BaseType(toInt64(baseTypeID.Value)),
	}
	if hasNativeMesg && hasNativeField {
		desc.HasNative = true
		desc.NativeMesgNum = uint16(toInt64(nativeMesg.Value))
		desc.NativeField = uint8(toInt64(nativeField.Value))
	} else {
		desc.NativeField = uint8(toInt64(fieldNum.Value))
	}
	p.profile.RegisterDeveloperField(uint8(toInt64(devIdx.Value)), desc)
}

func applyLimitData(msgName string, limit map[string][]string, fields map[string]FieldValue) {
	if limit == nil || msgName == "field_description" || msgName == "developer_data_id" {
		return
	}
	allowed, ok := limit[msgName]
	if !ok {
		return
	}
	keep := map[string]bool{"timestamp": true}
	for _, a := range allowed {
		keep[a] = true
	}
	for name := range fields {
		if !keep[name] {
			delete(fields, name)
		}
	}
}

// decodeField decodes one raw field per spec.md §4.2 step 3. wantEpochShift
// marks field number 253 (the universal timestamp field); the profile's
// own DateTime flag covers enumerated message/field pairs beyond 253.
func decodeField(fd FieldDefinition, desc FieldDescriptor, raw []byte, order binary.ByteOrder, epochDelta int64, wantEpochShift bool) (FieldValue, bool) {
	width := fd.BaseType.Width()

	if fd.BaseType == BaseString || width == 0 {
		s := sanitizeString(raw)
		if s == "" {
			return FieldValue{}, false
		}
		return FieldValue{Name: desc.Name, Value: s, Units: desc.Units, BaseType: fd.BaseType}, true
	}

	if int(fd.Size) == width {
		return decodeScalarField(fd, desc, raw, order, epochDelta, wantEpochShift)
	}
	if int(fd.Size) > width && int(fd.Size)%width == 0 {
		return decodeArrayField(fd, desc, raw, order)
	}

	// size not a multiple of the base-type width: fall back to the raw
	// bytes, trimmed like a string (spec.md §4.2 step 3, clause 2).
	s := sanitizeString(raw)
	if s == "" {
		return FieldValue{}, false
	}
	return FieldValue{Name: desc.Name, Value: s, Units: desc.Units, BaseType: fd.BaseType}, true
}

func decodeScalarField(fd FieldDefinition, desc FieldDescriptor, raw []byte, order binary.ByteOrder, epochDelta int64, wantEpochShift bool) (FieldValue, bool) {
	bits, signed := readBits(fd.BaseType, raw, order)

	if fd.BaseType == BaseFloat32 || fd.BaseType == BaseFloat64 {
		// Float invalid values are detected by exact comparison of the raw
		// bit pattern against the all-ones sentinel, not by a NaN check.
		sentinel, _ := fd.BaseType.invalidUint()
		if bits == sentinel {
			return FieldValue{}, false
		}
		var f float64
		if fd.BaseType == BaseFloat32 {
			f = float64(math.Float32frombits(uint32(bits)))
		} else {
			f = math.Float64frombits(bits)
		}
		return FieldValue{Name: desc.Name, Value: applyScaleFloat(f, desc), Units: desc.Units, BaseType: fd.BaseType}, true
	}

	if sentinel, ok := fd.BaseType.invalidUint(); ok {
		if fd.BaseType.zIsInvalid() {
			if bits == 0 {
				return FieldValue{}, false
			}
		} else if bits == sentinel {
			return FieldValue{}, false
		}
	}

	if fd.BaseType == BaseByte && fd.Size == 1 {
		// byte scalar behaves like uint8 for sentinel purposes; value is
		// the raw byte, not scaled.
		return FieldValue{Name: desc.Name, Value: int64(bits), Units: desc.Units, BaseType: fd.BaseType}, true
	}

	var val float64
	if signed {
		val = float64(signExtend(bits, fd.BaseType.Width()))
	} else {
		val = float64(bits)
	}
	scaled := applyScaleFloat(val, desc)

	isDateTime := wantEpochShift || desc.DateTime
	if isDateTime {
		scaled += float64(epochDelta)
	}

	if desc.Scale == 0 && !isDateTime {
		// No scale/offset declared: preserve integer typing.
		if signed {
			return FieldValue{Name: desc.Name, Value: signExtend(bits, fd.BaseType.Width()), Units: desc.Units, BaseType: fd.BaseType}, true
		}
		return FieldValue{Name: desc.Name, Value: bits, Units: desc.Units, BaseType: fd.BaseType}, true
	}
	if isDateTime {
		return FieldValue{Name: desc.Name, Value: int64(scaled), Units: desc.Units, BaseType: fd.BaseType}, true
	}
	return FieldValue{Name: desc.Name, Value: scaled, Units: desc.Units, BaseType: fd.BaseType}, true
}

func decodeArrayField(fd FieldDefinition, desc FieldDescriptor, raw []byte, order binary.ByteOrder) (FieldValue, bool) {
	width := fd.BaseType.Width()
	count := len(raw) / width
	out := make([]float64, 0, count)
	allInvalid := true
	for i := 0; i < count; i++ {
		elem := raw[i*width : (i+1)*width]
		bits, signed := readBits(fd.BaseType, elem, order)
		if sentinel, ok := fd.BaseType.invalidUint(); ok {
			if (fd.BaseType.zIsInvalid() && bits == 0) || (!fd.BaseType.zIsInvalid() && bits == sentinel) {
				out = append(out, math.NaN())
				continue
			}
		}
		allInvalid = false
		var v float64
		if signed {
			v = float64(signExtend(bits, width))
		} else {
			v = float64(bits)
		}
		out = append(out, applyScaleFloat(v, desc))
	}
	if allInvalid {
		return FieldValue{}, false
	}
	return FieldValue{Name: desc.Name, Value: out, Units: desc.Units, BaseType: fd.BaseType}, true
}

func applyScaleFloat(v float64, desc FieldDescriptor) float64 {
	if desc.Scale == 0 {
		return v
	}
	return v/desc.scale() - desc.Offset
}

// signExtend reinterprets bits' low width bytes as a two's complement
// signed integer of that width, so a raw sint8/16/32 value decodes to its
// negative form instead of its unsigned bit pattern.
func signExtend(bits uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(bits))
	case 2:
		return int64(int16(bits))
	case 4:
		return int64(int32(bits))
	default:
		return int64(bits)
	}
}

// readBits reads raw as an unsigned bit pattern of the base type's width,
// alongside whether the base type is signed (so the caller can
// reinterpret as two's complement).
func readBits(bt BaseType, raw []byte, order binary.ByteOrder) (bits uint64, signed bool) {
	spec, _ := bt.Spec()
	switch spec.width {
	case 1:
		bits = uint64(raw[0])
	case 2:
		bits = uint64(order.Uint16(raw))
	case 4:
		bits = uint64(order.Uint32(raw))
	case 8:
		bits = order.Uint64(raw)
	}
	return bits, spec.signed
}

func sanitizeString(raw []byte) string {
	s := string(raw)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		return 0
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
