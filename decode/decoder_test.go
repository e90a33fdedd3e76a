package decode_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lucasjlepore/fitdecode/decode"
	"github.com/tormoder/fit/dyncrc16"
)

// captureSink is a minimal decode.Sink for tests that only need to inspect
// what the decoder handed off, without pulling in the store package.
type captureSink struct {
	messages []decode.Message
}

func (s *captureSink) Put(msg decode.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

// buildHeaderBytes assembles a 12-byte FIT header for bodyLen bytes of
// record body (definitions + data messages, trailer not included).
func buildHeaderBytes(bodyLen int) []byte {
	buf := make([]byte, 12)
	buf[0] = 12
	buf[1] = 0x10
	binary.LittleEndian.PutUint32(buf[4:8], uint32(bodyLen))
	copy(buf[8:12], ".FIT")
	return buf
}

// fileIDDefinition builds a definition record for global message 0
// (file_id), local type 0, little endian, one field: time_created (field 4,
// uint32, 4 bytes).
func fileIDDefinition() []byte {
	return []byte{
		0x40,       // record header: is_def, local_type 0
		0x00,       // reserved
		0x00,       // architecture: little endian
		0x00, 0x00, // global_mesg_num = 0 (file_id)
		0x01,       // num_fields = 1
		0x04, 0x04, 0x86, // field 4 (time_created), size 4, base type uint32
	}
}

func fileIDDataMessage(timeCreated uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = 0x00 // data message, local_type 0
	binary.LittleEndian.PutUint32(buf[1:5], timeCreated)
	return buf
}

func TestDecodeSimpleFileID(t *testing.T) {
	def := fileIDDefinition()
	data := fileIDDataMessage(100000)
	body := append(def, data...)
	header := buildHeaderBytes(len(body))
	full := append(header, body...)

	sink := &captureSink{}
	src := decode.NewBufferByteSource(full)
	opts := decode.DefaultOptions()

	result, err := decode.NewDecoder(src, sink, opts).Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wantHeader := decode.Header{HeaderSize: 12, ProtocolVer: 0x10, DataSize: uint32(len(body)), DataType: [4]byte{'.', 'F', 'I', 'T'}}
	if diff := cmp.Diff(wantHeader, result.Header); diff != "" {
		t.Errorf("Header mismatch (-want +got):\n%s", diff)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.messages))
	}
	msg := sink.messages[0]
	if msg.Name != "file_id" || msg.IsRecord {
		t.Errorf("unexpected message: %+v", msg)
	}
	fv, ok := msg.Fields["time_created"]
	if !ok {
		t.Fatal("expected time_created field")
	}
	want := int64(100000) + decode.FITUnixEpochDelta
	if fv.Value.(int64) != want {
		t.Errorf("time_created = %v, want %d", fv.Value, want)
	}
}

func TestDecodeBufferSourcePopulatesFileCRC(t *testing.T) {
	def := fileIDDefinition()
	data := fileIDDataMessage(100000)
	body := append(def, data...)
	header := buildHeaderBytes(len(body))
	full := append(header, body...)
	crc := dyncrc16.Checksum(full)
	full = binary.LittleEndian.AppendUint16(full, crc)

	sink := &captureSink{}
	src := decode.NewBufferByteSource(full)
	opts := decode.DefaultOptions()

	result, err := decode.NewDecoder(src, sink, opts).Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !result.FileCRC.Valid {
		t.Errorf("FileCRC = %+v, want a valid trailer CRC", result.FileCRC)
	}
	if result.FileCRC.Stored != crc {
		t.Errorf("FileCRC.Stored = %d, want %d", result.FileCRC.Stored, crc)
	}
}

func TestDecodeStreamSourceLeavesFileCRCZero(t *testing.T) {
	def := fileIDDefinition()
	data := fileIDDataMessage(100000)
	body := append(def, data...)
	header := buildHeaderBytes(len(body))
	full := append(header, body...)

	sink := &captureSink{}
	src := decode.NewByteSource(bytes.NewReader(full))
	opts := decode.DefaultOptions()

	result, err := decode.NewDecoder(src, sink, opts).Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if result.FileCRC.Valid || result.FileCRC.Stored != 0 {
		t.Errorf("FileCRC = %+v, want zero-value for a streaming source", result.FileCRC)
	}
}

func TestDecodeGarminTimestampsSkipsEpochShift(t *testing.T) {
	def := fileIDDefinition()
	data := fileIDDataMessage(100000)
	body := append(def, data...)
	header := buildHeaderBytes(len(body))
	full := append(header, body...)

	sink := &captureSink{}
	src := decode.NewBufferByteSource(full)
	opts := decode.DefaultOptions()
	opts.GarminTimestamps = true

	_, err := decode.NewDecoder(src, sink, opts).Decode(context.Background())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fv := sink.messages[0].Fields["time_created"]
	if fv.Value.(int64) != 100000 {
		t.Errorf("time_created = %v, want 100000 (no epoch shift)", fv.Value)
	}
}

func TestDecodeUndefinedLocalTypeErrors(t *testing.T) {
	body := []byte{0x03} // data message referencing local_type 3, never defined
	header := buildHeaderBytes(len(body))
	full := append(header, body...)

	sink := &captureSink{}
	src := decode.NewBufferByteSource(full)
	_, err := decode.NewDecoder(src, sink, decode.DefaultOptions()).Decode(context.Background())
	if !errors.Is(err, decode.ErrUndefinedLocalType) {
		t.Fatalf("expected ErrUndefinedLocalType, got %v", err)
	}
}

func TestDecodeTruncatedBodyErrors(t *testing.T) {
	def := fileIDDefinition()
	// Header claims a larger body than what's actually supplied.
	header := buildHeaderBytes(len(def) + 10)
	full := append(header, def...)

	sink := &captureSink{}
	src := decode.NewBufferByteSource(full)
	_, err := decode.NewDecoder(src, sink, decode.DefaultOptions()).Decode(context.Background())
	if !errors.Is(err, decode.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeRejectsBadOptions(t *testing.T) {
	header := buildHeaderBytes(0)
	sink := &captureSink{}
	src := decode.NewBufferByteSource(header)
	opts := decode.DefaultOptions()
	opts.Units = "bogus"
	_, err := decode.NewDecoder(src, sink, opts).Decode(context.Background())
	if !errors.Is(err, decode.ErrBadOption) {
		t.Fatalf("expected ErrBadOption, got %v", err)
	}
}
