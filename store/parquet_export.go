package store

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/writer"
)

// ExportParquet streams a message table's rows out as Parquet, generalized
// from pipeline/parquet_native.go's fixed canonicalParquetRow struct to a
// dynamically-typed row built from whichever columns this sink's table
// actually has — this sink's schema isn't known until the first message
// of that name arrives, unlike the teacher's fixed analytics row shape.
func (s *BatchedTableSink) ExportParquet(message string, w io.Writer) error {
	s.writeMu.Lock()
	if err := s.flushLocked(); err != nil {
		s.writeMu.Unlock()
		return err
	}
	table := s.tableName(message)
	cols := s.columns[table]
	s.writeMu.Unlock()
	if len(cols) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, message)
	}

	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	schema, err := buildParquetJSONSchema(names, cols)
	if err != nil {
		return err
	}

	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		return fmt.Errorf("new parquet writer: %w", err)
	}

	rows, err := s.db.Query(fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ","), table))
	if err != nil {
		return fmt.Errorf("query %s for export: %w", table, err)
	}
	defer rows.Close()

	scanBuf := make([]any, len(names))
	scanPtrs := make([]any, len(names))
	for i := range scanBuf {
		scanPtrs[i] = &scanBuf[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return fmt.Errorf("scan %s row: %w", table, err)
		}
		record := make(map[string]any, len(names))
		for i, name := range names {
			record[name] = scanBuf[i]
		}
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal %s row: %w", table, err)
		}
		if err := pw.Write(string(line)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write %s row: %w", table, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet for %s: %w", table, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet buffer for %s: %w", table, err)
	}
	if _, err := w.Write(fw.Bytes()); err != nil {
		return fmt.Errorf("write parquet bytes for %s: %w", table, err)
	}
	return nil
}

// buildParquetJSONSchema builds the JSON schema xitongsys/parquet-go's
// JSON writer mode expects, mapping this sink's inferred SQL column types
// to the nearest Parquet physical type.
func buildParquetJSONSchema(names []string, cols map[string]string) (string, error) {
	type field struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields,omitempty"`
	}
	fields := make([]field, 0, len(names))
	for _, name := range names {
		var tag string
		switch cols[name] {
		case "INTEGER":
			tag = fmt.Sprintf("name=%s, type=INT64, repetitiontype=OPTIONAL", name)
		case "REAL":
			tag = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name)
		default:
			tag = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
		}
		fields = append(fields, field{Tag: tag})
	}
	root := field{Tag: "name=parquet_go_root", Fields: fields}
	b, err := json.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("marshal parquet schema: %w", err)
	}
	return string(b), nil
}
