package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lucasjlepore/fitdecode/decode"
)

// BufferThreshold is the number of buffered messages, across all message
// names, that triggers an automatic flush (spec.md §4.4.2).
const BufferThreshold = 1000

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func sanitizeIdent(s string) string {
	return nonAlnum.ReplaceAllString(s, "_")
}

// recordMandatoryFields are the columns a record row must carry to be
// persisted at all (spec.md §4.4.2's record insert policy).
var recordMandatoryFields = []string{"position_lat", "position_long", "timestamp", "distance"}

// pendingTable accumulates messages for one SQL table between flushes.
type pendingTable struct {
	isRecord bool
	rows     []decode.Message
}

// BatchedTableSink buffers decoded messages and flushes them to SQLite in
// bulk, one table per message name, following
// eunmann-s3-inv-db/pkg/sqliteagg's prepared multi-row INSERT and
// ALTER-TABLE column-evolution pattern (spec.md §4.4.2, §6).
type BatchedTableSink struct {
	db     *sql.DB
	prefix string

	writeMu      sync.Mutex
	pending      map[string]*pendingTable
	pendingCount int

	tableExists map[string]bool
	columns     map[string]map[string]string // table -> column -> sql type

	queryCache map[string]any
}

// OpenBatchedTableSink opens (or creates) the SQLite database named by
// opts.DataSourceName and returns a sink that persists per-message tables
// prefixed by the sanitized opts.TableName.
func OpenBatchedTableSink(opts decode.BatchSinkOptions) (*BatchedTableSink, error) {
	dsn := opts.DataSourceName
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", decode.ErrStoreError, err)
	}

	prefix := sanitizeIdent(opts.TableName)
	if prefix == "" {
		prefix = "fit"
	}

	sinkLog := withPhase("sink")
	sinkLog.Info().Str("prefix", prefix).Str("dsn", dsn).Msg("opened batched table sink")

	return &BatchedTableSink{
		db:          db,
		prefix:      prefix,
		pending:     map[string]*pendingTable{},
		tableExists: map[string]bool{},
		columns:     map[string]map[string]string{},
		queryCache:  map[string]any{},
	}, nil
}

func (s *BatchedTableSink) tableName(message string) string {
	return s.prefix + "_" + sanitizeIdent(message)
}

// Put implements decode.Sink: buffer msg, flushing at BufferThreshold.
func (s *BatchedTableSink) Put(msg decode.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if msg.IsRecord && !hasMandatoryRecordFields(msg) {
		return nil // silently dropped at the sink boundary, spec.md §4.4.2
	}

	table := s.tableName(msg.Name)
	pt, ok := s.pending[table]
	if !ok {
		pt = &pendingTable{isRecord: msg.IsRecord}
		s.pending[table] = pt
	}
	pt.rows = append(pt.rows, msg)
	s.pendingCount++

	if s.pendingCount >= BufferThreshold {
		return s.flushLocked()
	}
	return nil
}

func hasMandatoryRecordFields(msg decode.Message) bool {
	for _, f := range recordMandatoryFields {
		if _, ok := msg.Fields[f]; !ok {
			return false
		}
	}
	return true
}

// Flush forces a flush of all buffered messages regardless of threshold.
func (s *BatchedTableSink) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.flushLocked()
}

func (s *BatchedTableSink) flushLocked() error {
	if s.pendingCount == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin flush tx: %v", decode.ErrStoreError, err)
	}

	for table, pt := range s.pending {
		if err := s.flushTable(tx, table, pt); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit flush tx: %v", decode.ErrStoreError, err)
	}

	s.pending = map[string]*pendingTable{}
	s.pendingCount = 0
	s.queryCache = map[string]any{} // new rows invalidate cached column reads
	return nil
}

func (s *BatchedTableSink) flushTable(tx *sql.Tx, table string, pt *pendingTable) error {
	if err := s.ensureTable(tx, table, pt); err != nil {
		return err
	}
	if err := s.ensureColumns(tx, table, pt); err != nil {
		return err
	}

	cols := s.orderedColumns(table, pt.isRecord)
	placeholders := make([]string, len(pt.rows))
	args := make([]any, 0, len(pt.rows)*len(cols))
	for i, msg := range pt.rows {
		vals := make([]string, len(cols))
		for j, c := range cols {
			vals[j] = "?"
			args = append(args, columnValue(msg, c))
		}
		placeholders[i] = "(" + strings.Join(vals, ",") + ")"
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ","), strings.Join(placeholders, ","))
	if _, err := tx.Exec(stmt, args...); err != nil {
		return fmt.Errorf("%w: insert into %s: %v", decode.ErrStoreError, table, err)
	}
	return nil
}

func columnValue(msg decode.Message, col string) any {
	if col == "paused" || col == "stopped" {
		return nil
	}
	if col == "spatial_point" {
		lat, latOK := numericField(msg, "position_lat")
		lon, lonOK := numericField(msg, "position_long")
		if !latOK || !lonOK {
			return nil
		}
		return fmt.Sprintf("%g,%g", lat, lon)
	}
	fv, ok := msg.Fields[col]
	if !ok || fv.Null {
		return nil
	}
	if col == "times" && msg.Name == "hrv" {
		return encodeHRVTimes(fv.Value)
	}
	switch v := fv.Value.(type) {
	case []float64:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return v
	}
}

func numericField(msg decode.Message, name string) (float64, bool) {
	fv, ok := msg.Fields[name]
	if !ok || fv.Null {
		return 0, false
	}
	switch v := fv.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// encodeHRVTimes JSON-encodes an hrv.times array, replacing the FIT
// sentinel 65.535 with null (spec.md §4.4.2).
func encodeHRVTimes(v any) string {
	arr, ok := v.([]float64)
	if !ok {
		return "[]"
	}
	out := make([]*float64, len(arr))
	for i, x := range arr {
		if math.Abs(x-65.535) < 1e-9 {
			continue
		}
		val := x
		out[i] = &val
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func (s *BatchedTableSink) ensureTable(tx *sql.Tx, table string, pt *pendingTable) error {
	if s.tableExists[table] {
		return nil
	}

	cols := map[string]string{}
	for _, msg := range pt.rows {
		for name, fv := range msg.Fields {
			if _, ok := cols[name]; !ok {
				cols[name] = sqlTypeFor(name, fv)
			}
		}
	}

	var stmt strings.Builder
	fmt.Fprintf(&stmt, "CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT", table)
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&stmt, ", %s %s", name, cols[name])
	}

	if pt.isRecord {
		for _, m := range []string{"position_lat", "position_long", "distance", "timestamp"} {
			if _, ok := cols[m]; !ok {
				fmt.Fprintf(&stmt, ", %s REAL", m)
				cols[m] = "REAL"
			}
		}
		stmt.WriteString(", spatial_point TEXT NOT NULL DEFAULT ''")
		stmt.WriteString(", paused TINYINT(1)")
		stmt.WriteString(", stopped TINYINT(1)")
		cols["spatial_point"] = "TEXT"
		cols["paused"] = "TINYINT(1)"
		cols["stopped"] = "TINYINT(1)"
	}
	stmt.WriteString(")")

	if _, err := tx.Exec(stmt.String()); err != nil {
		return fmt.Errorf("%w: create table %s: %v", decode.ErrStoreError, table, err)
	}

	if pt.isRecord {
		for idxCol, idxName := range map[string]string{"distance": "idx_" + table + "_distance", "timestamp": "idx_" + table + "_timestamp", "spatial_point": "idx_" + table + "_spatial"} {
			if _, err := tx.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idxName, table, idxCol)); err != nil {
				return fmt.Errorf("%w: create index on %s.%s: %v", decode.ErrStoreError, table, idxCol, err)
			}
		}
	}

	s.tableExists[table] = true
	s.columns[table] = cols
	return nil
}

func (s *BatchedTableSink) ensureColumns(tx *sql.Tx, table string, pt *pendingTable) error {
	existing := s.columns[table]
	if existing == nil {
		existing = map[string]string{}
		s.columns[table] = existing
	}
	for _, msg := range pt.rows {
		for name, fv := range msg.Fields {
			if _, ok := existing[name]; ok {
				continue
			}
			sqlType := sqlTypeFor(name, fv)
			if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, sqlType)); err != nil {
				return fmt.Errorf("%w: add column %s.%s: %v", decode.ErrStoreError, table, name, err)
			}
			existing[name] = sqlType
		}
	}
	return nil
}

// sqlTypeFor infers a SQLite column type from a decoded field's Go value.
// The base type is consulted only to store byte-typed strings as BLOB; a
// nil value maps to TEXT regardless of base type, and no size suffix is
// added for developer string or byte fields.
func sqlTypeFor(name string, fv decode.FieldValue) string {
	switch fv.Value.(type) {
	case int64, uint64:
		return "INTEGER"
	case float64:
		return "REAL"
	case []float64:
		return "TEXT"
	case string:
		if fv.BaseType == decode.BaseByte {
			return "BLOB"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

func (s *BatchedTableSink) orderedColumns(table string, isRecord bool) []string {
	cols := s.columns[table]
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateTable implements Sink; BatchedTableSink creates tables lazily on
// first flush, so this pre-declares columns for callers that want the
// table to exist before any Put.
func (s *BatchedTableSink) CreateTable(name string, columns []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	table := s.tableName(name)
	if s.tableExists[table] {
		return nil
	}
	var stmt strings.Builder
	fmt.Fprintf(&stmt, "CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT", table)
	cols := map[string]string{}
	for _, c := range columns {
		fmt.Fprintf(&stmt, ", %s TEXT", c)
		cols[c] = "TEXT"
	}
	stmt.WriteString(")")
	if _, err := s.db.Exec(stmt.String()); err != nil {
		return fmt.Errorf("%w: create table %s: %v", decode.ErrStoreError, table, err)
	}
	s.tableExists[table] = true
	s.columns[table] = cols
	return nil
}

// AddColumns implements Sink: evolve an already-created table's schema.
func (s *BatchedTableSink) AddColumns(name string, columns []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	table := s.tableName(name)
	existing := s.columns[table]
	if existing == nil {
		existing = map[string]string{}
		s.columns[table] = existing
	}
	for _, c := range columns {
		if _, ok := existing[c]; ok {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", table, c)); err != nil {
			return fmt.Errorf("%w: add column %s.%s: %v", decode.ErrStoreError, table, c, err)
		}
		existing[c] = "TEXT"
	}
	return nil
}

// InsertBatch implements Sink for callers that assemble rows directly
// rather than going through decode.Sink.Put.
func (s *BatchedTableSink) InsertBatch(name string, rows []map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if len(rows) == 0 {
		return nil
	}
	table := s.tableName(name)
	cols := s.orderedColumns(table, false)
	colSet := map[string]bool{}
	for _, c := range cols {
		colSet[c] = true
	}
	for _, r := range rows {
		for k := range r {
			if !colSet[k] {
				cols = append(cols, k)
				colSet[k] = true
			}
		}
	}
	sort.Strings(cols)

	placeholders := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for i, r := range rows {
		vals := make([]string, len(cols))
		for j, c := range cols {
			vals[j] = "?"
			args = append(args, r[c])
		}
		placeholders[i] = "(" + strings.Join(vals, ",") + ")"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ","), strings.Join(placeholders, ","))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return fmt.Errorf("%w: insert batch into %s: %v", decode.ErrStoreError, table, err)
	}
	return nil
}

// QueryColumn implements Sink's lazy, cached column read-back (spec.md
// §4.4.2): at most one SQL query per (message, field) pair.
func (s *BatchedTableSink) QueryColumn(message, field string) (any, error) {
	s.writeMu.Lock()
	if err := s.flushLocked(); err != nil {
		s.writeMu.Unlock()
		return nil, err
	}
	s.writeMu.Unlock()

	cacheKey := message + "." + field
	if v, ok := s.queryCache[cacheKey]; ok {
		return v, nil
	}

	table := s.tableName(message)
	var rows *sql.Rows
	var err error
	if message == "record" {
		rows, err = s.db.Query(fmt.Sprintf("SELECT timestamp, %s FROM %s ORDER BY timestamp ASC", field, table))
	} else {
		rows, err = s.db.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY id ASC", field, table))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrUnknownMessage, cacheKey, err)
	}
	defer rows.Close()

	if message == "record" {
		out := map[int64]any{}
		for rows.Next() {
			var ts int64
			var val any
			if err := rows.Scan(&ts, &val); err != nil {
				return nil, fmt.Errorf("%w: scan %s: %v", decode.ErrStoreError, cacheKey, err)
			}
			out[ts] = val
		}
		s.queryCache[cacheKey] = out
		return out, nil
	}

	var out []any
	for rows.Next() {
		var val any
		if err := rows.Scan(&val); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", decode.ErrStoreError, cacheKey, err)
		}
		out = append(out, val)
	}
	var result any = out
	if len(out) == 1 {
		result = out[0]
	}
	s.queryCache[cacheKey] = result
	return result, nil
}

// DropAll drops every table this sink has created and releases the
// underlying database handle (spec.md §3's BatchedTableSink lifecycle).
func (s *BatchedTableSink) DropAll() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for table := range s.tableExists {
		if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("%w: drop table %s: %v", decode.ErrStoreError, table, err)
		}
	}
	s.tableExists = map[string]bool{}
	s.columns = map[string]map[string]string{}
	s.queryCache = map[string]any{}
	return s.db.Close()
}

// ApplyDeveloperOverride implements decode.DeveloperOverrider: applied
// per-message before insert, per spec.md §4.5's note that the relational
// back-end applies post-processing transforms per message rather than in
// one pass over a finished sink.
func (s *BatchedTableSink) ApplyDeveloperOverride(descs []decode.DeveloperFieldDescriptor, overwrite bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table := s.tableName("record")
	pt, ok := s.pending[table]
	if !ok {
		return nil
	}
	p := decode.NewProfile()
	for _, d := range descs {
		if !d.HasNative || d.NativeMesgNum != 20 {
			continue
		}
		nativeName := p.Field(20, d.NativeField).Name
		if nativeName == "" {
			continue
		}
		for i := range pt.rows {
			devVal, hasDev := pt.rows[i].Fields[d.Name]
			if !hasDev {
				continue
			}
			if !overwrite {
				if existing, ok := pt.rows[i].Fields[nativeName]; ok && !existing.Null {
					continue
				}
			}
			pt.rows[i].Fields[nativeName] = devVal
		}
	}
	return nil
}
