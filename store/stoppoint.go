package store

import (
	"fmt"
	"sort"

	"github.com/lucasjlepore/fitdecode/decode"
)

// StopPointBatchSize is the ascending-timestamp batch size the stop-point
// scan walks the record table in (spec.md §4.8).
const StopPointBatchSize = 1000

// IsStopped is the caller-supplied predicate that classifies a record row
// as stopped (spec.md §4.8).
type IsStopped func(row map[string]any) bool

// ComputeStopPoints walks the record table in ascending-timestamp batches,
// enforcing monotonic non-decreasing distance and tagging stopped rows via
// predicate, grounded on sqliteagg.Aggregator.IteratePrefixes's ascending-
// key batch-scan pattern over database/sql.
func (s *BatchedTableSink) ComputeStopPoints(predicate IsStopped, pacer decode.Pacer) error {
	s.writeMu.Lock()
	if err := s.flushLocked(); err != nil {
		s.writeMu.Unlock()
		return err
	}
	table := s.tableName("record")
	if !s.tableExists[table] {
		s.writeMu.Unlock()
		return nil
	}
	s.writeMu.Unlock()

	var lastTS int64
	var distDelta float64
	var lastDistance float64
	haveLast := false
	iter := 0

	for {
		rows, err := s.db.Query(
			fmt.Sprintf("SELECT id, timestamp, distance FROM %s WHERE timestamp >= ? ORDER BY timestamp ASC LIMIT ?", table),
			lastTS, StopPointBatchSize,
		)
		if err != nil {
			return fmt.Errorf("%w: stop-point scan: %v", decode.ErrStoreError, err)
		}

		type batchRow struct {
			id       int64
			ts       int64
			distance float64
		}
		var batch []batchRow
		for rows.Next() {
			var r batchRow
			if err := rows.Scan(&r.id, &r.ts, &r.distance); err != nil {
				rows.Close()
				return fmt.Errorf("%w: scan stop-point row: %v", decode.ErrStoreError, err)
			}
			batch = append(batch, r)
		}
		rows.Close()
		if len(batch) == 0 {
			break
		}

		sort.Slice(batch, func(i, j int) bool { return batch[i].ts < batch[j].ts })

		for _, r := range batch {
			iter++
			if pacer != nil && iter%decode.PacerInterval == 0 {
				pacer.Tick()
			}

			adjusted := r.distance + distDelta
			if haveLast && adjusted < lastDistance {
				distDelta += lastDistance - adjusted
				adjusted = lastDistance
			}
			if adjusted != r.distance {
				if _, err := s.db.Exec(fmt.Sprintf("UPDATE %s SET distance = ? WHERE id = ?", table), adjusted, r.id); err != nil {
					return fmt.Errorf("%w: rewrite distance for id %d: %v", decode.ErrStoreError, r.id, err)
				}
			}
			lastDistance, haveLast = adjusted, true

			stopped := predicate(map[string]any{"id": r.id, "timestamp": r.ts, "distance": adjusted})
			if stopped {
				if _, err := s.db.Exec(fmt.Sprintf("UPDATE %s SET stopped = 1 WHERE id = ?", table), r.id); err != nil {
					return fmt.Errorf("%w: set stopped for id %d: %v", decode.ErrStoreError, r.id, err)
				}
			}
		}

		lastTS = batch[len(batch)-1].ts + 1
	}
	return nil
}
