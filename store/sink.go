// Package store holds the two MessageSink back-ends decoded FIT messages
// are written to: an in-memory columnar store and a batched relational
// sink backed by SQLite.
package store

import "github.com/lucasjlepore/fitdecode/decode"

// ErrUnknownMessage is returned by QueryColumn when the requested message
// name has never been inserted (spec.md §4.4.1).
var ErrUnknownMessage = errUnknownMessage{}

type errUnknownMessage struct{}

func (errUnknownMessage) Error() string { return "store: unknown message" }

// Sink is the abstract capability set spec.md §9 describes for the
// optional relational back-end: create a table, evolve its columns,
// insert rows in bulk, read a column back, and release everything.
// InMemorySink implements CreateTable/AddColumns as no-ops, matching
// spec.md §9's explicit carve-out.
type Sink interface {
	decode.Sink

	CreateTable(name string, columns []string) error
	AddColumns(name string, columns []string) error
	InsertBatch(name string, rows []map[string]any) error
	QueryColumn(message, field string) (any, error)
	DropAll() error
}

var (
	_ Sink = (*InMemorySink)(nil)
	_ Sink = (*BatchedTableSink)(nil)
)
