// Package storage persists finished logbooks and the parse-error
// history of the runs that produced them. It never participates in
// the core pipeline (feed, sanitize, index, logbook, merge, ops are
// pure functions over in-memory structures) — only cmd wires this
// package in, as the CLI's durable output.
package storage

import (
	"time"

	"github.com/haukened/triphistory/model"
)

// LogbookWriter persists one finished logbook. As a logbook can hold
// many thousands of rows, BeginActions/EndActions bracket the calls to
// WriteAction, allowing a transaction or batch to be used underneath.
type LogbookWriter interface {
	BeginActions() error
	WriteAction(a *model.Action) error
	EndActions() error

	// WriteRun records one logify/merge invocation's outcome: when it
	// ran and which parse errors it produced.
	WriteRun(run Run) error

	Close() error
}

// LogbookReader retrieves a previously written logbook, or the run
// history recorded alongside it.
type LogbookReader interface {
	Logbook(filter LogbookFilter) (model.Logbook, error)
	Runs(filter RunFilter) ([]Run, error)
}

// LogbookFilter narrows Logbook's result set.
type LogbookFilter struct {
	// If set, only include the log for this unique_trip_id.
	UniqueTripID string

	// If set, only include rows whose route_id matches.
	RouteID string
}

// RunFilter narrows Runs' result set.
type RunFilter struct {
	// If set, only include runs started at or after this time.
	Since time.Time
}

// Run records one execution of the logify or merge CLI command.
type Run struct {
	ID          int64
	Command     string
	StartedAt   time.Time
	ParseErrors []RunParseError
}

// RunParseError is one model.ParseError flattened for storage: the
// Details bag is serialised to JSON by NewRunParseError, and backends
// store DetailsJSON as given.
type RunParseError struct {
	Kind          string
	DetailsJSON   string
	EncounteredAt time.Time
}
