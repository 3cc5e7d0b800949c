package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haukened/triphistory/model"
)

// SQLiteConfig controls where SQLiteStorage keeps its database. The
// zero value is an in-memory database, useful for tests.
type SQLiteConfig struct {
	OnDisk bool
	Path   string
}

type SQLiteStorage struct {
	SQLiteConfig
	db *sql.DB
}

type sqliteLogbookWriter struct {
	db             *sql.DB
	actionInsertTx *sql.Tx
	actionInsert   *sql.Stmt
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk, path := false, ""
	if len(cfg) > 0 {
		onDisk, path = cfg[0].OnDisk, cfg[0].Path
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = path
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schemaSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{OnDisk: onDisk, Path: path},
		db:           db,
	}, nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS action (
    trip_id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    action TEXT NOT NULL,
    minimum_time INTEGER,
    maximum_time INTEGER,
    stop_id TEXT NOT NULL,
    latest_information_time INTEGER NOT NULL,
    unique_trip_id TEXT NOT NULL,
    row_order INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS action_unique_trip_id ON action (unique_trip_id);
CREATE INDEX IF NOT EXISTS action_route_id ON action (route_id);

CREATE TABLE IF NOT EXISTS run (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    command TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS run_parse_error (
    run_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    details_json TEXT NOT NULL,
    encountered_at TIMESTAMP NOT NULL
);
`

func (s *SQLiteStorage) GetWriter() (LogbookWriter, error) {
	return &sqliteLogbookWriter{db: s.db}, nil
}

func (s *SQLiteStorage) GetReader() (LogbookReader, error) {
	return &sqliteLogbookReader{db: s.db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (w *sqliteLogbookWriter) BeginActions() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO action (trip_id, route_id, action, minimum_time, maximum_time, stop_id, latest_information_time, unique_trip_id, row_order)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}

	w.actionInsertTx = tx
	w.actionInsert = stmt
	return nil
}

func (w *sqliteLogbookWriter) WriteAction(a *model.Action) error {
	if w.actionInsert == nil {
		return fmt.Errorf("WriteAction called without BeginActions")
	}

	order, err := nextRowOrder(w.actionInsertTx, a.UniqueTripID)
	if err != nil {
		return err
	}

	_, err = w.actionInsert.Exec(
		a.TripID,
		a.RouteID,
		a.Kind.String(),
		nullableInt64(a.MinimumTime),
		nullableInt64(a.MaximumTime),
		a.StopID,
		a.LatestInformationTime,
		a.UniqueTripID,
		order,
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}

func nextRowOrder(tx *sql.Tx, uniqueTripID string) (int, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM action WHERE unique_trip_id = ?`, uniqueTripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting rows for %s: %w", uniqueTripID, err)
	}
	return n, nil
}

func (w *sqliteLogbookWriter) EndActions() error {
	if err := w.actionInsert.Close(); err != nil {
		w.actionInsertTx.Rollback()
		return fmt.Errorf("closing insert statement: %w", err)
	}
	if err := w.actionInsertTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	w.actionInsert = nil
	w.actionInsertTx = nil
	return nil
}

func (w *sqliteLogbookWriter) WriteRun(run Run) error {
	res, err := w.db.Exec(`INSERT INTO run (command, started_at) VALUES (?, ?)`, run.Command, run.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}

	for _, pe := range run.ParseErrors {
		_, err := w.db.Exec(
			`INSERT INTO run_parse_error (run_id, kind, details_json, encountered_at) VALUES (?, ?, ?, ?)`,
			runID, pe.Kind, pe.DetailsJSON, pe.EncounteredAt,
		)
		if err != nil {
			return fmt.Errorf("inserting run parse error: %w", err)
		}
	}

	return nil
}

func (w *sqliteLogbookWriter) Close() error {
	return nil
}

type sqliteLogbookReader struct {
	db *sql.DB
}

func (r *sqliteLogbookReader) Logbook(filter LogbookFilter) (model.Logbook, error) {
	query := `SELECT trip_id, route_id, action, minimum_time, maximum_time, stop_id, latest_information_time, unique_trip_id FROM action`
	args := []any{}
	where := []string{}

	if filter.UniqueTripID != "" {
		where = append(where, "unique_trip_id = ?")
		args = append(args, filter.UniqueTripID)
	}
	if filter.RouteID != "" {
		where = append(where, "route_id = ?")
		args = append(args, filter.RouteID)
	}
	if len(where) > 0 {
		query += " WHERE " + joinAnd(where)
	}
	query += " ORDER BY unique_trip_id, row_order"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	lb := model.Logbook{}
	for rows.Next() {
		var (
			tripID, routeID, action, stopID, uniqueTripID string
			minTime, maxTime                              sql.NullInt64
			latest                                        int64
		)
		if err := rows.Scan(&tripID, &routeID, &action, &minTime, &maxTime, &stopID, &latest, &uniqueTripID); err != nil {
			return nil, fmt.Errorf("scanning action row: %w", err)
		}

		kind, err := parseActionKindForStorage(action)
		if err != nil {
			return nil, err
		}

		lb[uniqueTripID] = append(lb[uniqueTripID], &model.Action{
			TripID:                tripID,
			RouteID:               routeID,
			Kind:                  kind,
			MinimumTime:           nullInt64Ptr(minTime),
			MaximumTime:           nullInt64Ptr(maxTime),
			StopID:                stopID,
			LatestInformationTime: latest,
			UniqueTripID:          uniqueTripID,
		})
	}

	return lb, rows.Err()
}

func (r *sqliteLogbookReader) Runs(filter RunFilter) ([]Run, error) {
	query := `SELECT id, command, started_at FROM run`
	args := []any{}
	if !filter.Since.IsZero() {
		query += " WHERE started_at >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY started_at"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Command, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		errRows, err := r.db.Query(
			`SELECT kind, details_json, encountered_at FROM run_parse_error WHERE run_id = ?`, runs[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("querying run parse errors: %w", err)
		}
		for errRows.Next() {
			var pe RunParseError
			if err := errRows.Scan(&pe.Kind, &pe.DetailsJSON, &pe.EncounteredAt); err != nil {
				errRows.Close()
				return nil, fmt.Errorf("scanning run parse error row: %w", err)
			}
			runs[i].ParseErrors = append(runs[i].ParseErrors, pe)
		}
		errRows.Close()
	}

	return runs, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func parseActionKindForStorage(s string) (model.ActionKind, error) {
	switch s {
	case "STOPPED_AT":
		return model.ActionStoppedAt, nil
	case "STOPPED_OR_SKIPPED":
		return model.ActionStoppedOrSkipped, nil
	case "EN_ROUTE_TO":
		return model.ActionEnRouteTo, nil
	default:
		return 0, fmt.Errorf("unknown action %q in storage", s)
	}
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

// marshalDetails is a convenience for callers building a Run from
// model.ParseErrors before handing it to WriteRun.
func marshalDetails(details map[string]any) (string, error) {
	b, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshaling parse error details: %w", err)
	}
	return string(b), nil
}

// NewRunParseError builds a RunParseError from a model.ParseError,
// JSON-encoding its details bag.
func NewRunParseError(pe model.ParseError, at time.Time) (RunParseError, error) {
	detailsJSON, err := marshalDetails(pe.Details)
	if err != nil {
		return RunParseError{}, err
	}
	return RunParseError{
		Kind:          pe.Kind.String(),
		DetailsJSON:   detailsJSON,
		EncounteredAt: at,
	}, nil
}
