package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/haukened/triphistory/model"
)

// PostgresConfig holds a libpq connection string, e.g.
// "host=localhost dbname=triphistory sslmode=disable".
type PostgresConfig struct {
	ConnString string
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(cfg PostgresConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schemaPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS action (
    trip_id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    action TEXT NOT NULL,
    minimum_time BIGINT,
    maximum_time BIGINT,
    stop_id TEXT NOT NULL,
    latest_information_time BIGINT NOT NULL,
    unique_trip_id TEXT NOT NULL,
    row_order INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS action_unique_trip_id ON action (unique_trip_id);
CREATE INDEX IF NOT EXISTS action_route_id ON action (route_id);

CREATE TABLE IF NOT EXISTS run (
    id SERIAL PRIMARY KEY,
    command TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS run_parse_error (
    run_id INTEGER NOT NULL REFERENCES run(id),
    kind TEXT NOT NULL,
    details_json TEXT NOT NULL,
    encountered_at TIMESTAMPTZ NOT NULL
);
`

type postgresLogbookWriter struct {
	db             *sql.DB
	actionInsertTx *sql.Tx
	actionInsert   *sql.Stmt
	rowOrder       map[string]int
}

func (s *PostgresStorage) GetWriter() (LogbookWriter, error) {
	return &postgresLogbookWriter{db: s.db, rowOrder: map[string]int{}}, nil
}

func (s *PostgresStorage) GetReader() (LogbookReader, error) {
	return &postgresLogbookReader{db: s.db}, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (w *postgresLogbookWriter) BeginActions() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO action (trip_id, route_id, action, minimum_time, maximum_time, stop_id, latest_information_time, unique_trip_id, row_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}

	w.actionInsertTx = tx
	w.actionInsert = stmt
	return nil
}

// WriteAction tracks row order per unique_trip_id in memory rather
// than with a per-row COUNT query, since postgres transactions pay a
// round trip for every statement.
func (w *postgresLogbookWriter) WriteAction(a *model.Action) error {
	if w.actionInsert == nil {
		return fmt.Errorf("WriteAction called without BeginActions")
	}

	order := w.rowOrder[a.UniqueTripID]
	w.rowOrder[a.UniqueTripID] = order + 1

	_, err := w.actionInsert.Exec(
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

func (w *postgresLogbookWriter) EndActions() error {
	if err := w.actionInsert.Close(); err != nil {
		w.actionInsertTx.Rollback()
		return fmt.Errorf("closing insert statement: %w", err)
	}
	if err := w.actionInsertTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	w.actionInsert = nil
	w.actionInsertTx = nil
	w.rowOrder = map[string]int{}
	return nil
}

func (w *postgresLogbookWriter) WriteRun(run Run) error {
	var runID int64
	err := w.db.QueryRow(
		`INSERT INTO run (command, started_at) VALUES ($1, $2) RETURNING id`,
		run.Command, run.StartedAt,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, pe := range run.ParseErrors {
		_, err := w.db.Exec(
			`INSERT INTO run_parse_error (run_id, kind, details_json, encountered_at) VALUES ($1, $2, $3, $4)`,
			runID, pe.Kind, pe.DetailsJSON, pe.EncounteredAt,
		)
		if err != nil {
			return fmt.Errorf("inserting run parse error: %w", err)
		}
	}

	return nil
}

func (w *postgresLogbookWriter) Close() error {
	return nil
}

type postgresLogbookReader struct {
	db *sql.DB
}

func (r *postgresLogbookReader) Logbook(filter LogbookFilter) (model.Logbook, error) {
	query := `SELECT trip_id, route_id, action, minimum_time, maximum_time, stop_id, latest_information_time, unique_trip_id FROM action`
	args := []any{}
	where := []string{}

	if filter.UniqueTripID != "" {
		args = append(args, filter.UniqueTripID)
		where = append(where, fmt.Sprintf("unique_trip_id = $%d", len(args)))
	}
	if filter.RouteID != "" {
		args = append(args, filter.RouteID)
		where = append(where, fmt.Sprintf("route_id = $%d", len(args)))
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

func (r *postgresLogbookReader) Runs(filter RunFilter) ([]Run, error) {
	query := `SELECT id, command, started_at FROM run`
	args := []any{}
	if !filter.Since.IsZero() {
		query += " WHERE started_at >= $1"
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
			`SELECT kind, details_json, encountered_at FROM run_parse_error WHERE run_id = $1`, runs[i].ID,
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
