package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/haukened/triphistory/downloader"
	"github.com/haukened/triphistory/model"
	"github.com/haukened/triphistory/ops"
	"github.com/haukened/triphistory/storage"
)

// readSnapshots reads every regular file in dir, in filename order,
// as one raw GTFS-Realtime snapshot each — a single fixed batch.
func readSnapshots(dir string) ([][]byte, error) {
	return downloader.ReadDir(dir)
}

// watchSnapshots follows dir via downloader.Watch for logify --watch,
// accumulating snapshots until interrupted (SIGINT/SIGTERM) or the
// watch channel closes, then returns what it collected so far.
func watchSnapshots(dir string) ([][]byte, error) {
	ch, err := downloader.Watch(dir)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var snapshots [][]byte
	for {
		select {
		case body, ok := <-ch:
			if !ok {
				return snapshots, nil
			}
			snapshots = append(snapshots, body)
		case <-sigCh:
			return snapshots, nil
		}
	}
}

// writeLogbook serialises lb to path in the requested format.
func writeLogbook(lb model.Logbook, path string, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case "csv":
		return ops.ToCSV(lb, f)
	case "gtfs":
		return ops.ToGTFSStopTimes(lb, f)
	default:
		return fmt.Errorf("unknown output format %q (want csv or gtfs)", format)
	}
}

// persistLogbook writes lb's actions through w, bracketed in
// BeginActions/EndActions as storage.LogbookWriter requires, then
// records a Run noting command and the parse errors encountered
// building lb.
func persistLogbook(w storage.LogbookWriter, command string, lb model.Logbook, parseErrors []model.ParseError) error {
	if err := w.BeginActions(); err != nil {
		return fmt.Errorf("beginning storage write: %w", err)
	}
	for _, log := range lb {
		for _, a := range log {
			if err := w.WriteAction(a); err != nil {
				return fmt.Errorf("writing action: %w", err)
			}
		}
	}
	if err := w.EndActions(); err != nil {
		return fmt.Errorf("ending storage write: %w", err)
	}

	now := time.Now()
	run := storage.Run{Command: command, StartedAt: now}
	for _, pe := range parseErrors {
		rpe, err := storage.NewRunParseError(pe, now)
		if err != nil {
			return fmt.Errorf("encoding run parse error: %w", err)
		}
		run.ParseErrors = append(run.ParseErrors, rpe)
	}

	return w.WriteRun(run)
}

// openStorage opens the persistence backend named by dsn: either
// "sqlite://path" (path "" or ":memory:" for an in-memory database)
// or "postgres://<libpq connection string>". An empty dsn disables
// persistence; callers should treat a nil return as a no-op.
func openStorage(dsn string) (interface {
	GetWriter() (storage.LogbookWriter, error)
	Close() error
}, error) {
	switch {
	case dsn == "":
		return nil, nil
	case dsn == "sqlite://" || dsn == "sqlite://:memory:":
		return storage.NewSQLiteStorage()
	case strings.HasPrefix(dsn, "sqlite://"):
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Path: strings.TrimPrefix(dsn, "sqlite://")})
	case strings.HasPrefix(dsn, "postgres://"):
		return storage.NewPostgresStorage(storage.PostgresConfig{ConnString: strings.TrimPrefix(dsn, "postgres://")})
	default:
		return nil, fmt.Errorf("unrecognized --storage DSN %q (want sqlite://path or postgres://<connstring>)", dsn)
	}
}

// tripsInFlight counts logs whose last row is still EN_ROUTE_TO, i.e.
// the vehicle's onward journey was never observed to complete.
func tripsInFlight(lb model.Logbook) int {
	n := 0
	for _, log := range lb {
		if len(log) > 0 && log[len(log)-1].Kind == model.ActionEnRouteTo {
			n++
		}
	}
	return n
}

// clean applies the default post-processing pipeline for --clean:
// cut_cancellations then discard_partial_logs, per spec.md §6.
func clean(lb model.Logbook, firstTimestamp int64, meanGap float64) model.Logbook {
	cut := ops.CutCancellations(lb, meanGap, ops.DefaultCancellationThreshold)
	return ops.DiscardPartialLogs(cut, firstTimestamp)
}

// meanInterUpdateGap estimates the mean gap between updates from the
// span between the stream's first and last observed timestamps,
// spread over the number of distinct trips last seen in that span —
// a rough proxy for update count when only the finished Timestamps
// map is available.
func meanInterUpdateGap(firstTimestamp int64, ts model.Timestamps) float64 {
	if len(ts) == 0 {
		return 0
	}

	last := firstTimestamp
	for _, t := range ts {
		if t > last {
			last = t
		}
	}

	if last == firstTimestamp {
		return 0
	}

	return float64(last-firstTimestamp) / float64(len(ts))
}
