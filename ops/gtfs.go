package ops

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/haukened/triphistory/model"
)

// gtfsStopTimeRow mirrors the subset of GTFS static's stop_times.txt
// schema this export can actually populate from a logbook.
type gtfsStopTimeRow struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
}

// ToGTFSStopTimes exports lb as a GTFS static stop_times.txt. Rows
// with no arrival or departure recorded, and EN_ROUTE_TO rows (never
// confirmed at the stop), are omitted.
func ToGTFSStopTimes(lb model.Logbook, w io.Writer) error {
	rows := []*gtfsStopTimeRow{}

	for _, uid := range sortedUIDs(lb) {
		seq := 0
		for _, a := range lb[uid] {
			if a.Kind == model.ActionEnRouteTo {
				continue
			}
			if a.MinimumTime == nil || a.MaximumTime == nil {
				continue
			}

			seq++
			rows = append(rows, &gtfsStopTimeRow{
				TripID:        uid,
				ArrivalTime:   formatGTFSTime(a.MinimumTime),
				DepartureTime: formatGTFSTime(a.MaximumTime),
				StopID:        a.StopID,
				StopSequence:  seq,
			})
		}
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return errors.Wrap(err, "marshaling gtfs stop_times")
	}
	return nil
}

// formatGTFSTime renders a nullable epoch second in GTFS's HH:MM:SS
// form, with hours counted from the epoch and not wrapped at 24,
// empty when absent. The export works in raw epoch
// seconds rather than a calendar clock: callers mapping a logbook onto
// a specific service day are responsible for that conversion upstream.
func formatGTFSTime(t *int64) string {
	if t == nil {
		return ""
	}
	secs := *t
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
