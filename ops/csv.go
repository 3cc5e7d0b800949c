package ops

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/haukened/triphistory/model"
)

// actionRow is the CSV-bound shape of one model.Action, per the
// stable schema: trip_id,route_id,action,minimum_time,maximum_time,
// stop_id,latest_information_time,unique_trip_id.
type actionRow struct {
	TripID                string `csv:"trip_id"`
	RouteID               string `csv:"route_id"`
	Action                string `csv:"action"`
	MinimumTime           string `csv:"minimum_time"`
	MaximumTime           string `csv:"maximum_time"`
	StopID                string `csv:"stop_id"`
	LatestInformationTime string `csv:"latest_information_time"`
	UniqueTripID          string `csv:"unique_trip_id"`
}

// ToCSV serialises a logbook in unique_trip_id order, each group's
// rows in stop (i.e. log) order.
func ToCSV(lb model.Logbook, w io.Writer) error {
	rows := make([]*actionRow, 0)

	for _, uid := range sortedUIDs(lb) {
		for _, a := range lb[uid] {
			rows = append(rows, &actionRow{
				TripID:                a.TripID,
				RouteID:               a.RouteID,
				Action:                a.Kind.String(),
				MinimumTime:           formatNullableTime(a.MinimumTime),
				MaximumTime:           formatNullableTime(a.MaximumTime),
				StopID:                a.StopID,
				LatestInformationTime: strconv.FormatInt(a.LatestInformationTime, 10),
				UniqueTripID:          a.UniqueTripID,
			})
		}
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return errors.Wrap(err, "marshaling logbook csv")
	}
	return nil
}

// FromCSV parses a logbook back from the schema ToCSV produces,
// reconstructing groups by unique_trip_id and preserving row order
// within each group.
func FromCSV(r io.Reader) (model.Logbook, error) {
	rows := []*actionRow{}
	if err := gocsv.UnmarshalToCallbackWithError(bom.NewReader(r), func(row *actionRow) error {
		rows = append(rows, row)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshaling logbook csv")
	}

	lb := model.Logbook{}
	for i, row := range rows {
		kind, err := parseActionKind(row.Action)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}

		minTime, err := parseNullableTime(row.MinimumTime)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: minimum_time", i+1)
		}
		maxTime, err := parseNullableTime(row.MaximumTime)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: maximum_time", i+1)
		}
		latest, err := strconv.ParseInt(row.LatestInformationTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: latest_information_time", i+1)
		}

		lb[row.UniqueTripID] = append(lb[row.UniqueTripID], &model.Action{
			TripID:                row.TripID,
			RouteID:               row.RouteID,
			Kind:                  kind,
			MinimumTime:           minTime,
			MaximumTime:           maxTime,
			StopID:                row.StopID,
			LatestInformationTime: latest,
			UniqueTripID:          row.UniqueTripID,
		})
	}

	return lb, nil
}

func formatNullableTime(t *int64) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(*t, 10)
}

func parseNullableTime(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseActionKind(s string) (model.ActionKind, error) {
	switch s {
	case "STOPPED_AT":
		return model.ActionStoppedAt, nil
	case "STOPPED_OR_SKIPPED":
		return model.ActionStoppedOrSkipped, nil
	case "EN_ROUTE_TO":
		return model.ActionEnRouteTo, nil
	default:
		return 0, errors.Errorf("unknown action %q", s)
	}
}
