// Package sanitize implements the Stream Sanitiser: it takes a
// sequence of candidate updates and produces a sequence of
// well-formed updates plus a list of ParseErrors describing every
// elision. Every repair is a deletion; nothing is ever invented.
package sanitize

import (
	"github.com/sirupsen/logrus"

	"github.com/haukened/triphistory/model"
)

// Clean applies the rules of spec §4.2, in order, and returns the
// surviving updates (each containing only admissible trips) along
// with every ParseError encountered, in the order they were found.
func Clean(updates []*model.Update) ([]*model.Update, []model.ParseError) {
	var errs []model.ParseError

	kept := make([]*model.Update, 0, len(updates))
	var lastTimestamp int64
	haveLast := false
	seenTimestamps := map[int64]bool{}

	for i, u := range updates {
		if u == nil {
			continue
		}

		if u.Timestamp == 0 {
			errs = append(errs, record(model.FeedUpdateHasNullTimestamp, map[string]any{"index": i}))
			continue
		}

		if seenTimestamps[u.Timestamp] {
			errs = append(errs, record(model.FeedUpdatesWithDuplicateTimestamps, map[string]any{
				"index":     i,
				"timestamp": u.Timestamp,
			}))
			continue
		}

		if haveLast && u.Timestamp < lastTimestamp {
			errs = append(errs, record(model.FeedUpdateGoesBackwardsInTime, map[string]any{
				"index":          i,
				"timestamp":      u.Timestamp,
				"last_timestamp": lastTimestamp,
			}))
			continue
		}

		seenTimestamps[u.Timestamp] = true
		lastTimestamp = u.Timestamp
		haveLast = true

		cleaned, msgErrs := cleanMessages(u)
		errs = append(errs, msgErrs...)

		kept = append(kept, &model.Update{
			Timestamp: u.Timestamp,
			Messages:  cleaned,
		})
	}

	if len(errs) > 0 {
		logrus.WithField("count", len(errs)).Debug("sanitize: dropped items from stream")
	}

	return kept, errs
}

// cleanMessages applies rule 5 (message-level invariants) to one
// update's messages, and returns only admissible trips: exactly one
// TripUpdate and one VehicleUpdate per trip_id, with at least one
// remaining stop.
func cleanMessages(u *model.Update) ([]model.Message, []model.ParseError) {
	var errs []model.ParseError

	type pair struct {
		tripUpdate    *model.Message
		vehicleUpdate *model.Message
	}
	byTrip := map[string]*pair{}
	order := []string{}

	for idx := range u.Messages {
		m := &u.Messages[idx]

		if m.TripID == "" {
			errs = append(errs, record(model.MessageWithNullTripID, map[string]any{
				"timestamp": u.Timestamp,
			}))
			continue
		}

		p, ok := byTrip[m.TripID]
		if !ok {
			p = &pair{}
			byTrip[m.TripID] = p
			order = append(order, m.TripID)
		}

		switch m.Kind {
		case model.TripUpdateMessage:
			p.tripUpdate = m
		case model.VehicleUpdateMessage:
			p.vehicleUpdate = m
		}
	}

	result := make([]model.Message, 0, len(u.Messages))
	for _, tripID := range order {
		p := byTrip[tripID]

		if p.tripUpdate != nil && len(p.tripUpdate.TripUpdate.Stops) == 0 {
			errs = append(errs, record(model.TripHasTripUpdateWithNoStopsRemaining, map[string]any{
				"timestamp": u.Timestamp,
				"trip_id":   tripID,
			}))
			continue
		}

		if p.tripUpdate != nil && p.vehicleUpdate == nil {
			errs = append(errs, record(model.TripIDWithTripUpdateButNoVehicleUpdate, map[string]any{
				"timestamp": u.Timestamp,
				"trip_id":   tripID,
			}))
			continue
		}

		if p.vehicleUpdate != nil && p.tripUpdate == nil {
			errs = append(errs, record(model.TripIDWithTripUpdateButNoVehicleUpdate, map[string]any{
				"timestamp": u.Timestamp,
				"trip_id":   tripID,
				"missing":   "trip_update",
			}))
			continue
		}

		result = append(result, *p.tripUpdate, *p.vehicleUpdate)
	}

	return result, errs
}

func record(kind model.ParseErrorKind, details map[string]any) model.ParseError {
	return model.NewParseError(kind, details)
}
