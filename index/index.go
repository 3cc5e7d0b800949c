// Package index implements the Trip Indexer: within one (already
// sanitised) update, group the TripUpdate/VehicleUpdate message pair
// by trip_id, preserving first-appearance order.
package index

import "github.com/haukened/triphistory/model"

// TripPair is one trip's admissible pair of messages within an
// update.
type TripPair struct {
	TripID        string
	TripUpdate    model.TripUpdatePayload
	VehicleUpdate model.VehicleUpdatePayload
}

// Index groups u's messages by trip_id. The sanitiser guarantees
// every trip_id present has exactly one TripUpdate and one
// VehicleUpdate message, so a missing half here is a contract
// violation, not a data problem, and is skipped silently rather than
// surfaced as a ParseError.
func Index(u *model.Update) []TripPair {
	type partial struct {
		tripUpdate    *model.TripUpdatePayload
		vehicleUpdate *model.VehicleUpdatePayload
	}

	byTrip := map[string]*partial{}
	order := make([]string, 0, len(u.Messages)/2)

	for i := range u.Messages {
		m := &u.Messages[i]

		p, ok := byTrip[m.TripID]
		if !ok {
			p = &partial{}
			byTrip[m.TripID] = p
			order = append(order, m.TripID)
		}

		switch m.Kind {
		case model.TripUpdateMessage:
			p.tripUpdate = m.TripUpdate
		case model.VehicleUpdateMessage:
			p.vehicleUpdate = m.VehicleUpdate
		}
	}

	pairs := make([]TripPair, 0, len(order))
	for _, tripID := range order {
		p := byTrip[tripID]
		if p.tripUpdate == nil || p.vehicleUpdate == nil {
			continue
		}
		pairs = append(pairs, TripPair{
			TripID:        tripID,
			TripUpdate:    *p.tripUpdate,
			VehicleUpdate: *p.vehicleUpdate,
		})
	}

	return pairs
}
