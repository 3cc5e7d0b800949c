// Package logbook implements the Logbook Builder: the stream
// differential state machine that consumes a sequence of sanitised
// updates and produces, per physical trip, an ordered log of actions
// bounded by arrival/departure time intervals.
//
// A Builder owns two maps for the lifetime of a stream: alias (feed
// trip_id -> unique trip id) and inFlight (unique trip id -> the
// log being built for it). Both exist to survive identifier
// recycling: a feed trip_id can be reused by a different physical
// trip once its previous owner has terminated.
package logbook

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/haukened/triphistory/index"
	"github.com/haukened/triphistory/model"
)

// logEntry is the Builder's working state for one physical trip:
// the log built so far, an index from stop_id to its row (so
// reconciliation doesn't rescan the log on every update), and the
// ordered set of stops still open (EN_ROUTE_TO, or STOPPED_AT with no
// departure bound yet) as of the last update this trip appeared in.
type logEntry struct {
	uniqueID  string
	feedTrip  string
	log       model.Log
	stopIdx   map[string]int
	openStops []string
}

// Builder is the Logbook Builder state machine. It is single-
// threaded: Add must be called with updates in strictly increasing
// timestamp order (the sanitiser guarantees this for the stream it
// produces). Not safe for concurrent use by multiple goroutines.
type Builder struct {
	inFlight   map[string]*logEntry
	alias      map[string]string
	finished   model.Logbook
	timestamps model.Timestamps

	// newUniqueID mints identifiers for newly observed trips.
	// Overridable in tests so fixtures can assert on exact ids.
	newUniqueID func() string
}

// NewBuilder returns an empty Builder ready to consume updates.
func NewBuilder() *Builder {
	return &Builder{
		inFlight:    map[string]*logEntry{},
		alias:       map[string]string{},
		finished:    model.Logbook{},
		timestamps:  model.Timestamps{},
		newUniqueID: func() string { return uuid.NewString() },
	}
}

// Add processes one sanitised update, advancing the state machine by
// one step. u must have a strictly greater timestamp than any update
// previously passed to Add; the sanitiser's Clean is responsible for
// guaranteeing that upstream.
func (b *Builder) Add(u *model.Update) {
	tk := u.Timestamp
	pairs := index.Index(u)

	present := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		present[p.TripID] = true
	}

	// Phase A — correspondence. terminating ids are computed from
	// the alias map as it stood before this update touched it.
	terminating := make([]string, 0)
	for feedID := range b.alias {
		if !present[feedID] {
			terminating = append(terminating, feedID)
		}
	}

	// Phase C — termination. Done before minting so a feed id that
	// happens to be both absent here and re-minted in a later
	// update (the only way recycling can occur) always finds a
	// clean alias slot.
	for _, feedID := range terminating {
		b.terminate(feedID, tk)
	}

	// Phase B — per-trip reconciliation, for continuing and new
	// trips alike. New feed ids are minted into the alias map
	// lazily, the first time they're seen.
	for _, pair := range pairs {
		uid, ok := b.alias[pair.TripID]
		if !ok {
			uid = b.newUniqueID()
			b.alias[pair.TripID] = uid
			b.inFlight[uid] = &logEntry{
				uniqueID: uid,
				feedTrip: pair.TripID,
				stopIdx:  map[string]int{},
			}
		}

		entry := b.inFlight[uid]
		entry.feedTrip = pair.TripID
		b.reconcile(entry, pair.TripID, pair.TripUpdate.RouteID, pair.TripUpdate.Stops, pair.VehicleUpdate.CurrentStatus, tk)
		b.timestamps[uid] = tk
	}
}

// reconcile applies Phase B of the builder to one trip: it computes
// the future suffix implied by stops and status, folds it into
// entry's log (creating new rows, bumping latest_information_time on
// rows already seen), and finalises any previously-open stop that
// fell out of the suffix.
func (b *Builder) reconcile(
	entry *logEntry,
	tripID string,
	routeID string,
	stops []model.StopTimeUpdate,
	status model.VehicleStatus,
	tk int64,
) {
	newOpen := make([]string, 0, len(stops))
	newOpenSet := make(map[string]bool, len(stops))

	for i, s := range stops {
		newOpenSet[s.StopID] = true
		newOpen = append(newOpen, s.StopID)

		kind, minTime := suffixAction(i, status, s, tk)

		if idx, ok := entry.stopIdx[s.StopID]; ok {
			existing := entry.log[idx]
			existing.RouteID = routeID
			existing.LatestInformationTime = tk

			if existing.Kind == model.ActionStoppedAt {
				// Invariant: STOPPED_AT never reverts.
				continue
			}

			if kind == model.ActionStoppedAt {
				existing.Kind = model.ActionStoppedAt
			}
			// EN_ROUTE_TO rows carry the current update's
			// timestamp as their minimum_time on every touch,
			// same as a freshly observed one; only a committed
			// STOPPED_AT keeps its original arrival bound.
			existing.MinimumTime = minTime
			existing.MaximumTime = nil
			continue
		}

		entry.log = append(entry.log, &model.Action{
			TripID:                tripID,
			RouteID:               routeID,
			Kind:                  kind,
			MinimumTime:           minTime,
			StopID:                s.StopID,
			LatestInformationTime: tk,
			UniqueTripID:          entry.uniqueID,
		})
		entry.stopIdx[s.StopID] = len(entry.log) - 1
	}

	for _, stopID := range entry.openStops {
		if newOpenSet[stopID] {
			continue
		}
		finalizeStop(entry.log[entry.stopIdx[stopID]], tk)
	}

	entry.openStops = newOpen
}

// suffixAction computes the kind and minimum_time for the i-th stop
// of a future suffix, per the table in the builder's design: only the
// first stop (the vehicle's current or imminent one) can be
// STOPPED_AT, and only when current_status says so.
func suffixAction(i int, status model.VehicleStatus, s model.StopTimeUpdate, tk int64) (model.ActionKind, *int64) {
	if i == 0 && status == model.StoppedAt {
		minTime := model.Ptr(tk)
		if s.Arrival != nil && *s.Arrival < tk {
			minTime = s.Arrival
		}
		return model.ActionStoppedAt, minTime
	}
	return model.ActionEnRouteTo, model.Ptr(tk)
}

// finalizeStop closes out a row that fell off the tracked suffix
// between two updates: a parked vehicle that departed gets its
// departure bound set; anything still EN_ROUTE_TO was passed through
// without confirmation and becomes STOPPED_OR_SKIPPED.
func finalizeStop(a *model.Action, tk int64) {
	if a.Kind == model.ActionStoppedAt {
		a.MaximumTime = model.Ptr(tk)
	} else {
		a.Kind = model.ActionStoppedOrSkipped
		a.MaximumTime = model.Ptr(tk)
	}
	a.LatestInformationTime = tk
}

// terminate moves a feed id's physical trip out of in-flight and into
// the finished logbook: every stop still open is finalised exactly as
// in reconcile's disappearance handling, using tk as the boundary at
// which the vehicle was last known to exist.
func (b *Builder) terminate(feedID string, tk int64) {
	uid := b.alias[feedID]
	entry := b.inFlight[uid]

	for _, stopID := range entry.openStops {
		finalizeStop(entry.log[entry.stopIdx[stopID]], tk)
	}
	entry.openStops = nil

	b.finished[uid] = entry.log
	b.timestamps[uid] = tk

	delete(b.inFlight, uid)
	delete(b.alias, feedID)

	logrus.WithFields(logrus.Fields{
		"feed_trip_id":   feedID,
		"unique_trip_id": uid,
		"timestamp":      tk,
	}).Debug("logbook: trip terminated")
}

// Finish flushes every still in-flight trip into the logbook, tail
// actions left as EN_ROUTE_TO (or STOPPED_AT with no departure bound)
// since no further information was ever observed about them. It
// consumes the Builder: calling Add after Finish produces undefined
// results.
func (b *Builder) Finish() (model.Logbook, model.Timestamps) {
	for uid, entry := range b.inFlight {
		b.finished[uid] = entry.log
	}
	b.inFlight = map[string]*logEntry{}
	b.alias = map[string]string{}

	return b.finished, b.timestamps
}
