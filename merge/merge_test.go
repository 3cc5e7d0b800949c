package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/triphistory/logbook"
	"github.com/haukened/triphistory/model"
)

func buildWindow(add func(b *logbook.Builder)) Window {
	b := logbook.NewBuilder()
	add(b)
	lb, ts := b.Finish()
	return Window{Logbook: lb, Timestamps: ts}
}

func stopUpdate(ts int64, tripID string, status model.VehicleStatus, stopIDs ...string) *model.Update {
	stops := make([]model.StopTimeUpdate, 0, len(stopIDs))
	for _, id := range stopIDs {
		stops = append(stops, model.StopTimeUpdate{StopID: id})
	}
	return &model.Update{
		Timestamp: ts,
		Messages: []model.Message{
			{
				TripID:     tripID,
				Kind:       model.TripUpdateMessage,
				TripUpdate: &model.TripUpdatePayload{RouteID: "R1", Stops: stops},
			},
			{
				TripID: tripID,
				Kind:   model.VehicleUpdateMessage,
				VehicleUpdate: &model.VehicleUpdatePayload{
					StopID:        stopIDs[0],
					CurrentStatus: status,
					Timestamp:     ts,
				},
			},
		},
	}
}

func findRow(log model.Log, stopID string) *model.Action {
	for _, a := range log {
		if a.StopID == stopID {
			return a
		}
	}
	return nil
}

// Scenario 6 from spec §8: a trip crossing a window boundary gets
// spliced into one continuous physical trip.
func TestMergeSplicesBoundaryCrossingTrip(t *testing.T) {
	w1 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(100, "X", model.InTransitTo, "A", "B", "C"))
		b.Add(stopUpdate(200, "X", model.InTransitTo, "A", "B", "C"))
	})
	w2 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(300, "X", model.StoppedAt, "B", "C"))
	})

	lb, ts, err := Merge([]Window{w1, w2})
	require.NoError(t, err)
	require.Len(t, lb, 1)

	var log model.Log
	var uid string
	for k, v := range lb {
		uid, log = k, v
	}
	require.Len(t, log, 3)

	a := findRow(log, "A")
	assert.Equal(t, model.ActionStoppedOrSkipped, a.Kind)
	assert.Equal(t, int64(200), *a.MinimumTime)
	assert.Equal(t, int64(300), *a.MaximumTime)

	b := findRow(log, "B")
	assert.Equal(t, model.ActionStoppedAt, b.Kind)
	assert.Equal(t, int64(300), *b.MinimumTime)
	assert.Nil(t, b.MaximumTime)

	c := findRow(log, "C")
	assert.Equal(t, model.ActionEnRouteTo, c.Kind)
	assert.Equal(t, int64(300), *c.MinimumTime)
	assert.Nil(t, c.MaximumTime)

	assert.Equal(t, int64(300), ts[uid])
}

// A trip that terminates cleanly within its own window (no open tail
// at the window boundary) must not be touched by the merger, even
// when the following window reuses its feed trip_id for an unrelated
// physical trip.
func TestMergeLeavesClosedTripsAlone(t *testing.T) {
	w1 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(100, "X", model.InTransitTo, "A"))
		b.Add(stopUpdate(200, "Y", model.InTransitTo, "Q")) // X terminates by silence
	})
	w2 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(300, "X", model.InTransitTo, "M"))
	})

	lb, _, err := Merge([]Window{w1, w2})
	require.NoError(t, err)
	require.Len(t, lb, 3)

	for _, log := range lb {
		if findRow(log, "A") != nil {
			a := findRow(log, "A")
			assert.Equal(t, model.ActionStoppedOrSkipped, a.Kind)
			assert.Equal(t, int64(200), *a.MaximumTime)
		}
	}
}

// Trips with no continuation candidate pass through untouched, and
// unmatched trips from the later window are carried over as-is.
func TestMergePassesThroughUnmatchedTrips(t *testing.T) {
	w1 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(100, "X", model.InTransitTo, "A", "B"))
	})
	w2 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(300, "Z", model.InTransitTo, "M"))
	})

	lb, _, err := Merge([]Window{w1, w2})
	require.NoError(t, err)
	require.Len(t, lb, 2)
}

func TestMergeRejectsOverlappingWindows(t *testing.T) {
	w1 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(100, "X", model.InTransitTo, "A"))
		b.Add(stopUpdate(300, "X", model.InTransitTo, "A"))
	})
	w2 := buildWindow(func(b *logbook.Builder) {
		b.Add(stopUpdate(200, "X", model.InTransitTo, "A"))
	})

	_, _, err := Merge([]Window{w1, w2})
	assert.Error(t, err)
}

func TestMergeEmptyInput(t *testing.T) {
	lb, ts, err := Merge(nil)
	require.NoError(t, err)
	assert.Empty(t, lb)
	assert.Empty(t, ts)
}
