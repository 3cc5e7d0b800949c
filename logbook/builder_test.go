package logbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/triphistory/model"
)

func update(ts int64, tripID string, status model.VehicleStatus, stopIDs ...string) *model.Update {
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

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return []string{"uid-1", "uid-2", "uid-3"}[n-1]
	}
}

func action(log model.Log, stopID string) *model.Action {
	for _, a := range log {
		if a.StopID == stopID {
			return a
		}
	}
	return nil
}

// Scenario 1 from spec §8.
func TestBuilderMidTripSkip(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.InTransitTo, "A", "B", "C"))
	b.Add(update(200, "X", model.InTransitTo, "B", "C"))

	lb, ts := b.Finish()
	require.Len(t, lb, 1)

	log := lb["uid-1"]
	require.Len(t, log, 3)

	a := action(log, "A")
	assert.Equal(t, model.ActionStoppedOrSkipped, a.Kind)
	assert.Equal(t, int64(100), *a.MinimumTime)
	assert.Equal(t, int64(200), *a.MaximumTime)
	assert.Equal(t, int64(200), a.LatestInformationTime)

	bRow := action(log, "B")
	assert.Equal(t, model.ActionEnRouteTo, bRow.Kind)
	assert.Equal(t, int64(200), *bRow.MinimumTime)
	assert.Nil(t, bRow.MaximumTime)
	assert.Equal(t, int64(200), bRow.LatestInformationTime)

	cRow := action(log, "C")
	assert.Equal(t, model.ActionEnRouteTo, cRow.Kind)
	assert.Equal(t, int64(200), *cRow.MinimumTime)

	assert.Equal(t, int64(200), ts["uid-1"])
}

// Scenario 2 from spec §8.
func TestBuilderTerminationBySilence(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.InTransitTo, "A", "B"))
	b.Add(update(200, "Y", model.InTransitTo, "P"))

	lb, _ := b.Finish()
	require.Len(t, lb, 2)

	xLog := lb["uid-1"]
	require.Len(t, xLog, 2)
	for _, id := range []string{"A", "B"} {
		a := action(xLog, id)
		assert.Equal(t, model.ActionStoppedOrSkipped, a.Kind)
		assert.Equal(t, int64(200), *a.MaximumTime)
	}
}

// Scenario 3 from spec §8: id recycling.
func TestBuilderIDRecycling(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.InTransitTo, "A", "B"))
	b.Add(update(200, "Y", model.InTransitTo, "Z")) // X absent -> terminates
	b.Add(update(300, "X", model.InTransitTo, "P", "Q"))

	lb, _ := b.Finish()
	require.Len(t, lb, 3)

	first := lb["uid-1"]
	assert.Equal(t, "A", first[0].StopID)
	assert.Equal(t, model.ActionStoppedOrSkipped, first[0].Kind)
	assert.Equal(t, int64(200), *first[0].MaximumTime)

	third := lb["uid-3"]
	require.Len(t, third, 2)
	assert.Equal(t, "P", third[0].StopID)
	assert.Equal(t, int64(300), *third[0].MinimumTime)
	assert.Nil(t, third[0].MaximumTime)
}

func TestBuilderStoppedAtThenDeparts(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.StoppedAt, "A", "B"))
	b.Add(update(200, "X", model.InTransitTo, "B"))

	lb, _ := b.Finish()
	log := lb["uid-1"]

	a := action(log, "A")
	assert.Equal(t, model.ActionStoppedAt, a.Kind)
	assert.Equal(t, int64(100), *a.MinimumTime)
	assert.Equal(t, int64(200), *a.MaximumTime)

	bRow := action(log, "B")
	assert.Equal(t, model.ActionEnRouteTo, bRow.Kind)
}

func TestBuilderStoppedAtNeverReverts(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.StoppedAt, "A", "B"))
	b.Add(update(200, "X", model.StoppedAt, "A", "B"))

	lb, _ := b.Finish()
	log := lb["uid-1"]
	a := action(log, "A")
	assert.Equal(t, model.ActionStoppedAt, a.Kind)
	assert.Nil(t, a.MaximumTime)
	assert.Equal(t, int64(200), a.LatestInformationTime)
}

func TestBuilderUnfinishedTripStaysEnRoute(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.InTransitTo, "A", "B"))

	lb, _ := b.Finish()
	log := lb["uid-1"]
	for _, row := range log {
		assert.Equal(t, model.ActionEnRouteTo, row.Kind)
		assert.Nil(t, row.MaximumTime)
	}
}

func TestBuilderUniqueIDsDisjoint(t *testing.T) {
	b := NewBuilder()
	b.newUniqueID = sequentialIDs()

	b.Add(update(100, "X", model.InTransitTo, "A"))
	b.Add(update(200, "Y", model.InTransitTo, "B"))

	lb, _ := b.Finish()
	seen := map[string]bool{}
	for uid := range lb {
		assert.False(t, seen[uid])
		seen[uid] = true
	}
}
