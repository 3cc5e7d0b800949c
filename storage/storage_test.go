package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/triphistory/model"
)

func writeLog(t *testing.T, w LogbookWriter, log model.Log) {
	t.Helper()
	require.NoError(t, w.BeginActions())
	for _, a := range log {
		require.NoError(t, w.WriteAction(a))
	}
	require.NoError(t, w.EndActions())
}

func TestSQLiteRoundTrip(t *testing.T) {
	s, err := NewSQLiteStorage()
	require.NoError(t, err)
	defer s.Close()

	w, err := s.GetWriter()
	require.NoError(t, err)

	log := model.Log{
		{TripID: "X", RouteID: "R1", Kind: model.ActionStoppedAt, MinimumTime: model.Ptr(int64(100)), MaximumTime: model.Ptr(int64(110)), StopID: "A", LatestInformationTime: 110, UniqueTripID: "uid-1"},
		{TripID: "X", RouteID: "R1", Kind: model.ActionEnRouteTo, MinimumTime: model.Ptr(int64(110)), StopID: "B", LatestInformationTime: 110, UniqueTripID: "uid-1"},
	}
	writeLog(t, w, log)

	r, err := s.GetReader()
	require.NoError(t, err)

	got, err := r.Logbook(LogbookFilter{})
	require.NoError(t, err)
	require.Len(t, got["uid-1"], 2)
	assert.Equal(t, "A", got["uid-1"][0].StopID)
	assert.Equal(t, "B", got["uid-1"][1].StopID)
}

func TestSQLiteFilterByRoute(t *testing.T) {
	s, err := NewSQLiteStorage()
	require.NoError(t, err)
	defer s.Close()

	w, err := s.GetWriter()
	require.NoError(t, err)
	writeLog(t, w, model.Log{
		{TripID: "X", RouteID: "R1", Kind: model.ActionStoppedAt, MinimumTime: model.Ptr(int64(100)), StopID: "A", LatestInformationTime: 100, UniqueTripID: "uid-1"},
		{TripID: "Y", RouteID: "R2", Kind: model.ActionStoppedAt, MinimumTime: model.Ptr(int64(100)), StopID: "B", LatestInformationTime: 100, UniqueTripID: "uid-2"},
	})

	r, err := s.GetReader()
	require.NoError(t, err)

	got, err := r.Logbook(LogbookFilter{RouteID: "R2"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	_, ok := got["uid-2"]
	assert.True(t, ok)
}

func TestSQLiteRunHistory(t *testing.T) {
	s, err := NewSQLiteStorage()
	require.NoError(t, err)
	defer s.Close()

	w, err := s.GetWriter()
	require.NoError(t, err)

	pe, err := NewRunParseError(model.NewParseError(model.FeedUpdateHasNullTimestamp, map[string]any{"index": 3}), time.Unix(1000, 0))
	require.NoError(t, err)

	require.NoError(t, w.WriteRun(Run{
		Command:     "logify",
		StartedAt:   time.Unix(999, 0),
		ParseErrors: []RunParseError{pe},
	}))

	r, err := s.GetReader()
	require.NoError(t, err)
	runs, err := r.Runs(RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Len(t, runs[0].ParseErrors, 1)
	assert.Equal(t, "feed_update_has_null_timestamp", runs[0].ParseErrors[0].Kind)
}
