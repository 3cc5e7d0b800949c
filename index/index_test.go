package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/triphistory/model"
)

func TestIndexPreservesFirstAppearanceOrder(t *testing.T) {
	u := &model.Update{
		Timestamp: 100,
		Messages: []model.Message{
			{TripID: "B", Kind: model.TripUpdateMessage, TripUpdate: &model.TripUpdatePayload{}},
			{TripID: "A", Kind: model.TripUpdateMessage, TripUpdate: &model.TripUpdatePayload{}},
			{TripID: "B", Kind: model.VehicleUpdateMessage, VehicleUpdate: &model.VehicleUpdatePayload{}},
			{TripID: "A", Kind: model.VehicleUpdateMessage, VehicleUpdate: &model.VehicleUpdatePayload{}},
		},
	}

	pairs := Index(u)
	require.Len(t, pairs, 2)
	assert.Equal(t, "B", pairs[0].TripID)
	assert.Equal(t, "A", pairs[1].TripID)
}

func TestIndexSkipsUnpairedTrips(t *testing.T) {
	u := &model.Update{
		Timestamp: 100,
		Messages: []model.Message{
			{TripID: "A", Kind: model.TripUpdateMessage, TripUpdate: &model.TripUpdatePayload{}},
		},
	}

	pairs := Index(u)
	assert.Empty(t, pairs)
}
