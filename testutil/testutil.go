// Package testutil holds fixture builders shared across this
// module's tests.
package testutil

import (
	"testing"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"

	"github.com/haukened/triphistory/storage"
)

const PostgresConnStr = "host=localhost dbname=triphistory_test sslmode=disable"

// BuildStorage opens a fresh, empty storage backend for a test.
// backend is "sqlite" or "postgres"; postgres requires a local
// instance reachable at PostgresConnStr.
func BuildStorage(t testing.TB, backend string) interface {
	GetWriter() (storage.LogbookWriter, error)
	GetReader() (storage.LogbookReader, error)
	Close() error
} {
	switch backend {
	case "sqlite":
		s, err := storage.NewSQLiteStorage()
		require.NoError(t, err)
		return s
	case "postgres":
		s, err := storage.NewPostgresStorage(storage.PostgresConfig{ConnString: PostgresConnStr})
		require.NoError(t, err)
		return s
	default:
		t.Fatalf("unknown backend %q", backend)
		return nil
	}
}

// StopUpdate describes one future stop in a fixture TripUpdate.
type StopUpdate struct {
	StopID  string
	Arrival *int64
}

// BuildSnapshot marshals one GTFS-Realtime FeedMessage containing a
// single trip's TripUpdate and VehiclePosition, for tests that need
// raw wire bytes rather than a decoded model.Update.
func BuildSnapshot(
	t testing.TB,
	timestamp uint64,
	tripID, routeID string,
	status gtfsproto.VehiclePosition_VehicleStopStatus,
	stops []StopUpdate,
) []byte {
	t.Helper()

	stopTimeUpdates := make([]*gtfsproto.TripUpdate_StopTimeUpdate, 0, len(stops))
	for _, s := range stops {
		stu := &gtfsproto.TripUpdate_StopTimeUpdate{StopId: proto.String(s.StopID)}
		if s.Arrival != nil {
			stu.Arrival = &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(*s.Arrival)}
		}
		stopTimeUpdates = append(stopTimeUpdates, stu)
	}

	currentStopID := ""
	if len(stops) > 0 {
		currentStopID = stops[0].StopID
	}

	msg := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(timestamp),
		},
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("tu-" + tripID),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{
						TripId:  proto.String(tripID),
						RouteId: proto.String(routeID),
					},
					StopTimeUpdate: stopTimeUpdates,
				},
			},
			{
				Id: proto.String("vp-" + tripID),
				Vehicle: &gtfsproto.VehiclePosition{
					Trip:          &gtfsproto.TripDescriptor{TripId: proto.String(tripID)},
					StopId:        proto.String(currentStopID),
					CurrentStatus: status.Enum(),
					Timestamp:     proto.Uint64(timestamp),
				},
			},
		},
	}

	raw, err := proto.Marshal(msg)
	require.NoError(t, err)
	return raw
}
