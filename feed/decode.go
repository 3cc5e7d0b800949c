// Package feed turns raw GTFS-Realtime protobuf bytes into a
// model.Update. It delegates the actual protobuf decoding to
// MobilityData's bindings and only normalises the two failure modes
// called out in spec §4.1 into model.ParseErrors.
package feed

import (
	"fmt"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"github.com/haukened/triphistory/model"
)

// Decode unmarshals one FeedMessage and converts it to a model.Update.
// A hard unmarshal failure produces
// parsing_into_protobuf_raised_exception. A panic recovered while
// walking the decoded message (the bindings have no separate channel
// for "decoded but lossy", unlike some GTFS-rt libraries) is treated
// as parsing_into_protobuf_raised_runtime_warning, per spec §4.1's
// instruction to treat partial data loss as a hard failure.
func Decode(raw []byte) (update *model.Update, parseErr *model.ParseError) {
	defer func() {
		if r := recover(); r != nil {
			e := model.NewParseError(model.ParsingIntoProtobufRaisedRuntimeWarning, map[string]any{
				"recovered": fmt.Sprintf("%v", r),
			})
			update, parseErr = nil, &e
		}
	}()

	msg := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		e := model.NewParseError(model.ParsingIntoProtobufRaisedException, map[string]any{
			"error": err.Error(),
		})
		return nil, &e
	}

	header := msg.GetHeader()

	u := &model.Update{
		Timestamp: int64(header.GetTimestamp()),
	}

	for _, entity := range msg.GetEntity() {
		if tu := entity.GetTripUpdate(); tu != nil {
			u.Messages = append(u.Messages, tripUpdateMessage(tu))
		}
		if v := entity.GetVehicle(); v != nil {
			u.Messages = append(u.Messages, vehicleUpdateMessage(v))
		}
	}

	return u, nil
}

func tripUpdateMessage(tu *gtfsproto.TripUpdate) model.Message {
	tripID := tu.GetTrip().GetTripId()

	stops := make([]model.StopTimeUpdate, 0, len(tu.GetStopTimeUpdate()))
	for _, stu := range tu.GetStopTimeUpdate() {
		stops = append(stops, model.StopTimeUpdate{
			StopID:    stu.GetStopId(),
			Arrival:   stopTimeEventTime(stu.GetArrival()),
			Departure: stopTimeEventTime(stu.GetDeparture()),
		})
	}

	return model.Message{
		TripID: tripID,
		Kind:   model.TripUpdateMessage,
		TripUpdate: &model.TripUpdatePayload{
			RouteID: tu.GetTrip().GetRouteId(),
			Stops:   stops,
		},
	}
}

func stopTimeEventTime(e *gtfsproto.TripUpdate_StopTimeEvent) *int64 {
	if e == nil || e.Time == nil {
		return nil
	}
	t := e.GetTime()
	return &t
}

func vehicleUpdateMessage(v *gtfsproto.VehiclePosition) model.Message {
	tripID := v.GetTrip().GetTripId()

	return model.Message{
		TripID: tripID,
		Kind:   model.VehicleUpdateMessage,
		VehicleUpdate: &model.VehicleUpdatePayload{
			StopID:        v.GetStopId(),
			CurrentStatus: vehicleStatus(v.GetCurrentStatus()),
			Timestamp:     int64(v.GetTimestamp()),
		},
	}
}

func vehicleStatus(s gtfsproto.VehiclePosition_VehicleStopStatus) model.VehicleStatus {
	switch s {
	case gtfsproto.VehiclePosition_STOPPED_AT:
		return model.StoppedAt
	case gtfsproto.VehiclePosition_IN_TRANSIT_TO:
		return model.InTransitTo
	case gtfsproto.VehiclePosition_INCOMING_AT:
		return model.IncomingAt
	default:
		return model.InTransitTo
	}
}
