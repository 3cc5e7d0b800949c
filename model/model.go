// Package model holds the data types shared by every stage of the
// pipeline: decoded feed messages, the actions that make up a log,
// and the parse error taxonomy.
package model

// VehicleStatus mirrors GTFS-rt's VehiclePosition.VehicleStopStatus,
// trimmed to the three values the builder cares about.
type VehicleStatus int

const (
	StoppedAt VehicleStatus = iota
	InTransitTo
	IncomingAt
)

func (s VehicleStatus) String() string {
	switch s {
	case StoppedAt:
		return "STOPPED_AT"
	case InTransitTo:
		return "IN_TRANSIT_TO"
	case IncomingAt:
		return "INCOMING_AT"
	default:
		return "UNKNOWN"
	}
}

// MessageKind distinguishes the two message variants a trip_id can
// carry in one update.
type MessageKind int

const (
	TripUpdateMessage MessageKind = iota
	VehicleUpdateMessage
)

// StopTimeUpdate is one future stop in a TripUpdate message.
// Arrival/Departure are nil when the feed left the field unset.
type StopTimeUpdate struct {
	StopID    string
	Arrival   *int64
	Departure *int64
}

// TripUpdatePayload is the TripUpdate variant of Message.
type TripUpdatePayload struct {
	RouteID string
	Stops   []StopTimeUpdate
}

// VehicleUpdatePayload is the VehicleUpdate variant of Message.
type VehicleUpdatePayload struct {
	StopID        string
	CurrentStatus VehicleStatus
	Timestamp     int64
}

// Message is a single entity's contribution to an Update: a
// TripUpdate or a VehicleUpdate, never both, always carrying a
// trip_id.
type Message struct {
	TripID        string
	Kind          MessageKind
	TripUpdate    *TripUpdatePayload
	VehicleUpdate *VehicleUpdatePayload
}

// Update is one decoded GTFS-rt snapshot.
type Update struct {
	Timestamp int64
	Messages  []Message
}

// ActionKind is the kind of a single row in a trip's log.
type ActionKind int

const (
	ActionStoppedAt ActionKind = iota
	ActionEnRouteTo
	ActionStoppedOrSkipped
)

func (k ActionKind) String() string {
	switch k {
	case ActionStoppedAt:
		return "STOPPED_AT"
	case ActionEnRouteTo:
		return "EN_ROUTE_TO"
	case ActionStoppedOrSkipped:
		return "STOPPED_OR_SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Action is a single row of a Log: what a trip did at one stop, with
// a bounded time interval. MinimumTime/MaximumTime are nil when
// unknown, per the rules in the builder.
type Action struct {
	TripID                string
	RouteID               string
	Kind                  ActionKind
	MinimumTime           *int64
	MaximumTime           *int64
	StopID                string
	LatestInformationTime int64
	UniqueTripID          string
}

// Log is the ordered, non-empty sequence of Actions for one physical
// trip, in the order stops were first announced.
type Log []*Action

// Logbook maps unique trip id to that trip's Log.
type Logbook map[string]Log

// Timestamps maps unique trip id to the last latest_information_time
// at which the trip appeared in the stream that produced a Logbook.
type Timestamps map[string]int64

// Ptr returns a pointer to v, for building Actions and fixtures.
func Ptr(v int64) *int64 { return &v }
