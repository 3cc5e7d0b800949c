package model

// ParseErrorKind is the exhaustive taxonomy of non-fatal problems the
// decoder and sanitiser can find in a feed stream. Every kind is
// locally recovered: the offending update or message is dropped and
// the error is recorded, never raised as a Go error.
type ParseErrorKind int

const (
	ParsingIntoProtobufRaisedException ParseErrorKind = iota
	ParsingIntoProtobufRaisedRuntimeWarning
	FeedUpdateHasNullTimestamp
	FeedUpdatesWithDuplicateTimestamps
	FeedUpdateGoesBackwardsInTime
	MessageWithNullTripID
	TripHasTripUpdateWithNoStopsRemaining
	TripIDWithTripUpdateButNoVehicleUpdate
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParsingIntoProtobufRaisedException:
		return "parsing_into_protobuf_raised_exception"
	case ParsingIntoProtobufRaisedRuntimeWarning:
		return "parsing_into_protobuf_raised_runtime_warning"
	case FeedUpdateHasNullTimestamp:
		return "feed_update_has_null_timestamp"
	case FeedUpdatesWithDuplicateTimestamps:
		return "feed_updates_with_duplicate_timestamps"
	case FeedUpdateGoesBackwardsInTime:
		return "feed_update_goes_backwards_in_time"
	case MessageWithNullTripID:
		return "message_with_null_trip_id"
	case TripHasTripUpdateWithNoStopsRemaining:
		return "trip_has_trip_update_with_no_stops_remaining"
	case TripIDWithTripUpdateButNoVehicleUpdate:
		return "trip_id_with_trip_update_but_no_vehicle_update"
	default:
		return "unknown"
	}
}

// ParseError records one elision made while sanitising the stream.
// Details carries whatever context is useful for debugging a given
// kind: update index, timestamp, trip id(s), and so on.
type ParseError struct {
	Kind    ParseErrorKind
	Details map[string]any
}

func newParseError(kind ParseErrorKind, details map[string]any) ParseError {
	if details == nil {
		details = map[string]any{}
	}
	return ParseError{Kind: kind, Details: details}
}

// NewParseError builds a ParseError of the given kind with the given
// details. Exported so every stage (feed, sanitize) constructs errors
// the same way.
func NewParseError(kind ParseErrorKind, details map[string]any) ParseError {
	return newParseError(kind, details)
}
