// Package triphistory reconstructs ground-truth transit arrival and
// departure history from a time-ordered stream of GTFS-Realtime
// snapshots.
package triphistory

import (
	"fmt"

	"github.com/haukened/triphistory/feed"
	"github.com/haukened/triphistory/logbook"
	"github.com/haukened/triphistory/model"
	"github.com/haukened/triphistory/sanitize"
)

// Logify runs the full pipeline — decode, sanitise, build — over
// stream, an ordered sequence of raw GTFS-Realtime snapshot bytes. It
// returns the finished logbook, each trip's last-seen timestamp, and
// every non-fatal parse error encountered along the way, in the order
// they occurred. The only error this returns is a caller error: an
// empty stream is not by itself an error, but a nil stream is.
func Logify(stream [][]byte) (model.Logbook, model.Timestamps, []model.ParseError, error) {
	if stream == nil {
		return nil, nil, nil, fmt.Errorf("triphistory: Logify requires a non-nil stream")
	}

	updates := make([]*model.Update, 0, len(stream))
	var parseErrors []model.ParseError

	for i, raw := range stream {
		update, parseErr := feed.Decode(raw)
		if parseErr != nil {
			details := map[string]any{"index": i}
			for k, v := range parseErr.Details {
				details[k] = v
			}
			parseErrors = append(parseErrors, model.NewParseError(parseErr.Kind, details))
			continue
		}
		updates = append(updates, update)
	}

	clean, sanitizeErrors := sanitize.Clean(updates)
	parseErrors = append(parseErrors, sanitizeErrors...)

	builder := logbook.NewBuilder()
	for _, u := range clean {
		builder.Add(u)
	}
	lb, ts := builder.Finish()

	return lb, ts, parseErrors, nil
}
