// Package ops implements the Logbook Ops: post-processing and
// serialisation utilities that operate on a finished model.Logbook.
package ops

import (
	"sort"

	"github.com/haukened/triphistory/model"
)

// DefaultCancellationThreshold is the factor applied to the mean
// inter-update gap in CutCancellations when the caller passes zero.
// The source heuristic this is grounded on reports ~98% effectiveness
// at this value; it mistakes legitimate two-stop shuttle skips for
// cancellation stubs at the margin, a tradeoff that must be tuned per
// deployment rather than assumed.
const DefaultCancellationThreshold = 1.0

// DiscardPartialLogs removes every log that never really started
// (its first row's minimum_time equals firstTimestamp, the timestamp
// of the stream's first update, i.e. the trip was already mid-route
// when the stream began)
// or never finished (its last row is still EN_ROUTE_TO).
func DiscardPartialLogs(lb model.Logbook, firstTimestamp int64) model.Logbook {
	complete, _ := PartitionOnIncomplete(lb, firstTimestamp)
	return complete
}

// PartitionOnIncomplete splits lb into (complete, incomplete) using
// the same criterion as DiscardPartialLogs. firstTimestamp is the
// timestamp of the first update the owning stream ever processed.
func PartitionOnIncomplete(lb model.Logbook, firstTimestamp int64) (complete, incomplete model.Logbook) {
	complete = model.Logbook{}
	incomplete = model.Logbook{}

	for uid, log := range lb {
		if isPartial(log, firstTimestamp) {
			incomplete[uid] = log
		} else {
			complete[uid] = log
		}
	}

	return complete, incomplete
}

func isPartial(log model.Log, firstTimestamp int64) bool {
	if len(log) == 0 {
		return true
	}
	first := log[0]
	if first.MinimumTime != nil && *first.MinimumTime == firstTimestamp {
		return true
	}
	last := log[len(log)-1]
	return last.Kind == model.ActionEnRouteTo
}

// PartitionOnRoute groups logs by the majority route_id carried
// across a log's rows, breaking ties by the lexicographically
// smallest route_id.
func PartitionOnRoute(lb model.Logbook) map[string]model.Logbook {
	out := map[string]model.Logbook{}

	for uid, log := range lb {
		route := majorityRoute(log)
		group, ok := out[route]
		if !ok {
			group = model.Logbook{}
			out[route] = group
		}
		group[uid] = log
	}

	return out
}

func majorityRoute(log model.Log) string {
	counts := map[string]int{}
	for _, a := range log {
		counts[a.RouteID]++
	}

	best := ""
	bestCount := -1
	for route, count := range counts {
		if count > bestCount || (count == bestCount && route < best) {
			best, bestCount = route, count
		}
	}
	return best
}

// CutCancellations strips, from the tail of each log, the maximal run
// of STOPPED_OR_SKIPPED rows whose (maximum_time - minimum_time)
// interval is shorter than meanGap*threshold, stopping at the first
// STOPPED_AT row encountered. A threshold of zero selects
// DefaultCancellationThreshold.
func CutCancellations(lb model.Logbook, meanGap float64, threshold float64) model.Logbook {
	if threshold == 0 {
		threshold = DefaultCancellationThreshold
	}
	cutoff := meanGap * threshold

	out := make(model.Logbook, len(lb))
	for uid, log := range lb {
		out[uid] = cutCancellationTail(log, cutoff)
	}
	return out
}

func cutCancellationTail(log model.Log, cutoff float64) model.Log {
	end := len(log)
	for end > 0 {
		row := log[end-1]
		if row.Kind == model.ActionStoppedAt {
			break
		}
		if row.Kind != model.ActionStoppedOrSkipped {
			break
		}
		if row.MinimumTime == nil || row.MaximumTime == nil {
			break
		}
		interval := float64(*row.MaximumTime - *row.MinimumTime)
		if interval >= cutoff {
			break
		}
		end--
	}
	out := make(model.Log, end)
	copy(out, log[:end])
	return out
}

// sortedUIDs returns a logbook's keys in a stable order, so
// serialisation output is deterministic across runs.
func sortedUIDs(lb model.Logbook) []string {
	uids := make([]string, 0, len(lb))
	for uid := range lb {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}
