// Package merge implements the Logbook Merger: it joins logbooks
// built from disjoint, contiguous time windows into one consistent
// history, reconciling trips whose physical run crosses a window
// boundary.
package merge

import (
	"fmt"

	"github.com/haukened/triphistory/model"
)

// Window is one logbook built from one time slice of the stream,
// paired with the timestamps map the Builder produced alongside it.
type Window struct {
	Logbook    model.Logbook
	Timestamps model.Timestamps
}

// Merge walks windows left to right, splicing each accumulated
// logbook's still-open (EN_ROUTE_TO tail) trips against the
// continuation found at the start of the next window. windows must be
// in strict ascending time order and must not overlap; a violation is
// a caller error, returned as a plain error rather than folded into
// the result.
func Merge(windows []Window) (model.Logbook, model.Timestamps, error) {
	if len(windows) == 0 {
		return model.Logbook{}, model.Timestamps{}, nil
	}

	if err := checkContiguous(windows); err != nil {
		return nil, nil, err
	}

	acc := cloneLogbook(windows[0].Logbook)
	accTs := cloneTimestamps(windows[0].Timestamps)

	for i := 1; i < len(windows); i++ {
		next := windows[i]
		spliceWindow(acc, accTs, next)
	}

	return acc, accTs, nil
}

// checkContiguous rejects windows whose observed timestamp ranges
// overlap. Each window's range is [min, max] over its Timestamps map;
// spec treats non-contiguous input as the merger's one fatal,
// caller-detectable error.
func checkContiguous(windows []Window) error {
	prevMax, havePrev := int64(0), false

	for i, w := range windows {
		if len(w.Timestamps) == 0 {
			continue
		}
		lo, hi := timestampRange(w.Timestamps)
		if havePrev && lo <= prevMax {
			return fmt.Errorf("merge: window %d overlaps previous window (starts at %d, previous ended at %d)", i, lo, prevMax)
		}
		prevMax = hi
		havePrev = true
	}

	return nil
}

func timestampRange(ts model.Timestamps) (lo, hi int64) {
	first := true
	for _, t := range ts {
		if first {
			lo, hi = t, t
			first = false
			continue
		}
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	return lo, hi
}

// spliceWindow folds next into acc/accTs in place.
func spliceWindow(acc model.Logbook, accTs model.Timestamps, next Window) {
	// Index next's logs by the feed trip_id they carry, so a match
	// can be found regardless of next's own unique ids.
	byFeedID := map[string][]string{}
	for uid, log := range next.Logbook {
		if len(log) == 0 {
			continue
		}
		feedID := log[0].TripID
		byFeedID[feedID] = append(byFeedID[feedID], uid)
	}

	consumed := map[string]bool{}

	for uid, log := range acc {
		if !hasOpenTail(log) {
			continue
		}
		feedID := log[0].TripID

		candidate, ok := pickContinuation(byFeedID[feedID], next.Timestamps, accTs[uid])
		if !ok {
			continue
		}

		acc[uid] = spliceLog(log, next.Logbook[candidate])
		accTs[uid] = next.Timestamps[candidate]
		consumed[candidate] = true
	}

	// Unmatched trips in next enter the accumulator unchanged.
	for uid, log := range next.Logbook {
		if consumed[uid] {
			continue
		}
		acc[uid] = log
		accTs[uid] = next.Timestamps[uid]
	}
}

// hasOpenTail reports whether log's last row is EN_ROUTE_TO, making
// it eligible to be matched against a continuation.
func hasOpenTail(log model.Log) bool {
	if len(log) == 0 {
		return false
	}
	return log[len(log)-1].Kind == model.ActionEnRouteTo
}

// pickContinuation selects, among candidate uids sharing the
// accumulator's feed trip_id, the one whose last-seen time in next is
// the smallest while still being later than the accumulator's last
// knowledge of the trip (accLastSeen). That is the physical trip
// chronologically adjacent to the one ending at the window boundary.
func pickContinuation(candidates []string, nextTs model.Timestamps, accLastSeen int64) (string, bool) {
	best := ""
	bestTs := int64(0)
	found := false

	for _, uid := range candidates {
		ts := nextTs[uid]
		if ts <= accLastSeen {
			continue
		}
		if !found || ts < bestTs {
			best, bestTs, found = uid, ts, true
		}
	}

	return best, found
}

// spliceLog rewrites tail's trailing open run against continuation,
// then appends whatever of continuation wasn't used in the rewrite.
// The boundary time used to close out any tail stop continuation
// doesn't account for is continuation's earliest
// latest_information_time: the least granular approximation of "the
// first update that contained the continuation" obtainable from a
// finished Logbook, which carries no per-update history.
func spliceLog(tail model.Log, continuation model.Log) model.Log {
	tailOpenStart := openTailStart(tail)
	boundary := earliestLatestInformationTime(continuation)

	contByStop := map[string]*model.Action{}
	for _, row := range continuation {
		contByStop[row.StopID] = row
	}

	result := make(model.Log, 0, len(tail)+len(continuation))
	result = append(result, tail[:tailOpenStart]...)

	used := map[string]bool{}
	uid := tail[0].UniqueTripID

	for _, row := range tail[tailOpenStart:] {
		if match, ok := contByStop[row.StopID]; ok {
			rewritten := *match
			rewritten.UniqueTripID = uid
			result = append(result, &rewritten)
			used[row.StopID] = true
			continue
		}

		closed := *row
		closed.Kind = model.ActionStoppedOrSkipped
		closed.MaximumTime = model.Ptr(boundary)
		closed.LatestInformationTime = boundary
		result = append(result, &closed)
	}

	for _, row := range continuation {
		if used[row.StopID] {
			continue
		}
		appended := *row
		appended.UniqueTripID = uid
		result = append(result, &appended)
	}

	return result
}

// openTailStart returns the index of the first row in the maximal
// trailing run of EN_ROUTE_TO actions.
func openTailStart(log model.Log) int {
	i := len(log)
	for i > 0 && log[i-1].Kind == model.ActionEnRouteTo {
		i--
	}
	return i
}

func earliestLatestInformationTime(log model.Log) int64 {
	earliest := log[0].LatestInformationTime
	for _, row := range log[1:] {
		if row.LatestInformationTime < earliest {
			earliest = row.LatestInformationTime
		}
	}
	return earliest
}

func cloneLogbook(lb model.Logbook) model.Logbook {
	out := make(model.Logbook, len(lb))
	for uid, log := range lb {
		clone := make(model.Log, len(log))
		for i, a := range log {
			cp := *a
			clone[i] = &cp
		}
		out[uid] = clone
	}
	return out
}

func cloneTimestamps(ts model.Timestamps) model.Timestamps {
	out := make(model.Timestamps, len(ts))
	for k, v := range ts {
		out[k] = v
	}
	return out
}
