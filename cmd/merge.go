package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/haukened/triphistory"
	"github.com/haukened/triphistory/merge"
	"github.com/haukened/triphistory/model"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <in1> <in2> ... <out>",
	Short: "Merge logbooks built from contiguous time windows",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMerge,
}

var (
	mergeTo      string
	mergeClean   bool
	mergeStorage string
)

func init() {
	mergeCmd.Flags().StringVar(&mergeTo, "to", "csv", "output format: csv or gtfs")
	mergeCmd.Flags().BoolVar(&mergeClean, "clean", false, "apply cut_cancellations then discard_partial_logs before writing")
	mergeCmd.Flags().StringVar(&mergeStorage, "storage", "", "also persist the merged logbook through this backend: sqlite://path or postgres://<connstring>")
}

func runMerge(cmd *cobra.Command, args []string) error {
	inputDirs, outputFile := args[:len(args)-1], args[len(args)-1]

	stopMetrics := startMetricsServer()
	defer stopMetrics()

	windows := make([]merge.Window, 0, len(inputDirs))
	var parseErrors []model.ParseError
	for _, dir := range inputDirs {
		snapshots, err := readSnapshots(dir)
		if err != nil {
			return err
		}

		lb, ts, pe, err := triphistory.Logify(snapshots)
		if err != nil {
			return fmt.Errorf("logify %s: %w", dir, err)
		}
		parseErrors = append(parseErrors, pe...)
		windows = append(windows, merge.Window{Logbook: lb, Timestamps: ts})
	}

	for _, pe := range parseErrors {
		logrus.WithFields(logrus.Fields{
			"kind":    pe.Kind.String(),
			"details": pe.Details,
		}).Warn("triphistory: parse error")
		parseErrorsTotal.WithLabelValues(pe.Kind.String()).Inc()
	}

	lb, ts, err := merge.Merge(windows)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	tripsInFlightGauge.Set(float64(tripsInFlight(lb)))

	if mergeClean && len(lb) > 0 {
		var firstTimestamp int64
		for _, t := range ts {
			if firstTimestamp == 0 || t < firstTimestamp {
				firstTimestamp = t
			}
		}
		lb = clean(lb, firstTimestamp, meanInterUpdateGap(firstTimestamp, ts))
	}

	tripsFinalizedTotal.Add(float64(len(lb)))

	store, err := openStorage(mergeStorage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		w, err := store.GetWriter()
		if err != nil {
			return fmt.Errorf("opening storage writer: %w", err)
		}
		if err := persistLogbook(w, "merge", lb, parseErrors); err != nil {
			return err
		}
	}

	return writeLogbook(lb, outputFile, mergeTo)
}
