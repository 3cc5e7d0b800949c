package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/haukened/triphistory"
)

var logifyCmd = &cobra.Command{
	Use:   "logify <input_dir> <output_file>",
	Short: "Build a logbook from a directory of GTFS-Realtime snapshots",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogify,
}

var (
	logifyTo      string
	logifyClean   bool
	logifyWatch   bool
	logifyStorage string
)

func init() {
	logifyCmd.Flags().StringVar(&logifyTo, "to", "csv", "output format: csv or gtfs")
	logifyCmd.Flags().BoolVar(&logifyClean, "clean", false, "apply cut_cancellations then discard_partial_logs before writing")
	logifyCmd.Flags().BoolVar(&logifyWatch, "watch", false, "keep following input_dir for new snapshots until interrupted, instead of reading it once")
	logifyCmd.Flags().StringVar(&logifyStorage, "storage", "", "also persist the logbook through this backend: sqlite://path or postgres://<connstring>")
}

func runLogify(cmd *cobra.Command, args []string) error {
	inputDir, outputFile := args[0], args[1]

	stopMetrics := startMetricsServer()
	defer stopMetrics()

	var (
		snapshots [][]byte
		err       error
	)
	if logifyWatch {
		snapshots, err = watchSnapshots(inputDir)
	} else {
		snapshots, err = readSnapshots(inputDir)
	}
	if err != nil {
		return err
	}

	lb, ts, parseErrors, err := triphistory.Logify(snapshots)
	if err != nil {
		return fmt.Errorf("logify: %w", err)
	}

	for _, pe := range parseErrors {
		logrus.WithFields(logrus.Fields{
			"kind":    pe.Kind.String(),
			"details": pe.Details,
		}).Warn("triphistory: parse error")
		parseErrorsTotal.WithLabelValues(pe.Kind.String()).Inc()
	}

	tripsInFlightGauge.Set(float64(tripsInFlight(lb)))

	if logifyClean && len(lb) > 0 {
		var firstTimestamp int64
		for _, t := range ts {
			if firstTimestamp == 0 || t < firstTimestamp {
				firstTimestamp = t
			}
		}
		lb = clean(lb, firstTimestamp, meanInterUpdateGap(firstTimestamp, ts))
	}

	tripsFinalizedTotal.Add(float64(len(lb)))

	store, err := openStorage(logifyStorage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		w, err := store.GetWriter()
		if err != nil {
			return fmt.Errorf("opening storage writer: %w", err)
		}
		if err := persistLogbook(w, "logify", lb, parseErrors); err != nil {
			return err
		}
	}

	return writeLogbook(lb, outputFile, logifyTo)
}
