package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "triphistory",
	Short:        "Reconstruct transit arrival history from GTFS-Realtime snapshots",
	Long:         "Builds and merges logbooks of trip arrival/departure history from a stream of GTFS-Realtime snapshots",
	SilenceUsage: true,
}

var metricsAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (disabled if empty)")
	rootCmd.AddCommand(logifyCmd)
	rootCmd.AddCommand(mergeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
