package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/triphistory/downloader"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url> <snapshot_dir>",
	Short: "Fetch one GTFS-Realtime snapshot over HTTP and drop it into a directory for logify --watch",
	Args:  cobra.ExactArgs(2),
	RunE:  runFetch,
}

var (
	fetchCache    string
	fetchCacheTTL time.Duration
	fetchTimeout  time.Duration
)

func init() {
	fetchCmd.Flags().StringVar(&fetchCache, "cache", "none", `response cache: "none", "memory", or a filesystem cache file path`)
	fetchCmd.Flags().DurationVar(&fetchCacheTTL, "cache-ttl", time.Minute, "cache entry lifetime, when --cache is not \"none\"")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "HTTP request timeout")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	url, snapshotDir := args[0], args[1]

	options := downloader.GetOptions{
		Timeout:  fetchTimeout,
		Cache:    fetchCache != "none",
		CacheTTL: fetchCacheTTL,
	}

	var (
		body []byte
		err  error
	)
	switch fetchCache {
	case "none":
		body, err = downloader.HTTPGet(context.Background(), url, nil, options)
	case "memory":
		body, err = downloader.NewMemory().Get(context.Background(), url, nil, options)
	default:
		var fs downloader.Downloader
		fs, err = downloader.NewFilesystem(fetchCache)
		if err == nil {
			body, err = fs.Get(context.Background(), url, nil, options)
		}
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}

	name := filepath.Join(snapshotDir, fmt.Sprintf("%d.pb", time.Now().UnixNano()))
	if err := os.WriteFile(name, body, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}
