package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
)

// Watch serves as the input adapter for a stream of GTFS-Realtime
// snapshots dropped into a directory by an external fetcher: it first
// emits the contents of every file already present, in filename
// order, then forwards new files as they're created.
//
// The channel is closed when the watcher's underlying fsnotify.Watcher
// is closed; errors encountered reading individual files are not
// fatal to the stream and are silently skipped. A new file is read
// once, when its Create event arrives, so bytes written to it after
// that read are not forwarded.
func Watch(dir string) (<-chan []byte, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer watcher.Close()

		for _, name := range existingFiles(dir) {
			body, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			out <- body
		}

		for event := range watcher.Events {
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			body, err := os.ReadFile(event.Name)
			if err != nil {
				continue
			}
			out <- body
		}
	}()

	return out, nil
}

// ReadDir reads every regular file in dir, in filename order, as one
// raw snapshot each. It's the one-shot counterpart to Watch, for
// callers that want today's backlog without following new arrivals.
// Unlike Watch's best-effort initial replay, a read failure here is
// fatal: a caller asking for a fixed batch wants all of it or none.
func ReadDir(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	snapshots := make([][]byte, 0, len(names))
	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		snapshots = append(snapshots, body)
	}

	return snapshots, nil
}

func existingFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
