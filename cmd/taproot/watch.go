package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Rebuild the index whenever Python files change",
	Long:  "Performs a full index, then watches the include paths and rebuilds after each burst of filesystem changes.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	addBuildFlags(watchCmd)
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 500*time.Millisecond, "quiet period after a change before rebuilding")
}

// watchSkipDirs are directory names never watched, mirroring what indexing
// skips: changes there can't alter the map.
var watchSkipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
}

func runWatch(cmd *cobra.Command, args []string) error {
	bs, err := resolveBuildSettings(args)
	if err != nil {
		return err
	}
	dbDir := filepath.Dir(bs.dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dbDir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	m, stats, err := buildAndSave(ctx, bs)
	if err != nil {
		return err
	}
	printBuildSummary(m, stats)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchIncludeDirs(watcher, bs); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl-C to stop)\n", bs.sourceRoot)

	// Debounce timer, armed only while changes are pending.
	debounce := time.NewTimer(flagDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	dirty := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if base := filepath.Base(ev.Name); !strings.HasPrefix(base, ".") && !watchSkipDirs[base] {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						// New directories must be watched before files land
						// in them; a moved-in tree may already hold sources.
						_ = addDirTree(watcher, ev.Name)
						dirty = true
						debounce.Reset(flagDebounce)
						continue
					}
				}
			}
			if !isPyChange(ev) {
				continue
			}
			dirty = true
			debounce.Reset(flagDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case <-debounce.C:
			if !dirty {
				continue
			}
			dirty = false
			m, stats, err := buildAndSave(ctx, bs)
			if err != nil {
				// A half-written tree can fail a build; keep watching.
				fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
				continue
			}
			printBuildSummary(m, stats)
		}
	}
}

// isPyChange reports whether an event can alter the dependency map.
func isPyChange(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, ".py") {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}

// watchIncludeDirs registers every include path's directory tree with the
// watcher. File include paths watch their parent directory.
func watchIncludeDirs(watcher *fsnotify.Watcher, bs buildSettings) error {
	includes := bs.include
	if len(includes) == 0 {
		includes = []string{"."}
	}
	for _, inc := range includes {
		p := inc
		if !filepath.IsAbs(p) {
			p = filepath.Join(bs.sourceRoot, p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("include path %s: %w", inc, err)
		}
		if !info.IsDir() {
			p = filepath.Dir(p)
		}
		if err := addDirTree(watcher, p); err != nil {
			return fmt.Errorf("watching %s: %w", inc, err)
		}
	}
	return nil
}

// addDirTree watches dir and every non-skipped directory below it.
func addDirTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || watchSkipDirs[name]) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
