package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/pkg/config"
	"github.com/forgebuild/forgefs/pkg/digest"
	"github.com/forgebuild/forgefs/pkg/filetree"
	"github.com/forgebuild/forgefs/pkg/fs"
	"github.com/forgebuild/forgefs/pkg/gc"
	"github.com/forgebuild/forgefs/pkg/location"
)

// snapshotEntry is one scanned file in a written snapshot.
type snapshotEntry struct {
	Path   string    `yaml:"path"`
	Size   int64     `yaml:"size"`
	Mtime  time.Time `yaml:"mtime"`
	Digest string    `yaml:"digest,omitempty"`
}

// snapshot is the YAML document produced by -out.
type snapshot struct {
	Root      string          `yaml:"root"`
	Generated time.Time       `yaml:"generated"`
	Digest    string          `yaml:"digest"`
	Files     []snapshotEntry `yaml:"files"`
}

// openLogOutput resolves the configured log destination.
func openLogOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	}
}

func printSummary(tree *fs.MetadataTree[digest.Digest], elapsed time.Duration) {
	var files, bytes int64
	_ = tree.Walk(func(rel string, md fs.Metadata[digest.Digest]) error {
		files++
		bytes += md.Stat.Size
		return nil
	})
	var dirs int64
	_ = tree.WalkDirs(func(string, int) error {
		dirs++
		return nil
	})
	fmt.Printf("Scanned %s files in %s directories, %s total, in %v\n",
		humanize.Comma(files), humanize.Comma(dirs), humanize.Bytes(uint64(bytes)),
		elapsed.Round(time.Millisecond))
}

func printDiff(d filetree.Diff) {
	for _, rel := range d.Added {
		fmt.Printf("+ %s\n", rel)
	}
	for _, rel := range d.Changed {
		fmt.Printf("~ %s\n", rel)
	}
	for _, rel := range d.Removed {
		fmt.Printf("- %s\n", rel)
	}
}

// writeSnapshot renders tree as YAML and lands it at name under dest
// through scratch space, so a crash mid-write never leaves a truncated
// snapshot at the final name.
func writeSnapshot(ctx context.Context, tree *fs.MetadataTree[digest.Digest], cfg *config.Config, scratch *location.Scratch, dest *fs.DirectoryHandle, name string) error {
	snap := snapshot{
		Root:      cfg.Scan.Root,
		Generated: time.Now().UTC(),
		Digest:    cfg.Digest.Type,
	}
	withDigests := cfg.Digest.Type != "none"
	_ = tree.Walk(func(rel string, md fs.Metadata[digest.Digest]) error {
		entry := snapshotEntry{Path: rel, Size: md.Stat.Size, Mtime: md.Stat.Mtime}
		if withDigests {
			entry.Digest = md.Data.String()
		}
		snap.Files = append(snap.Files, entry)
		return nil
	})

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	f, err := scratch.File(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.TagComment(ctx, "scan snapshot of "+cfg.Scan.Root); err != nil {
		logger.Warn("could not tag snapshot scratch file: %v", err)
	}
	if _, err := f.Write(ctx, data, 0); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return f.PersistAt(ctx, dest, name)
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (searches the XDG config directory when empty)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	force := flag.Bool("force", false, "Overwrite an existing file (with -init-config)")
	logLevel := flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR); overrides the config file")
	root := flag.String("root", "", "Directory to scan; overrides the config file")
	ignore := flag.String("ignore", "", "Comma-separated ignore patterns; overrides the config file")
	digestType := flag.String("digest", "", "Digest type (none, blake3); overrides the config file")
	workers := flag.Int("workers", -1, "Worker goroutines, 0 = one per CPU; overrides the config file")
	maxHandles := flag.Int("max-handles", -1, "Max open handles, 0 = half the descriptor limit; overrides the config file")
	watch := flag.Bool("watch", false, "Keep watching the root and print changes until interrupted")
	out := flag.String("out", "", "Write a YAML snapshot of the scan to this path")
	metricsEnabled := flag.Bool("metrics", false, "Serve Prometheus metrics; overrides the config file")
	metricsPort := flag.Int("metrics-port", 0, "Metrics server port; overrides the config file")
	flag.Parse()

	if *initConfig {
		path, err := config.InitConfig(*force)
		if err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}
		fmt.Printf("Config file written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line overrides
	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}
	if *root != "" {
		cfg.Scan.Root = *root
	}
	if *ignore != "" {
		cfg.Scan.Ignore = strings.Split(*ignore, ",")
	}
	if *digestType != "" {
		cfg.Digest.Type = strings.ToLower(*digestType)
	}
	if *workers >= 0 {
		cfg.FS.Workers = *workers
	}
	if *maxHandles >= 0 {
		cfg.FS.MaxOpenHandles = *maxHandles
	}
	if *watch {
		cfg.Watch.Enabled = true
	}
	if *metricsEnabled {
		cfg.Metrics.Enabled = true
	}
	if *metricsPort > 0 {
		cfg.Metrics.Port = *metricsPort
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Configure logger
	logger.SetLevel(cfg.Logging.Level)
	logOut, err := openLogOutput(cfg.Logging.Output)
	if err != nil {
		log.Fatalf("Failed to open log output: %v", err)
	}
	logger.SetOutput(logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("ForgeFS - Build Filesystem Scanner")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Resolve the scan root to an absolute path so watcher events and
	// summaries agree on naming.
	absRoot, err := filepath.Abs(cfg.Scan.Root)
	if err != nil {
		log.Fatalf("Failed to resolve scan root: %v", err)
	}
	cfg.Scan.Root = absRoot
	rootPath, err := fs.NewPath(absRoot)
	if err != nil {
		log.Fatalf("Invalid scan root: %v", err)
	}

	logger.Info("Scan configuration:")
	logger.Info("  Root: %s", cfg.Scan.Root)
	if len(cfg.Scan.Ignore) > 0 {
		logger.Info("  Ignore: %s", strings.Join(cfg.Scan.Ignore, ", "))
	}
	logger.Info("  Digest: %s", cfg.Digest.Type)
	if cfg.FS.Workers > 0 {
		logger.Info("  Workers: %d", cfg.FS.Workers)
	} else {
		logger.Info("  Workers: one per CPU")
	}
	if cfg.FS.MaxOpenHandles > 0 {
		logger.Info("  Max open handles: %d", cfg.FS.MaxOpenHandles)
	} else {
		logger.Info("  Max open handles: half the descriptor limit")
	}

	m := config.InitializeMetrics(cfg)
	if m.Server != nil {
		go func() {
			if err := m.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
		logger.Info("Metrics available at http://localhost:%d/metrics", m.Server.Port())
	}

	var absOut string
	if *out != "" {
		absOut, err = filepath.Abs(*out)
		if err != nil {
			log.Fatalf("Failed to resolve snapshot path: %v", err)
		}
		// The tool's own outputs never belong in the manifest, and a
		// snapshot living inside a watched root would retrigger the
		// watcher on every refresh.
		if rel, err := filepath.Rel(absRoot, absOut); err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			relScratch := filepath.ToSlash(filepath.Join(filepath.Dir(rel), "scratch"))
			relTrash := filepath.ToSlash(filepath.Join(filepath.Dir(rel), "trash"))
			cfg.Scan.Ignore = append(cfg.Scan.Ignore, filepath.ToSlash(rel), relScratch, relTrash)
		}
	}

	fsys := config.CreateFilesystem(cfg, m)
	defer fsys.Close()

	ignoreSet, err := config.CreateIgnoreSet(&cfg.Scan)
	if err != nil {
		log.Fatalf("Failed to compile ignore patterns: %v", err)
	}
	work, err := config.CreateDigestWork(&cfg.Digest)
	if err != nil {
		log.Fatalf("Failed to configure digests: %v", err)
	}

	var (
		snapDest    *fs.DirectoryHandle
		snapScratch *location.Scratch
		snapName    string
	)
	if *out != "" {
		destDir, err := fs.NewPath(filepath.Dir(absOut))
		if err != nil {
			log.Fatalf("Failed to resolve snapshot directory: %v", err)
		}
		snapDest, err = fsys.Open(destDir).Tag("snapshot destination").AsDirectory(ctx)
		if err != nil {
			log.Fatalf("Failed to open snapshot directory: %v", err)
		}
		defer func() { _ = snapDest.Close() }()

		// Scratch lives next to the destination so the final rename never
		// crosses filesystems.
		snapScratch, err = location.NewScratch(ctx, fsys, destDir)
		if err != nil {
			log.Fatalf("Failed to start scratch directory: %v", err)
		}
		defer func() { _ = snapScratch.Close() }()
		snapName = filepath.Base(absOut)

		if cfg.Watch.Enabled {
			trash, err := location.NewTrash(ctx, fsys, destDir)
			if err != nil {
				log.Fatalf("Failed to start trash directory: %v", err)
			}
			defer func() { _ = trash.Close() }()

			collector, err := gc.NewCollector(snapScratch, trash, gc.Config{Enabled: true})
			if err != nil {
				log.Fatalf("Failed to create scratch collector: %v", err)
			}
			// Sweep leftovers from earlier crashed runs right away, then
			// keep sweeping while watching.
			if _, err := collector.RunNow(ctx); err != nil {
				logger.Warn("Scratch sweep failed: %v", err)
			}
			collector.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = collector.Stop(stopCtx)
			}()
		}
	}

	if !cfg.Watch.Enabled {
		start := time.Now()
		dir, err := fsys.Open(rootPath).Tag("scan root").AsDirectory(ctx)
		if err != nil {
			log.Fatalf("Failed to open scan root: %v", err)
		}
		tree, err := fs.TreeWithData(ctx, dir, ignoreSet, work)
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		printSummary(tree, time.Since(start))

		if *out != "" {
			if err := writeSnapshot(ctx, tree, cfg, snapScratch, snapDest, snapName); err != nil {
				log.Fatalf("Failed to write snapshot: %v", err)
			}
			logger.Info("Snapshot written to %s", absOut)
		}
		return
	}

	start := time.Now()
	ct, err := filetree.NewWithData(ctx, fsys, rootPath, ignoreSet, work, config.CreateWatchOptions(&cfg.Watch)...)
	if err != nil {
		log.Fatalf("Failed to start watching: %v", err)
	}
	defer func() { _ = ct.Close() }()

	printSummary(ct.Current(), time.Since(start))
	if *out != "" {
		if err := writeSnapshot(ctx, ct.Current(), cfg, snapScratch, snapDest, snapName); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		logger.Info("Snapshot written to %s", absOut)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Watching for changes. Press Ctrl+C to stop.")

	for {
		select {
		case diff, ok := <-ct.Diffs():
			if !ok {
				return
			}
			printDiff(diff)
			if *out != "" {
				if err := writeSnapshot(ctx, ct.Current(), cfg, snapScratch, snapDest, snapName); err != nil {
					logger.Error("Failed to refresh snapshot: %v", err)
				}
			}
		case <-sigChan:
			logger.Info("Shutdown signal received, stopping watcher...")
			return
		}
	}
}
