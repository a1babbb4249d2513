// Package gc reclaims abandoned scratch space.
//
// Scratch resources are created under random names and either persisted
// out of scratch space or left behind. Leftovers accumulate when:
//   - The process crashes mid download
//   - A persist fails and the caller gives up
//   - A writer never persists or discards its resource
//
// The collector periodically moves scratch entries older than a TTL into
// the trash location. It never unlinks anything itself; reclaiming the
// disk space is the trash owner's concern.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/pkg/fs"
	"github.com/forgebuild/forgefs/pkg/location"
)

// Collector periodically sweeps stale scratch entries into the trash.
//
// Staleness is inferred from age alone: anything older than the TTL
// counts as abandoned. Writers that hold a scratch resource for longer
// than the TTL must touch it to keep it alive.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	scratch *location.Scratch
	trash   *location.Trash
	config  Config
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config contains configuration for the scratch collector.
type Config struct {
	// Enabled controls whether collection is active (default: false)
	Enabled bool

	// Interval is how often to sweep scratch space (default: 1h)
	Interval time.Duration

	// TTL is the age past which a scratch entry counts as abandoned
	// (default: 24h)
	TTL time.Duration

	// DryRun mode logs what would be discarded without touching anything
	// (default: false)
	DryRun bool
}

// NewCollector creates a new scratch collector.
//
// The collector will be initialized but not started. Call Start() to
// begin background collection.
//
// Parameters:
//   - scratch: Scratch location to sweep
//   - trash: Trash location stale entries are discarded into
//   - config: Collection configuration
//
// Returns:
//   - *Collector: Initialized collector (not started)
//   - error: Returns error if either location is missing
func NewCollector(scratch *location.Scratch, trash *location.Trash, config Config) (*Collector, error) {
	if scratch == nil || trash == nil {
		return nil, fmt.Errorf("scratch and trash locations are required")
	}

	// Set defaults
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.TTL == 0 {
		config.TTL = 24 * time.Hour
	}

	return &Collector{
		scratch: scratch,
		trash:   trash,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins background collection.
//
// This starts a goroutine that sweeps scratch space at the configured
// interval. The goroutine runs until Stop() is called.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("scratch collection disabled")
		return
	}

	logger.Info("starting scratch collector: interval=%s ttl=%s dry_run=%v",
		c.config.Interval, c.config.TTL, c.config.DryRun)

	go c.worker()
}

// Stop stops the collector and waits for it to finish.
//
// This signals the worker goroutine to stop and waits for it to complete
// any in-progress sweep.
//
// Parameters:
//   - ctx: Context for timeout (shutdown aborts if the context expires)
//
// Returns:
//   - error: Returns error if context expires before shutdown completes
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("stopping scratch collector...")

	close(c.stopCh)

	select {
	case <-c.doneCh:
		logger.Info("scratch collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("scratch collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate sweep.
//
// This is useful for:
//   - Testing
//   - Initial cleanup on startup
//
// The method blocks until the sweep completes or the context is
// cancelled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("running scratch collection (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic sweeps.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	logger.Info("scratch collector worker started")

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("scratch collection failed: %v", err)
			} else {
				logger.Info("scratch collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			logger.Info("scratch collector worker stopping...")
			return
		}
	}
}

// collect performs a single sweep:
//  1. List scratch entries
//  2. Stat each entry and compare its mtime against the TTL
//  3. Discard stale entries into the trash
//
// Entries that vanish between listing and discarding were persisted or
// discarded concurrently and are skipped.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{StartTime: startTime}

	entries, err := c.scratch.Dir().List(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing scratch space: %w", err)
	}
	stats.ScannedCount = uint64(len(entries))

	logger.Debug("collector found %d scratch entries", len(entries))

	cutoff := startTime.Add(-c.config.TTL)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		stat, err := c.scratch.Dir().StatAt(ctx, entry.Name)
		if err != nil {
			if fs.HasCode(err, fs.ErrNotFound) {
				continue
			}
			logger.Warn("collector could not stat scratch entry %s: %v", entry.Name, err)
			stats.FailedCount++
			continue
		}

		if !stat.Mtime.Before(cutoff) {
			continue
		}
		stats.StaleCount++

		if c.config.DryRun {
			logger.Info("collector would discard %s (age %s)",
				entry.Name, startTime.Sub(stat.Mtime).Round(time.Second))
			continue
		}

		trashName, err := c.trash.Discard(ctx, c.scratch.Dir(), entry.Name)
		if err != nil {
			if fs.HasCode(err, fs.ErrNotFound) {
				continue
			}
			logger.Warn("collector could not discard %s: %v", entry.Name, err)
			stats.FailedCount++
			continue
		}

		logger.Debug("collector discarded %s into trash as %s", entry.Name, trashName)
		stats.SweptCount++
	}

	stats.EndTime = time.Now()

	logger.Info("collector swept %d of %d stale entries (%d scanned, %d failed) in %s",
		stats.SweptCount, stats.StaleCount, stats.ScannedCount, stats.FailedCount, stats.Duration())

	return stats, nil
}

// Stats contains statistics from one collection run.
type Stats struct {
	StartTime    time.Time // When the sweep started
	EndTime      time.Time // When the sweep ended
	ScannedCount uint64    // Number of scratch entries examined
	StaleCount   uint64    // Number of entries older than the TTL
	SweptCount   uint64    // Number of entries moved into the trash
	FailedCount  uint64    // Number of entries that could not be handled
}

// Duration returns the total sweep duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf("scanned=%d stale=%d swept=%d failed=%d duration=%s",
		s.ScannedCount, s.StaleCount, s.SweptCount, s.FailedCount, s.Duration())
}
