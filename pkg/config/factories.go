package config

import (
	"encoding/hex"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/forgebuild/forgefs/pkg/digest"
	"github.com/forgebuild/forgefs/pkg/filetree"
	"github.com/forgebuild/forgefs/pkg/fs"
)

// CreateFilesystem creates the handle factory from configuration.
//
// Worker count and open-handle cap come from cfg.FS; zero values let the
// factory pick machine-appropriate limits. The metrics result from
// InitializeMetrics supplies the recorders (nil runs without collection).
//
// Parameters:
//   - cfg: The complete ForgeFS configuration
//   - m: Metrics components from InitializeMetrics, or nil
//
// Returns:
//   - *fs.FS: The handle factory, ready for use. The caller owns its Close.
func CreateFilesystem(cfg *Config, m *MetricsResult) *fs.FS {
	var opts []fs.Option
	if m != nil {
		opts = append(opts, fs.WithMetrics(m.FS), fs.WithWalkMetrics(m.Walk))
	}
	return fs.New(cfg.FS.Workers, cfg.FS.MaxOpenHandles, opts...)
}

// CreateIgnoreSet compiles the configured ignore patterns.
//
// Patterns were already checked for well-formedness during validation, so
// an error here indicates the configuration bypassed Load.
//
// Parameters:
//   - cfg: Scan configuration
//
// Returns:
//   - *fs.IgnoreSet: Compiled pattern set (empty set if no patterns)
//   - error: Pattern compilation error
func CreateIgnoreSet(cfg *ScanConfig) (*fs.IgnoreSet, error) {
	set, err := fs.NewIgnoreSet(cfg.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ignore patterns: %w", err)
	}
	return set, nil
}

// CreateDigestWork creates the per-file work function applied during scans.
//
// This factory function uses the Type field to determine which digest to
// compute, then decodes the type-specific configuration from the
// corresponding map.
//
// Supported types:
//   - "none": files are listed and stat'd but their contents are not read;
//     returns a nil work function
//   - "blake3": every file's contents are hashed with BLAKE3, optionally
//     keyed
//
// Parameters:
//   - cfg: Digest configuration
//
// Returns:
//   - fs.WorkFunc[digest.Digest]: Work function for the tree builder (nil
//     when Type = "none")
//   - error: Configuration error
func CreateDigestWork(cfg *DigestConfig) (fs.WorkFunc[digest.Digest], error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "blake3":
		return createBlake3Work(cfg.Blake3)
	default:
		return nil, fmt.Errorf("unknown digest type: %q (supported: none, blake3)", cfg.Type)
	}
}

// createBlake3Work creates a BLAKE3 work function from type-specific options.
func createBlake3Work(options map[string]any) (fs.WorkFunc[digest.Digest], error) {
	// Define the configuration struct for the BLAKE3 digest
	type Blake3Options struct {
		// Key is a hex-encoded 32-byte key selecting keyed hashing.
		// Empty selects the default (unkeyed) hash.
		Key string `mapstructure:"key"`
	}

	// Decode the options into the config struct
	var digestOpts Blake3Options
	if err := mapstructure.Decode(options, &digestOpts); err != nil {
		return nil, fmt.Errorf("failed to decode blake3 digest options: %w", err)
	}

	if digestOpts.Key == "" {
		return digest.Work, nil
	}

	key, err := hex.DecodeString(digestOpts.Key)
	if err != nil {
		return nil, fmt.Errorf("blake3 digest: key is not valid hex: %w", err)
	}

	work, err := digest.KeyedWork(key)
	if err != nil {
		return nil, fmt.Errorf("blake3 digest: %w", err)
	}

	return work, nil
}

// CreateWatchOptions translates watch configuration into continual tree
// options.
//
// Parameters:
//   - cfg: Watch configuration
//
// Returns:
//   - []filetree.Option: Options for filetree.New / filetree.NewWithData
func CreateWatchOptions(cfg *WatchConfig) []filetree.Option {
	return []filetree.Option{
		filetree.WithDebounce(cfg.Debounce),
		filetree.WithRebuildLimit(cfg.RebuildsPerSecond, cfg.Burst),
	}
}
