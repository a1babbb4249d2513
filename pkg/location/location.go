// Package location manages the well-known directories a build engine
// keeps under its workspace root: scratch space for transient
// randomly-named resources, the repository directory that persisted
// downloads are renamed into, and the trash directory used for
// deferred deletion.
//
// Every location wraps one long-lived directory handle from pkg/fs and
// creates its directory on first use.
package location

import (
	"context"
	"fmt"

	"github.com/forgebuild/forgefs/pkg/fs"
)

// attach opens the named subdirectory of root, creating it first when it
// does not exist yet.
func attach(ctx context.Context, f *fs.FS, root fs.Path, name string) (*fs.DirectoryHandle, error) {
	path, err := root.Join(name)
	if err != nil {
		return nil, err
	}

	dir, err := f.Open(path).Tag(name).AsDirectory(ctx)
	if err == nil {
		return dir, nil
	}
	if !fs.HasCode(err, fs.ErrNotFound) {
		return nil, fmt.Errorf("opening %s directory: %w", name, err)
	}

	if err := f.Mkdir(ctx, path); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", name, err)
	}
	dir, err = f.Open(path).Tag(name).AsDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s directory: %w", name, err)
	}
	return dir, nil
}
