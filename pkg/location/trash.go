package location

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/pkg/fs"
)

const trashDirectoryName = "trash"

// Trash is a directory entries are moved into for deferred deletion.
// Discarding is a rename, so it is atomic and cheap; actually reclaiming
// the space is left to a cleanup pass outside this layer.
type Trash struct {
	root *fs.DirectoryHandle
}

// NewTrash attaches to the "trash" subdirectory of root, creating it when
// missing.
func NewTrash(ctx context.Context, f *fs.FS, root fs.Path) (*Trash, error) {
	logger.Info("starting trash directory under %s", root)
	dir, err := attach(ctx, f, root, trashDirectoryName)
	if err != nil {
		return nil, err
	}
	return &Trash{root: dir}, nil
}

// Dir returns the trash directory's handle.
func (t *Trash) Dir() *fs.DirectoryHandle { return t.root }

// Close releases the trash directory handle.
func (t *Trash) Close() error {
	return t.root.Close()
}

// Discard moves from's entry name into the trash under a fresh random
// name, so repeated discards of equal names never collide. It returns the
// name the entry now has inside the trash.
func (t *Trash) Discard(ctx context.Context, from *fs.DirectoryHandle, name string) (string, error) {
	trashName := uuid.NewString()
	logger.Debug("discarding %s into trash as %s", name, trashName)

	if err := from.RenameAt(ctx, name, t.root, trashName); err != nil {
		return "", fmt.Errorf("discarding %s: %w", name, err)
	}
	return trashName, nil
}
