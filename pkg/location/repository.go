package location

import (
	"context"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/pkg/fs"
)

const repositoryDirectoryName = "repositories"

// Repository is the directory external resources land in after
// downloading. A build rule that fetches a package downloads it into
// scratch space and persists it here, so the repository only ever
// contains complete files.
type Repository struct {
	root *fs.DirectoryHandle
}

// NewRepository attaches to the "repositories" subdirectory of root,
// creating it when missing.
func NewRepository(ctx context.Context, f *fs.FS, root fs.Path) (*Repository, error) {
	logger.Info("starting repository directory under %s", root)
	dir, err := attach(ctx, f, root, repositoryDirectoryName)
	if err != nil {
		return nil, err
	}
	return &Repository{root: dir}, nil
}

// Dir returns the repository directory's handle, the usual rename target
// for ScratchFile.PersistAt.
func (r *Repository) Dir() *fs.DirectoryHandle { return r.root }

// Close releases the repository directory handle.
func (r *Repository) Close() error {
	return r.root.Close()
}
