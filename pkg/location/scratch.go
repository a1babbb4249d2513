package location

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgebuild/forgefs/internal/logger"
	"github.com/forgebuild/forgefs/pkg/fs"
)

const scratchDirectoryName = "scratch"

// Extended attribute names used to tag scratch resources. The values are
// free text for operators inspecting leftover scratch files; no tool
// parses them.
const (
	scratchXattrRuleSet = "user.forgefs.scratch.rule_set"
	scratchXattrComment = "user.forgefs.scratch.comment"
)

// Scratch is a directory for transient files and directories. Resources
// are created under random names, written in place, and then either
// persisted out of scratch space with an atomic rename or abandoned for a
// later cleanup pass.
//
// The common use is downloading: fetch into scratch, persist into the
// repository once complete, so a partial download never shadows a good
// file at its final location.
type Scratch struct {
	root *fs.DirectoryHandle
}

// NewScratch attaches to the "scratch" subdirectory of root, creating it
// when missing.
func NewScratch(ctx context.Context, f *fs.FS, root fs.Path) (*Scratch, error) {
	logger.Info("starting scratch directory under %s", root)
	dir, err := attach(ctx, f, root, scratchDirectoryName)
	if err != nil {
		return nil, err
	}
	return &Scratch{root: dir}, nil
}

// Dir returns the scratch directory's handle.
func (s *Scratch) Dir() *fs.DirectoryHandle { return s.root }

// Close releases the scratch directory handle. Resources already created
// stay open and usable; only new creations are cut off.
func (s *Scratch) Close() error {
	return s.root.Close()
}

// File creates a new scratch file under a random name, open for reading
// and writing.
func (s *Scratch) File(ctx context.Context) (*ScratchFile, error) {
	name := uuid.NewString()
	logger.Debug("creating scratch file %s", name)

	h, _, err := s.root.OpenAt(name).Create().ReadWrite().Tag("scratch/" + name).AsFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", err)
	}
	return &ScratchFile{FileHandle: h, root: s.root, name: name}, nil
}

// Directory creates a new scratch directory under a random name.
func (s *Scratch) Directory(ctx context.Context) (*ScratchDirectory, error) {
	name := uuid.NewString()
	logger.Debug("creating scratch directory %s", name)

	if err := s.root.MkdirAt(ctx, name); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	h, err := s.root.OpenAt(name).Tag("scratch/" + name).AsDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening scratch directory: %w", err)
	}
	return &ScratchDirectory{DirectoryHandle: h, root: s.root, name: name}, nil
}

// ScratchFile is a file resource in scratch space. It behaves as a plain
// FileHandle plus the scratch operations; after PersistAt the handle
// remains open but the resource is no longer in scratch.
type ScratchFile struct {
	*fs.FileHandle

	root *fs.DirectoryHandle
	name string
}

// Name returns the random name the resource carries inside scratch space.
func (h *ScratchFile) Name() string { return h.name }

// TagRuleSet records the rule set that created this resource in an
// extended attribute.
func (h *ScratchFile) TagRuleSet(ctx context.Context, ruleSet string) error {
	logger.Debug("tagging scratch file %s with rule set %q", h.name, ruleSet)
	return h.Setxattr(ctx, scratchXattrRuleSet, []byte(ruleSet))
}

// TagComment records a free-text comment in an extended attribute.
func (h *ScratchFile) TagComment(ctx context.Context, comment string) error {
	logger.Debug("tagging scratch file %s with comment %q", h.name, comment)
	return h.Setxattr(ctx, scratchXattrComment, []byte(comment))
}

// PersistAt durably moves the resource out of scratch space: the contents
// are flushed, the entry is atomically renamed to name under to, and the
// destination directory is flushed so the new entry survives a crash. The
// handle stays open and valid throughout.
func (h *ScratchFile) PersistAt(ctx context.Context, to *fs.DirectoryHandle, name string) error {
	logger.Debug("persisting scratch file %s as %s", h.name, name)
	if err := h.Sync(ctx); err != nil {
		return fmt.Errorf("flushing scratch file: %w", err)
	}
	if err := h.root.RenameAt(ctx, h.name, to, name); err != nil {
		return fmt.Errorf("persisting scratch file: %w", err)
	}
	if err := to.Sync(ctx); err != nil {
		return fmt.Errorf("flushing destination directory: %w", err)
	}
	return nil
}

// ScratchDirectory is a directory resource in scratch space.
type ScratchDirectory struct {
	*fs.DirectoryHandle

	root *fs.DirectoryHandle
	name string
}

// Name returns the random name the resource carries inside scratch space.
func (h *ScratchDirectory) Name() string { return h.name }

// PersistAt durably moves the directory out of scratch space, like
// ScratchFile.PersistAt.
func (h *ScratchDirectory) PersistAt(ctx context.Context, to *fs.DirectoryHandle, name string) error {
	logger.Debug("persisting scratch directory %s as %s", h.name, name)
	if err := h.Sync(ctx); err != nil {
		return fmt.Errorf("flushing scratch directory: %w", err)
	}
	if err := h.root.RenameAt(ctx, h.name, to, name); err != nil {
		return fmt.Errorf("persisting scratch directory: %w", err)
	}
	if err := to.Sync(ctx); err != nil {
		return fmt.Errorf("flushing destination directory: %w", err)
	}
	return nil
}
