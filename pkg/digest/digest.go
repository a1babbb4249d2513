// Package digest computes BLAKE3 content digests of files read
// through the fs package. A Digest is the 32-byte default BLAKE3
// output, rendered as lowercase hex.
package digest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/forgebuild/forgefs/pkg/fs"
)

// Digest is a 32-byte BLAKE3 digest of a file's contents.
type Digest [32]byte

// String returns the canonical lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters of the digest, for log
// lines and summary output where the full form is too wide.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

// IsZero reports whether d is the zero digest. The zero value marks
// entries that have not been hashed; it is not the digest of any
// input.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler so digests serialize
// as hex strings in YAML and JSON documents.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse parses a 64-character hex string into a Digest.
func Parse(hexString string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(d) {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(decoded), len(d))
	}
	copy(d[:], decoded)
	return d, nil
}

// Sum computes the digest of an in-memory byte slice.
func Sum(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// Reader consumes r to the end of the file, feeding each block
// through a BLAKE3 hasher, and returns the digest of the full
// contents. The blocks are hashed in place; nothing is buffered
// beyond the reader's own block.
func Reader(r *fs.BlockReader) (Digest, error) {
	return hashBlocks(blake3.New(), r)
}

func hashBlocks(hasher *blake3.Hasher, r *fs.BlockReader) (Digest, error) {
	for {
		block, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, err
		}
		hasher.Write(block)
	}
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, nil
}

// File reads and hashes the full contents of an open file handle.
func File(ctx context.Context, h *fs.FileHandle) (Digest, error) {
	return fs.ReadWith(ctx, h, Reader)
}

// Work hashes a file's contents during a metadata tree build. It has
// the signature required by fs.TreeWithData, so a tree annotated with
// content digests is built as:
//
//	tree, err := fs.TreeWithData(ctx, root, ignore, digest.Work)
func Work(_ fs.FileStat, r *fs.BlockReader) (Digest, error) {
	return Reader(r)
}

// KeyedWork returns a work function computing keyed BLAKE3 digests
// with the given 32-byte key. Keyed digests never collide with the
// default ones, so trees annotated under different keys are not
// comparable.
func KeyedWork(key []byte) (fs.WorkFunc[Digest], error) {
	if _, err := blake3.NewKeyed(key); err != nil {
		return nil, fmt.Errorf("keyed digest: %w", err)
	}
	key = append([]byte(nil), key...)
	return func(_ fs.FileStat, r *fs.BlockReader) (Digest, error) {
		hasher, err := blake3.NewKeyed(key)
		if err != nil {
			return Digest{}, err
		}
		return hashBlocks(hasher, r)
	}, nil
}
