package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// patternFile writes size bytes of a deterministic pattern and returns the
// path.
func patternFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	p := filepath.Join(t.TempDir(), "pattern.bin")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadWithStreamsWholeFile(t *testing.T) {
	f := newTestFS(t, 8)
	ctx := context.Background()
	const size = 100_000
	path := patternFile(t, size)

	h, stat, err := f.Open(testPath(t, path)).AsFile(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()
	if stat.Size != size {
		t.Fatalf("stat size = %d", stat.Size)
	}

	type summary struct {
		chunks int
		total  int
	}
	got, err := ReadWith(ctx, h, func(r *BlockReader) (summary, error) {
		var s summary
		pos := 0
		for {
			chunk, err := r.Next()
			if err == io.EOF {
				return s, nil
			}
			if err != nil {
				return s, err
			}
			for i, b := range chunk {
				if b != byte((pos+i)%251) {
					t.Errorf("byte %d = %d, want %d", pos+i, b, byte((pos+i)%251))
					return s, nil
				}
			}
			pos += len(chunk)
			s.chunks++
			s.total += len(chunk)
		}
	})
	if err != nil {
		t.Fatalf("ReadWith: %v", err)
	}
	if got.total != size {
		t.Errorf("streamed %d bytes, want %d", got.total, size)
	}
	if got.chunks < 2 {
		t.Errorf("expected multiple chunks for %d bytes, got %d", size, got.chunks)
	}
}

func TestReadAll(t *testing.T) {
	f := newTestFS(t, 8)
	ctx := context.Background()
	path := patternFile(t, 10_000)
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	h, _, err := f.Open(testPath(t, path)).AsFile(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	got, err := ReadAll(ctx, h)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadAll mismatch: %d bytes vs %d", len(got), len(want))
	}
}

func TestReadWithPropagatesClosureError(t *testing.T) {
	f := newTestFS(t, 8)
	ctx := context.Background()
	path := patternFile(t, 128)

	h, _, err := f.Open(testPath(t, path)).AsFile(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	boom := errors.New("work failed")
	_, err = ReadWith(ctx, h, func(r *BlockReader) (int, error) {
		if _, err := r.Next(); err != nil {
			return 0, err
		}
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestReaderOffsetTracksConsumption(t *testing.T) {
	f := newTestFS(t, 8)
	ctx := context.Background()
	path := patternFile(t, 5000)

	h, _, err := f.Open(testPath(t, path)).AsFile(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	off, err := ReadWith(ctx, h, func(r *BlockReader) (int64, error) {
		if _, err := r.Next(); err != nil {
			return 0, err
		}
		return r.Offset(), nil
	})
	if err != nil {
		t.Fatalf("ReadWith: %v", err)
	}
	if off <= 0 || off > 5000 {
		t.Errorf("offset after one chunk = %d", off)
	}
}
