package fs

import (
	"context"
	"io"
)

// BlockReader pulls a file's contents in fixed-size chunks backed by one
// pooled block. It is handed to the closure given to ReadWith and is only
// valid until that closure returns; the backing buffer belongs to the
// worker's block pool and each Next overwrites it.
type BlockReader struct {
	fd     int
	buf    []byte
	offset int64
}

// Next returns the next chunk of the file, or io.EOF when the file is
// exhausted. The returned slice aliases the reader's block and is only
// valid until the next call.
func (r *BlockReader) Next() ([]byte, error) {
	n, err := sysPread(r.fd, r.buf, r.offset)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	r.offset += int64(n)
	return r.buf[:n], nil
}

// Offset reports how many bytes have been consumed so far.
func (r *BlockReader) Offset() int64 { return r.offset }

// ReadWith streams the file through fn on a worker goroutine. The reader's
// block comes from that worker's pool, sized to a multiple of the file's
// preferred I/O size, so large files stream without per-read allocation.
//
// fn runs on the worker, not the calling goroutine; it must not retain the
// reader or any chunk beyond its own return.
func ReadWith[T any](ctx context.Context, h *FileHandle, fn func(*BlockReader) (T, error)) (T, error) {
	h.state.ensureUsable()
	size := readBufferSize(h.blockSize)
	return runTask(ctx, h.state.fs.workers, func(blocks *blockPool) (T, error) {
		r := &BlockReader{fd: h.state.fd, buf: blocks.get(size)}
		v, err := fn(r)
		if err == nil {
			h.state.fs.metrics.RecordBytesTransferred("read", r.offset)
		}
		return v, err
	})
}

// ReadAll drains the file from offset zero into a fresh byte slice. A
// convenience over ReadWith for callers that want the whole content.
func ReadAll(ctx context.Context, h *FileHandle) ([]byte, error) {
	return ReadWith(ctx, h, func(r *BlockReader) ([]byte, error) {
		var out []byte
		for {
			chunk, err := r.Next()
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			out = append(out, chunk...)
		}
	})
}
