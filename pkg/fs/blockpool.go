package fs

// blockPool caches read buffers for a single worker goroutine, keyed by
// requested size. A worker executes one task at a time, so one buffer per
// size is enough; buffers are zeroed on reuse rather than reallocated.
//
// Buffers must never escape the worker that owns the pool.
type blockPool struct {
	blocks map[int][]byte
}

func newBlockPool() *blockPool {
	return &blockPool{blocks: make(map[int][]byte)}
}

// get returns a zeroed buffer of exactly size bytes, reusing a previous
// buffer of the same size when available.
func (p *blockPool) get(size int) []byte {
	if buf, ok := p.blocks[size]; ok {
		clear(buf)
		return buf
	}
	buf := make([]byte, size)
	p.blocks[size] = buf
	return buf
}

// readBufferSize picks the buffer size for streaming a file: a multiple of
// the file's optimal block size, or the default when the platform did not
// report one.
func readBufferSize(blockSize int64) int {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return int(blockSize) * readBlockMultiple
}
