package gateway

import "sync"

// StreamBuffer is a bounded chunk queue decoupling an upstream producer
// from a client writer. Writes block once the buffer is full; reads block
// until an initial fill has accumulated, smoothing out jittery sources
// before the first byte reaches the client.
type StreamBuffer struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	chunks    [][]byte
	size      int
	maxSize   int
	fillGate  int
	hasFilled bool
	closed    bool
	err       error
}

// NewStreamBuffer returns a StreamBuffer with the given capacity and
// initial fill gate in bytes.
func NewStreamBuffer(maxSize, initialFill int) *StreamBuffer {
	b := &StreamBuffer{
		maxSize:  maxSize,
		fillGate: initialFill,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

// Write enqueues a copy of chunk, blocking while the buffer is full.
// Writes after Close are dropped.
func (b *StreamBuffer) Write(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.size+len(owned) > b.maxSize {
		if b.closed {
			return
		}
		b.notFull.Wait()
	}
	if b.closed {
		return
	}

	b.chunks = append(b.chunks, owned)
	b.size += len(owned)

	if !b.hasFilled {
		if b.size >= b.fillGate {
			b.hasFilled = true
			b.notEmpty.Broadcast()
		}
	} else {
		b.notEmpty.Signal()
	}
}

// Read dequeues the next chunk, blocking until the initial fill gate is
// reached or the buffer is closed. It returns nil after the buffer is
// closed and drained; if the producer closed with an error and no data
// remains, that error is returned.
func (b *StreamBuffer) Read() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.chunks) == 0 || !b.hasFilled {
		if b.closed {
			if len(b.chunks) > 0 {
				break
			}
			return nil, b.err
		}
		b.notEmpty.Wait()
	}

	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]
	b.size -= len(chunk)
	b.notFull.Signal()
	return chunk, nil
}

// Close marks the buffer finished, optionally recording a producer error,
// and wakes all waiters. Safe to call more than once.
func (b *StreamBuffer) Close(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.err = err
	}
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}
