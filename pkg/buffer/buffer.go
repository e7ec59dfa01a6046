package buffer

import (
	"fmt"
	"io"
	"sync"
)

// Buffer is a thread-safe growable FIFO queue. It backs the audio
// pipeline: the capture callback appends raw samples and the chunk
// routine slices exact sample counts back out. The buffer grows as
// needed and keeps a write notification channel so blocking reads can
// wait for data without spinning.
//
// Writes after CloseWrite fail with io.ErrClosedPipe; CloseWithError
// tears down both ends and surfaces the error to all pending and
// subsequent operations.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
}

// N creates a new Buffer with the specified initial capacity. The
// capacity is a hint; the buffer grows beyond it as needed.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// Write appends all elements of p to the buffer and wakes one waiting
// reader. Implements the generic analog of io.Writer.
func (b *Buffer[T]) Write(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Read copies up to len(p) elements out of the buffer, blocking while
// the buffer is empty. Returns io.EOF once the write side is closed and
// all data has been consumed.
func (b *Buffer[T]) Read(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
	}
	for len(b.buf) == 0 {
		if b.closeWrite {
			return 0, io.EOF
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
		if b.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
	}
	n = copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// TakeExact removes and returns exactly n elements, or (nil, false)
// without consuming anything when fewer than n are buffered. This is
// the non-blocking slicing primitive the resample chunker builds on:
// either a full chunk's worth of source samples comes out, or none.
func (b *Buffer[T]) TakeExact(n int) ([]T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || len(b.buf) < n {
		return nil, false
	}
	out := make([]T, n)
	copy(out, b.buf)
	b.buf = b.buf[n:]
	return out, true
}

// TakeAll removes and returns everything currently buffered.
func (b *Buffer[T]) TakeAll() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	out := make([]T, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return out
}

// Len returns the number of elements currently buffered.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Reset discards all buffered elements, keeping capacity. Works on
// closed buffers too, but does not reopen them.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
}

// CloseWrite closes the write side, letting readers drain the
// remaining data before seeing io.EOF.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// CloseWithError closes both ends immediately. Pending reads are
// unblocked with err; nil defaults to io.ErrClosedPipe.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}
