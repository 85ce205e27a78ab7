// Package buffer turns an unbounded sample stream into fixed-size windows.
package buffer

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned for a non-positive window or an out of range hop
var ErrInvalidWindow = errors.New("invalid window configuration")

// ChunkBuffer accumulates pushed samples and slices off windows of exactly
// Window samples, oldest first. Consecutive windows start Hop samples apart.
// After every Push the residual holds fewer than Window samples.
//
// A ChunkBuffer is not safe for concurrent use; it lives on the single
// acquisition path of a session.
type ChunkBuffer struct {
	window int
	hop    int

	// residual[head:] are the pending samples
	residual []float32
	head     int
}

// New creates a buffer emitting windows of size window advancing by hop.
// A hop of 0 means non-overlapping windows (hop = window).
func New(window, hop int) (*ChunkBuffer, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window %d must be positive", ErrInvalidWindow, window)
	}
	if hop == 0 {
		hop = window
	}
	if hop < 0 || hop > window {
		return nil, fmt.Errorf("%w: hop %d must be within [1,%d]", ErrInvalidWindow, hop, window)
	}

	return &ChunkBuffer{
		window:   window,
		hop:      hop,
		residual: make([]float32, 0, 2*window),
	}, nil
}

// Push appends frames and returns every window that became complete.
// Returned windows are copies and may be retained by the caller.
func (b *ChunkBuffer) Push(frames []float32) [][]float32 {
	if len(frames) == 0 {
		return nil
	}

	b.compact()
	b.residual = append(b.residual, frames...)

	var windows [][]float32
	for b.Len() >= b.window {
		w := make([]float32, b.window)
		copy(w, b.residual[b.head:b.head+b.window])
		windows = append(windows, w)
		b.head += b.hop
	}

	return windows
}

// Len returns the number of pending samples
func (b *ChunkBuffer) Len() int {
	return len(b.residual) - b.head
}

// Window returns the configured window size
func (b *ChunkBuffer) Window() int { return b.window }

// Hop returns the configured hop size
func (b *ChunkBuffer) Hop() int { return b.hop }

// Reset discards all pending samples
func (b *ChunkBuffer) Reset() {
	b.residual = b.residual[:0]
	b.head = 0
}

// compact moves the pending tail to the front of the backing array so the
// buffer does not grow with the stream
func (b *ChunkBuffer) compact() {
	if b.head == 0 {
		return
	}
	n := copy(b.residual, b.residual[b.head:])
	b.residual = b.residual[:n]
	b.head = 0
}
