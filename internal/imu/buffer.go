// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "sync"

// Buffer is the append-only hand-off between a producer that receives
// samples and a consumer that periodically drains them. Delivered samples
// are never modified in place, so a snapshot stays valid after later
// appends.
type Buffer struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewBuffer returns an empty buffer with room for capHint samples.
func NewBuffer(capHint int) *Buffer {
	return &Buffer{samples: make([]Sample, 0, capHint)}
}

// Append adds samples at the end of the buffer.
func (b *Buffer) Append(s ...Sample) {
	b.mu.Lock()
	b.samples = append(b.samples, s...)
	b.mu.Unlock()
}

// Len returns the number of delivered samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Snapshot returns every sample delivered so far. The returned slice has
// its capacity clipped so that appending to it never aliases the buffer.
func (b *Buffer) Snapshot() []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.samples)
	return b.samples[:n:n]
}

// Reset drops all samples; used when a new run starts.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.samples = b.samples[:0:0]
	b.mu.Unlock()
}
