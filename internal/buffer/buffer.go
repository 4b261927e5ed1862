// SPDX-License-Identifier: MIT
/*
Package buffer implements the fixed-capacity, non-interleaved sample blocks
that units read from and write into during block processing.

Every channel is allocated once with MaxBufferSize samples. Processing calls
pass a size <= MaxBufferSize and only the first size samples of each channel
are meaningful. Nothing in this package allocates after construction.
*/
package buffer

import (
	"github.com/go-audio/audio"
)

// MaxBufferSize is the per-channel capacity of every Buffer and therefore
// the largest block a single Process call may handle.
const MaxBufferSize = 64

// Sample is the set of floating point widths the engine runs at.
type Sample interface {
	~float32 | ~float64
}

// Buffer is a multi-channel block of samples.
type Buffer[T Sample] struct {
	data [][]T
}

// New allocates a zeroed buffer with the given number of channels.
func New[T Sample](channels int) *Buffer[T] {
	if channels < 0 {
		panic("buffer: negative channel count")
	}
	data := make([][]T, channels)
	backing := make([]T, channels*MaxBufferSize)
	for i := range data {
		data[i] = backing[i*MaxBufferSize : (i+1)*MaxBufferSize : (i+1)*MaxBufferSize]
	}
	return &Buffer[T]{data: data}
}

// Len returns the number of channels.
func (b *Buffer[T]) Len() int {
	return len(b.data)
}

// At returns the full-capacity slice of channel i.
func (b *Buffer[T]) At(i int) []T {
	return b.data[i]
}

// Channels returns the per-channel slices. The outer slice is owned by the
// buffer; callers may write samples but must not reslice or append.
func (b *Buffer[T]) Channels() [][]T {
	return b.data
}

// Fill sets every sample of every channel to v.
func (b *Buffer[T]) Fill(v T) {
	for _, ch := range b.data {
		for i := range ch {
			ch[i] = v
		}
	}
}

// Clear zeroes the buffer.
func (b *Buffer[T]) Clear() {
	for _, ch := range b.data {
		clear(ch)
	}
}

// Interleave writes the first size frames into dst as interleaved float64
// samples, reusing dst.Data when it has enough capacity. dst.Format is
// created on first use and its channel count kept in sync.
func (b *Buffer[T]) Interleave(dst *audio.FloatBuffer, size int, sampleRate int) {
	if size > MaxBufferSize {
		panic("buffer: interleave size exceeds MaxBufferSize")
	}
	channels := len(b.data)
	if dst.Format == nil {
		dst.Format = &audio.Format{}
	}
	dst.Format.NumChannels = channels
	dst.Format.SampleRate = sampleRate

	n := size * channels
	if cap(dst.Data) < n {
		dst.Data = make([]float64, n)
	}
	dst.Data = dst.Data[:n]
	for c, ch := range b.data {
		for i := 0; i < size; i++ {
			dst.Data[i*channels+c] = float64(ch[i])
		}
	}
}
