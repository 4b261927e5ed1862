// SPDX-License-Identifier: MIT
package unit

import (
	"fmt"

	"patchbay/internal/signal"
)

// Feedback wraps a unit with equal input and output arity and feeds its
// output back into its input with a one-sample delay:
//
//	y[n] = inner(x[n] + y[n-1])
//
// This is how loops are expressed; the graph itself never contains cycles.
type Feedback[T Sample] struct {
	inner   Unit[T]
	loop    []T
	in, out []T
}

// NewFeedback wraps inner. It panics when inner's arity is not square.
func NewFeedback[T Sample](inner Unit[T]) *Feedback[T] {
	if inner.Inputs() != inner.Outputs() {
		panic(fmt.Sprintf("unit: feedback needs equal arity, got %d inputs and %d outputs",
			inner.Inputs(), inner.Outputs()))
	}
	n := inner.Outputs()
	return &Feedback[T]{
		inner: inner,
		loop:  make([]T, n),
		in:    make([]T, n),
		out:   make([]T, n),
	}
}

// Inputs returns the loop width.
func (f *Feedback[T]) Inputs() int { return len(f.loop) }

// Outputs returns the loop width.
func (f *Feedback[T]) Outputs() int { return len(f.loop) }

// Reset resets the inner unit and clears the loop.
func (f *Feedback[T]) Reset(sampleRate float64) {
	f.inner.Reset(sampleRate)
	clear(f.loop)
}

// Tick adds the previous output to the input and runs the inner unit.
func (f *Feedback[T]) Tick(input, output []T) {
	for i, v := range input {
		f.in[i] = v + f.loop[i]
	}
	f.inner.Tick(f.in, output)
	copy(f.loop, output)
}

// Process ticks the inner unit per sample; the loop forbids block processing.
func (f *Feedback[T]) Process(size int, input, output [][]T) {
	for i := 0; i < size; i++ {
		for c := range f.loop {
			f.in[c] = input[c][i] + f.loop[c]
		}
		f.inner.Tick(f.in, f.out)
		for c, v := range f.out {
			output[c][i] = v
			f.loop[c] = v
		}
	}
}

// Route cannot solve the loop, so only latency survives.
func (f *Feedback[T]) Route(input signal.Frame, _ float64) signal.Frame {
	out := signal.NewFrame(len(f.loop))
	for i := range out {
		out[i] = input[i].Distort(0)
	}
	return out
}

// Set forwards to the inner unit.
func (f *Feedback[T]) Set(tag Tag, value float64) {
	f.inner.Set(tag, value)
}

// Get forwards to the inner unit.
func (f *Feedback[T]) Get(tag Tag) (float64, bool) {
	return f.inner.Get(tag)
}
