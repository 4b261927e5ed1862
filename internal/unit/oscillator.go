// SPDX-License-Identifier: MIT
package unit

import (
	"math"

	"patchbay/internal/signal"
)

// Sine is a sine oscillator whose frequency in Hz is read from its single
// input every sample.
type Sine[T Sample] struct {
	NoParams
	rate
	phase   float64
	initial float64
	in, out []T
}

// NewSine returns a sine oscillator starting at the given phase in [0, 1).
func NewSine[T Sample](phase float64) *Sine[T] {
	s := &Sine[T]{
		rate:    newRate(),
		initial: phase - math.Floor(phase),
		in:      make([]T, 1),
		out:     make([]T, 1),
	}
	s.phase = s.initial
	return s
}

// Inputs returns 1, the frequency.
func (s *Sine[T]) Inputs() int { return 1 }

// Outputs returns 1.
func (s *Sine[T]) Outputs() int { return 1 }

// Reset rewinds to the initial phase.
func (s *Sine[T]) Reset(sampleRate float64) {
	s.update(sampleRate)
	s.phase = s.initial
}

// Tick outputs the current sample and advances the phase.
func (s *Sine[T]) Tick(input, output []T) {
	output[0] = T(math.Sin(2 * math.Pi * s.phase))
	s.phase += float64(input[0]) / s.sampleRate
	s.phase -= math.Floor(s.phase)
}

// Process runs Tick over the block.
func (s *Sine[T]) Process(size int, input, output [][]T) {
	tickProcess[T](s, size, input, output, s.in, s.out)
}

// Route reports Unknown; the output is not a linear function of the input.
func (s *Sine[T]) Route(_ signal.Frame, _ float64) signal.Frame {
	return signal.NewFrame(1)
}
