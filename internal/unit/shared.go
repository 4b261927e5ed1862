// SPDX-License-Identifier: MIT
package unit

import (
	"math"
	"sync/atomic"

	"patchbay/internal/signal"
)

// Shared is a control value that may be written from any goroutine (a UI or
// network handler) while the audio thread reads it through a Var.
type Shared struct {
	bits atomic.Uint64
}

// NewShared returns a cell holding v.
func NewShared(v float64) *Shared {
	s := &Shared{}
	s.Set(v)
	return s
}

// Set stores v.
func (s *Shared) Set(v float64) {
	s.bits.Store(math.Float64bits(v))
}

// Value loads the current value.
func (s *Shared) Value() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Var outputs the current value of a Shared cell.
type Var[T Sample] struct {
	NoParams
	shared *Shared
}

// NewVar returns a unit reading shared.
func NewVar[T Sample](shared *Shared) *Var[T] {
	return &Var[T]{shared: shared}
}

// Inputs returns 0.
func (v *Var[T]) Inputs() int { return 0 }

// Outputs returns 1.
func (v *Var[T]) Outputs() int { return 1 }

// Reset leaves the shared value alone.
func (v *Var[T]) Reset(float64) {}

// Tick outputs the current value.
func (v *Var[T]) Tick(_, output []T) {
	output[0] = T(v.shared.Value())
}

// Process reads the cell once per sample so that it matches Tick exactly
// even if another goroutine writes mid-block.
func (v *Var[T]) Process(size int, _, output [][]T) {
	out := output[0][:size]
	for i := range out {
		out[i] = T(v.shared.Value())
	}
}

// Route reports Unknown because the value can change at any time.
func (v *Var[T]) Route(_ signal.Frame, _ float64) signal.Frame {
	return signal.NewFrame(1)
}
