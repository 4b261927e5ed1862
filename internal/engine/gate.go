// SPDX-License-Identifier: MIT
package engine

import "math"

// EnableGate passes only blocks above the threshold to the analyser.
func (e *Engine[T]) EnableGate() {
	e.gateEnabled.Store(true)
}

// DisableGate passes every block to the analyser.
func (e *Engine[T]) DisableGate() {
	e.gateEnabled.Store(false)
}

// SetGateThreshold adjusts the analysis gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed
// for signals within full scale.
func (e *Engine[T]) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	e.gateThreshold.Store(math.Float64bits(threshold))
}

// GetGateThreshold returns the current gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine[T]) GetGateThreshold() float64 {
	return math.Float64frombits(e.gateThreshold.Load())
}

// gateOpen reports whether block should reach the analyser.
func (e *Engine[T]) gateOpen(block []T) bool {
	return !e.gateEnabled.Load() || float64(peak(block)) > e.GetGateThreshold()
}
