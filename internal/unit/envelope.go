// SPDX-License-Identifier: MIT
package unit

import (
	"patchbay/internal/signal"
)

// Envelope samples a function of time (in seconds) at roughly regular
// intervals and interpolates linearly between the samples. Each interval is
// jittered to 75%..125% of its nominal length with a deterministic hash
// sequence, so the control signal does not beat against periodic audio.
type Envelope[T Sample] struct {
	NoParams
	rate
	f        func(t float64) float64
	interval float64
	seed     uint32

	t, t0, t1    float64
	hash         uint32
	value0       T
	value1       T
	sampleLength float64
	frame        []T
}

// NewEnvelope returns an envelope sampling f every interval seconds.
func NewEnvelope[T Sample](interval float64, seed uint32, f func(t float64) float64) *Envelope[T] {
	if interval <= 0 {
		panic("unit: envelope interval must be positive")
	}
	e := &Envelope[T]{rate: newRate(), f: f, interval: interval, seed: seed, frame: make([]T, 1)}
	e.Reset(0)
	return e
}

// Inputs returns 0.
func (e *Envelope[T]) Inputs() int { return 0 }

// Outputs returns 1.
func (e *Envelope[T]) Outputs() int { return 1 }

// Reset restarts time at zero and reseeds the jitter.
func (e *Envelope[T]) Reset(sampleRate float64) {
	e.update(sampleRate)
	e.sampleLength = 1 / e.sampleRate
	e.t, e.t0, e.t1 = 0, 0, 0
	e.hash = e.seed
	e.value0 = T(e.f(0))
	e.value1 = e.value0
}

// Tick outputs the interpolated value and advances one sample.
func (e *Envelope[T]) Tick(_, output []T) {
	if e.t >= e.t1 {
		e.t0 = e.t1
		e.value0 = e.value1
		e.t1 = e.t0 + e.interval*lerp(0.75, 1.25, rnd(e.hash))
		e.value1 = T(e.f(e.t1))
		e.hash = hashw(e.hash)
	}
	x := T((e.t - e.t0) / (e.t1 - e.t0))
	output[0] = e.value0 + (e.value1-e.value0)*x
	e.t += e.sampleLength
}

// Process runs Tick over the block.
func (e *Envelope[T]) Process(size int, _, output [][]T) {
	out := output[0][:size]
	for i := range out {
		e.Tick(nil, e.frame)
		out[i] = e.frame[0]
	}
}

// Route reports Unknown; the envelope is time-varying.
func (e *Envelope[T]) Route(_ signal.Frame, _ float64) signal.Frame {
	return signal.NewFrame(1)
}

func lerp(a, b, x float64) float64 {
	return a + (b-a)*x
}

// hashw advances a 32-bit hash state.
func hashw(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// rnd maps a hash state to [0, 1).
func rnd(x uint32) float64 {
	z := uint64(x) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float64(z>>11) / float64(1<<53)
}
