// SPDX-License-Identifier: MIT
package unit

import (
	"math"
	"math/cmplx"

	"patchbay/internal/signal"
)

// Delay1 delays n channels by one sample. It is the building block for
// expressing feedback without cycles in the graph.
type Delay1[T Sample] struct {
	NoParams
	rate
	state []T
}

// NewDelay1 returns an n-channel one-sample delay.
func NewDelay1[T Sample](channels int) *Delay1[T] {
	return &Delay1[T]{rate: newRate(), state: make([]T, channels)}
}

// Inputs returns the channel count.
func (d *Delay1[T]) Inputs() int { return len(d.state) }

// Outputs returns the channel count.
func (d *Delay1[T]) Outputs() int { return len(d.state) }

// Reset clears the held samples.
func (d *Delay1[T]) Reset(sampleRate float64) {
	d.update(sampleRate)
	clear(d.state)
}

// Tick outputs the previous input and holds the current one.
func (d *Delay1[T]) Tick(input, output []T) {
	copy(output, d.state)
	copy(d.state, input)
}

// Process shifts each channel by one sample across the block.
func (d *Delay1[T]) Process(size int, input, output [][]T) {
	if size == 0 {
		return
	}
	for ch, last := range d.state {
		in, out := input[ch][:size], output[ch][:size]
		out[0] = last
		copy(out[1:], in[:size-1])
		d.state[ch] = in[size-1]
	}
}

// Route applies z^-1 and one sample of latency.
func (d *Delay1[T]) Route(input signal.Frame, frequency float64) signal.Frame {
	omega := 2 * math.Pi * frequency / d.sampleRate
	z := cmplx.Exp(complex(0, -omega))
	out := signal.NewFrame(len(d.state))
	for i := range out {
		out[i] = input[i].Filter(1, z, 1)
	}
	return out
}

// Lowpole is a one-pole lowpass filter, y[n] = (1-c)x[n] + c y[n-1] with
// c = exp(-2π cutoff / sampleRate). Its cutoff responds to a tag.
type Lowpole[T Sample] struct {
	rate
	cutoff float64
	tag    Tag
	coeff  T
	y      T
	in     []T
	out    []T
}

// NewLowpole returns a lowpass with the given cutoff in Hz.
func NewLowpole[T Sample](cutoff float64, tag Tag) *Lowpole[T] {
	l := &Lowpole[T]{
		rate:   newRate(),
		cutoff: cutoff,
		tag:    tag,
		in:     make([]T, 1),
		out:    make([]T, 1),
	}
	l.updateCoeff()
	return l
}

func (l *Lowpole[T]) updateCoeff() {
	l.coeff = T(l.pole())
}

func (l *Lowpole[T]) pole() float64 {
	return math.Exp(-2 * math.Pi * l.cutoff / l.sampleRate)
}

// Inputs returns 1.
func (l *Lowpole[T]) Inputs() int { return 1 }

// Outputs returns 1.
func (l *Lowpole[T]) Outputs() int { return 1 }

// Reset recomputes the coefficient for sampleRate and clears the state.
func (l *Lowpole[T]) Reset(sampleRate float64) {
	l.update(sampleRate)
	l.updateCoeff()
	l.y = 0
}

// Tick filters one sample.
func (l *Lowpole[T]) Tick(input, output []T) {
	l.y = (1-l.coeff)*input[0] + l.coeff*l.y
	output[0] = l.y
}

// Process filters a block sample by sample.
func (l *Lowpole[T]) Process(size int, input, output [][]T) {
	tickProcess[T](l, size, input, output, l.in, l.out)
}

// Route evaluates H(z) = (1-c) / (1 - c z^-1) at z = e^{iω}.
func (l *Lowpole[T]) Route(input signal.Frame, frequency float64) signal.Frame {
	c := float64(l.coeff)
	omega := 2 * math.Pi * frequency / l.sampleRate
	h := complex(1-c, 0) / (1 - complex(c, 0)*cmplx.Exp(complex(0, -omega)))
	out := signal.NewFrame(1)
	out[0] = input[0].Filter(0, h, 1)
	return out
}

// Set changes the cutoff when tag matches and value is positive.
func (l *Lowpole[T]) Set(tag Tag, value float64) {
	if tag == l.tag && value > 0 {
		l.cutoff = value
		l.updateCoeff()
	}
}

// Get returns the cutoff in Hz when tag matches.
func (l *Lowpole[T]) Get(tag Tag) (float64, bool) {
	if tag == l.tag {
		return l.cutoff, true
	}
	return 0, false
}
