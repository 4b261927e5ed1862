// SPDX-License-Identifier: MIT
package unit

import (
	"patchbay/internal/signal"
)

// Constant outputs fixed values and has no inputs.
type Constant[T Sample] struct {
	NoParams
	values []T
}

// NewConstant returns a constant with one output per value.
func NewConstant[T Sample](values ...T) *Constant[T] {
	return &Constant[T]{values: append([]T(nil), values...)}
}

// Inputs returns 0.
func (c *Constant[T]) Inputs() int { return 0 }

// Outputs returns one channel per value.
func (c *Constant[T]) Outputs() int { return len(c.values) }

// Reset does nothing; a constant has no state.
func (c *Constant[T]) Reset(float64) {}

// Tick writes the values.
func (c *Constant[T]) Tick(_, output []T) {
	copy(output, c.values)
}

// Process fills each output channel with its value.
func (c *Constant[T]) Process(size int, _, output [][]T) {
	for ch, v := range c.values {
		out := output[ch][:size]
		for i := range out {
			out[i] = v
		}
	}
}

// Route reports each value as a constant.
func (c *Constant[T]) Route(_ signal.Frame, _ float64) signal.Frame {
	out := signal.NewFrame(len(c.values))
	for i, v := range c.values {
		out[i] = signal.Const(float64(v))
	}
	return out
}

// Pass copies n inputs to n outputs.
type Pass[T Sample] struct {
	NoParams
	channels int
}

// NewPass returns an n-channel passthrough.
func NewPass[T Sample](channels int) *Pass[T] {
	return &Pass[T]{channels: channels}
}

// Inputs returns the channel count.
func (p *Pass[T]) Inputs() int { return p.channels }

// Outputs returns the channel count.
func (p *Pass[T]) Outputs() int { return p.channels }

// Reset does nothing.
func (p *Pass[T]) Reset(float64) {}

// Tick copies input to output.
func (p *Pass[T]) Tick(input, output []T) {
	copy(output, input)
}

// Process copies each channel.
func (p *Pass[T]) Process(size int, input, output [][]T) {
	for ch := 0; ch < p.channels; ch++ {
		copy(output[ch][:size], input[ch][:size])
	}
}

// Route returns the input signals unchanged.
func (p *Pass[T]) Route(input signal.Frame, _ float64) signal.Frame {
	out := signal.NewFrame(p.channels)
	copy(out, input)
	return out
}

// Sum adds n inputs into one output.
type Sum[T Sample] struct {
	NoParams
	inputs int
}

// NewSum returns an n-input mixer.
func NewSum[T Sample](inputs int) *Sum[T] {
	return &Sum[T]{inputs: inputs}
}

// Inputs returns the number of mixed inputs.
func (s *Sum[T]) Inputs() int { return s.inputs }

// Outputs returns 1.
func (s *Sum[T]) Outputs() int { return 1 }

// Reset does nothing.
func (s *Sum[T]) Reset(float64) {}

// Tick writes the sum of the inputs.
func (s *Sum[T]) Tick(input, output []T) {
	var acc T
	for _, v := range input {
		acc += v
	}
	output[0] = acc
}

// Process mixes every input channel into the output.
func (s *Sum[T]) Process(size int, input, output [][]T) {
	out := output[0][:size]
	clear(out)
	for ch := 0; ch < s.inputs; ch++ {
		in := input[ch][:size]
		for i := range out {
			out[i] += in[i]
		}
	}
}

// Route combines the input signals. A sum of nothing is the constant 0.
func (s *Sum[T]) Route(input signal.Frame, _ float64) signal.Frame {
	out := signal.NewFrame(1)
	if s.inputs == 0 {
		out[0] = signal.Const(0)
		return out
	}
	acc := input[0]
	for _, in := range input[1:] {
		acc = signal.Combine(acc, in)
	}
	out[0] = acc
	return out
}

// Gain multiplies n channels by an amount that can be changed through its tag.
type Gain[T Sample] struct {
	channels int
	amount   T
	tag      Tag
}

// NewGain returns an n-channel gain stage responding to tag.
func NewGain[T Sample](channels int, amount T, tag Tag) *Gain[T] {
	return &Gain[T]{channels: channels, amount: amount, tag: tag}
}

// Inputs returns the channel count.
func (g *Gain[T]) Inputs() int { return g.channels }

// Outputs returns the channel count.
func (g *Gain[T]) Outputs() int { return g.channels }

// Reset keeps the current amount.
func (g *Gain[T]) Reset(float64) {}

// Tick scales each channel by the amount.
func (g *Gain[T]) Tick(input, output []T) {
	for i, v := range input {
		output[i] = v * g.amount
	}
}

// Process scales each channel by the amount.
func (g *Gain[T]) Process(size int, input, output [][]T) {
	for ch := 0; ch < g.channels; ch++ {
		in, out := input[ch][:size], output[ch][:size]
		for i := range out {
			out[i] = in[i] * g.amount
		}
	}
}

// Route scales each input signal by the amount.
func (g *Gain[T]) Route(input signal.Frame, _ float64) signal.Frame {
	out := signal.NewFrame(g.channels)
	for i := range out {
		out[i] = input[i].Scale(float64(g.amount))
	}
	return out
}

// Set changes the amount when tag matches.
func (g *Gain[T]) Set(tag Tag, value float64) {
	if tag == g.tag {
		g.amount = T(value)
	}
}

// Get returns the amount when tag matches.
func (g *Gain[T]) Get(tag Tag) (float64, bool) {
	if tag == g.tag {
		return float64(g.amount), true
	}
	return 0, false
}
