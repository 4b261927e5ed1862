// SPDX-License-Identifier: MIT
package unit

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchbay/internal/buffer"
	"patchbay/internal/signal"
)

const testSampleRate = 48000.0

// ramp fills channel c of a block with a deterministic, channel-dependent signal.
func ramp[T Sample](channels, size int) [][]T {
	block := make([][]T, channels)
	for c := range block {
		block[c] = make([]T, buffer.MaxBufferSize)
		for i := 0; i < size; i++ {
			block[c][i] = T(math.Sin(float64(i*(c+1))*0.37) * 0.8)
		}
	}
	return block
}

// assertTickMatchesProcess runs two fresh units side by side, one through
// Tick and one through Process, and requires identical samples.
func assertTickMatchesProcess[T Sample](t *testing.T, newUnit func() Unit[T], size int) {
	t.Helper()
	ticked, blocked := newUnit(), newUnit()
	ticked.Reset(testSampleRate)
	blocked.Reset(testSampleRate)

	input := ramp[T](ticked.Inputs(), size)
	output := ramp[T](ticked.Outputs(), 0)
	blocked.Process(size, input, output)

	in := make([]T, ticked.Inputs())
	out := make([]T, ticked.Outputs())
	for i := 0; i < size; i++ {
		for c := range in {
			in[c] = input[c][i]
		}
		ticked.Tick(in, out)
		for c := range out {
			require.Equalf(t, out[c], output[c][i], "channel %d sample %d", c, i)
		}
	}
}

func TestTickMatchesProcess(t *testing.T) {
	tests := []struct {
		name string
		make func() Unit[float64]
	}{
		{"constant", func() Unit[float64] { return NewConstant(1.5, -2) }},
		{"pass", func() Unit[float64] { return NewPass[float64](3) }},
		{"sum", func() Unit[float64] { return NewSum[float64](3) }},
		{"gain", func() Unit[float64] { return NewGain(2, 0.5, 1) }},
		{"sine", func() Unit[float64] { return NewSine[float64](0.25) }},
		{"delay", func() Unit[float64] { return NewDelay1[float64](2) }},
		{"lowpole", func() Unit[float64] { return NewLowpole[float64](1000, 1) }},
		{"envelope", func() Unit[float64] {
			return NewEnvelope[float64](0.0001, 7, func(t float64) float64 { return math.Exp(-t * 100) })
		}},
		{"feedback", func() Unit[float64] { return NewFeedback[float64](NewGain(1, 0.5, 1)) }},
		{"var", func() Unit[float64] { return NewVar[float64](NewShared(0.3)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTickMatchesProcess(t, tt.make, buffer.MaxBufferSize)
			assertTickMatchesProcess(t, tt.make, 17)
		})
	}
}

func TestTickMatchesProcessFloat32(t *testing.T) {
	assertTickMatchesProcess(t, func() Unit[float32] { return NewSine[float32](0) }, buffer.MaxBufferSize)
	assertTickMatchesProcess(t, func() Unit[float32] { return NewLowpole[float32](300, 1) }, buffer.MaxBufferSize)
}

func TestGainRouteScalesConstant(t *testing.T) {
	g := NewGain(1, 3.0, 1)
	for _, f := range []float64{0, 440, 12000} {
		out := g.Route(signal.Frame{signal.Const(2)}, f)
		v, ok := out[0].IsConst()
		require.True(t, ok, "frequency %v", f)
		assert.Equal(t, 6.0, v)
	}
}

func TestGainParameters(t *testing.T) {
	g := NewGain(1, 1.0, 7)
	g.Set(8, 0.1)
	v, ok := g.Get(7)
	require.True(t, ok)
	assert.Equal(t, 1.0, v, "foreign tag must be ignored")

	g.Set(7, 0.25)
	v, ok = g.Get(7)
	require.True(t, ok)
	assert.Equal(t, 0.25, v)

	_, ok = g.Get(8)
	assert.False(t, ok)
}

func TestSumRoute(t *testing.T) {
	s := NewSum[float64](2)
	out := s.Route(signal.Frame{signal.Const(2), signal.Const(3)}, 100)
	assert.Equal(t, signal.Const(5), out[0])

	empty := NewSum[float64](0)
	assert.Equal(t, signal.Const(0), empty.Route(nil, 100)[0])
}

func TestSineFrequency(t *testing.T) {
	s := NewSine[float64](0)
	s.Reset(testSampleRate)
	in, out := []float64{testSampleRate / 4}, []float64{0}

	want := []float64{0, 1, 0, -1, 0}
	for i, w := range want {
		s.Tick(in, out)
		assert.InDeltaf(t, w, out[0], 1e-12, "sample %d", i)
	}

	s.Reset(0)
	s.Tick(in, out)
	assert.InDelta(t, 0, out[0], 1e-12, "reset must restore the initial phase")
}

func TestDelay1(t *testing.T) {
	d := NewDelay1[float64](1)
	out := []float64{0}
	for i, x := range []float64{1, 2, 3} {
		d.Tick([]float64{x}, out)
		assert.Equal(t, float64(i), out[0])
	}
	d.Reset(0)
	d.Tick([]float64{9}, out)
	assert.Equal(t, 0.0, out[0])
}

func TestDelay1Route(t *testing.T) {
	d := NewDelay1[float64](1)
	d.Reset(testSampleRate)
	out := d.Route(signal.Frame{signal.Linear(1, 0)}, testSampleRate/4)
	require.Equal(t, signal.Response, out[0].Kind)
	assert.InDelta(t, 1.0, out[0].Gain(), 1e-12)
	assert.InDelta(t, -math.Pi/2, cmplx.Phase(out[0].Response), 1e-12)
	assert.Equal(t, 1.0, out[0].Latency)
}

func TestLowpoleRoute(t *testing.T) {
	l := NewLowpole[float64](1000, 3)
	l.Reset(testSampleRate)

	dc := l.Route(signal.Frame{signal.Linear(1, 0)}, 0)
	assert.InDelta(t, 1.0, dc[0].Gain(), 1e-12)

	low := l.Route(signal.Frame{signal.Linear(1, 0)}, 100)[0].Gain()
	high := l.Route(signal.Frame{signal.Linear(1, 0)}, 10000)[0].Gain()
	assert.Greater(t, low, high)

	constant := l.Route(signal.Frame{signal.Const(0.5)}, 5000)
	assert.Equal(t, signal.Const(0.5), constant[0])
}

func TestLowpoleConvergesToDC(t *testing.T) {
	l := NewLowpole[float64](2000, 1)
	l.Reset(testSampleRate)
	out := []float64{0}
	for i := 0; i < 4096; i++ {
		l.Tick([]float64{1}, out)
	}
	assert.InDelta(t, 1.0, out[0], 1e-9)

	l.Set(1, 500)
	cutoff, ok := l.Get(1)
	require.True(t, ok)
	assert.Equal(t, 500.0, cutoff)
}

func TestEnvelopeInterpolates(t *testing.T) {
	e := NewEnvelope[float64](0.01, 1, func(t float64) float64 { return t })
	e.Reset(1000)
	out := []float64{0}
	prev := -1.0
	for i := 0; i < 200; i++ {
		e.Tick(nil, out)
		assert.InDeltaf(t, float64(i)/1000, out[0], 1e-9, "sample %d", i)
		assert.Greater(t, out[0], prev)
		prev = out[0]
	}
}

func TestEnvelopeIsDeterministic(t *testing.T) {
	f := func(t float64) float64 { return math.Sin(t * 50) }
	a := NewEnvelope[float64](0.002, 42, f)
	b := NewEnvelope[float64](0.002, 42, f)
	x, y := []float64{0}, []float64{0}
	for i := 0; i < 500; i++ {
		a.Tick(nil, x)
		b.Tick(nil, y)
		require.Equal(t, x[0], y[0])
	}
}

func TestEnvelopeRejectsZeroInterval(t *testing.T) {
	assert.Panics(t, func() {
		NewEnvelope[float64](0, 1, func(float64) float64 { return 0 })
	})
}

func TestFeedbackAccumulates(t *testing.T) {
	// y[n] = 0.5 * (x[n] + y[n-1]) with a unit impulse.
	f := NewFeedback[float64](NewGain(1, 0.5, 1))
	out := []float64{0}
	want := []float64{0.5, 0.25, 0.125, 0.0625}
	for i, w := range want {
		x := 0.0
		if i == 0 {
			x = 1
		}
		f.Tick([]float64{x}, out)
		assert.Equal(t, w, out[0])
	}

	f.Set(1, 1)
	v, ok := f.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	assert.Panics(t, func() { NewFeedback[float64](NewSum[float64](2)) })
}

func TestSharedVar(t *testing.T) {
	shared := NewShared(0.5)
	v := NewVar[float32](shared)
	out := []float32{0}
	v.Tick(nil, out)
	assert.Equal(t, float32(0.5), out[0])

	shared.Set(-1)
	v.Tick(nil, out)
	assert.Equal(t, float32(-1), out[0])
	assert.Equal(t, signal.Unknown, v.Route(nil, 0)[0].Kind)
}

func TestProcessNoAllocsHotPath(t *testing.T) {
	units := []Unit[float64]{
		NewSine[float64](0),
		NewLowpole[float64](1000, 1),
		NewFeedback[float64](NewGain(1, 0.5, 1)),
		NewEnvelope[float64](0.001, 3, func(t float64) float64 { return t }),
	}
	for _, u := range units {
		input := ramp[float64](u.Inputs(), buffer.MaxBufferSize)
		output := ramp[float64](u.Outputs(), 0)
		allocs := testing.AllocsPerRun(100, func() {
			u.Process(buffer.MaxBufferSize, input, output)
		})
		if allocs > 0 {
			t.Errorf("%T: expected zero allocations in Process, got %.1f", u, allocs)
		}
	}
}

func BenchmarkSineProcess(b *testing.B) {
	s := NewSine[float32](0)
	input := ramp[float32](1, buffer.MaxBufferSize)
	output := ramp[float32](1, 0)

	b.ReportAllocs()
	for b.Loop() {
		s.Process(buffer.MaxBufferSize, input, output)
	}
}
