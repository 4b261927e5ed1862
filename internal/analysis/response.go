// SPDX-License-Identifier: MIT
/*
Package analysis measures networks and streams in the frequency domain.

Processor runs windowed FFTs over a live stream. ImpulseResponse and Spectrum
measure a unit by running it; Response asks the unit's route instead, without
processing any samples. For linear networks the two agree.
*/
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"patchbay/internal/buffer"
	"patchbay/internal/signal"
	"patchbay/internal/unit"
	"patchbay/pkg/bitint"
)

// Bin is one point of a frequency response.
type Bin struct {
	Frequency float64 // Hz
	Magnitude float64 // linear gain
	Phase     float64 // radians
}

// Decibels returns the magnitude in dB, with silence clamped to -240 dB.
func (b Bin) Decibels() float64 {
	if b.Magnitude <= 1e-12 {
		return -240
	}
	return 20 * math.Log10(b.Magnitude)
}

// ImpulseResponse feeds a unit impulse into input channel input (silence on
// the others) and records length samples of every output. The unit is reset
// first, keeping its sample rate. A unit without inputs simply runs.
func ImpulseResponse[T unit.Sample](u unit.Unit[T], input, length int) ([][]float64, error) {
	if u.Inputs() > 0 && (input < 0 || input >= u.Inputs()) {
		return nil, fmt.Errorf("input %d out of range (%d inputs)", input, u.Inputs())
	}
	if length <= 0 {
		return nil, fmt.Errorf("length must be positive, got %d", length)
	}
	u.Reset(0)

	in := buffer.New[T](u.Inputs())
	out := buffer.New[T](u.Outputs())
	response := make([][]float64, u.Outputs())
	for i := range response {
		response[i] = make([]float64, length)
	}

	for done := 0; done < length; {
		size := min(buffer.MaxBufferSize, length-done)
		in.Clear()
		if done == 0 && u.Inputs() > 0 {
			in.At(input)[0] = 1
		}
		u.Process(size, in.Channels(), out.Channels())
		for ch := range response {
			src := out.At(ch)[:size]
			dst := response[ch][done : done+size]
			for i, v := range src {
				dst[i] = float64(v)
			}
		}
		done += size
	}
	return response, nil
}

// Spectrum transforms an impulse response into its frequency response,
// zero-padding to the next power of two. Bins run from DC to Nyquist.
func Spectrum(response []float64, sampleRate float64) ([]Bin, error) {
	if len(response) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	size := max(bitint.NextPowerOfTwo(len(response)), 2)
	padded := make([]float64, size)
	copy(padded, response)

	fft := fourier.NewFFT(size)
	coeffs := fft.Coefficients(nil, padded)
	bins := make([]Bin, len(coeffs))
	for i, c := range coeffs {
		bins[i] = Bin{
			Frequency: fft.Freq(i) * sampleRate,
			Magnitude: cmplx.Abs(c),
			Phase:     cmplx.Phase(c),
		}
	}
	return bins, nil
}

// Response routes a linear probe on input channel input through u at each
// frequency and reports output channel output. Frequencies are in Hz at the
// unit's own sample rate. A descriptor that is not a linear response (a
// constant, or unknown) yields ok == false for that frequency.
func Response[T unit.Sample](u unit.Unit[T], input, output int, frequencies []float64) ([]Bin, []bool, error) {
	if input < 0 || input >= u.Inputs() {
		return nil, nil, fmt.Errorf("input %d out of range (%d inputs)", input, u.Inputs())
	}
	if output < 0 || output >= u.Outputs() {
		return nil, nil, fmt.Errorf("output %d out of range (%d outputs)", output, u.Outputs())
	}

	bins := make([]Bin, len(frequencies))
	ok := make([]bool, len(frequencies))
	for i, f := range frequencies {
		probe := signal.NewFrame(u.Inputs())
		for ch := range probe {
			probe[ch] = signal.Const(0)
		}
		probe[input] = signal.Linear(1, 0)

		s := u.Route(probe, f)[output]
		bins[i].Frequency = f
		if s.Kind == signal.Response {
			bins[i].Magnitude = cmplx.Abs(s.Response)
			bins[i].Phase = cmplx.Phase(s.Response)
			ok[i] = true
		}
	}
	return bins, ok, nil
}

// Describe routes frame through u at each frequency and returns the output
// descriptors, one frame per frequency.
func Describe[T unit.Sample](u unit.Unit[T], frame signal.Frame, frequencies []float64) []signal.Frame {
	out := make([]signal.Frame, len(frequencies))
	for i, f := range frequencies {
		out[i] = u.Route(frame, f)
	}
	return out
}
