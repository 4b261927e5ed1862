// SPDX-License-Identifier: MIT
/*
Package unit defines the processing-unit capability that a graph owns and
runs, together with the small set of units used to build and test patches.

Units are single-threaded state machines. Tick and Process run on the audio
callback path and must not block or allocate; Set and Get are best-effort
parameter access that silently ignore tags a unit does not own.

For every unit in this package, Process(n, ...) produces exactly the samples
that n successive Tick calls would.
*/
package unit

import (
	"patchbay/internal/buffer"
	"patchbay/internal/signal"
)

// Sample is the set of sample widths a unit may run at.
type Sample = buffer.Sample

// Tag identifies a parameter for Set and Get.
type Tag int64

// DefaultSampleRate is the rate units assume until Reset says otherwise.
const DefaultSampleRate = 44100.0

// Unit is the capability every processing unit owned by a graph provides.
type Unit[T Sample] interface {
	// Inputs and Outputs are fixed for the unit's lifetime.
	Inputs() int
	Outputs() int

	// Reset returns the unit to its initial state. A positive sampleRate
	// also changes the sample rate; zero or negative keeps the current one.
	Reset(sampleRate float64)

	// Tick processes one sample frame. len(input) == Inputs() and
	// len(output) == Outputs().
	Tick(input, output []T)

	// Process processes size <= buffer.MaxBufferSize frames. Only the
	// first size samples of each channel are read or written.
	Process(size int, input, output [][]T)

	// Route propagates frequency-domain descriptors without running audio.
	Route(input signal.Frame, frequency float64) signal.Frame

	Set(tag Tag, value float64)
	Get(tag Tag) (float64, bool)
}

// NoParams gives a unit no-op Set and Get.
type NoParams struct{}

// Set ignores the parameter.
func (NoParams) Set(Tag, float64) {}

// Get reports that no parameter is held.
func (NoParams) Get(Tag) (float64, bool) { return 0, false }

// rate keeps a unit's sample rate and applies Reset's keep-current rule.
type rate struct {
	sampleRate float64
}

func newRate() rate {
	return rate{sampleRate: DefaultSampleRate}
}

func (r *rate) update(sampleRate float64) {
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
}

// tickProcess runs Process as a loop over Tick using pre-allocated frame
// scratch, the pattern all stateful units here share.
func tickProcess[T Sample](u Unit[T], size int, input, output [][]T, in, out []T) {
	for i := 0; i < size; i++ {
		for c := range in {
			in[c] = input[c][i]
		}
		u.Tick(in, out)
		for c := range out {
			output[c][i] = out[c]
		}
	}
}
