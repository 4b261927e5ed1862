// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"patchbay/internal/log"
	"patchbay/pkg/bitint"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = [...]string{"BartlettHann", "Blackman", "BlackmanNuttall", "Hann", "Hamming", "Lanczos", "Nuttall"}

// String implements fmt.Stringer.
func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windowNames[w]
}

// Transport receives every analysed frame. transport.Transport satisfies it.
// Send runs on the goroutine calling Write, so its cost lands on that path.
type Transport interface {
	Send(data any) error
}

// Frame is the message sent for each analysed block. Magnitudes is owned by
// the processor and only valid during Send.
type Frame struct {
	Seq        uint64    `json:"seq"`
	BinHz      float64   `json:"bin_hz"`
	Magnitudes []float64 `json:"magnitudes"`
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	pending   []float64    // Samples collected by Write until a full frame is available.
	filled    int          // Number of valid samples in pending.
	input     []float64    // Buffer for windowed input signal.
	fftOutput []complex128 // Buffer for FFT complex results.
	magnitude []float64    // Buffer for calculated magnitudes.
	window    []float64    // Pre-calculated window coefficients.
	scale     float64      // Magnitude normalization so a full-scale sine peaks near 1.
	mu        sync.RWMutex // Protects concurrent access to magnitude buffer.
}

// Processor performs windowed FFT analysis of a mono stream and hands each
// result to a transport. Write and Process must be called from one
// goroutine; the magnitude accessors are safe to call from any goroutine.
type Processor struct {
	fftCalculator *fourier.FFT // Reusable FFT calculator instance.
	fftSize       int          // Number of points for the FFT (power of 2).
	sampleRate    float64      // Sample rate of the input audio (Hz).
	windowType    WindowFunc
	workspace     fftWorkspace // Pre-allocated buffers.
	transport     Transport
	frame         Frame
}

// NewProcessor pre-allocates every buffer and the window coefficients.
// transport may be nil.
func NewProcessor(fftSize int, sampleRate float64, windowType WindowFunc, transport Transport) (*Processor, error) {
	if fftSize < 2 || !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)
	var sum float64
	for _, c := range windowCoeffs {
		sum += c
	}

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	log.Debugf("analysis: FFT processor size %d, sample rate %.1f Hz, window %v", fftSize, sampleRate, windowType)

	p := &Processor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		windowType:    windowType,
		transport:     transport,
		workspace: fftWorkspace{
			pending:   make([]float64, fftSize),
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
			scale:     2 / sum,
		},
	}
	p.frame = Frame{BinHz: sampleRate / float64(fftSize), Magnitudes: p.workspace.magnitude}
	return p, nil
}

// Write collects samples and analyses every complete frame of fftSize
// samples. Buffering and the FFT do not allocate; whatever the transport
// does in Send, such as encoding, is not covered by that.
func (p *Processor) Write(samples []float64) {
	ws := &p.workspace
	for len(samples) > 0 {
		n := copy(ws.pending[ws.filled:], samples)
		ws.filled += n
		samples = samples[n:]
		if ws.filled == p.fftSize {
			p.Process(ws.pending)
			ws.filled = 0
		}
	}
}

// Process applies the window, performs the FFT, calculates magnitudes and
// sends the frame. Input shorter than the FFT size is zero-padded; longer
// input is truncated.
func (p *Processor) Process(samples []float64) {
	ws := &p.workspace
	ws.mu.Lock()

	for i := range p.fftSize {
		if i < len(samples) {
			ws.input[i] = samples[i] * ws.window[i]
		} else {
			ws.input[i] = 0 // Zero-padding.
		}
	}
	p.fftCalculator.Coefficients(ws.fftOutput, ws.input)
	for i, c := range ws.fftOutput {
		ws.magnitude[i] = cmplx.Abs(c) * ws.scale
	}
	p.frame.Seq++

	ws.mu.Unlock()

	if p.transport != nil {
		if err := p.transport.Send(&p.frame); err != nil {
			log.Debugf("analysis: send failed: %v", err)
		}
	}
}

// Reset discards partially collected samples.
func (p *Processor) Reset() {
	p.workspace.filled = 0
}

// GetMagnitudes returns a copy of the latest calculated FFT magnitudes.
// It allocates; use GetMagnitudesInto on hot paths.
func (p *Processor) GetMagnitudes() []float64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	magCopy := make([]float64, len(p.workspace.magnitude))
	copy(magCopy, p.workspace.magnitude)
	return magCopy
}

// GetMagnitudesInto copies the latest magnitudes into dest, which must have
// length fftSize/2 + 1.
func (p *Processor) GetMagnitudesInto(dest []float64) error {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	if len(dest) != len(p.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(p.workspace.magnitude))
	}
	copy(dest, p.workspace.magnitude)
	return nil
}

// GetFrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
func (p *Processor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.fftOutput) {
		return 0.0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

// GetFFTSize returns the configured FFT size (number of points).
func (p *Processor) GetFFTSize() int {
	return p.fftSize
}

// GetSampleRate returns the configured sample rate (Hz).
func (p *Processor) GetSampleRate() float64 {
	return p.sampleRate
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function. Unknown types
// fall back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions scale the slice in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("analysis: unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
