// SPDX-License-Identifier: MIT
// Package signal describes what is known about a channel when a patch is
// analysed in the frequency domain instead of being run. Route passes
// these descriptors through units to answer questions like "what is the DC
// level of this output" or "what is the gain of this filter at 1 kHz".
package signal

import (
	"fmt"
	"math/cmplx"
)

// Kind tags which field of a Signal is meaningful.
type Kind uint8

const (
	// Unknown means the channel varies in a way that cannot be described.
	Unknown Kind = iota
	// Value is a known constant.
	Value
	// Latency is a signal whose response is unknown but whose delay is.
	Latency
	// Response is a linear response to the analysed input at one frequency,
	// expressed as a complex gain plus a latency in samples.
	Response
)

// Signal is one channel's descriptor.
type Signal struct {
	Kind     Kind
	Value    float64
	Latency  float64
	Response complex128
}

// Const returns a known constant descriptor.
func Const(v float64) Signal {
	return Signal{Kind: Value, Value: v}
}

// Delayed returns a descriptor known only by its latency.
func Delayed(latency float64) Signal {
	return Signal{Kind: Latency, Latency: latency}
}

// Linear returns a response descriptor.
func Linear(response complex128, latency float64) Signal {
	return Signal{Kind: Response, Response: response, Latency: latency}
}

// IsConst reports whether s is a known constant and returns it.
func (s Signal) IsConst() (float64, bool) {
	return s.Value, s.Kind == Value
}

// Scale multiplies the signal by a constant gain.
func (s Signal) Scale(amount float64) Signal {
	switch s.Kind {
	case Value:
		return Const(s.Value * amount)
	case Response:
		return Linear(s.Response*complex(amount, 0), s.Latency)
	default:
		return s
	}
}

// Delay adds latency in samples. Constants stay constant.
func (s Signal) Delay(latency float64) Signal {
	switch s.Kind {
	case Latency:
		return Delayed(s.Latency + latency)
	case Response:
		return Linear(s.Response, s.Latency+latency)
	default:
		return s
	}
}

// Filter applies a linear filter with the given latency and transfer
// function value at the analysed frequency. A constant passes through at
// the filter's DC gain, supplied by dc.
func (s Signal) Filter(latency float64, response complex128, dc float64) Signal {
	switch s.Kind {
	case Value:
		return Const(s.Value * dc)
	case Latency:
		return Delayed(s.Latency + latency)
	case Response:
		return Linear(s.Response*response, s.Latency+latency)
	default:
		return s
	}
}

// Distort applies a nonlinear process: the response is lost but latency
// is still tracked.
func (s Signal) Distort(latency float64) Signal {
	switch s.Kind {
	case Latency, Response:
		return Delayed(s.Latency + latency)
	default:
		return Signal{}
	}
}

// Combine sums two signals linearly.
func Combine(a, b Signal) Signal {
	switch {
	case a.Kind == Value && b.Kind == Value:
		return Const(a.Value + b.Value)
	case a.Kind == Response && b.Kind == Response:
		return Linear(a.Response+b.Response, min(a.Latency, b.Latency))
	case a.Kind == Response && b.Kind == Value:
		return a
	case a.Kind == Value && b.Kind == Response:
		return b
	case a.Kind == Latency && (b.Kind == Latency || b.Kind == Response):
		return Delayed(min(a.Latency, b.Latency))
	case b.Kind == Latency && a.Kind == Response:
		return Delayed(min(a.Latency, b.Latency))
	default:
		return Signal{}
	}
}

// Gain returns the magnitude of a response descriptor.
func (s Signal) Gain() float64 {
	return cmplx.Abs(s.Response)
}

// String implements fmt.Stringer.
func (s Signal) String() string {
	switch s.Kind {
	case Value:
		return fmt.Sprintf("value(%g)", s.Value)
	case Latency:
		return fmt.Sprintf("latency(%g)", s.Latency)
	case Response:
		return fmt.Sprintf("response(|%.6g| ∠%.6g, latency %g)", cmplx.Abs(s.Response), cmplx.Phase(s.Response), s.Latency)
	default:
		return "unknown"
	}
}

// Frame holds one descriptor per channel.
type Frame []Signal

// NewFrame returns a frame of n Unknown descriptors.
func NewFrame(n int) Frame {
	return make(Frame, n)
}
