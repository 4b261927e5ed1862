// SPDX-License-Identifier: MIT
package patch

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"patchbay/internal/unit"
)

// Kind describes a unit kind a patch may use.
type Kind struct {
	Name   string
	Doc    string
	Params map[string]float64 // defaults
}

var kinds = map[string]Kind{
	"constant": {"constant", "outputs a fixed value on every channel", map[string]float64{"value": 0, "channels": 1}},
	"pass":     {"pass", "copies inputs to outputs", map[string]float64{"channels": 1}},
	"sum":      {"sum", "adds its inputs into one output", map[string]float64{"inputs": 2}},
	"gain":     {"gain", "multiplies every channel by amount", map[string]float64{"channels": 1, "amount": 1, "tag": 0}},
	"sine":     {"sine", "sine oscillator, input 0 is frequency in Hz", map[string]float64{"phase": 0}},
	"delay":    {"delay", "one-sample delay", map[string]float64{"channels": 1}},
	"lowpole":  {"lowpole", "one-pole lowpass filter", map[string]float64{"cutoff": 1000, "tag": 0}},
	"envelope": {"envelope", "exponential decay sampled at jittered intervals", map[string]float64{"interval": 0.002, "seed": 0, "level": 1, "decay": 1}},
	"feedback": {"feedback", "gain with a one-sample feedback loop around it", map[string]float64{"channels": 1, "amount": 0.5, "tag": 0}},
	"var":      {"var", "control value shared with the host", map[string]float64{"value": 0}},
}

// Kinds returns every registered kind sorted by name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParamNames returns the kind's parameter names in sorted order.
func (k Kind) ParamNames() []string {
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// params merges spec values over the kind's defaults.
type params map[string]float64

func (k Kind) merge(spec map[string]float64) (params, error) {
	p := make(params, len(k.Params))
	for name, v := range k.Params {
		p[name] = v
	}
	for name, v := range spec {
		if _, ok := k.Params[name]; !ok {
			return nil, fmt.Errorf("kind %s has no parameter %q", k.Name, name)
		}
		p[name] = v
	}
	return p, nil
}

// count reads a non-negative integral parameter.
func (p params) count(name string) (int, error) {
	v := p[name]
	if v < 0 || v != math.Trunc(v) || v > 1<<16 {
		return 0, fmt.Errorf("parameter %s must be a non-negative integer, got %v", name, v)
	}
	return int(v), nil
}

func (p params) tag() unit.Tag {
	return unit.Tag(p["tag"])
}

// newUnit constructs a unit of the given kind. Shared control cells created
// for "var" units are returned so the host can drive them.
func newUnit[T unit.Sample](kind Kind, p params) (unit.Unit[T], *unit.Shared, error) {
	switch kind.Name {
	case "constant":
		channels, err := p.count("channels")
		if err != nil {
			return nil, nil, err
		}
		values := make([]T, channels)
		for i := range values {
			values[i] = T(p["value"])
		}
		return unit.NewConstant(values...), nil, nil
	case "pass":
		channels, err := p.count("channels")
		if err != nil {
			return nil, nil, err
		}
		return unit.NewPass[T](channels), nil, nil
	case "sum":
		inputs, err := p.count("inputs")
		if err != nil {
			return nil, nil, err
		}
		return unit.NewSum[T](inputs), nil, nil
	case "gain":
		channels, err := p.count("channels")
		if err != nil {
			return nil, nil, err
		}
		return unit.NewGain(channels, T(p["amount"]), p.tag()), nil, nil
	case "sine":
		return unit.NewSine[T](p["phase"]), nil, nil
	case "delay":
		channels, err := p.count("channels")
		if err != nil {
			return nil, nil, err
		}
		return unit.NewDelay1[T](channels), nil, nil
	case "lowpole":
		if p["cutoff"] <= 0 {
			return nil, nil, fmt.Errorf("parameter cutoff must be positive, got %v", p["cutoff"])
		}
		return unit.NewLowpole[T](p["cutoff"], p.tag()), nil, nil
	case "envelope":
		if p["interval"] <= 0 {
			return nil, nil, fmt.Errorf("parameter interval must be positive, got %v", p["interval"])
		}
		seed, err := p.count("seed")
		if err != nil {
			return nil, nil, err
		}
		level, decay := p["level"], p["decay"]
		f := func(t float64) float64 { return level * math.Exp(-decay*t) }
		return unit.NewEnvelope[T](p["interval"], uint32(seed), f), nil, nil
	case "feedback":
		channels, err := p.count("channels")
		if err != nil {
			return nil, nil, err
		}
		if channels == 0 {
			return nil, nil, fmt.Errorf("parameter channels must be positive")
		}
		return unit.NewFeedback[T](unit.NewGain(channels, T(p["amount"]), p.tag())), nil, nil
	case "var":
		shared := unit.NewShared(p["value"])
		return unit.NewVar[T](shared), shared, nil
	default:
		return nil, nil, fmt.Errorf("unknown kind %q", kind.Name)
	}
}
