// SPDX-License-Identifier: MIT
/*
Package patch reads YAML patch descriptions and builds them into networks.

A description names its units and wires them with edges between endpoints:

	inputs: 1
	outputs: 1
	units:
	  - name: osc
	    kind: sine
	  - name: lp
	    kind: lowpole
	    params: {cutoff: 800}
	edges:
	  - {from: in.0, to: osc.0}
	  - {from: osc, to: lp}
	  - {from: lp, to: out.0}

An endpoint is "name.port" (port 0 when omitted), "in.N" for a global input,
"out.N" for a global output, or "zero" for silence.
*/
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"patchbay/internal/graph"
)

// Description is the YAML form of a patch.
type Description struct {
	Inputs  int        `yaml:"inputs"`
	Outputs int        `yaml:"outputs"`
	Units   []UnitSpec `yaml:"units"`
	Edges   []EdgeSpec `yaml:"edges"`
}

// UnitSpec declares one unit.
type UnitSpec struct {
	Name   string             `yaml:"name"`
	Kind   string             `yaml:"kind"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// EdgeSpec connects two endpoints.
type EdgeSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Reserved endpoint names.
const (
	inputName  = "in"
	outputName = "out"
	zeroName   = "zero"
)

// Parse decodes a description. Unknown fields are rejected.
func Parse(data []byte) (*Description, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Description
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse patch: %w", err)
	}
	return &d, nil
}

// Load reads and parses the description at path.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// endpoint is a parsed edge end before names are resolved.
type endpoint struct {
	name string
	port int
}

var errEndpoint = errors.New("malformed endpoint")

func parseEndpoint(s string) (endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return endpoint{}, fmt.Errorf("%w: empty", errEndpoint)
	}
	name, port, found := strings.Cut(s, ".")
	if name == "" {
		return endpoint{}, fmt.Errorf("%w: %q has no name", errEndpoint, s)
	}
	e := endpoint{name: name}
	if found {
		p, err := strconv.Atoi(port)
		if err != nil || p < 0 {
			return endpoint{}, fmt.Errorf("%w: %q has a bad port", errEndpoint, s)
		}
		e.port = p
	}
	return e, nil
}

// resolve turns a parsed endpoint into a graph port. isTarget selects whether
// the global name is "in" (sources) or "out" (targets).
func (e endpoint) resolve(nodes map[string]graph.NodeIndex, isTarget bool) (graph.Port, error) {
	switch e.name {
	case zeroName:
		if isTarget {
			return graph.Port{}, errors.New("zero cannot be an edge target")
		}
		return graph.Zero(), nil
	case inputName:
		if isTarget {
			return graph.Port{}, errors.New("global input cannot be an edge target")
		}
		return graph.Global(e.port), nil
	case outputName:
		if !isTarget {
			return graph.Port{}, errors.New("global output cannot be an edge source")
		}
		return graph.Global(e.port), nil
	}
	id, ok := nodes[e.name]
	if !ok {
		return graph.Port{}, fmt.Errorf("unknown unit %q", e.name)
	}
	return graph.Local(id, e.port), nil
}

func reserved(name string) bool {
	return name == inputName || name == outputName || name == zeroName
}
