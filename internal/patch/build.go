// SPDX-License-Identifier: MIT
package patch

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"patchbay/internal/graph"
	"patchbay/internal/log"
	"patchbay/internal/unit"
)

// ErrEmpty is returned for a description without outputs.
var ErrEmpty = errors.New("patch has no outputs")

// Patch is a built network together with the names it was described with.
type Patch[T unit.Sample] struct {
	Net      *graph.Net[T]
	Controls map[string]*unit.Shared

	nodes map[string]graph.NodeIndex
	names []string
}

// Node returns the node index of the named unit.
func (p *Patch[T]) Node(name string) (graph.NodeIndex, bool) {
	id, ok := p.nodes[name]
	return id, ok
}

// Name returns the name of node id.
func (p *Patch[T]) Name(id graph.NodeIndex) string {
	return p.names[id]
}

// Build turns a description into a validated network. Every problem found in
// the description is reported in one error; a cycle in the resulting network
// is reported as an error wrapping graph.ErrCycle.
func Build[T unit.Sample](d *Description) (*Patch[T], error) {
	var errs error
	if d.Inputs < 0 {
		errs = multierr.Append(errs, fmt.Errorf("inputs must not be negative, got %d", d.Inputs))
	}
	if d.Outputs < 0 {
		errs = multierr.Append(errs, fmt.Errorf("outputs must not be negative, got %d", d.Outputs))
	}
	if d.Outputs == 0 {
		errs = multierr.Append(errs, ErrEmpty)
	}
	if errs != nil {
		return nil, errs
	}

	p := &Patch[T]{
		Net:      graph.New[T](d.Inputs, d.Outputs),
		Controls: make(map[string]*unit.Shared),
		nodes:    make(map[string]graph.NodeIndex, len(d.Units)),
	}

	for i, spec := range d.Units {
		if err := p.addUnit(spec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unit %d (%s): %w", i, spec.Name, err))
		}
	}

	connected := make(map[graph.Port]int, len(d.Edges))
	for i, spec := range d.Edges {
		e, err := p.edge(spec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("edge %d (%s -> %s): %w", i, spec.From, spec.To, err))
			continue
		}
		if prev, ok := connected[e.Target]; ok {
			errs = multierr.Append(errs, fmt.Errorf("edge %d (%s -> %s): target already fed by edge %d", i, spec.From, spec.To, prev))
			continue
		}
		connected[e.Target] = i
		p.Net.Join(e)
	}
	if errs != nil {
		return nil, errs
	}

	order, err := p.Net.Order()
	if err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	if log.GetLevel() == log.LevelDebug {
		names := make([]string, len(order))
		for i, id := range order {
			names[i] = p.names[id]
		}
		log.Debugf("patch: %d units, %d edges, order %s", p.Net.Len(), len(d.Edges), strings.Join(names, " -> "))
	}
	return p, nil
}

func (p *Patch[T]) addUnit(spec UnitSpec) error {
	switch {
	case spec.Name == "":
		return errors.New("missing name")
	case reserved(spec.Name):
		return fmt.Errorf("name %q is reserved", spec.Name)
	case strings.Contains(spec.Name, "."):
		return fmt.Errorf("name %q must not contain '.'", spec.Name)
	}
	if _, ok := p.nodes[spec.Name]; ok {
		return fmt.Errorf("duplicate name %q", spec.Name)
	}
	kind, ok := kinds[spec.Kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", spec.Kind)
	}
	params, err := kind.merge(spec.Params)
	if err != nil {
		return err
	}
	u, shared, err := newUnit[T](kind, params)
	if err != nil {
		return err
	}

	p.nodes[spec.Name] = p.Net.Add(u)
	p.names = append(p.names, spec.Name)
	if shared != nil {
		p.Controls[spec.Name] = shared
	}
	return nil
}

// edge resolves and range-checks an edge so that Join cannot panic.
func (p *Patch[T]) edge(spec EdgeSpec) (graph.Edge, error) {
	from, err := parseEndpoint(spec.From)
	if err != nil {
		return graph.Edge{}, err
	}
	to, err := parseEndpoint(spec.To)
	if err != nil {
		return graph.Edge{}, err
	}
	source, err := from.resolve(p.nodes, false)
	if err != nil {
		return graph.Edge{}, err
	}
	target, err := to.resolve(p.nodes, true)
	if err != nil {
		return graph.Edge{}, err
	}

	switch source.Kind {
	case graph.KindLocal:
		if n := p.Net.Vertex(source.Node).Outputs(); source.Index >= n {
			return graph.Edge{}, fmt.Errorf("%s has %d outputs", from.name, n)
		}
	case graph.KindGlobal:
		if source.Index >= p.Net.Inputs() {
			return graph.Edge{}, fmt.Errorf("patch has %d inputs", p.Net.Inputs())
		}
	}
	switch target.Kind {
	case graph.KindLocal:
		if n := p.Net.Vertex(target.Node).Inputs(); target.Index >= n {
			return graph.Edge{}, fmt.Errorf("%s has %d inputs", to.name, n)
		}
	case graph.KindGlobal:
		if target.Index >= p.Net.Outputs() {
			return graph.Edge{}, fmt.Errorf("patch has %d outputs", p.Net.Outputs())
		}
	}
	return graph.NewEdge(source, target), nil
}
