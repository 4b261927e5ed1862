// SPDX-License-Identifier: MIT
package graph

import (
	"errors"
	"fmt"
)

// ErrCycle is wrapped by errors reporting a cycle among vertex ports.
// Feedback has to go through a unit that buffers it, such as unit.Feedback.
var ErrCycle = errors.New("cycle detected")

// Validate reports whether the network can be ordered.
func (n *Net[T]) Validate() error {
	_, err := n.determineOrderIn(nil)
	return err
}

// Order returns a producer-before-consumer ordering of the vertices, or an
// error wrapping ErrCycle. It does not touch the cached processing order.
func (n *Net[T]) Order() ([]NodeIndex, error) {
	return n.determineOrderIn(make([]NodeIndex, 0, len(n.vertex)))
}

// determineOrder refreshes the cached order, reusing its storage.
func (n *Net[T]) determineOrder() {
	order, err := n.determineOrderIn(n.order[:0])
	if err != nil {
		panic(err.Error())
	}
	n.order = order
	n.ordered = true
}

// determineOrderIn appends a topological order of the vertices to order.
//
// Vertices without inputs are ready at once, as are inputs fed from Global
// or Zero ports. Local edges are then scanned repeatedly and each one is
// consumed exactly once, when its source has been ordered. A scan that
// consumes nothing while vertices remain means a cycle.
func (n *Net[T]) determineOrderIn(order []NodeIndex) ([]NodeIndex, error) {
	count := len(n.vertex)
	pending := make([]int, count)
	ready := make([]bool, count)
	left := count

	push := func(id NodeIndex) {
		ready[id] = true
		order = append(order, id)
		left--
	}

	type dependency struct {
		source, target NodeIndex
	}
	var local []dependency

	for id, v := range n.vertex {
		pending[id] = v.Inputs()
		if pending[id] == 0 {
			push(id)
		}
	}
	for id, v := range n.vertex {
		for _, e := range v.source {
			if e.Source.Kind == KindLocal {
				local = append(local, dependency{source: e.Source.Node, target: id})
				continue
			}
			pending[id]--
			if pending[id] == 0 {
				push(id)
			}
		}
	}

	consumed := make([]bool, len(local))
	for left > 0 {
		progress := false
		for i, d := range local {
			if consumed[i] || !ready[d.source] {
				continue
			}
			consumed[i] = true
			progress = true
			pending[d.target]--
			if pending[d.target] == 0 {
				push(d.target)
			}
		}
		if !progress {
			var unordered []NodeIndex
			for id, ok := range ready {
				if !ok {
					unordered = append(unordered, id)
				}
			}
			return order, fmt.Errorf("graph: %w among nodes %v", ErrCycle, unordered)
		}
	}
	return order, nil
}
