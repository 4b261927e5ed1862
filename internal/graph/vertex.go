// SPDX-License-Identifier: MIT
package graph

import (
	"patchbay/internal/buffer"
	"patchbay/internal/unit"
)

// Vertex owns one unit, its block and frame buffers, and the table of edges
// feeding its inputs. len(source) == unit.Inputs() for the vertex's lifetime.
type Vertex[T unit.Sample] struct {
	unit       unit.Unit[T]
	source     []Edge
	input      *buffer.Buffer[T]
	output     *buffer.Buffer[T]
	tickInput  []T
	tickOutput []T
	id         NodeIndex
}

// newVertex allocates zeroed buffers for the given arity. Every input starts
// unconnected, addressed to itself so the edge is well formed but inert.
func newVertex[T unit.Sample](id NodeIndex, u unit.Unit[T]) *Vertex[T] {
	inputs, outputs := u.Inputs(), u.Outputs()
	v := &Vertex[T]{
		unit:       u,
		source:     make([]Edge, inputs),
		input:      buffer.New[T](inputs),
		output:     buffer.New[T](outputs),
		tickInput:  make([]T, inputs),
		tickOutput: make([]T, outputs),
		id:         id,
	}
	for i := range v.source {
		v.source[i] = NewEdge(Zero(), Local(id, i))
	}
	return v
}

// ID returns the vertex's node index.
func (v *Vertex[T]) ID() NodeIndex { return v.id }

// Unit returns the owned unit.
func (v *Vertex[T]) Unit() unit.Unit[T] { return v.unit }

// Inputs returns the input arity fixed at construction.
func (v *Vertex[T]) Inputs() int { return v.input.Len() }

// Outputs returns the output arity fixed at construction.
func (v *Vertex[T]) Outputs() int { return v.output.Len() }

// Source returns the edge feeding input port.
func (v *Vertex[T]) Source(port PortIndex) Edge { return v.source[port] }
