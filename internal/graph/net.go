// SPDX-License-Identifier: MIT
/*
Package graph implements Net, a directed acyclic graph of processing units
with a fixed number of global inputs and outputs.

A Net is built by adding units and connecting their ports. The first Tick or
Process after an edit computes a topological order; steady-state processing
then walks that order without allocating. A Net is itself a unit.Unit and may
be added to another Net.

Structural misuse (out-of-range indices, arity mismatches in Pipe or Chain,
cycles reached from Tick, Process or Route) panics. Validate and Order report
cycles as errors wrapping ErrCycle for callers that build nets from user
input.
*/
package graph

import (
	"fmt"

	"patchbay/internal/buffer"
	"patchbay/internal/signal"
	"patchbay/internal/unit"
)

// Net is a processing graph. It is not safe for concurrent use.
type Net[T unit.Sample] struct {
	inputs     int
	outputs    int
	outputEdge []Edge
	vertex     []*Vertex[T]
	order      []NodeIndex
	ordered    bool
}

// Net32 is a single precision network.
type Net32 = Net[float32]

// Net64 is a double precision network.
type Net64 = Net[float64]

var (
	_ unit.Unit[float32] = (*Net32)(nil)
	_ unit.Unit[float64] = (*Net64)(nil)
)

// New returns an empty network. Every global output starts connected to
// Zero, so an empty network outputs silence.
func New[T unit.Sample](inputs, outputs int) *Net[T] {
	if inputs < 0 || outputs < 0 {
		panic(fmt.Sprintf("graph: negative arity (%d inputs, %d outputs)", inputs, outputs))
	}
	n := &Net[T]{
		inputs:     inputs,
		outputs:    outputs,
		outputEdge: make([]Edge, outputs),
		ordered:    true,
	}
	for i := range n.outputEdge {
		n.outputEdge[i] = NewEdge(Zero(), Global(i))
	}
	return n
}

// New32 returns an empty single precision network.
func New32(inputs, outputs int) *Net32 { return New[float32](inputs, outputs) }

// New64 returns an empty double precision network.
func New64(inputs, outputs int) *Net64 { return New[float64](inputs, outputs) }

// Add takes ownership of u and returns its node index. Its inputs start
// unconnected.
func (n *Net[T]) Add(u unit.Unit[T]) NodeIndex {
	id := len(n.vertex)
	n.vertex = append(n.vertex, newVertex(id, u))
	n.ordered = false
	return id
}

// Connect feeds input targetPort of target from output sourcePort of source.
func (n *Net[T]) Connect(source NodeIndex, sourcePort PortIndex, target NodeIndex, targetPort PortIndex) {
	n.Join(NewEdge(Local(source, sourcePort), Local(target, targetPort)))
}

// ConnectInput feeds input targetPort of target from global input
// globalInput.
func (n *Net[T]) ConnectInput(globalInput PortIndex, target NodeIndex, targetPort PortIndex) {
	n.Join(NewEdge(Global(globalInput), Local(target, targetPort)))
}

// PipeInput feeds every input i of target from global input i. The node
// must have exactly as many inputs as the network.
func (n *Net[T]) PipeInput(target NodeIndex) {
	v := n.checkNode(target)
	if v.Inputs() != n.inputs {
		panic(fmt.Sprintf("graph: pipe input: node %d has %d inputs, net has %d", target, v.Inputs(), n.inputs))
	}
	for i := range v.source {
		v.source[i] = NewEdge(Global(i), Local(target, i))
	}
	n.ordered = false
}

// ConnectOutput feeds global output globalOutput from output sourcePort of
// source.
func (n *Net[T]) ConnectOutput(source NodeIndex, sourcePort PortIndex, globalOutput PortIndex) {
	n.Join(NewEdge(Local(source, sourcePort), Global(globalOutput)))
}

// PipeOutput feeds every global output i from output i of source. The node
// must have exactly as many outputs as the network.
func (n *Net[T]) PipeOutput(source NodeIndex) {
	v := n.checkNode(source)
	if v.Outputs() != n.outputs {
		panic(fmt.Sprintf("graph: pipe output: node %d has %d outputs, net has %d", source, v.Outputs(), n.outputs))
	}
	for i := range n.outputEdge {
		n.outputEdge[i] = NewEdge(Local(source, i), Global(i))
	}
	n.ordered = false
}

// Join installs an edge, replacing whatever fed its target. An edge with a
// Zero target is ignored.
func (n *Net[T]) Join(e Edge) {
	n.checkSource(e.Source)
	switch e.Target.Kind {
	case KindLocal:
		v := n.checkNode(e.Target.Node)
		checkPort("input", e.Target.Node, e.Target.Index, v.Inputs())
		v.source[e.Target.Index] = e
	case KindGlobal:
		if e.Target.Index < 0 || e.Target.Index >= n.outputs {
			panic(fmt.Sprintf("graph: global output %d out of range (%d outputs)", e.Target.Index, n.outputs))
		}
		n.outputEdge[e.Target.Index] = e
	}
	n.ordered = false
}

// Pipe connects every output i of source to input i of target. The arities
// must match exactly.
func (n *Net[T]) Pipe(source, target NodeIndex) {
	s, t := n.checkNode(source), n.checkNode(target)
	if s.Outputs() != t.Inputs() {
		panic(fmt.Sprintf("graph: pipe: node %d has %d outputs, node %d has %d inputs",
			source, s.Outputs(), target, t.Inputs()))
	}
	for i := range t.source {
		t.source[i] = NewEdge(Local(source, i), Local(target, i))
	}
	n.ordered = false
}

// Chain appends u to a linear pipeline: it adds u, feeds it from the
// previously added node (or from the global inputs when it is the first),
// and routes it to the global outputs. u must have as many inputs and
// outputs as the network has outputs, and the first unit must also match the
// network's inputs.
func (n *Net[T]) Chain(u unit.Unit[T]) NodeIndex {
	if u.Inputs() != n.outputs || u.Outputs() != n.outputs {
		panic(fmt.Sprintf("graph: chain: unit has %d inputs and %d outputs, net has %d outputs",
			u.Inputs(), u.Outputs(), n.outputs))
	}
	id := n.Add(u)
	if id > 0 {
		n.Pipe(id-1, id)
	} else {
		n.PipeInput(id)
	}
	n.PipeOutput(id)
	return id
}

// Len returns the number of vertices.
func (n *Net[T]) Len() int { return len(n.vertex) }

// Vertex returns vertex id.
func (n *Net[T]) Vertex(id NodeIndex) *Vertex[T] { return n.checkNode(id) }

// OutputEdge returns the edge feeding global output port.
func (n *Net[T]) OutputEdge(port PortIndex) Edge { return n.outputEdge[port] }

// Edges returns every edge in the network: vertex inputs in node order, then
// global outputs.
func (n *Net[T]) Edges() []Edge {
	var edges []Edge
	for _, v := range n.vertex {
		edges = append(edges, v.source...)
	}
	return append(edges, n.outputEdge...)
}

// Inputs returns the number of global inputs.
func (n *Net[T]) Inputs() int { return n.inputs }

// Outputs returns the number of global outputs.
func (n *Net[T]) Outputs() int { return n.outputs }

// Reset resets every unit. A positive sampleRate also changes their rate.
func (n *Net[T]) Reset(sampleRate float64) {
	for _, v := range n.vertex {
		v.unit.Reset(sampleRate)
	}
}

// Set broadcasts a parameter to every unit. Units that do not own tag
// ignore it.
func (n *Net[T]) Set(tag unit.Tag, value float64) {
	for _, v := range n.vertex {
		v.unit.Set(tag, value)
	}
}

// Get returns the value held by the first unit, in node order, that owns
// tag.
func (n *Net[T]) Get(tag unit.Tag) (float64, bool) {
	for _, v := range n.vertex {
		if value, ok := v.unit.Get(tag); ok {
			return value, true
		}
	}
	return 0, false
}

// Tick processes one sample frame. len(input) must be at least Inputs() and
// len(output) at least Outputs().
func (n *Net[T]) Tick(input, output []T) {
	if !n.ordered {
		n.determineOrder()
	}
	for _, id := range n.order {
		v := n.vertex[id]
		for ch, e := range v.source {
			v.tickInput[ch] = n.tickValue(e.Source, input)
		}
		v.unit.Tick(v.tickInput, v.tickOutput)
	}
	for ch, e := range n.outputEdge {
		output[ch] = n.tickValue(e.Source, input)
	}
}

func (n *Net[T]) tickValue(p Port, input []T) T {
	switch p.Kind {
	case KindGlobal:
		return input[p.Index]
	case KindLocal:
		return n.vertex[p.Node].tickOutput[p.Index]
	default:
		return 0
	}
}

// Process processes size frames. It panics if size exceeds
// buffer.MaxBufferSize.
func (n *Net[T]) Process(size int, input, output [][]T) {
	if size > buffer.MaxBufferSize {
		panic(fmt.Sprintf("graph: process size %d exceeds %d", size, buffer.MaxBufferSize))
	}
	if !n.ordered {
		n.determineOrder()
	}
	for _, id := range n.order {
		v := n.vertex[id]
		for ch, e := range v.source {
			n.fill(v.input.At(ch)[:size], e.Source, input)
		}
		v.unit.Process(size, v.input.Channels(), v.output.Channels())
	}
	for ch, e := range n.outputEdge {
		n.fill(output[ch][:size], e.Source, input)
	}
}

func (n *Net[T]) fill(dst []T, p Port, input [][]T) {
	switch p.Kind {
	case KindGlobal:
		copy(dst, input[p.Index][:len(dst)])
	case KindLocal:
		copy(dst, n.vertex[p.Node].output.At(p.Index))
	default:
		clear(dst)
	}
}

// Route propagates frequency-domain descriptors through the network at
// frequency. It computes its own order and leaves the cached processing
// order untouched. It panics if the network contains a cycle.
func (n *Net[T]) Route(input signal.Frame, frequency float64) signal.Frame {
	order, err := n.determineOrderIn(make([]NodeIndex, 0, len(n.vertex)))
	if err != nil {
		panic(err.Error())
	}
	inner := make([]signal.Frame, len(n.vertex))
	for id, v := range n.vertex {
		inner[id] = signal.NewFrame(v.Outputs())
	}
	for _, id := range order {
		v := n.vertex[id]
		in := signal.NewFrame(v.Inputs())
		for ch, e := range v.source {
			in[ch] = routeValue(e.Source, input, inner)
		}
		inner[id] = v.unit.Route(in, frequency)
	}
	output := signal.NewFrame(n.outputs)
	for ch, e := range n.outputEdge {
		output[ch] = routeValue(e.Source, input, inner)
	}
	return output
}

func routeValue(p Port, input signal.Frame, inner []signal.Frame) signal.Signal {
	switch p.Kind {
	case KindGlobal:
		return input[p.Index]
	case KindLocal:
		return inner[p.Node][p.Index]
	default:
		return signal.Const(0)
	}
}

func (n *Net[T]) checkNode(id NodeIndex) *Vertex[T] {
	if id < 0 || id >= len(n.vertex) {
		panic(fmt.Sprintf("graph: node %d out of range (%d nodes)", id, len(n.vertex)))
	}
	return n.vertex[id]
}

func (n *Net[T]) checkSource(p Port) {
	switch p.Kind {
	case KindLocal:
		v := n.checkNode(p.Node)
		checkPort("output", p.Node, p.Index, v.Outputs())
	case KindGlobal:
		if p.Index < 0 || p.Index >= n.inputs {
			panic(fmt.Sprintf("graph: global input %d out of range (%d inputs)", p.Index, n.inputs))
		}
	}
}

func checkPort(direction string, node NodeIndex, port PortIndex, count int) {
	if port < 0 || port >= count {
		panic(fmt.Sprintf("graph: node %d %s %d out of range (%d %ss)", node, direction, port, count, direction))
	}
}
