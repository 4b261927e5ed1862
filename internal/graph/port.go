// SPDX-License-Identifier: MIT
package graph

import "fmt"

// NodeIndex identifies a vertex. Indices are assigned consecutively from 0
// by Add and are never reused.
type NodeIndex = int

// PortIndex identifies an input or output slot.
type PortIndex = int

// PortKind tags the variants of Port.
type PortKind uint8

const (
	// KindZero is an unconnected input that reads as silence. It is the
	// zero value, so a default Port is always well formed.
	KindZero PortKind = iota
	// KindLocal is a vertex input or output slot.
	KindLocal
	// KindGlobal is a network input or output slot.
	KindGlobal
)

// Port is an addressable endpoint. Ports are plain values.
type Port struct {
	Kind  PortKind
	Node  NodeIndex
	Index PortIndex
}

// Local addresses slot port of vertex node.
func Local(node NodeIndex, port PortIndex) Port {
	return Port{Kind: KindLocal, Node: node, Index: port}
}

// Global addresses slot port of the network's own inputs or outputs.
func Global(port PortIndex) Port {
	return Port{Kind: KindGlobal, Index: port}
}

// Zero is the unconnected port.
func Zero() Port {
	return Port{}
}

// String implements fmt.Stringer.
func (p Port) String() string {
	switch p.Kind {
	case KindLocal:
		return fmt.Sprintf("%d.%d", p.Node, p.Index)
	case KindGlobal:
		return fmt.Sprintf("global.%d", p.Index)
	default:
		return "zero"
	}
}

// Edge is a directed connection from a producer to a consumer. Target is
// either a vertex input (Local) or a network output (Global).
type Edge struct {
	Source Port
	Target Port
}

// NewEdge returns an edge from source to target.
func NewEdge(source, target Port) Edge {
	return Edge{Source: source, Target: target}
}

// String implements fmt.Stringer.
func (e Edge) String() string {
	return e.Source.String() + " -> " + e.Target.String()
}
