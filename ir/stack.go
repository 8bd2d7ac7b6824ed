package ir

import (
	"fmt"

	"github.com/ssagraph/firmcore/mode"
)

// IncSPAttrs is the attribute payload of an OpIncSP node: a constant
// adjustment to the stack pointer, optionally aligning the resulting
// value to 2^Align bytes (spec.md §4.5, "SP-offset simulation").
type IncSPAttrs struct {
	Delta int
	Align int // 0 means no alignment requirement
}

// NewIncSP creates an IncSP node in block adjusting pred (the prior
// stack-pointer value) by delta.
func NewIncSP(block *Node, pred *Node, delta, align int) *Node {
	n := NewNode(block.graph, block, OpIncSP, mode.Ref, []*Node{pred}, &IncSPAttrs{Delta: delta, Align: align})
	AppendInstr(block, n)
	return n
}

// IncSPDelta returns an IncSP node's current delta.
func (n *Node) IncSPDelta() int {
	if n.opcode != OpIncSP {
		panic(fmt.Sprintf("node %d: not an IncSP (opcode %s)", n.idx, n.opcode))
	}
	return n.attrs.(*IncSPAttrs).Delta
}

// IncSPAlign returns an IncSP node's requested alignment (0 = none).
func (n *Node) IncSPAlign() int {
	if n.opcode != OpIncSP {
		panic(fmt.Sprintf("node %d: not an IncSP (opcode %s)", n.idx, n.opcode))
	}
	return n.attrs.(*IncSPAttrs).Align
}

// SetIncSPDelta rewrites an IncSP node's delta, as the SP-offset
// simulator does when it must slide a node to produce an aligned stack
// pointer (spec.md §4.5).
func (n *Node) SetIncSPDelta(delta int) {
	if n.opcode != OpIncSP {
		panic(fmt.Sprintf("node %d: not an IncSP (opcode %s)", n.idx, n.opcode))
	}
	n.attrs.(*IncSPAttrs).Delta = delta
}

// MemPermAttrs is the attribute payload of an OpMemPerm node: a
// memory-permutation barrier that records the stack offset active at
// its program point (spec.md §4.5, "SP-offset simulation").
type MemPermAttrs struct {
	Offset int
}

// NewMemPerm creates a MemPerm node in block.
func NewMemPerm(block *Node, ins []*Node) *Node {
	n := NewNode(block.graph, block, OpMemPerm, mode.Mem, ins, &MemPermAttrs{})
	AppendInstr(block, n)
	return n
}

// MemPermOffset returns a MemPerm node's recorded stack offset.
func (n *Node) MemPermOffset() int {
	if n.opcode != OpMemPerm {
		panic(fmt.Sprintf("node %d: not a MemPerm (opcode %s)", n.idx, n.opcode))
	}
	return n.attrs.(*MemPermAttrs).Offset
}

// SetMemPermOffset records the stack offset active at a MemPerm node.
func (n *Node) SetMemPermOffset(offset int) {
	if n.opcode != OpMemPerm {
		panic(fmt.Sprintf("node %d: not a MemPerm (opcode %s)", n.idx, n.opcode))
	}
	n.attrs.(*MemPermAttrs).Offset = offset
}
