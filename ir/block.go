package ir

import (
	"fmt"

	"github.com/ssagraph/firmcore/mode"
)

// BlockAttrs is the attribute payload of an OpBlock node. A Block's
// operand edges (Node.Ins) are its control predecessors, in the order
// Phi operands must follow (spec.md §3 "Block", §3 "Phi").
type BlockAttrs struct {
	// Instrs is the block's scheduled instruction list, in execution
	// order (scheduling itself is out of scope; front-ends/instruction
	// selection populate this). Phis are included (NewPhi appends them
	// here); the Block node itself is not.
	Instrs []*Node
}

func blockAttrs(b *Node) *BlockAttrs {
	if b.opcode != OpBlock {
		panic(fmt.Sprintf("node %d: not a Block (opcode %s)", b.idx, b.opcode))
	}
	return b.attrs.(*BlockAttrs)
}

// NewBlock creates a new Block node with the given control predecessors.
func NewBlock(g *Graph, preds []*Node) *Node {
	return NewNode(g, nil, OpBlock, mode.Block, preds, &BlockAttrs{})
}

// Preds returns the block's control predecessors, in order.
func (b *Node) Preds() []*Node {
	mustBlock(b)
	return b.Ins()
}

// NPreds returns the number of control predecessors.
func (b *Node) NPreds() int {
	mustBlock(b)
	return b.NIns()
}

// PredIndex returns the position of pred among b's predecessors, or -1
// if pred is not a predecessor of b.
func (b *Node) PredIndex(pred *Node) int {
	mustBlock(b)
	for i, p := range b.ins {
		if p == pred {
			return i
		}
	}
	return -1
}

// AddPred appends a new control predecessor to b and extends every
// Phi of b with one more (initially nil) operand so Phi arity keeps
// tracking predecessor count (spec.md §3 invariants).
func AddPred(b *Node, pred *Node) {
	mustBlock(b)
	b.ins = append(b.ins, pred)
	if pred != nil {
		pred.addUse(b, len(b.ins)-1)
	}
	for _, instr := range blockAttrs(b).Instrs {
		if instr.opcode == OpPhi {
			instr.ins = append(instr.ins, nil)
		}
	}
}

// Succs returns the block's control successors, derived from the
// use-edge index: every user of b that is itself a Block node. Users
// of other opcodes (e.g. an IncSP taking b as its operand) are skipped.
// Requires the use-edge index to be active.
func (b *Node) Succs() []*Node {
	mustBlock(b)
	var out []*Node
	for _, u := range b.Uses() {
		if u.User.opcode == OpBlock {
			out = append(out, u.User)
		}
	}
	return out
}

// Instrs returns the block's scheduled instruction list.
func (b *Node) Instrs() []*Node {
	return blockAttrs(b).Instrs
}

// SetInstrs replaces the block's scheduled instruction list.
func (b *Node) SetInstrs(instrs []*Node) {
	blockAttrs(b).Instrs = instrs
}

// AppendInstr appends n to b's schedule and sets n's owning block.
func AppendInstr(b *Node, n *Node) {
	mustBlock(b)
	a := blockAttrs(b)
	a.Instrs = append(a.Instrs, n)
	n.block = b
}

// InsertInstrAfter schedules n in b immediately after after, or at the
// front of b's schedule if after is nil or not found (e.g. a value
// spilled at block entry, before any other instruction).
func InsertInstrAfter(b, after, n *Node) {
	mustBlock(b)
	a := blockAttrs(b)
	idx := indexOfInstr(a.Instrs, after)
	a.Instrs = insertAt(a.Instrs, idx+1, n)
	n.block = b
}

// InsertInstrBefore schedules n in b immediately before before, or at
// the end of b's schedule if before is nil or not found.
func InsertInstrBefore(b, before, n *Node) {
	mustBlock(b)
	a := blockAttrs(b)
	idx := indexOfInstr(a.Instrs, before)
	if idx < 0 {
		idx = len(a.Instrs)
	}
	a.Instrs = insertAt(a.Instrs, idx, n)
	n.block = b
}

func indexOfInstr(instrs []*Node, n *Node) int {
	if n == nil {
		return -1
	}
	for i, instr := range instrs {
		if instr == n {
			return i
		}
	}
	return -1
}

func insertAt(instrs []*Node, idx int, n *Node) []*Node {
	out := make([]*Node, 0, len(instrs)+1)
	out = append(out, instrs[:idx]...)
	out = append(out, n)
	out = append(out, instrs[idx:]...)
	return out
}

// Phis returns the Phi nodes belonging to b, in schedule order. Phis
// are kept as ordinary block-bound nodes; NewPhi appends a Phi to the
// end of the schedule like any other instruction, so Phis come first
// only when they are created before the block's other instructions.
func (b *Node) Phis() []*Node {
	mustBlock(b)
	var out []*Node
	for _, instr := range blockAttrs(b).Instrs {
		if instr.opcode == OpPhi {
			out = append(out, instr)
		}
	}
	return out
}

func mustBlock(n *Node) {
	if n.opcode != OpBlock {
		panic(fmt.Sprintf("node %d: expected Block, got %s", n.idx, n.opcode))
	}
}
