package ir

import (
	"fmt"

	"github.com/ssagraph/firmcore/mode"
)

// PhiAttrs is the attribute payload of an OpPhi node. Loop marks
// membership in a known loop header; such Phis are never candidates
// for the Phi-SCC pass (spec.md §4.2, "Tie-breaks and edge cases").
type PhiAttrs struct {
	Loop bool
}

// NewPhi creates a Phi node in block with one operand per control
// predecessor, in predecessor order. edges must have the same length
// as block's predecessor list; panics otherwise (spec.md §3 invariants,
// "A Phi has arity equal to its block's control-predecessor count").
func NewPhi(block *Node, m *mode.Mode, edges []*Node, loop bool) *Node {
	mustBlock(block)
	if len(edges) != block.NPreds() {
		panic(fmt.Sprintf("NewPhi in block %d: %d edges but %d predecessors",
			block.idx, len(edges), block.NPreds()))
	}
	phi := NewNode(block.graph, block, OpPhi, m, edges, &PhiAttrs{Loop: loop})
	AppendInstr(block, phi)
	return phi
}

// IsLoop reports whether a Phi is marked as a loop-header Phi.
func (n *Node) IsLoop() bool {
	if n.opcode != OpPhi {
		return false
	}
	return n.attrs.(*PhiAttrs).Loop
}

// CheckArity panics if n is a Phi whose arity does not match its
// block's predecessor count (spec.md §8 property 2).
func CheckArity(n *Node) {
	if n.opcode != OpPhi {
		return
	}
	if n.NIns() != n.Block().NPreds() {
		panic(fmt.Sprintf("phi %d: arity %d != %d predecessors of block %d",
			n.idx, n.NIns(), n.Block().NPreds(), n.Block().idx))
	}
}
