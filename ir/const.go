package ir

import "github.com/ssagraph/firmcore/mode"

// ConstAttrs is the attribute payload of an OpConst node: an immediate
// integer value (spec.md §3 "Node", "attribute payload").
type ConstAttrs struct {
	Value int64
}

// NewConst creates a constant node in block with the given value.
func NewConst(block *Node, m *mode.Mode, value int64) *Node {
	n := NewNode(block.graph, block, OpConst, m, nil, &ConstAttrs{Value: value})
	AppendInstr(block, n)
	return n
}

// ConstValue returns the immediate value of an OpConst node.
func (n *Node) ConstValue() int64 {
	if n.opcode != OpConst {
		panic("not a Const node")
	}
	return n.attrs.(*ConstAttrs).Value
}
