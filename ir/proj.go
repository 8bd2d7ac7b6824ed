package ir

import (
	"fmt"

	"github.com/ssagraph/firmcore/mode"
)

// ProjAttrs is the attribute payload of an OpProj node: the projection
// number selecting one result out of a tuple-moded node.
type ProjAttrs struct {
	Num int
}

// NewProj creates a projection extracting result num out of tuple,
// which must have mode.Tuple.
func NewProj(tuple *Node, num int, m *mode.Mode) *Node {
	if tuple.Mode() != mode.Tuple {
		panic(fmt.Sprintf("Proj of node %d: operand has mode %s, want tuple", tuple.idx, tuple.Mode()))
	}
	return NewNode(tuple.graph, tuple.block, OpProj, m, []*Node{tuple}, &ProjAttrs{Num: num})
}

// ProjNum returns the projection number of a Proj node.
func (n *Node) ProjNum() int {
	if n.opcode != OpProj {
		panic(fmt.Sprintf("node %d: not a Proj (opcode %s)", n.idx, n.opcode))
	}
	return n.attrs.(*ProjAttrs).Num
}

// Projections returns every Proj node reading from tuple, which must
// have mode.Tuple, ordered by projection number. Requires the use-edge
// index to be active.
func Projections(tuple *Node) []*Node {
	if tuple.Mode() != mode.Tuple {
		panic(fmt.Sprintf("Projections of node %d: operand has mode %s, want tuple", tuple.idx, tuple.Mode()))
	}
	var out []*Node
	for _, u := range tuple.Uses() {
		if u.User.opcode == OpProj {
			out = append(out, u.User)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ProjNum() < out[i].ProjNum() {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
