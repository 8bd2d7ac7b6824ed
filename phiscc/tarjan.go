package phiscc

import "github.com/ssagraph/firmcore/ir"

// tarjanState is the per-node scratch Tarjan needs, stored in the
// pass's LinkTable in place of a raw scratch pointer (spec.md §9,
// "Link-slot scratch field").
type tarjanState struct {
	inStack bool
	dfn     int
	uplink  int
	onSCC   bool
}

func state(lt *ir.LinkTable, n *ir.Node) *tarjanState {
	v := lt.Get(n)
	if v == nil {
		v = &tarjanState{dfn: -1}
		lt.Set(n, v)
	}
	return v.(*tarjanState)
}

// phiSuccessors returns the operands of n that are themselves
// candidate Phi nodes in universe — the only edges Tarjan follows,
// since an SCC is defined over the Phi-only operand subgraph
// (spec.md §4.2).
func phiSuccessors(n *ir.Node, universe map[*ir.Node]bool) []*ir.Node {
	var out []*ir.Node
	for _, in := range n.Ins() {
		if in != nil && in != n && universe[in] {
			out = append(out, in)
		}
	}
	return out
}

// tarjanSCCs finds every strongly connected component within universe
// (treating operand edges restricted to universe as the graph),
// singletons included; self-loops are not followed as edges, and
// interestingSCCs later drops the singletons that have none (spec.md
// §4.2 "Tie-breaks").
//
// Components are returned in the reverse-topological order Tarjan's
// algorithm naturally produces, which is the order spec.md §4.2 step 2
// requires them to be considered in (inner SCCs — those closer to the
// leaves of the condensation DAG — first).
func tarjanSCCs(lt *ir.LinkTable, order []*ir.Node, universe map[*ir.Node]bool) [][]*ir.Node {
	var (
		index int
		stack []*ir.Node
		out   [][]*ir.Node
	)

	var strongconnect func(v *ir.Node)
	strongconnect = func(v *ir.Node) {
		st := state(lt, v)
		st.dfn = index
		st.uplink = index
		index++
		stack = append(stack, v)
		st.inStack = true

		for _, w := range phiSuccessors(v, universe) {
			ws := state(lt, w)
			if ws.dfn == -1 {
				strongconnect(w)
				ws = state(lt, w)
				if ws.uplink < st.uplink {
					st.uplink = ws.uplink
				}
			} else if ws.inStack {
				if ws.dfn < st.uplink {
					st.uplink = ws.dfn
				}
			}
		}

		if st.uplink == st.dfn {
			var comp []*ir.Node
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				state(lt, w).inStack = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			out = append(out, comp)
		}
	}

	for _, n := range order {
		if state(lt, n).dfn == -1 {
			strongconnect(n)
		}
	}
	return out
}
