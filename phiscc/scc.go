// Package phiscc implements the Phi strongly-connected-component
// redundancy elimination pass (spec.md §4.2): it finds SCCs of Phi
// nodes in the operand graph that collapse to a single value outside
// the SCC, and rewires every such SCC's users onto that value.
//
// Grounded on libFirm's ir/opt/opt_phi_scc.c, reading the "most
// complete revision" the spec.md §9 Open Questions section singles
// out: an iterative work-queue of SCCs, each resolved through a
// replacement map at every step, rather than the earlier revisions'
// printf-driven control flow.
package phiscc

import "github.com/ssagraph/firmcore/ir"

// Run finds and eliminates every redundant Phi SCC reachable in g. It
// is in-place and non-failing (spec.md §4.2, "Failure semantics"): if
// the use-edge index is active at entry it remains valid at exit, and
// every Exchange call requires it.
func Run(g *ir.Graph) {
	lt := g.ReserveLink()
	defer g.ReleaseLink(lt)

	var order []*ir.Node
	universe := map[*ir.Node]bool{}
	for _, n := range g.Nodes() {
		if n.IsDead() || n.Opcode() != ir.OpPhi || n.IsLoop() {
			continue
		}
		order = append(order, n)
		universe[n] = true
	}

	replacement := map[*ir.Node]*ir.Node{}

	queue := interestingSCCs(tarjanSCCs(lt, order, universe))
	for len(queue) > 0 {
		scc := queue[0]
		queue = queue[1:]

		members := map[*ir.Node]bool{}
		for _, m := range scc {
			members[m] = true
		}

		var outside *ir.Node
		redundant := true
		pinned := map[*ir.Node]bool{}
		for _, m := range scc {
			for _, in := range m.Ins() {
				if in == nil {
					continue
				}
				resolved := resolve(replacement, in)
				if members[resolved] {
					continue // internal edge (including self-loops)
				}
				pinned[m] = true
				if outside == nil {
					outside = resolved
				} else if outside != resolved {
					redundant = false
				}
			}
		}

		if redundant && outside == nil {
			// Every operand of every member resolves inside the SCC:
			// a completely isolated Phi cycle. spec.md §4.2 and §9
			// treat this as ill-formed input, not a case the pass must
			// handle (and handling it would not terminate, since no
			// member would ever become pinned).
			panic("phiscc: encountered a completely isolated Phi SCC with no outside predecessor")
		}

		if redundant {
			for _, m := range scc {
				replacement[m] = outside
			}
			continue
		}

		// Not redundant: recurse into the subgraph induced by the
		// eligible (non-pinned) members, since removing the pinned
		// ones may expose new, smaller SCCs (spec.md §4.2 step 3c).
		var residualOrder []*ir.Node
		residual := map[*ir.Node]bool{}
		for _, m := range scc {
			if !pinned[m] {
				residualOrder = append(residualOrder, m)
				residual[m] = true
			}
		}
		if len(residual) < 2 {
			continue
		}
		clearState(lt, residualOrder)
		queue = append(queue, interestingSCCs(tarjanSCCs(lt, residualOrder, residual))...)
	}

	for member, target := range replacement {
		ir.Exchange(member, resolve(replacement, target))
	}
}

// interestingSCCs filters Tarjan's output down to the components that
// can possibly be redundant: true cycles (size >= 2) and self-looping
// singletons (spec.md §4.2, "Tie-breaks and edge cases"). A
// non-self-looping singleton is never redundant and Tarjan emits one
// for every acyclic Phi, so they are dropped here rather than pushed
// through the (no-op) redundancy check.
func interestingSCCs(sccs [][]*ir.Node) [][]*ir.Node {
	var out [][]*ir.Node
	for _, scc := range sccs {
		if len(scc) >= 2 {
			out = append(out, scc)
			continue
		}
		n := scc[0]
		for _, in := range n.Ins() {
			if in == n {
				out = append(out, scc)
				break
			}
		}
	}
	return out
}

// resolve follows the replacement chain for n until it reaches a node
// with no replacement recorded (an outside value), resolving the chain
// at every step as spec.md §4.2 step 4 requires.
func resolve(replacement map[*ir.Node]*ir.Node, n *ir.Node) *ir.Node {
	seen := map[*ir.Node]bool{}
	for {
		r, ok := replacement[n]
		if !ok || seen[n] {
			return n
		}
		seen[n] = true
		n = r
	}
}

// clearState resets the Tarjan scratch state for nodes about to be
// re-examined as a residual SCC (spec.md §4.2 step 3c, "clear their
// dfn").
func clearState(lt *ir.LinkTable, nodes []*ir.Node) {
	for _, n := range nodes {
		lt.Set(n, nil)
	}
}
