package ir

// WalkBlocksPreorder visits every block reachable from start exactly
// once, in preorder over the CFG, calling visit on each. It reserves
// and releases the block-visited counter itself (spec.md §4.5, "SP-offset
// simulation" uses the same discipline for its own walk).
func WalkBlocksPreorder(g *Graph, start *Node, visit func(*Node)) {
	g.Reserve(ResourceBlockVisited)
	defer g.Release(ResourceBlockVisited)
	var rec func(*Node)
	rec = func(b *Node) {
		if g.BlockVisited(b) {
			return
		}
		g.MarkBlockVisited(b)
		visit(b)
		for _, s := range b.Succs() {
			rec(s)
		}
	}
	rec(start)
}

// WalkNodesPostorder visits every node reachable from roots by
// following operand edges, exactly once, in postorder (every operand
// visited before its user), calling visit on each. It uses the link
// slot as scratch space for the visited marker.
func WalkNodesPostorder(g *Graph, roots []*Node, visit func(*Node)) {
	lt := g.ReserveLink()
	defer g.ReleaseLink(lt)
	var rec func(*Node)
	rec = func(n *Node) {
		if lt.Get(n) != nil {
			return
		}
		lt.Set(n, true)
		for _, in := range n.ins {
			if in != nil {
				rec(in)
			}
		}
		visit(n)
	}
	for _, r := range roots {
		if r != nil {
			rec(r)
		}
	}
}

// WalkNodesPreorder is as WalkNodesPostorder but calls visit on n
// before recursing into its operands.
func WalkNodesPreorder(g *Graph, roots []*Node, visit func(*Node)) {
	lt := g.ReserveLink()
	defer g.ReleaseLink(lt)
	var rec func(*Node)
	rec = func(n *Node) {
		if lt.Get(n) != nil {
			return
		}
		lt.Set(n, true)
		visit(n)
		for _, in := range n.ins {
			if in != nil {
				rec(in)
			}
		}
	}
	for _, r := range roots {
		if r != nil {
			rec(r)
		}
	}
}

// BlocksReachableFrom returns every block reachable from start, in
// preorder.
func BlocksReachableFrom(g *Graph, start *Node) []*Node {
	var out []*Node
	WalkBlocksPreorder(g, start, func(b *Node) { out = append(out, b) })
	return out
}
