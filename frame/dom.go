package frame

import "github.com/ssagraph/firmcore/ir"

// domInfo holds the dominator tree of one graph's reachable blocks,
// computed with the Cooper/Harvey/Kennedy iterative algorithm (the same
// one cited by the dominance-frontier construction this package's
// dominance frontier borrows its shape from).
type domInfo struct {
	order   []*ir.Node       // reverse postorder, order[0] == entry
	rpoNum  map[*ir.Node]int // block -> index in order
	idom    map[*ir.Node]*ir.Node
	succOf  map[*ir.Node][]*ir.Node
	predsOf map[*ir.Node][]*ir.Node
}

func buildDomInfo(entry *ir.Node) *domInfo {
	order := reversePostorder(entry)
	rpoNum := make(map[*ir.Node]int, len(order))
	for i, b := range order {
		rpoNum[b] = i
	}
	predsOf := make(map[*ir.Node][]*ir.Node, len(order))
	succOf := make(map[*ir.Node][]*ir.Node, len(order))
	inOrder := make(map[*ir.Node]bool, len(order))
	for _, b := range order {
		inOrder[b] = true
	}
	for _, b := range order {
		for _, s := range b.Succs() {
			if inOrder[s] {
				succOf[b] = append(succOf[b], s)
			}
		}
		var preds []*ir.Node
		for _, p := range b.Preds() {
			if p != nil && inOrder[p] {
				preds = append(preds, p)
			}
		}
		predsOf[b] = preds
	}

	idom := make(map[*ir.Node]*ir.Node, len(order))
	idom[entry] = entry
	changed := true
	for changed {
		changed = false
		for _, b := range order[1:] {
			var newIdom *ir.Node
			for _, p := range predsOf[b] {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, rpoNum)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, entry) // entry has no idom

	return &domInfo{order: order, rpoNum: rpoNum, idom: idom, succOf: succOf, predsOf: predsOf}
}

func intersect(a, b *ir.Node, idom map[*ir.Node]*ir.Node, rpoNum map[*ir.Node]int) *ir.Node {
	for a != b {
		for rpoNum[a] > rpoNum[b] {
			a = idom[a]
		}
		for rpoNum[b] > rpoNum[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(entry *ir.Node) []*ir.Node {
	visited := map[*ir.Node]bool{}
	var post []*ir.Node
	var rec func(*ir.Node)
	rec = func(b *ir.Node) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs() {
			rec(s)
		}
		post = append(post, b)
	}
	rec(entry)
	out := make([]*ir.Node, len(post))
	for i, b := range post {
		out[len(post)-1-i] = b
	}
	return out
}

// frontier computes the dominance frontier of every block in di,
// following the Cytron et al. construction: a block-set-per-node table
// built bottom-up over the dominator tree (spec.md §4.5, "SSA repair
// for the stack pointer" step 2; shaped after the domFrontier
// construction used to lift Alloc cells into registers elsewhere in
// this codebase, adapted here to keep its own scratch sets instead of
// sharing the node link slot).
func (di *domInfo) frontier() map[*ir.Node]map[*ir.Node]bool {
	children := make(map[*ir.Node][]*ir.Node, len(di.order))
	for b, id := range di.idom {
		children[id] = append(children[id], b)
	}
	df := make(map[*ir.Node]map[*ir.Node]bool, len(di.order))
	var build func(u *ir.Node)
	build = func(u *ir.Node) {
		set := map[*ir.Node]bool{}
		for _, child := range children[u] {
			build(child)
		}
		for _, s := range di.succOf[u] {
			if di.idom[s] != u && s != di.order[0] {
				set[s] = true
			}
		}
		for _, child := range children[u] {
			for v := range df[child] {
				if di.idom[v] != u {
					set[v] = true
				}
			}
		}
		df[u] = set
	}
	build(di.order[0])
	return df
}

// dominates reports whether a dominates b (reflexively), using idom
// chains. Both must be reachable blocks known to di.
func (di *domInfo) dominates(a, b *ir.Node) bool {
	for b != nil {
		if b == a {
			return true
		}
		if b == di.order[0] {
			return b == a
		}
		b = di.idom[b]
	}
	return false
}
