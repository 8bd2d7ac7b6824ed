package frame

import (
	"github.com/ssagraph/firmcore/ir"
	"github.com/ssagraph/firmcore/regalloc"
)

// CollectSPProducers returns every instruction scheduled in blocks whose
// result is the stack-pointer register, identified by carrying an
// OutReqs entry with the ProducesSP flag (spec.md §4.5, step 1: "Collect
// every node whose (single) result is the SP"). blocks is walked
// directly rather than via the use/operand graph: an IncSP's effect on
// the stack pointer is a side effect of its schedule position, not
// something necessarily reachable by following data-dependency edges
// from the end of the procedure.
func CollectSPProducers(blocks []*ir.Node) []*ir.Node {
	var out []*ir.Node
	for _, b := range blocks {
		for _, n := range b.Instrs() {
			for _, req := range n.OutReqs {
				if req != nil && req.Flags&regalloc.ProducesSP != 0 {
					out = append(out, n)
					break
				}
			}
		}
	}
	return out
}

// RepairSP rebuilds SSA form for the stack-pointer value after
// producers (each already collected via CollectSPProducers) have been
// introduced or moved, possibly leaving more than one reaching
// definition live into some merge block (spec.md §4.5, "SSA repair for
// the stack pointer").
//
// It inserts Phis at the iterated dominance frontier of the producers'
// blocks, rewrites every operand that read a stale producer to the
// definition that actually reaches it, attaches spReq to each new Phi's
// result, and kills any original producer left with no remaining uses.
func RepairSP(g *ir.Graph, producers []*ir.Node, spReq *regalloc.Request) []*ir.Node {
	if len(producers) == 0 {
		return nil
	}
	entry := g.StartBlock()
	di := buildDomInfo(entry)
	df := di.frontier()

	isOriginal := map[*ir.Node]bool{}
	defBlocks := map[*ir.Node]bool{}
	for _, p := range producers {
		isOriginal[p] = true
		defBlocks[p.Block()] = true
	}

	// Cytron phi-placement: iterate the dominance frontier of the
	// growing "has a definition" set until it stops adding new blocks
	// (spec.md §4.5 step 2; same shape as the Alloc-cell phi-insertion
	// loop this package's dominator machinery was built to support).
	placed := map[*ir.Node]bool{}
	newPhiOf := map[*ir.Node]*ir.Node{}
	hasDef := map[*ir.Node]bool{}
	var work []*ir.Node
	for b := range defBlocks {
		hasDef[b] = true
		work = append(work, b)
	}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for v := range df[b] {
			if placed[v] {
				continue
			}
			placed[v] = true
			mode := producers[0].Mode()
			phi := ir.NewPhi(v, mode, make([]*ir.Node, v.NPreds()), false)
			phi.OutReqs = []*regalloc.Request{spReq}
			newPhiOf[v] = phi
			if !hasDef[v] {
				hasDef[v] = true
				work = append(work, v)
			}
		}
	}

	isSP := map[*ir.Node]bool{}
	for n := range isOriginal {
		isSP[n] = true
	}
	for _, phi := range newPhiOf {
		isSP[phi] = true
	}

	children := make(map[*ir.Node][]*ir.Node)
	for b, id := range di.idom {
		children[id] = append(children[id], b)
	}

	var rename func(b *ir.Node, current *ir.Node)
	rename = func(b *ir.Node, current *ir.Node) {
		if phi, ok := newPhiOf[b]; ok {
			current = phi
		}
		for _, instr := range b.Instrs() {
			if instr.Opcode() == ir.OpPhi {
				continue
			}
			for pos := 0; pos < instr.NIns(); pos++ {
				in := instr.In(pos)
				if in != nil && isSP[in] && in != current && current != nil {
					ir.SetInput(instr, pos, current)
				}
			}
			if isOriginal[instr] {
				current = instr
			}
		}
		for _, s := range b.Succs() {
			if phi, ok := newPhiOf[s]; ok && current != nil {
				ir.SetInput(phi, s.PredIndex(b), current)
			}
		}
		for _, child := range children[b] {
			rename(child, current)
		}
	}
	rename(entry, nil)

	var inserted []*ir.Node
	for _, phi := range newPhiOf {
		inserted = append(inserted, phi)
	}

	// Retire original producers that lost their last ordinary user to
	// the rewiring above. Rewriting a user never touches the End
	// block's keep-alive set, so a producer kept alive only that way
	// would otherwise look used forever; prune its keep-alive edge
	// first; a producer still referenced only by a keep-alive entry
	// that the caller wants to preserve should be rooted there, not
	// among producers passed to RepairSP (spec.md §3 "Lifecycle",
	// §4.5 step 4).
	for _, p := range producers {
		g.RemoveKeepAlive(p)
		if len(p.Uses()) == 0 {
			ir.Kill(p)
		}
	}

	return inserted
}
