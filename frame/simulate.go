package frame

import "github.com/ssagraph/firmcore/ir"

// SimFunc computes the stack offset after a node that neither IncSP nor
// MemPerm already handle specially, given the offset in effect before
// it; it returns the new offset. Returning 0 conventionally signals a
// frame-pointer copy that resets the running bias (spec.md §4.5,
// "SP-offset simulation").
//
// offset and the returned value are both tracked as the magnitude of
// stack allocated so far (growing from 0), independent of whatever sign
// convention a particular node's own delta field uses; this keeps the
// "offset >= wantedBias" invariant a plain, unflipped comparison
// throughout the walk. IncSP deltas, stored with the downward-growing
// sign convention the frame layout uses elsewhere in this package, are
// converted to and from that magnitude at the one point that needs it.
type SimFunc func(n *ir.Node, offsetBefore int) int

// SimulateStackPointer walks the CFG from g's entry block, tracking the
// stack pointer's offset relative to its value at function entry, and
// rewrites IncSP deltas to produce an aligned stack pointer where
// requested (spec.md §4.5, "SP-offset simulation"). Each block is
// visited at most once, via the graph's block-visited counter.
func SimulateStackPointer(g *ir.Graph, misalign, p2align int, sim SimFunc) {
	g.Reserve(ir.ResourceBlockVisited)
	defer g.Release(ir.ResourceBlockVisited)
	simulateBlock(g.StartBlock(), misalign, p2align, sim, 0, 0)
}

func simulateBlock(block *ir.Node, misalign, p2align int, sim SimFunc, offset, wantedBias int) {
	g := block.Graph()
	if g.BlockVisited(block) {
		return
	}
	g.MarkBlockVisited(block)

	for _, n := range block.Instrs() {
		switch n.Opcode() {
		case ir.OpIncSP:
			// The node's own delta is negative for an allocation (stack
			// growing down); ofs is that same adjustment expressed as a
			// non-negative magnitude, matching the convention offset and
			// wantedBias are tracked in throughout this walk. ofs itself
			// stays fixed for the duration of this case — the trailing
			// unconditional accumulation always advances by this
			// original magnitude, never by the slack-adjusted one, the
			// same split libFirm's process_stack_bias keeps between a
			// node's stored ofs and the branch-local slack/delta.
			ofs := -n.IncSPDelta()
			align := n.IncSPAlign()
			if align < p2align {
				align = p2align
			}
			if align > 0 {
				alignment := 1 << uint(align)
				aligned := roundUpMisaligned(offset+ofs, alignment, misalign)
				slack := aligned - (offset + ofs)
				if slack > 0 {
					n.SetIncSPDelta(-(ofs + slack))
					offset += slack
				}
			} else {
				delta := wantedBias - offset
				if delta != 0 {
					n.SetIncSPDelta(-(ofs + delta))
					offset += delta
				}
			}
			offset += ofs
			wantedBias += ofs
		case ir.OpMemPerm:
			n.SetMemPermOffset(offset)
		default:
			newOffset := sim(n, offset)
			if newOffset == 0 {
				wantedBias = 0
			} else {
				wantedBias += newOffset - offset
			}
			offset = newOffset
		}
	}

	if offset < wantedBias {
		panic("SP simulation invariant violated: offset fell below wanted_bias")
	}

	for _, succ := range block.Succs() {
		simulateBlock(succ, misalign, p2align, sim, offset, wantedBias)
	}
}
