// Package liveness computes per-block liveness sets and a next-use
// oracle over a register class (spec.md §4.3). It is a read-only
// analysis: it does not mutate the graph it observes, but — like any
// analysis — a later pass that changes the graph's instruction
// schedule or operand edges must recompute it (spec.md §4.3,
// "Validity is tracked on the graph").
package liveness

import (
	"github.com/ssagraph/firmcore/ir"
	"github.com/ssagraph/firmcore/mode"
)

// ClassOf reports whether v is a value the caller's liveness/spill
// problem cares about (e.g. "is in this register class"). Liveness and
// the next-use oracle are parameterized by it rather than hard-coding
// a register class, so the same code serves every register file.
type ClassOf func(v *ir.Node) bool

// Sets holds the live_in/live_out sets for every block of one graph,
// computed for one ClassOf predicate (spec.md §4.3, "Liveness").
type Sets struct {
	classOf ClassOf
	blocks  []*ir.Node
	in      map[*ir.Node]map[*ir.Node]bool
	out     map[*ir.Node]map[*ir.Node]bool
	valid   bool
}

// LiveIn returns the set of values live on entry to b.
func (s *Sets) LiveIn(b *ir.Node) map[*ir.Node]bool { return s.in[b] }

// LiveOut returns the set of values live on exit from b.
func (s *Sets) LiveOut(b *ir.Node) map[*ir.Node]bool { return s.out[b] }

// Valid reports whether this Sets still reflects the current graph. A
// pass that mutates operand edges or the instruction schedule after
// Compute must call Invalidate, and any reader must check Valid before
// trusting the sets (spec.md §4.3).
func (s *Sets) Valid() bool { return s.valid }

// Invalidate marks s as stale.
func (s *Sets) Invalidate() { s.valid = false }

// usesOf returns the class-filtered operands a scheduled instruction
// reads.
func usesOf(n *ir.Node, classOf ClassOf) []*ir.Node {
	var out []*ir.Node
	for _, in := range n.Ins() {
		if in != nil && classOf(in) {
			out = append(out, in)
		}
	}
	return out
}

// defsOf returns the class-filtered value(s) a scheduled instruction
// defines: itself, or its Proj results if it has tuple mode.
func defsOf(n *ir.Node, classOf ClassOf) []*ir.Node {
	if n.Mode() == mode.Tuple {
		var out []*ir.Node
		for _, p := range ir.Projections(n) {
			if classOf(p) {
				out = append(out, p)
			}
		}
		return out
	}
	if classOf(n) {
		return []*ir.Node{n}
	}
	return nil
}

func add(set map[*ir.Node]bool, v *ir.Node) bool {
	if set[v] {
		return false
	}
	set[v] = true
	return true
}

// Compute runs the reverse-CFG iterative dataflow to a fixed point
// (spec.md §4.3): for each block, live_out is the union, over every
// successor, of that successor's live_in — with any Phi of the
// successor substituted for the operand flowing along this particular
// edge — and live_in is (uses ∪ (live_out − defs)).
func Compute(blocks []*ir.Node, classOf ClassOf) *Sets {
	s := &Sets{
		classOf: classOf,
		blocks:  blocks,
		in:      make(map[*ir.Node]map[*ir.Node]bool, len(blocks)),
		out:     make(map[*ir.Node]map[*ir.Node]bool, len(blocks)),
		valid:   true,
	}
	for _, b := range blocks {
		s.in[b] = map[*ir.Node]bool{}
		s.out[b] = map[*ir.Node]bool{}
	}

	changed := true
	for changed {
		changed = false
		// Process in reverse order; for an acyclic (or already mostly
		// settled) CFG this converges in one or two sweeps, same as
		// any worklist liveness solver.
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			liveOut := map[*ir.Node]bool{}
			for _, succ := range b.Succs() {
				predIdx := succ.PredIndex(b)
				for v := range s.in[succ] {
					phiResolved := v
					if v.Opcode() == ir.OpPhi && v.Block() == succ {
						op := v.In(predIdx)
						if op != nil {
							phiResolved = op
						} else {
							continue // Unknown placeholder on this edge
						}
					}
					add(liveOut, phiResolved)
				}
			}
			for v := range liveOut {
				add(s.out[b], v)
			}

			liveIn := map[*ir.Node]bool{}
			for v := range s.out[b] {
				if v.Opcode() == ir.OpPhi && v.Block() == b {
					continue // defined at this block's entry, not live-in from outside
				}
				liveIn[v] = true
			}
			// Sweep instructions backward so a definition kills
			// liveness for everything scheduled after it and a use
			// re-establishes it for everything scheduled before.
			// Phis are skipped: their operands are per-predecessor
			// values handled by the live_out edge-substitution above,
			// not ordinary uses within the block.
			instrs := b.Instrs()
			for i := len(instrs) - 1; i >= 0; i-- {
				instr := instrs[i]
				if instr.Opcode() == ir.OpPhi {
					continue
				}
				for _, d := range defsOf(instr, classOf) {
					delete(liveIn, d)
				}
				for _, u := range usesOf(instr, classOf) {
					liveIn[u] = true
				}
			}
			for v := range liveIn {
				if add(s.in[b], v) {
					changed = true
				}
			}
		}
	}
	return s
}
