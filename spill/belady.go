// Package spill implements the Belady working-set spill heuristic
// (spec.md §4.4): for a register class with a fixed number of
// registers, decide at each program point which values occupy a
// register and which must be reloaded from or spilled to memory.
package spill

import (
	"fmt"
	"sort"

	"github.com/ssagraph/firmcore/ir"
	"github.com/ssagraph/firmcore/liveness"
	"github.com/ssagraph/firmcore/mode"
)

// Entry is one member of a working set: a value and its most recently
// computed distance to its next use.
type Entry struct {
	Value *ir.Node
	Dist  int
}

// WorkingSet is an ordered container of at most k (value, distance)
// pairs (spec.md §4.4, "Working set"). Order matters: ties in distance
// are broken by insertion order, so WorkingSet never reorders entries
// except via an explicit sort.
type WorkingSet struct {
	k       int
	entries []Entry
}

// NewWorkingSet returns an empty working set with capacity k.
func NewWorkingSet(k int) *WorkingSet { return &WorkingSet{k: k} }

// Clone returns an independent copy, used to seed a single-predecessor
// block's starting set from its predecessor's ending set.
func (ws *WorkingSet) Clone() *WorkingSet {
	out := &WorkingSet{k: ws.k, entries: make([]Entry, len(ws.entries))}
	copy(out.entries, ws.entries)
	return out
}

// Len returns the number of occupied slots.
func (ws *WorkingSet) Len() int { return len(ws.entries) }

// Contains reports whether v currently occupies a slot.
func (ws *WorkingSet) Contains(v *ir.Node) bool {
	return ws.indexOf(v) >= 0
}

func (ws *WorkingSet) indexOf(v *ir.Node) int {
	for i, e := range ws.entries {
		if e.Value == v {
			return i
		}
	}
	return -1
}

// Values returns the set's members in current order.
func (ws *WorkingSet) Values() []*ir.Node {
	out := make([]*ir.Node, len(ws.entries))
	for i, e := range ws.entries {
		out[i] = e.Value
	}
	return out
}

// setDistance updates v's recorded distance if v is present.
func (ws *WorkingSet) setDistance(v *ir.Node, d int) {
	if i := ws.indexOf(v); i >= 0 {
		ws.entries[i].Dist = d
	}
}

// remove drops v from the set, if present.
func (ws *WorkingSet) remove(v *ir.Node) {
	if i := ws.indexOf(v); i >= 0 {
		ws.entries = append(ws.entries[:i], ws.entries[i+1:]...)
	}
}

// insert appends v with distance d without checking capacity; displace
// evicts enough members before inserting to keep |ws| <= k.
func (ws *WorkingSet) insert(v *ir.Node, d int) {
	if ws.indexOf(v) >= 0 {
		ws.setDistance(v, d)
		return
	}
	ws.entries = append(ws.entries, Entry{Value: v, Dist: d})
}

// sortByDistanceAscending orders entries with the nearest next use
// first and the farthest (or dead, Infinity) next use last, ties
// broken by original (insertion) order, so eviction from the tail
// drops the farthest-use members first and dead members (Infinity)
// before any live one (spec.md §4.4, "Ordering constraints"; grounded
// on the original's loc_compare/workset_sort, which sorts by increasing
// distance and then discards from the end of the array).
func (ws *WorkingSet) sortByDistanceAscending() {
	sort.SliceStable(ws.entries, func(i, j int) bool {
		return ws.entries[i].Dist < ws.entries[j].Dist
	})
}

// Decision is one reload or spill obligation reported to the caller
// ("the spill environment", spec.md §4.4, "Failure semantics": the pass
// itself never fails, it only reports decisions).
type Decision struct {
	// Reload: v must be reloaded from memory before Before in Block.
	// PhiSpill: the Phi v (owned by Block) must be materialized in
	// memory at block entry, because the join-point starting-set
	// computation did not retain it.
	// EdgeReload: v must be reloaded on the control-flow edge From ->
	// Block, because it is expected live-in to Block but absent from
	// From's ending working set.
	Kind   DecisionKind
	Block  *ir.Node
	Before *ir.Node // nil for PhiSpill/EdgeReload
	From   *ir.Node // set only for EdgeReload
	Value  *ir.Node
}

// DecisionKind distinguishes the three obligations the heuristic can
// report.
type DecisionKind int

const (
	Reload DecisionKind = iota
	PhiSpill
	EdgeReload
)

func (d Decision) String() string {
	switch d.Kind {
	case Reload:
		return fmt.Sprintf("reload %s before %s in block %d", d.Value, d.Before, d.Block.Idx())
	case PhiSpill:
		return fmt.Sprintf("spill phi %s at entry of block %d", d.Value, d.Block.Idx())
	case EdgeReload:
		return fmt.Sprintf("reload %s on edge %d -> %d", d.Value, d.From.Idx(), d.Block.Idx())
	default:
		return "invalid decision"
	}
}

// Result collects every decision made across a graph, plus the
// final working sets per block (needed by the cross-block fix-up and
// useful to a caller wiring decisions into the graph).
type Result struct {
	Decisions []Decision
	StartSets map[*ir.Node]*WorkingSet
	EndSets   map[*ir.Node]*WorkingSet
}

func (r *Result) report(d Decision) { r.Decisions = append(r.Decisions, d) }

// Run runs the per-class Belady heuristic over one graph (spec.md
// §4.4). blocks must be given in an order where, for every block with
// exactly one predecessor, that predecessor appears earlier — e.g. a
// preorder CFG walk from the entry block (ir.WalkBlocksPreorder);
// multi-predecessor (join) blocks have no such ordering requirement and
// are computed directly from liveness, per the spec.
func Run(blocks []*ir.Node, k int, classOf liveness.ClassOf, sets *liveness.Sets, oracle *liveness.Oracle) *Result {
	r := &Result{
		StartSets: make(map[*ir.Node]*WorkingSet, len(blocks)),
		EndSets:   make(map[*ir.Node]*WorkingSet, len(blocks)),
	}
	for _, b := range blocks {
		runBlock(b, k, classOf, sets, oracle, r)
	}
	fixUpEdges(blocks, r)
	return r
}

func runBlock(b *ir.Node, k int, classOf liveness.ClassOf, sets *liveness.Sets, oracle *liveness.Oracle, r *Result) {
	if _, done := r.EndSets[b]; done {
		return
	}
	ws := startingSet(b, k, classOf, sets, oracle, r)
	r.StartSets[b] = ws.Clone()

	for _, instr := range b.Instrs() {
		if instr.Opcode() == ir.OpProj || instr.Opcode() == ir.OpPhi {
			continue
		}
		sweepInstruction(b, instr, ws, k, classOf, sets, oracle, r)
	}
	r.EndSets[b] = ws
}

// startingSet computes a block's starting working set (spec.md §4.4,
// "Starting set").
func startingSet(b *ir.Node, k int, classOf liveness.ClassOf, sets *liveness.Sets, oracle *liveness.Oracle, r *Result) *WorkingSet {
	preds := b.Preds()
	if len(preds) == 0 {
		return NewWorkingSet(k)
	}
	if len(preds) == 1 {
		pred := preds[0]
		if pred != nil {
			runBlock(pred, k, classOf, sets, oracle, r)
			if end := r.EndSets[pred]; end != nil {
				return end.Clone()
			}
		}
		return NewWorkingSet(k)
	}

	// Join point: candidates are every live-in value plus every Phi
	// result of this block, ranked by next-use distance from the first
	// scheduled instruction.
	type cand struct {
		v    *ir.Node
		dist int
	}
	seen := map[*ir.Node]bool{}
	var cands []cand
	for v := range sets.LiveIn(b) {
		if seen[v] {
			continue
		}
		seen[v] = true
		cands = append(cands, cand{v, oracle.Distance(b, -1, v)})
	}
	for _, phi := range b.Phis() {
		if !classOf(phi) || seen[phi] {
			continue
		}
		seen[phi] = true
		cands = append(cands, cand{phi, oracle.Distance(b, -1, phi)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	ws := NewWorkingSet(k)
	for i, c := range cands {
		if i >= k {
			// Phis that don't make the cut must be materialized in
			// memory at block entry rather than assumed live in a
			// register.
			if c.v.Opcode() == ir.OpPhi && c.v.Block() == b {
				r.report(Decision{Kind: PhiSpill, Block: b, Value: c.v})
			}
			continue
		}
		ws.entries = append(ws.entries, Entry{Value: c.v, Dist: c.dist})
	}
	return ws
}

// sweepInstruction applies the displace-for-uses / displace-for-defs
// procedure for one scheduled instruction (spec.md §4.4, "Sweep").
func sweepInstruction(b, n *ir.Node, ws *WorkingSet, k int, classOf liveness.ClassOf, sets *liveness.Sets, oracle *liveness.Oracle, r *Result) {
	pos := instrPos(b, n)

	var uses []*ir.Node
	for _, in := range n.Ins() {
		if in != nil && classOf(in) {
			uses = append(uses, in)
		}
	}
	for _, u := range uses {
		if !ws.Contains(u) {
			r.report(Decision{Kind: Reload, Block: b, Before: n, Value: u})
		}
	}
	displace(b, n, pos, uses, ws, k, sets, oracle, r, true)

	var defs []*ir.Node
	if n.Mode() == mode.Tuple {
		for _, p := range ir.Projections(n) {
			if classOf(p) {
				defs = append(defs, p)
			}
		}
	} else if classOf(n) {
		defs = append(defs, n)
	}
	displace(b, n, pos, defs, ws, k, sets, oracle, r, false)
}

// displace admits newcomers into ws, evicting existing members from the
// tail (after an ascending-distance sort, so the tail holds the
// farthest and dead members) if there isn't room. isUsage
// controls whether eviction applies the dead-value fix and whether an
// evicted, never-yet-used member is also dropped from the block's
// starting set (spec.md §4.4, "Displace for uses").
func displace(b, at *ir.Node, pos int, newcomers []*ir.Node, ws *WorkingSet, k int, sets *liveness.Sets, oracle *liveness.Oracle, r *Result, isUsage bool) {
	var fresh []*ir.Node
	for _, v := range newcomers {
		if !ws.Contains(v) {
			fresh = append(fresh, v)
		}
	}
	need := ws.Len() + len(fresh) - k
	if need > 0 {
		for _, e := range ws.entries {
			ws.setDistance(e.Value, oracle.Distance(b, pos, e.Value))
		}
		if isUsage {
			applyDeadValueFix(b, at, ws, sets)
		}
		ws.sortByDistanceAscending()
		for need > 0 && ws.Len() > 0 {
			evicted := ws.entries[len(ws.entries)-1]
			ws.entries = ws.entries[:len(ws.entries)-1]
			need--
			if isUsage && !usedBefore(b, at, evicted.Value) && !isPhiOf(evicted.Value, b) {
				start := r.StartSets[b]
				if start != nil {
					start.remove(evicted.Value)
				}
			}
		}
	}
	for _, v := range fresh {
		d := 0
		if isUsage {
			d = oracle.Distance(b, pos, v)
		}
		ws.insert(v, d)
	}
}

func isPhiOf(v, b *ir.Node) bool {
	return v.Opcode() == ir.OpPhi && v.Block() == b
}

// usedBefore reports whether v has any use scheduled strictly before at
// within b, i.e. it was already live going into this point rather than
// a value merely carried speculatively in the working set.
func usedBefore(b, at *ir.Node, v *ir.Node) bool {
	atPos := instrPos(b, at)
	for i, instr := range b.Instrs() {
		if i >= atPos {
			break
		}
		for _, in := range instr.Ins() {
			if in == v {
				return true
			}
		}
	}
	return false
}

// DistanceDeadInBlock and DistanceDeadEverywhere are the two sentinel
// distances the dead-value fix assigns (spec.md §9: "the next-use
// oracle cannot distinguish dead-in-block from infinite... model
// 'dead in this block, live-out' and 'dead everywhere' as distinct
// sentinel distances; preserve the ordering that dead-everywhere
// evicts first"). Both outrank every real next-use distance so either
// kind sorts to the tail for eviction, but DistanceDeadEverywhere
// outranks DistanceDeadInBlock too: a value nothing downstream will
// ever read again must be evicted before one a successor still
// expects to find live-out.
const (
	DistanceDeadInBlock    = liveness.Infinity - 1
	DistanceDeadEverywhere = liveness.Infinity
)

// applyDeadValueFix marks a working-set member dead if every remaining
// use of it within b precedes at, i.e. it is dead from at onward in
// this block (spec.md §4.4, "apply the dead-value fix"). A member
// still in sets' live-out set for b is only dead-in-block — some
// successor still expects it live — and gets DistanceDeadInBlock;
// anything else is dead everywhere and gets DistanceDeadEverywhere.
func applyDeadValueFix(b, at *ir.Node, ws *WorkingSet, sets *liveness.Sets) {
	atPos := instrPos(b, at)
	instrs := b.Instrs()
	liveOut := sets.LiveOut(b)
	for i, e := range ws.entries {
		deadFromHere := true
		for j := atPos; j < len(instrs); j++ {
			instr := instrs[j]
			for _, in := range instr.Ins() {
				if in == e.Value {
					deadFromHere = false
					break
				}
			}
			if !deadFromHere {
				break
			}
		}
		if !deadFromHere {
			continue
		}
		if liveOut[e.Value] {
			ws.entries[i].Dist = DistanceDeadInBlock
		} else {
			ws.entries[i].Dist = DistanceDeadEverywhere
		}
	}
}

func instrPos(b, n *ir.Node) int {
	for i, instr := range b.Instrs() {
		if instr == n {
			return i
		}
	}
	return -1
}

// fixUpEdges runs the cross-block fix-up pass (spec.md §4.4,
// "Cross-block fix-up"): every value expected live-in to a block via
// its starting set must actually be present in the corresponding
// predecessor's ending set, or a reload is required on that edge.
func fixUpEdges(blocks []*ir.Node, r *Result) {
	for _, b := range blocks {
		start := r.StartSets[b]
		if start == nil {
			continue
		}
		for _, pred := range b.Preds() {
			if pred == nil {
				continue
			}
			end := r.EndSets[pred]
			if end == nil {
				continue
			}
			predIdx := b.PredIndex(pred)
			for _, v := range start.Values() {
				resolved := v
				if v.Opcode() == ir.OpPhi && v.Block() == b {
					op := v.In(predIdx)
					if op == nil {
						continue // Unknown placeholder on this edge
					}
					resolved = op
				}
				if !endHolds(end, resolved) {
					r.report(Decision{Kind: EdgeReload, Block: b, From: pred, Value: resolved})
				}
			}
		}
	}
}

// endHolds reports whether v is genuinely available in a predecessor's
// ending working set. A member the dead-value fix stamped
// DistanceDeadEverywhere is a corpse kept around only because nothing
// forced its eviction from pred, not a value pred actually hands a
// successor without a reload, so it does not count as held.
func endHolds(end *WorkingSet, v *ir.Node) bool {
	i := end.indexOf(v)
	if i < 0 {
		return false
	}
	return end.entries[i].Dist != DistanceDeadEverywhere
}
