// Package arch defines the target capability interface every back-end
// implements (spec.md §6, "Target interface") and the pass driver that
// invokes it at defined phases (spec.md §6, "Pass driver: given a
// graph, invoke a sequence of passes").
//
// Grounded on libFirm's arch_isa_if_t vtable, which spec.md §9's
// "Dynamic dispatch for architectures" note names directly: a C struct
// of function pointers becomes a Go interface, and the driver that
// walks `be_main.c`'s `be_lower_for_target`/`be_step_*` phase sequence
// becomes Run below. The teacher itself has no back-end or target
// abstraction (`go/ssa` stops at an architecture-neutral SSA form), so
// this package has no teacher file to adapt — it is built directly
// from the capability list spec.md §6 names and the phase ordering
// libFirm's driver actually uses.
package arch

import (
	"github.com/ssagraph/firmcore/frame"
	"github.com/ssagraph/firmcore/ir"
	"github.com/ssagraph/firmcore/liveness"
	"github.com/ssagraph/firmcore/regalloc"
	"github.com/ssagraph/firmcore/spill"
)

// Params reports a target's register classes, stack-pointer
// conventions and frame alignment, as returned by Backend.GetParams
// (spec.md §6, "get_params").
type Params struct {
	Classes        []*regalloc.Class
	SPClass        *regalloc.Class
	StackAlignment int // log2 alignment, as frame.SimulateStackPointer's p2align
	Misalign       int
}

// ClassOf returns a liveness.ClassOf predicate selecting values
// belonging to class, for use with liveness.Compute and spill.Run.
func (p *Params) ClassOf(class *regalloc.Class) liveness.ClassOf {
	return func(v *ir.Node) bool {
		for _, req := range v.OutReqs {
			if req != nil && req.Class == class {
				return true
			}
		}
		return false
	}
}

// Backend is the capability interface each target implementation
// provides (spec.md §6). Every method must be reentrant per graph; a
// Backend may share process-wide tables (its own instruction tables,
// calling-convention data) across graphs processed on different
// threads, per spec.md §5's "interned tables fully initialized first"
// rule.
type Backend interface {
	// Init runs once per process before any graph is processed.
	Init()
	// Finish runs once per process after every graph has been
	// processed, releasing whatever Init acquired.
	Finish()
	// GetParams reports this target's register classes and frame
	// conventions.
	GetParams() *Params

	// LowerForTarget rewrites g's core opcodes into target-specific
	// ones, in place (spec.md §9, "Tagged node variants": back-end
	// opcodes extend the sum over kinds; this is where that extension
	// is introduced into a graph built from only the core opcodes).
	LowerForTarget(g *ir.Graph)
	// IsValidClobber reports whether the physical register at index
	// reg within class may be clobbered by an instruction of opcode op
	// without violating this target's calling convention.
	IsValidClobber(class *regalloc.Class, reg int, op ir.Opcode) bool

	// BeginCodegeneration runs once per graph before any further phase.
	BeginCodegeneration(g *ir.Graph)
	// EndCodegeneration runs once per graph after Emit.
	EndCodegeneration(g *ir.Graph)

	// MarkRemat reports whether n is cheap enough to recompute that the
	// spiller should prefer rematerializing it over reloading a spilled
	// copy. The core Belady heuristic (spec.md §4.4) does not decide
	// this itself — it is a target-specific cost judgment consulted
	// wherever a target wants to override a reload with a recompute.
	MarkRemat(n *ir.Node) bool
	// NewSpill builds this target's instruction writing value's result
	// to its frame slot, meant for block and to end up scheduled
	// immediately after after; it does not itself schedule the
	// instruction (after may already be mid-splice by the time Run
	// inserts it; Run, not the target, owns schedule position).
	// NewReload builds the matching read back from slot, meant to end
	// up scheduled immediately before before.
	NewSpill(block, value, after *ir.Node) *ir.Node
	NewReload(block, value, slot, before *ir.Node) *ir.Node

	// HandleIntrinsics rewrites recognized intrinsic calls into target
	// instructions, in place.
	HandleIntrinsics(g *ir.Graph)
	// PrepareGraph runs target-specific legalization once per graph,
	// after lowering and intrinsic handling but before any register
	// request is consulted.
	PrepareGraph(g *ir.Graph)
	// BeforeRA is the last hook before the register allocator consumes
	// the graph's register requests (out of scope here; spec.md §3
	// "Register request" is as far as this core goes).
	BeforeRA(g *ir.Graph)

	// Emit produces this target's output for g. The emitted format
	// itself is out of scope (spec.md §6: "Bit-level formats: none in
	// the core").
	Emit(g *ir.Graph) []byte
}

// Run drives one graph through a target's defined phases (spec.md §6),
// interleaving the core's own liveness/spill/frame components at the
// points libFirm's be_main.c driver places them: lowering and
// intrinsic handling happen first so the spiller and frame layout see
// only this target's real instructions, spilling happens against the
// target's own register classes and clobber rules, and frame layout
// plus SP-offset simulation run last, just before emission. Init and
// Finish are the caller's responsibility — they are process-wide, not
// per-graph, and Run may be called many times between a single
// Init/Finish pair (spec.md §5: "Multiple graphs may be processed on
// multiple threads provided the interned tables are fully initialized
// first").
// sim is the target's own answer to "what does this node (other than
// IncSP/MemPerm) do to the running stack-pointer offset" (spec.md
// §4.5); the core has no way to know this for an arbitrary target
// instruction, so the caller — which built b for a specific target —
// supplies it directly rather than through Backend, since spec.md §6
// does not name a thirteenth function slot for it.
func Run(b Backend, g *ir.Graph, blocks []*ir.Node, misalign int, sim frame.SimFunc) []byte {
	b.BeginCodegeneration(g)

	b.LowerForTarget(g)
	b.HandleIntrinsics(g)
	b.PrepareGraph(g)

	params := b.GetParams()
	for _, class := range params.Classes {
		classOf := params.ClassOf(class)
		sets := liveness.Compute(blocks, classOf)
		oracle := liveness.NewOracle(classOf)
		result := spill.Run(blocks, class.N, classOf, sets, oracle)
		materializeSpills(b, result)
	}

	b.BeforeRA(g)

	frame.SortSpillSlotsLast(g.Frame)
	frame.Layout(g.Frame, 0, misalign)
	producers := frame.CollectSPProducers(blocks)
	spReq := &regalloc.Request{Class: params.SPClass, Flags: regalloc.ProducesSP}
	frame.RepairSP(g, producers, spReq)
	frame.SimulateStackPointer(g, misalign, params.StackAlignment, sim)

	out := b.Emit(g)
	b.EndCodegeneration(g)
	return out
}

// materializeSpills turns one register class's spill/reload decisions
// into actual instructions (spec.md §4.4's "Failure semantics": the
// heuristic only reports decisions, "the spill environment... which
// materializes them later" is this). A value is spilled the first time
// any decision needs it in memory, immediately after its defining
// instruction; every later Reload or EdgeReload for the same value
// reuses that one spill slot.
func materializeSpills(b Backend, res *spill.Result) {
	slots := map[*ir.Node]*ir.Node{}
	slotFor := func(v *ir.Node) *ir.Node {
		if slot, ok := slots[v]; ok {
			return slot
		}
		slot := b.NewSpill(v.Block(), v, v)
		ir.InsertInstrAfter(v.Block(), v, slot)
		slots[v] = slot
		return slot
	}
	for _, d := range res.Decisions {
		switch d.Kind {
		case spill.Reload:
			slot := slotFor(d.Value)
			reload := b.NewReload(d.Block, d.Value, slot, d.Before)
			ir.InsertInstrBefore(d.Block, d.Before, reload)
		case spill.PhiSpill:
			slotFor(d.Value)
		case spill.EdgeReload:
			// No edge-splitting here: the reload lands at the front of
			// Block, after any Phis, which is where a value expected
			// live-in from From must already be available.
			slot := slotFor(d.Value)
			before := firstNonPhiInstr(d.Block)
			reload := b.NewReload(d.Block, d.Value, slot, before)
			ir.InsertInstrBefore(d.Block, before, reload)
		}
	}
}

func firstNonPhiInstr(block *ir.Node) *ir.Node {
	for _, instr := range block.Instrs() {
		if instr.Opcode() != ir.OpPhi {
			return instr
		}
	}
	return nil
}
