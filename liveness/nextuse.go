package liveness

import "github.com/ssagraph/firmcore/ir"

// Infinity is the distance the oracle returns for a value with no
// further use on any forward path (spec.md §4.3).
const Infinity = 1 << 30

// InterBlockWeight is the scheduled-step cost charged for crossing one
// CFG edge while searching forward for the next use, standing in for
// "weighted by execution frequency" (spec.md §4.3) absent real profile
// data. Oracle callers that have block execution frequencies can
// override it with NewOracleWeighted.
const InterBlockWeight = 1000

// Oracle answers "how many scheduled steps from here until v is next
// used" queries (spec.md §4.3, "Next-use oracle").
type Oracle struct {
	classOf     ClassOf
	blockWeight func(from, to *ir.Node) int
}

// NewOracle returns an oracle using the default constant inter-block
// weight.
func NewOracle(classOf ClassOf) *Oracle {
	return NewOracleWeighted(classOf, func(*ir.Node, *ir.Node) int { return InterBlockWeight })
}

// NewOracleWeighted returns an oracle that charges blockWeight(from,
// to) for crossing the CFG edge from -> to, letting a caller plug in
// real execution-frequency weights.
func NewOracleWeighted(classOf ClassOf, blockWeight func(from, to *ir.Node) int) *Oracle {
	return &Oracle{classOf: classOf, blockWeight: blockWeight}
}

// Distance returns the distance from scheduled position pos in block
// (an index into block.Instrs(), or -1 to mean "before the first
// instruction") to the next use of v strictly after pos, searching
// forward through the CFG. Returns Infinity if v is never used again on
// any forward path.
//
// If v.DontSpill is set, Distance always returns 0 (spec.md §4.3).
func (o *Oracle) Distance(block *ir.Node, pos int, v *ir.Node) int {
	if v.DontSpill {
		return 0
	}
	visited := map[*ir.Node]map[*ir.Node]bool{}
	return o.search(block, pos, v, visited, 0)
}

// search explores forward paths depth-first. visited is keyed by
// (block, value-as-resolved-on-that-path) rather than just block, so
// that two diamond branches carrying different Phi-resolved values
// through the same join block are not mistaken for a revisit.
func (o *Oracle) search(block *ir.Node, pos int, v *ir.Node, visited map[*ir.Node]map[*ir.Node]bool, base int) int {
	instrs := block.Instrs()
	for i := pos + 1; i < len(instrs); i++ {
		if usesValue(instrs[i], v, o.classOf) {
			return base + (i - pos)
		}
	}
	seen := visited[block]
	if seen == nil {
		seen = map[*ir.Node]bool{}
		visited[block] = seen
	}
	if seen[v] {
		return Infinity
	}
	seen[v] = true

	best := Infinity
	here := base + (len(instrs) - pos)
	for _, succ := range block.Succs() {
		resolved := v
		if v.Opcode() == ir.OpPhi && v.Block() == succ {
			op := v.In(succ.PredIndex(block))
			if op == nil {
				continue // Unknown placeholder on this edge
			}
			resolved = op
		}
		d := o.search(succ, -1, resolved, visited, here+o.blockWeight(block, succ))
		if d < best {
			best = d
		}
	}
	return best
}

func usesValue(n *ir.Node, v *ir.Node, classOf ClassOf) bool {
	if n.Opcode() == ir.OpPhi {
		return false // phi operands are consumed on the incoming edge, not "at" the phi
	}
	for _, u := range usesOf(n, classOf) {
		if u == v {
			return true
		}
	}
	return false
}
