package ir

// Opcode selects a node's behavior. It is an open string enumeration
// rather than a closed Go const block so that target back-ends (ARM,
// IA32, ...) can extend the sum with their own opcodes without
// modifying this package — the "Dynamic dispatch for architectures"
// design note calls for exactly this kind of open extension point.
type Opcode string

// Core, target-independent opcodes. Every graph is built from these;
// a target's instruction selector rewrites some of them into
// target-specific opcodes (out of scope here, see spec.md §1).
const (
	OpStart  Opcode = "Start"
	OpEnd    Opcode = "End"
	OpBlock  Opcode = "Block"
	OpPhi    Opcode = "Phi"
	OpProj   Opcode = "Proj"
	OpConst  Opcode = "Const"
	OpReturn Opcode = "Return"

	// Back-end support opcodes exercised by the frame/SP-simulation
	// component (spec.md §4.5).
	OpIncSP   Opcode = "IncSP"
	OpMemPerm Opcode = "MemPerm"

	// Opcodes inserted by the spill heuristic (spec.md §4.4): a Spill
	// writes a value to its assigned frame slot, a Reload reads it back.
	OpSpill  Opcode = "Spill"
	OpReload Opcode = "Reload"
)

// IsControl reports whether nodes of this opcode carry mode X/block
// control tokens rather than data.
func (op Opcode) IsControl() bool {
	switch op {
	case OpStart, OpEnd, OpBlock:
		return true
	default:
		return false
	}
}
