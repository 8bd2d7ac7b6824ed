// Package regalloc defines the register-class and register-request
// data model consumed by the register allocator (spec.md §3, "Register
// request"). It carries no dependency on the IR itself: a Request is an
// immutable, self-contained constraint that the allocator consults
// alongside whichever graph it is processing.
//
// Grounded on the register-class/requirement split used throughout the
// pack's compiler back-ends (e.g. the wazero wazevo backend's
// RegisterInfo and the libFirm arch_register_req_t this spec distills).
package regalloc

import "fmt"

// Class identifies a disjoint set of physical registers an operand or
// result may be assigned from (e.g. general-purpose vs. floating
// point). Two Classes are the same class iff they are the same
// pointer; callers construct one Class per register file and reuse it.
type Class struct {
	Name string
	// N is the number of physical registers in the class, i.e. the k
	// in the Belady spiller's "k allocatable registers" (spec.md §4.4).
	N int
}

func (c *Class) String() string {
	if c == nil {
		return "<none>"
	}
	return c.Name
}

// Flag is a bitmask of constraint flags attached to a Request.
type Flag uint16

const (
	// Normal means any register in the class is acceptable.
	Normal Flag = 0
	// Limited restricts the choice to the bitset recorded in
	// Request.Allowed.
	Limited Flag = 1 << iota
	// ShouldBeSame asks the allocator to prefer (not require) that this
	// operand/result share a register with the positions named in
	// OtherSame.
	ShouldBeSame
	// MustBeDifferent requires that this operand/result never share a
	// register with the positions named in OtherDifferent.
	MustBeDifferent
	// Aligned requires register-pair alignment for multi-register
	// (Width > 1) values.
	Aligned
	// Ignore means this position carries no register requirement at
	// all (e.g. a memory operand folded into the instruction).
	Ignore
	// ProducesSP marks a result that defines the stack-pointer
	// register, consulted by the frame/SP-simulation component.
	ProducesSP
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// PositionMask indexes a node's own input positions; it is used by
// Request.OtherSame/OtherDifferent to name sibling positions without
// requiring a pointer back to the node itself.
type PositionMask uint64

// Set reports whether position p (0-based) is present in the mask.
func (m PositionMask) Set(p int) bool {
	if p < 0 || p >= 64 {
		return false
	}
	return m&(1<<uint(p)) != 0
}

// WithPosition returns a copy of m with position p added.
func (m PositionMask) WithPosition(p int) PositionMask {
	if p < 0 || p >= 64 {
		return m
	}
	return m | 1<<uint(p)
}

// Request is the immutable constraint attached to one input position or
// one result of a backend node (spec.md §3, "Register request").
type Request struct {
	Class           *Class
	Flags           Flag
	Allowed         PositionMask // meaningful only when Flags.Has(Limited); bitset over register indices within Class
	OtherSame       PositionMask
	OtherDifferent  PositionMask
	Width           int // number of consecutive registers this value occupies; 0 means 1
}

// Registers reports the value's register width, defaulting to 1.
func (r *Request) Registers() int {
	if r == nil || r.Width <= 0 {
		return 1
	}
	return r.Width
}

// Compatible reports whether a physical register index reg (0-based
// within r.Class) satisfies r's constraints.
func (r *Request) Compatible(reg int) bool {
	if r == nil {
		return true
	}
	if r.Flags.Has(Ignore) {
		return true
	}
	if r.Flags.Has(Limited) && !r.Allowed.Set(reg) {
		return false
	}
	return true
}

func (r *Request) String() string {
	if r == nil {
		return "<no-req>"
	}
	return fmt.Sprintf("%s(flags=%04x,width=%d)", r.Class, r.Flags, r.Registers())
}
